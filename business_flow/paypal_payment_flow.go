package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/app/services"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	"github.com/reelbux/reelbux/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaypalPaymentFlow drives the two-phase PayPal redirect checkout:
// create the payment and park a pending ledger entry, then execute or
// cancel it when the payer comes back.
type PaypalPaymentFlow interface {
	CreatePaypalCheckout(ctx context.Context, req *dto.CreatePaypalCheckoutRequest, metadata *ClientMetadata) (*dto.CreatePaypalCheckoutResponse, error)
	CreatePaypalAddFunds(ctx context.Context, req *dto.CreatePaypalAddFundsRequest, metadata *ClientMetadata) (*dto.CreatePaypalCheckoutResponse, error)
	ExecutePaypalCheckout(ctx context.Context, req *dto.ExecutePaypalCheckoutRequest, metadata *ClientMetadata) (*dto.ExecutePaypalCheckoutResponse, error)
	CancelPaypalCheckout(ctx context.Context, req *dto.CancelPaypalCheckoutRequest, metadata *ClientMetadata) error
}

// PaypalPaymentFlowImpl implements the PayPal payment business flow
type PaypalPaymentFlowImpl struct {
	customerRepo repository.CustomerRepository
	filmRepo     repository.FilmRepository
	txRepo       repository.TransactionRepository
	auditRepo    repository.AuditLogRepository
	gateway      services.PaypalGateway
	settlement   *SettlementEngine
	db           *gorm.DB
}

// NewPaypalPaymentFlow creates a new PayPal payment flow instance
func NewPaypalPaymentFlow(
	customerRepo repository.CustomerRepository,
	filmRepo repository.FilmRepository,
	txRepo repository.TransactionRepository,
	auditRepo repository.AuditLogRepository,
	gateway services.PaypalGateway,
	settlement *SettlementEngine,
	db *gorm.DB,
) PaypalPaymentFlow {
	return &PaypalPaymentFlowImpl{
		customerRepo: customerRepo,
		filmRepo:     filmRepo,
		txRepo:       txRepo,
		auditRepo:    auditRepo,
		gateway:      gateway,
		settlement:   settlement,
		db:           db,
	}
}

// checkoutIntent captures what a gateway checkout is paying for. It is
// stored as transaction metadata on create and read back on execute, so
// the execute phase never trusts client-supplied film parameters.
type checkoutIntent struct {
	FilmUUID   string `json:"film_uuid"`
	Intent     string `json:"intent"`
	DistroCode string `json:"distro_code,omitempty"`
	RentHours  uint   `json:"rent_hours,omitempty"`
	PaymentID  string `json:"payment_id,omitempty"`
}

func grantTypeForIntent(intent string) (models.GrantType, models.TransactionKind) {
	if intent == string(models.GrantTypeRent) {
		return models.GrantTypeRent, models.TransactionKindRent
	}
	return models.GrantTypeBuy, models.TransactionKindPurchase
}

// CreatePaypalCheckout creates the gateway payment and parks a pending
// ledger entry keyed by the approval token.
func (p *PaypalPaymentFlowImpl) CreatePaypalCheckout(ctx context.Context, req *dto.CreatePaypalCheckoutRequest, metadata *ClientMetadata) (*dto.CreatePaypalCheckoutResponse, error) {
	customer, err := getCustomer(ctx, p.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("PAYPAL_CHECKOUT_FAILED", "PayPal checkout creation failed", err)
	}

	film, err := getFilm(ctx, p.filmRepo, req.FilmUUID)
	if err != nil {
		return nil, NewBusinessError("PAYPAL_CHECKOUT_FAILED", "PayPal checkout creation failed", err)
	}

	grantType, kind := grantTypeForIntent(req.Intent)
	price := film.PriceFor(grantType)
	if !price.IsPositive() {
		return nil, NewBusinessError("PAYPAL_CHECKOUT_FAILED", "PayPal checkout creation failed", ErrInvalidAmount)
	}

	exists, err := p.settlement.grantRepo.ActiveGrantExists(ctx, customer.ID, film.ID, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("PAYPAL_CHECKOUT_FAILED", "PayPal checkout creation failed", err)
	}
	if exists {
		return nil, NewBusinessError("PAYPAL_CHECKOUT_FAILED", "PayPal checkout creation failed", ErrFilmAlreadyOwned)
	}

	correlationID := uuid.New()
	created, err := p.gateway.CreatePayment(ctx, services.PaypalCreateInput{
		Amount:      price,
		Currency:    film.Currency,
		Description: fmt.Sprintf("%s: %s", kind, film.Title),
		InvoiceID:   correlationID.String(),
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutFailed, fmt.Sprintf("checkout create failed for film %s", req.FilmUUID), false, &errMsg, metadata)
		return nil, NewBusinessError("PAYPAL_CHECKOUT_FAILED", "PayPal checkout creation failed", errors.Join(ErrGatewayFailure, err))
	}

	pending := &models.Transaction{
		CorrelationID: correlationID,
		Source:        models.TransactionSourcePaypal,
		Kind:          kind,
		BalanceKind:   models.BalanceKindNone,
		Status:        models.PaymentStatusPending,
		Amount:        price,
		Currency:      film.Currency,
		CustomerID:    customer.ID,
		FilmID:        utils.ToPtr(film.ID),
		GatewayToken:  utils.ToPtr(created.Token),
		Description:   fmt.Sprintf("PayPal %s of film %s", kind, film.Title),
		Metadata: marshalMetadata(checkoutIntent{
			FilmUUID:   req.FilmUUID,
			Intent:     req.Intent,
			DistroCode: req.DistroCode,
			RentHours:  req.RentHours,
			PaymentID:  created.PaymentID,
		}),
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}
	if err := p.txRepo.Save(ctx, pending); err != nil {
		return nil, NewBusinessError("PAYPAL_CHECKOUT_FAILED", "PayPal checkout creation failed", err)
	}

	_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutCreated, fmt.Sprintf("checkout %s created for film %s", created.PaymentID, req.FilmUUID), true, nil, metadata)

	return &dto.CreatePaypalCheckoutResponse{
		Token:       created.Token,
		PaymentID:   created.PaymentID,
		ApprovalURL: created.ApprovalURL,
	}, nil
}

// CreatePaypalAddFunds creates a gateway payment that tops up the
// spendable wallet balance. The pending entry is a charge record; the
// wallet credit happens on execute once the fee is known.
func (p *PaypalPaymentFlowImpl) CreatePaypalAddFunds(ctx context.Context, req *dto.CreatePaypalAddFundsRequest, metadata *ClientMetadata) (*dto.CreatePaypalCheckoutResponse, error) {
	customer, err := getCustomer(ctx, p.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("PAYPAL_ADD_FUNDS_FAILED", "PayPal add-funds checkout creation failed", err)
	}

	if !req.Amount.IsPositive() {
		return nil, NewBusinessError("PAYPAL_ADD_FUNDS_FAILED", "PayPal add-funds checkout creation failed", ErrInvalidAmount)
	}

	correlationID := uuid.New()
	created, err := p.gateway.CreatePayment(ctx, services.PaypalCreateInput{
		Amount:      req.Amount,
		Currency:    utils.USDCurrency,
		Description: "ReelBux wallet top-up",
		InvoiceID:   correlationID.String(),
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutFailed, "add-funds checkout create failed", false, &errMsg, metadata)
		return nil, NewBusinessError("PAYPAL_ADD_FUNDS_FAILED", "PayPal add-funds checkout creation failed", errors.Join(ErrGatewayFailure, err))
	}

	pending := &models.Transaction{
		CorrelationID: correlationID,
		Source:        models.TransactionSourcePaypal,
		Kind:          models.TransactionKindFund,
		BalanceKind:   models.BalanceKindNone,
		Status:        models.PaymentStatusPending,
		Amount:        req.Amount,
		Currency:      utils.USDCurrency,
		CustomerID:    customer.ID,
		GatewayToken:  utils.ToPtr(created.Token),
		Description:   "PayPal wallet top-up",
		Metadata: marshalMetadata(checkoutIntent{
			Intent:    "fund",
			PaymentID: created.PaymentID,
		}),
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}
	if err := p.txRepo.Save(ctx, pending); err != nil {
		return nil, NewBusinessError("PAYPAL_ADD_FUNDS_FAILED", "PayPal add-funds checkout creation failed", err)
	}

	_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutCreated, fmt.Sprintf("add-funds checkout %s created", created.PaymentID), true, nil, metadata)

	return &dto.CreatePaypalCheckoutResponse{
		Token:       created.Token,
		PaymentID:   created.PaymentID,
		ApprovalURL: created.ApprovalURL,
	}, nil
}

// ExecutePaypalCheckout completes an approved checkout: executes the
// payment at the gateway, flips the pending leg to completed, and runs
// settlement on the net amount. An empty payer id means the payer
// abandoned checkout and cancels the pending entry instead.
func (p *PaypalPaymentFlowImpl) ExecutePaypalCheckout(ctx context.Context, req *dto.ExecutePaypalCheckoutRequest, metadata *ClientMetadata) (*dto.ExecutePaypalCheckoutResponse, error) {
	customer, err := getCustomer(ctx, p.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", err)
	}

	pending, intent, err := p.loadPendingCheckout(ctx, req.Token, customer.ID)
	if err != nil {
		return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", err)
	}

	if req.PayerID == "" {
		if err := p.cancelPending(ctx, &customer, pending, "payer returned without approving", metadata); err != nil {
			return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", err)
		}
		return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", ErrCheckoutNotApproved)
	}

	executed, err := p.gateway.ExecutePayment(ctx, intent.PaymentID, req.PayerID)
	if err != nil {
		errMsg := err.Error()
		_ = p.txRepo.UpdateStatus(ctx, pending.ID, models.PaymentStatusPending, models.PaymentStatusFailed)
		_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutFailed, fmt.Sprintf("execute failed for checkout %s", intent.PaymentID), false, &errMsg, metadata)
		return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", errors.Join(ErrGatewayFailure, err))
	}

	if intent.Intent == "fund" {
		return p.executeAddFunds(ctx, customer, pending, intent, executed, metadata)
	}

	film, err := getFilm(ctx, p.filmRepo, intent.FilmUUID)
	if err != nil {
		return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", err)
	}
	grantType, _ := grantTypeForIntent(intent.Intent)

	var response *dto.ExecutePaypalCheckoutResponse
	err = repository.WithTransaction(ctx, p.db, func(txCtx context.Context) error {
		// CAS guards against a concurrent execute on the same token
		if err := p.txRepo.UpdateStatus(txCtx, pending.ID, models.PaymentStatusPending, models.PaymentStatusCompleted); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrPaymentAlreadyProcessed
			}
			return err
		}

		if err := p.txRepo.SetExternalReference(txCtx, pending.ID, executed.SaleID); err != nil {
			return err
		}

		result, err := p.settlement.Settle(txCtx, SettlementInput{
			Payer:         customer,
			Film:          film,
			GrantType:     grantType,
			Source:        models.TransactionSourcePaypal,
			CorrelationID: pending.CorrelationID,
			Net:           executed.Net,
			PricePaid:     executed.Gross,
			DistroCode:    intent.DistroCode,
			RentHours:     intent.RentHours,
			PayerLegID:    utils.ToPtr(pending.ID),
		})
		if err != nil {
			return err
		}

		response = &dto.ExecutePaypalCheckoutResponse{
			TransactionUUID: pending.UUID.String(),
			GrantUUID:       result.Grant.UUID.String(),
			GrantType:       string(grantType),
			Gross:           executed.Gross,
			Fee:             executed.Fee,
			Net:             executed.Net,
			ExpiresAt:       result.Grant.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutFailed, fmt.Sprintf("settlement failed for checkout %s", intent.PaymentID), false, &errMsg, metadata)
		return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", err)
	}

	_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutExecuted, fmt.Sprintf("checkout %s executed, sale %s", intent.PaymentID, executed.SaleID), true, nil, metadata)

	return response, nil
}

// executeAddFunds settles an approved top-up: flips the charge record
// to completed and credits the spendable balance with the net amount in
// a separate fund leg keyed by the same correlation id.
func (p *PaypalPaymentFlowImpl) executeAddFunds(ctx context.Context, customer models.Customer, pending *models.Transaction, intent *checkoutIntent, executed *services.PaypalExecutionResult, metadata *ClientMetadata) (*dto.ExecutePaypalCheckoutResponse, error) {
	net := executed.Net
	if net.IsNegative() {
		net = decimal.Zero
	}

	err := repository.WithTransaction(ctx, p.db, func(txCtx context.Context) error {
		if err := p.txRepo.UpdateStatus(txCtx, pending.ID, models.PaymentStatusPending, models.PaymentStatusCompleted); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrPaymentAlreadyProcessed
			}
			return err
		}
		if err := p.txRepo.SetExternalReference(txCtx, pending.ID, executed.SaleID); err != nil {
			return err
		}

		wallet, err := p.settlement.walletRepo.ByCustomerIDForUpdate(txCtx, customer.ID)
		if err != nil {
			return err
		}
		wallet.Credit(models.BalanceKindReelBux, net)
		if err := p.settlement.walletRepo.UpdateBalances(txCtx, wallet); err != nil {
			return err
		}

		credit := &models.Transaction{
			CorrelationID: pending.CorrelationID,
			Source:        models.TransactionSourcePaypal,
			Kind:          models.TransactionKindFund,
			BalanceKind:   models.BalanceKindReelBux,
			Status:        models.PaymentStatusCompleted,
			Amount:        net,
			Currency:      utils.USDCurrency,
			CustomerID:    customer.ID,
			WalletID:      utils.ToPtr(wallet.ID),
			Description:   "Wallet top-up via PayPal",
			Metadata:      marshalMetadata(map[string]any{"gross": executed.Gross, "fee": executed.Fee}),
			CreatedAt:     utils.UTCNow(),
			UpdatedAt:     utils.UTCNow(),
		}
		return p.txRepo.Save(txCtx, credit)
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionPaypalCheckoutFailed, fmt.Sprintf("add-funds settlement failed for checkout %s", intent.PaymentID), false, &errMsg, metadata)
		return nil, NewBusinessError("PAYPAL_EXECUTE_FAILED", "PayPal checkout execution failed", err)
	}

	_ = createAuditLog(ctx, p.auditRepo, &customer, models.AuditActionFundsAdded, fmt.Sprintf("wallet topped up %s via paypal", net), true, nil, metadata)

	return &dto.ExecutePaypalCheckoutResponse{
		TransactionUUID: pending.UUID.String(),
		Gross:           executed.Gross,
		Fee:             executed.Fee,
		Net:             net,
	}, nil
}

// CancelPaypalCheckout abandons a pending checkout
func (p *PaypalPaymentFlowImpl) CancelPaypalCheckout(ctx context.Context, req *dto.CancelPaypalCheckoutRequest, metadata *ClientMetadata) error {
	customer, err := getCustomer(ctx, p.customerRepo, req.CustomerID)
	if err != nil {
		return NewBusinessError("PAYPAL_CANCEL_FAILED", "PayPal checkout cancellation failed", err)
	}

	pending, _, err := p.loadPendingCheckout(ctx, req.Token, customer.ID)
	if err != nil {
		return NewBusinessError("PAYPAL_CANCEL_FAILED", "PayPal checkout cancellation failed", err)
	}

	if err := p.cancelPending(ctx, &customer, pending, "checkout canceled by payer", metadata); err != nil {
		return NewBusinessError("PAYPAL_CANCEL_FAILED", "PayPal checkout cancellation failed", err)
	}
	return nil
}

// loadPendingCheckout resolves a token to this customer's pending
// ledger entry and decodes the stored checkout intent.
func (p *PaypalPaymentFlowImpl) loadPendingCheckout(ctx context.Context, token string, customerID uint) (*models.Transaction, *checkoutIntent, error) {
	tx, err := p.txRepo.ByGatewayToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if tx == nil || tx.CustomerID != customerID {
		return nil, nil, ErrCheckoutNotFound
	}
	if tx.Status != models.PaymentStatusPending {
		if tx.Status == models.PaymentStatusCompleted {
			return nil, nil, ErrPaymentAlreadyProcessed
		}
		return nil, nil, ErrCheckoutNotFound
	}

	var intent checkoutIntent
	if err := json.Unmarshal(tx.Metadata, &intent); err != nil {
		return nil, nil, fmt.Errorf("decode checkout metadata: %w", err)
	}
	return tx, &intent, nil
}

func (p *PaypalPaymentFlowImpl) cancelPending(ctx context.Context, customer *models.Customer, pending *models.Transaction, reason string, metadata *ClientMetadata) error {
	if err := p.txRepo.UpdateStatus(ctx, pending.ID, models.PaymentStatusPending, models.PaymentStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return ErrPaymentAlreadyProcessed
		}
		return err
	}
	_ = createAuditLog(ctx, p.auditRepo, customer, models.AuditActionPaypalCheckoutCanceled, reason, true, nil, metadata)
	return nil
}
