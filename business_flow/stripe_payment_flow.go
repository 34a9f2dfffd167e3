package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/app/services"
	"github.com/reelbux/reelbux/config"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	"github.com/reelbux/reelbux/utils"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// webhookReplayTTL bounds the Redis fast-path guard; the settled-ledger
// probe remains the authority after the key expires.
const webhookReplayTTL = 24 * time.Hour

// StripePaymentFlow creates hosted checkout sessions and settles them
// from webhook deliveries. Nothing is written to the ledger until the
// webhook confirms payment.
type StripePaymentFlow interface {
	CreateStripeCheckoutSession(ctx context.Context, req *dto.CreateStripeCheckoutRequest, metadata *ClientMetadata) (*dto.CreateStripeCheckoutResponse, error)
	CreateAddFundsCheckoutSession(ctx context.Context, req *dto.CreateStripeAddFundsRequest, metadata *ClientMetadata) (*dto.CreateStripeCheckoutResponse, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string, metadata *ClientMetadata) (*dto.StripeWebhookResponse, error)
}

// StripePaymentFlowImpl implements the Stripe payment business flow
type StripePaymentFlowImpl struct {
	customerRepo repository.CustomerRepository
	filmRepo     repository.FilmRepository
	walletRepo   repository.WalletRepository
	txRepo       repository.TransactionRepository
	grantRepo    repository.FilmAccessGrantRepository
	auditRepo    repository.AuditLogRepository
	gateway      services.StripeGateway
	settlement   *SettlementEngine
	rc           *redis.Client
	cfg          *config.ProductionConfig
	db           *gorm.DB
}

// NewStripePaymentFlow creates a new Stripe payment flow instance
func NewStripePaymentFlow(
	customerRepo repository.CustomerRepository,
	filmRepo repository.FilmRepository,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	grantRepo repository.FilmAccessGrantRepository,
	auditRepo repository.AuditLogRepository,
	gateway services.StripeGateway,
	settlement *SettlementEngine,
	rc *redis.Client,
	cfg *config.ProductionConfig,
	db *gorm.DB,
) StripePaymentFlow {
	return &StripePaymentFlowImpl{
		customerRepo: customerRepo,
		filmRepo:     filmRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		grantRepo:    grantRepo,
		auditRepo:    auditRepo,
		gateway:      gateway,
		settlement:   settlement,
		rc:           rc,
		cfg:          cfg,
		db:           db,
	}
}

// CreateStripeCheckoutSession starts a hosted checkout for a film. The
// purchase intent travels in session metadata; no ledger entry exists
// until the webhook lands.
func (s *StripePaymentFlowImpl) CreateStripeCheckoutSession(ctx context.Context, req *dto.CreateStripeCheckoutRequest, metadata *ClientMetadata) (*dto.CreateStripeCheckoutResponse, error) {
	customer, err := getCustomer(ctx, s.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("STRIPE_CHECKOUT_FAILED", "Stripe checkout creation failed", err)
	}

	film, err := getFilm(ctx, s.filmRepo, req.FilmUUID)
	if err != nil {
		return nil, NewBusinessError("STRIPE_CHECKOUT_FAILED", "Stripe checkout creation failed", err)
	}

	grantType, kind := grantTypeForIntent(req.Intent)
	price := film.PriceFor(grantType)
	if !price.IsPositive() {
		return nil, NewBusinessError("STRIPE_CHECKOUT_FAILED", "Stripe checkout creation failed", ErrInvalidAmount)
	}

	exists, err := s.grantRepo.ActiveGrantExists(ctx, customer.ID, film.ID, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("STRIPE_CHECKOUT_FAILED", "Stripe checkout creation failed", err)
	}
	if exists {
		return nil, NewBusinessError("STRIPE_CHECKOUT_FAILED", "Stripe checkout creation failed", ErrFilmAlreadyOwned)
	}

	sessionMetadata := map[string]string{
		"customer_id": strconv.FormatUint(uint64(customer.ID), 10),
		"film_uuid":   req.FilmUUID,
		"intent":      req.Intent,
	}
	if req.DistroCode != "" {
		sessionMetadata["distro_code"] = req.DistroCode
	}
	if req.RentHours > 0 {
		sessionMetadata["rent_hours"] = strconv.FormatUint(uint64(req.RentHours), 10)
	}

	created, err := s.gateway.CreateCheckoutSession(ctx, services.StripeCheckoutInput{
		Amount:        price,
		Currency:      film.Currency,
		Description:   fmt.Sprintf("%s: %s", kind, film.Title),
		CustomerEmail: customer.Email,
		SuccessURL:    s.cfg.Deployment.CheckoutSuccessURL,
		CancelURL:     s.cfg.Deployment.CheckoutCancelURL,
		Metadata:      sessionMetadata,
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, s.auditRepo, &customer, models.AuditActionPurchaseFailed, fmt.Sprintf("stripe checkout create failed for film %s", req.FilmUUID), false, &errMsg, metadata)
		return nil, NewBusinessError("STRIPE_CHECKOUT_FAILED", "Stripe checkout creation failed", errors.Join(ErrGatewayFailure, err))
	}

	return &dto.CreateStripeCheckoutResponse{
		SessionID:   created.SessionID,
		CheckoutURL: created.URL,
	}, nil
}

// CreateAddFundsCheckoutSession starts a hosted checkout that tops up
// the spendable wallet balance.
func (s *StripePaymentFlowImpl) CreateAddFundsCheckoutSession(ctx context.Context, req *dto.CreateStripeAddFundsRequest, metadata *ClientMetadata) (*dto.CreateStripeCheckoutResponse, error) {
	customer, err := getCustomer(ctx, s.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("STRIPE_ADD_FUNDS_FAILED", "Stripe add-funds checkout creation failed", err)
	}

	if !req.Amount.IsPositive() {
		return nil, NewBusinessError("STRIPE_ADD_FUNDS_FAILED", "Stripe add-funds checkout creation failed", ErrInvalidAmount)
	}

	created, err := s.gateway.CreateCheckoutSession(ctx, services.StripeCheckoutInput{
		Amount:        req.Amount,
		Currency:      utils.USDCurrency,
		Description:   "ReelBux wallet top-up",
		CustomerEmail: customer.Email,
		SuccessURL:    s.cfg.Deployment.CheckoutSuccessURL,
		CancelURL:     s.cfg.Deployment.CheckoutCancelURL,
		Metadata: map[string]string{
			"customer_id": strconv.FormatUint(uint64(customer.ID), 10),
			"intent":      "fund",
		},
	})
	if err != nil {
		return nil, NewBusinessError("STRIPE_ADD_FUNDS_FAILED", "Stripe add-funds checkout creation failed", errors.Join(ErrGatewayFailure, err))
	}

	return &dto.CreateStripeCheckoutResponse{
		SessionID:   created.SessionID,
		CheckoutURL: created.URL,
	}, nil
}

// HandleStripeWebhook verifies and dispatches a webhook delivery.
// Redelivery of an already-settled payment is acknowledged without
// touching the ledger.
func (s *StripePaymentFlowImpl) HandleStripeWebhook(ctx context.Context, payload []byte, signature string, metadata *ClientMetadata) (*dto.StripeWebhookResponse, error) {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		_ = createAuditLog(ctx, s.auditRepo, nil, models.AuditActionStripeWebhookRejected, "webhook signature verification failed", false, utils.ToPtr(err.Error()), metadata)
		return nil, NewBusinessError("STRIPE_WEBHOOK_REJECTED", "Stripe webhook rejected", ErrInvalidWebhookSignature)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event, metadata)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return s.handlePaymentFailed(ctx, event, metadata)
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying
		return &dto.StripeWebhookResponse{Received: true, EventType: string(event.Type)}, nil
	}
}

func (s *StripePaymentFlowImpl) handleCheckoutCompleted(ctx context.Context, event stripe.Event, metadata *ClientMetadata) (*dto.StripeWebhookResponse, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}
	if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", fmt.Errorf("session %s has no payment intent", session.ID))
	}
	paymentIntentID := session.PaymentIntent.ID

	dup, release, err := s.claimDelivery(ctx, paymentIntentID)
	if err != nil {
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}
	if dup {
		_ = createAuditLog(ctx, s.auditRepo, nil, models.AuditActionStripeWebhookDuplicate, fmt.Sprintf("redelivery for payment intent %s", paymentIntentID), true, nil, metadata)
		return &dto.StripeWebhookResponse{Received: true, Duplicate: true, EventType: string(event.Type)}, nil
	}

	customerID, err := parseMetadataUint(session.Metadata, "customer_id")
	if err != nil {
		release()
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}
	customer, err := getCustomer(ctx, s.customerRepo, uint(customerID))
	if err != nil {
		release()
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}

	gross := decimal.New(session.AmountTotal, -2)
	fee, net := s.resolveFees(ctx, paymentIntentID, gross)

	if session.Metadata["intent"] == "fund" {
		return s.settleFund(ctx, customer, paymentIntentID, gross, fee, net, release, metadata)
	}
	return s.settleFilmPayment(ctx, customer, session.Metadata, paymentIntentID, gross, fee, net, release, metadata)
}

// claimDelivery takes the Redis fast-path guard, then falls back to the
// settled-ledger probe. The returned release func drops the Redis key
// so a failed delivery can be retried.
func (s *StripePaymentFlowImpl) claimDelivery(ctx context.Context, paymentIntentID string) (duplicate bool, release func(), err error) {
	release = func() {}
	if s.rc != nil {
		key := "stripe:webhook:" + paymentIntentID
		ok, rErr := s.rc.SetNX(ctx, key, "1", webhookReplayTTL).Result()
		if rErr == nil {
			if !ok {
				return true, release, nil
			}
			release = func() { _ = s.rc.Del(context.Background(), key).Err() }
		}
		// Redis trouble falls through to the database probe
	}

	settled, err := s.txRepo.ExistsSettled(ctx, paymentIntentID)
	if err != nil {
		release()
		return false, func() {}, err
	}
	if settled {
		return true, release, nil
	}
	return false, release, nil
}

// resolveFees asks Stripe for the balance transaction, falling back to
// the published rate when it is not yet available.
func (s *StripePaymentFlowImpl) resolveFees(ctx context.Context, paymentIntentID string, gross decimal.Decimal) (fee, net decimal.Decimal) {
	if fb, err := s.gateway.ResolveFees(ctx, paymentIntentID); err == nil && fb != nil {
		return fb.Fee, fb.Net
	}
	fee = EstimateStripeFee(gross)
	return fee, NetAfterFee(gross, fee)
}

// settleFund credits the wallet with the net amount; the processor fee
// never enters the spendable balance. Gross and fee stay on the leg
// metadata for reconciliation.
func (s *StripePaymentFlowImpl) settleFund(ctx context.Context, customer models.Customer, paymentIntentID string, gross, fee, net decimal.Decimal, release func(), metadata *ClientMetadata) (*dto.StripeWebhookResponse, error) {
	if net.IsNegative() {
		net = decimal.Zero
	}
	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		wallet, err := s.walletRepo.ByCustomerIDForUpdate(txCtx, customer.ID)
		if err != nil {
			return err
		}
		wallet.Credit(models.BalanceKindReelBux, net)
		if err := s.walletRepo.UpdateBalances(txCtx, wallet); err != nil {
			return err
		}

		leg := &models.Transaction{
			CorrelationID:     uuid.New(),
			Source:            models.TransactionSourceStripe,
			Kind:              models.TransactionKindFund,
			BalanceKind:       models.BalanceKindReelBux,
			Status:            models.PaymentStatusCompleted,
			Amount:            net,
			Currency:          utils.USDCurrency,
			CustomerID:        customer.ID,
			WalletID:          utils.ToPtr(wallet.ID),
			ExternalReference: utils.ToPtr(paymentIntentID),
			Description:       "Wallet top-up via Stripe",
			Metadata:          marshalMetadata(map[string]any{"gross": gross, "fee": fee}),
			CreatedAt:         utils.UTCNow(),
			UpdatedAt:         utils.UTCNow(),
		}
		return s.txRepo.Save(txCtx, leg)
	})
	if err != nil {
		release()
		errMsg := err.Error()
		_ = createAuditLog(ctx, s.auditRepo, &customer, models.AuditActionPurchaseFailed, fmt.Sprintf("stripe top-up failed for payment intent %s", paymentIntentID), false, &errMsg, metadata)
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}

	_ = createAuditLog(ctx, s.auditRepo, &customer, models.AuditActionFundsAdded, fmt.Sprintf("wallet topped up %s via stripe", net), true, nil, metadata)
	return &dto.StripeWebhookResponse{Received: true, EventType: string(stripe.EventTypeCheckoutSessionCompleted)}, nil
}

func (s *StripePaymentFlowImpl) settleFilmPayment(ctx context.Context, customer models.Customer, sessionMetadata map[string]string, paymentIntentID string, gross, fee, net decimal.Decimal, release func(), metadata *ClientMetadata) (*dto.StripeWebhookResponse, error) {
	film, err := getFilm(ctx, s.filmRepo, sessionMetadata["film_uuid"])
	if err != nil {
		release()
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}
	grantType, kind := grantTypeForIntent(sessionMetadata["intent"])
	rentHours, _ := parseMetadataUint(sessionMetadata, "rent_hours")

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		correlationID := uuid.New()
		payerLeg := &models.Transaction{
			CorrelationID:     correlationID,
			Source:            models.TransactionSourceStripe,
			Kind:              kind,
			BalanceKind:       models.BalanceKindNone,
			Status:            models.PaymentStatusCompleted,
			Amount:            gross,
			Currency:          film.Currency,
			CustomerID:        customer.ID,
			FilmID:            utils.ToPtr(film.ID),
			ExternalReference: utils.ToPtr(paymentIntentID),
			Description:       fmt.Sprintf("Stripe %s of film %s", kind, film.Title),
			Metadata:          marshalMetadata(map[string]any{"fee": fee, "net": net}),
			CreatedAt:         utils.UTCNow(),
			UpdatedAt:         utils.UTCNow(),
		}
		if err := s.txRepo.Save(txCtx, payerLeg); err != nil {
			return err
		}

		_, err := s.settlement.Settle(txCtx, SettlementInput{
			Payer:         customer,
			Film:          film,
			GrantType:     grantType,
			Source:        models.TransactionSourceStripe,
			CorrelationID: correlationID,
			Net:           net,
			PricePaid:     gross,
			DistroCode:    sessionMetadata["distro_code"],
			RentHours:     uint(rentHours),
			PayerLegID:    utils.ToPtr(payerLeg.ID),
		})
		return err
	})
	if err != nil {
		release()
		errMsg := err.Error()
		_ = createAuditLog(ctx, s.auditRepo, &customer, models.AuditActionPurchaseFailed, fmt.Sprintf("stripe settlement failed for payment intent %s", paymentIntentID), false, &errMsg, metadata)
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}

	action := models.AuditActionFilmPurchased
	if grantType == models.GrantTypeRent {
		action = models.AuditActionFilmRented
	}
	_ = createAuditLog(ctx, s.auditRepo, &customer, action, fmt.Sprintf("stripe %s of film %s settled", kind, film.UUID), true, nil, metadata)
	_ = createAuditLog(ctx, s.auditRepo, &customer, models.AuditActionStripeWebhookProcessed, fmt.Sprintf("payment intent %s settled", paymentIntentID), true, nil, metadata)

	return &dto.StripeWebhookResponse{
		Received:  true,
		EventType: string(stripe.EventTypeCheckoutSessionCompleted),
		GrantType: string(grantType),
	}, nil
}

// handlePaymentFailed records a failed ledger entry so the attempt is
// visible in history. Failed entries never block later retries of the
// same payment intent.
func (s *StripePaymentFlowImpl) handlePaymentFailed(ctx context.Context, event stripe.Event, metadata *ClientMetadata) (*dto.StripeWebhookResponse, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}

	customerID, err := parseMetadataUint(intent.Metadata, "customer_id")
	if err != nil {
		// No metadata means the payment was not initiated by us
		return &dto.StripeWebhookResponse{Received: true, EventType: string(event.Type)}, nil
	}
	customer, err := getCustomer(ctx, s.customerRepo, uint(customerID))
	if err != nil {
		return &dto.StripeWebhookResponse{Received: true, EventType: string(event.Type)}, nil
	}

	leg := &models.Transaction{
		CorrelationID:     uuid.New(),
		Source:            models.TransactionSourceStripe,
		Kind:              grantKindFromMetadata(intent.Metadata),
		BalanceKind:       models.BalanceKindNone,
		Status:            models.PaymentStatusFailed,
		Amount:            decimal.New(intent.Amount, -2),
		Currency:          utils.USDCurrency,
		CustomerID:        customer.ID,
		ExternalReference: utils.ToPtr(intent.ID),
		Description:       "Stripe payment failed",
		CreatedAt:         utils.UTCNow(),
		UpdatedAt:         utils.UTCNow(),
	}
	if err := s.txRepo.Save(ctx, leg); err != nil {
		return nil, NewBusinessError("STRIPE_WEBHOOK_FAILED", "Stripe webhook processing failed", err)
	}

	_ = createAuditLog(ctx, s.auditRepo, &customer, models.AuditActionStripeWebhookProcessed, fmt.Sprintf("payment intent %s failed", intent.ID), true, nil, metadata)
	return &dto.StripeWebhookResponse{Received: true, EventType: string(event.Type)}, nil
}

func grantKindFromMetadata(md map[string]string) models.TransactionKind {
	switch md["intent"] {
	case "fund":
		return models.TransactionKindFund
	case string(models.GrantTypeRent):
		return models.TransactionKindRent
	default:
		return models.TransactionKindPurchase
	}
}

func parseMetadataUint(md map[string]string, key string) (uint64, error) {
	raw, ok := md[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("metadata key %q missing", key)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata key %q: %w", key, err)
	}
	return v, nil
}
