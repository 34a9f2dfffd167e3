// Package businessflow contains the core business logic and use cases for payment workflows
package businessflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	"github.com/reelbux/reelbux/utils"
	"gorm.io/gorm"
)

// PurchaseFlow handles film buys and rentals paid from the ReelBux
// wallet balance.
type PurchaseFlow interface {
	PurchaseFilmWithReelBux(ctx context.Context, req *dto.PurchaseFilmRequest, metadata *ClientMetadata) (*dto.PurchaseFilmResponse, error)
	RentFilmWithReelBux(ctx context.Context, req *dto.RentFilmRequest, metadata *ClientMetadata) (*dto.PurchaseFilmResponse, error)
	ListAccessGrants(ctx context.Context, req *dto.ListAccessGrantsRequest, metadata *ClientMetadata) (*dto.ListAccessGrantsResponse, error)
}

// PurchaseFlowImpl implements the wallet purchase business flow
type PurchaseFlowImpl struct {
	customerRepo repository.CustomerRepository
	filmRepo     repository.FilmRepository
	walletRepo   repository.WalletRepository
	txRepo       repository.TransactionRepository
	grantRepo    repository.FilmAccessGrantRepository
	auditRepo    repository.AuditLogRepository
	settlement   *SettlementEngine
	db           *gorm.DB
}

// NewPurchaseFlow creates a new purchase flow instance
func NewPurchaseFlow(
	customerRepo repository.CustomerRepository,
	filmRepo repository.FilmRepository,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	grantRepo repository.FilmAccessGrantRepository,
	auditRepo repository.AuditLogRepository,
	settlement *SettlementEngine,
	db *gorm.DB,
) PurchaseFlow {
	return &PurchaseFlowImpl{
		customerRepo: customerRepo,
		filmRepo:     filmRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		grantRepo:    grantRepo,
		auditRepo:    auditRepo,
		settlement:   settlement,
		db:           db,
	}
}

// PurchaseFilmWithReelBux buys perpetual access with the spendable balance
func (p *PurchaseFlowImpl) PurchaseFilmWithReelBux(ctx context.Context, req *dto.PurchaseFilmRequest, metadata *ClientMetadata) (*dto.PurchaseFilmResponse, error) {
	return p.payWithWallet(ctx, walletPayment{
		customerID: req.CustomerID,
		filmUUID:   req.FilmUUID,
		distroCode: req.DistroCode,
		grantType:  models.GrantTypeBuy,
		kind:       models.TransactionKindPurchase,
	}, metadata)
}

// RentFilmWithReelBux buys time-boxed access with the spendable balance
func (p *PurchaseFlowImpl) RentFilmWithReelBux(ctx context.Context, req *dto.RentFilmRequest, metadata *ClientMetadata) (*dto.PurchaseFilmResponse, error) {
	return p.payWithWallet(ctx, walletPayment{
		customerID: req.CustomerID,
		filmUUID:   req.FilmUUID,
		distroCode: req.DistroCode,
		grantType:  models.GrantTypeRent,
		kind:       models.TransactionKindRent,
		rentHours:  req.RentHours,
	}, metadata)
}

type walletPayment struct {
	customerID uint
	filmUUID   string
	distroCode string
	grantType  models.GrantType
	kind       models.TransactionKind
	rentHours  uint
}

// payWithWallet runs the whole synchronous payment in one transaction:
// grant check, payer wallet lock, balance check, debit, payer leg,
// settlement.
func (p *PurchaseFlowImpl) payWithWallet(ctx context.Context, in walletPayment, metadata *ClientMetadata) (*dto.PurchaseFilmResponse, error) {
	var customer models.Customer
	var response *dto.PurchaseFilmResponse

	err := repository.WithTransaction(ctx, p.db, func(txCtx context.Context) error {
		var err error
		customer, err = getCustomer(txCtx, p.customerRepo, in.customerID)
		if err != nil {
			return err
		}

		film, err := getFilm(txCtx, p.filmRepo, in.filmUUID)
		if err != nil {
			return err
		}

		price := film.PriceFor(in.grantType)
		if !price.IsPositive() {
			return ErrInvalidAmount
		}

		// Lock the payer wallet before the grant check so concurrent
		// purchases of the same film serialize here.
		wallet, err := p.walletRepo.ByCustomerIDForUpdate(txCtx, customer.ID)
		if err != nil {
			return err
		}

		exists, err := p.grantRepo.ActiveGrantExists(txCtx, customer.ID, film.ID, utils.UTCNow())
		if err != nil {
			return err
		}
		if exists {
			return ErrFilmAlreadyOwned
		}

		if !wallet.CanDebit(models.BalanceKindReelBux, price) {
			return ErrInsufficientFunds
		}

		wallet.Debit(models.BalanceKindReelBux, price)
		if err := p.walletRepo.UpdateBalances(txCtx, wallet); err != nil {
			return err
		}

		correlationID := uuid.New()
		payerLeg := &models.Transaction{
			CorrelationID: correlationID,
			Source:        models.TransactionSourceReelBux,
			Kind:          in.kind,
			BalanceKind:   models.BalanceKindReelBux,
			Status:        models.PaymentStatusCompleted,
			Amount:        price,
			Currency:      film.Currency,
			CustomerID:    customer.ID,
			WalletID:      utils.ToPtr(wallet.ID),
			FilmID:        utils.ToPtr(film.ID),
			Description:   fmt.Sprintf("%s of film %s", in.kind, film.Title),
			Metadata:      marshalMetadata(map[string]any{"distro_code": in.distroCode}),
			CreatedAt:     utils.UTCNow(),
			UpdatedAt:     utils.UTCNow(),
		}
		if err := p.txRepo.Save(txCtx, payerLeg); err != nil {
			return err
		}

		// Wallet payments carry no gateway fee; the full price settles.
		result, err := p.settlement.Settle(txCtx, SettlementInput{
			Payer:         customer,
			Film:          film,
			GrantType:     in.grantType,
			Source:        models.TransactionSourceReelBux,
			CorrelationID: correlationID,
			Net:           price,
			PricePaid:     price,
			DistroCode:    in.distroCode,
			RentHours:     in.rentHours,
			PayerLegID:    utils.ToPtr(payerLeg.ID),
		})
		if err != nil {
			return err
		}

		response = &dto.PurchaseFilmResponse{
			TransactionUUID: payerLeg.UUID.String(),
			GrantUUID:       result.Grant.UUID.String(),
			GrantType:       string(in.grantType),
			AmountPaid:      price,
			Currency:        film.Currency,
			NewBalance:      wallet.ReelBuxBalance,
			ExpiresAt:       result.Grant.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		errMsg := err.Error()
		action := models.AuditActionPurchaseFailed
		_ = createAuditLog(ctx, p.auditRepo, &customer, action, fmt.Sprintf("wallet %s failed for film %s", in.kind, in.filmUUID), false, &errMsg, metadata)
		return nil, NewBusinessError("WALLET_PAYMENT_FAILED", "Wallet payment failed", err)
	}

	action := models.AuditActionFilmPurchased
	if in.grantType == models.GrantTypeRent {
		action = models.AuditActionFilmRented
	}
	_ = createAuditLog(ctx, p.auditRepo, &customer, action, fmt.Sprintf("wallet %s of film %s", in.kind, in.filmUUID), true, nil, metadata)

	return response, nil
}

// ListAccessGrants returns the customer's viewing rights, applying the
// lazy expiry rule to each row before it leaves the flow.
func (p *PurchaseFlowImpl) ListAccessGrants(ctx context.Context, req *dto.ListAccessGrantsRequest, metadata *ClientMetadata) (*dto.ListAccessGrantsResponse, error) {
	if err := validatePagination(req.Page, req.PageSize); err != nil {
		return nil, NewBusinessError("LIST_GRANTS_FAILED", "List access grants failed", err)
	}

	customer, err := getCustomer(ctx, p.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("LIST_GRANTS_FAILED", "List access grants failed", err)
	}

	offset := int((req.Page - 1) * req.PageSize)
	grants, err := p.grantRepo.ListByCustomer(ctx, customer.ID, int(req.PageSize), offset)
	if err != nil {
		return nil, NewBusinessError("LIST_GRANTS_FAILED", "List access grants failed", err)
	}

	total, err := p.grantRepo.Count(ctx, models.FilmAccessGrantFilter{CustomerID: utils.ToPtr(customer.ID)})
	if err != nil {
		return nil, NewBusinessError("LIST_GRANTS_FAILED", "List access grants failed", err)
	}

	now := utils.UTCNow()
	items := make([]dto.AccessGrantItem, 0, len(grants))
	for _, grant := range grants {
		status := grant.Status
		if status == models.PaymentStatusActive && !grant.IsActiveAt(now) {
			status = models.PaymentStatusExpired
		}

		item := dto.AccessGrantItem{
			UUID:       grant.UUID.String(),
			GrantType:  string(grant.GrantType),
			Status:     string(status),
			PricePaid:  grant.PricePaid,
			AcquiredAt: grant.AcquiredAt,
			ExpiresAt:  grant.ExpiresAt,
		}
		film, err := p.filmRepo.ByID(ctx, grant.FilmID)
		if err == nil && film != nil {
			item.FilmUUID = film.UUID.String()
			item.FilmTitle = film.Title
		}
		items = append(items, item)
	}

	return &dto.ListAccessGrantsResponse{
		Items:      items,
		Pagination: dto.NewPaginationInfo(req.Page, req.PageSize, uint(total)),
	}, nil
}

// validatePagination enforces the shared page bounds
func validatePagination(page, pageSize uint) error {
	if page < 1 {
		return ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return ErrInvalidPageSize
	}
	return nil
}
