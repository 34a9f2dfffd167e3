// Package businessflow contains the core business logic and use cases for payment workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	"github.com/reelbux/reelbux/utils"
	"github.com/shopspring/decimal"
)

// SettlementInput describes a confirmed payment ready for distribution.
// Net is the amount left after gateway fees; PricePaid is what the payer
// was charged.
type SettlementInput struct {
	Payer         models.Customer
	Film          models.Film
	GrantType     models.GrantType
	Source        models.TransactionSource
	CorrelationID uuid.UUID
	Net           decimal.Decimal
	PricePaid     decimal.Decimal
	DistroCode    string
	RentHours     uint
	PayerLegID    *uint
}

// SettlementResult reports what the settlement produced.
type SettlementResult struct {
	Grant     *models.FilmAccessGrant
	Split     RevenueSplit
	Affiliate *models.Customer
}

// SettlementEngine runs the post-confirmation distribution sequence
// shared by the wallet, Stripe and PayPal adapters. Settle must be
// called inside the caller's transaction; any error aborts the whole
// payment.
type SettlementEngine struct {
	customerRepo repository.CustomerRepository
	filmRepo     repository.FilmRepository
	walletRepo   repository.WalletRepository
	txRepo       repository.TransactionRepository
	grantRepo    repository.FilmAccessGrantRepository
}

// NewSettlementEngine creates a new settlement engine instance
func NewSettlementEngine(
	customerRepo repository.CustomerRepository,
	filmRepo repository.FilmRepository,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	grantRepo repository.FilmAccessGrantRepository,
) *SettlementEngine {
	return &SettlementEngine{
		customerRepo: customerRepo,
		filmRepo:     filmRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		grantRepo:    grantRepo,
	}
}

// Settle distributes a confirmed payment: grant re-check, split, three
// wallet credits with their ledger legs, grant creation and the film
// earnings bump.
func (e *SettlementEngine) Settle(ctx context.Context, in SettlementInput) (*SettlementResult, error) {
	now := utils.UTCNow()

	exists, err := e.grantRepo.ActiveGrantExists(ctx, in.Payer.ID, in.Film.ID, now)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrFilmAlreadyOwned
	}

	affiliate, err := resolveAffiliate(ctx, e.customerRepo, in.DistroCode, in.Payer.ID)
	if err != nil {
		return nil, err
	}

	split := ComputeSplit(in.Net, affiliate != nil)

	// Filmmaker share
	if err := e.credit(ctx, in, in.Film.FilmmakerID, models.BalanceKindReelBux,
		models.TransactionKindFilmmakerEarning, split.Filmmaker,
		fmt.Sprintf("filmmaker share for film %s", in.Film.UUID)); err != nil {
		return nil, err
	}

	// Affiliate share goes to the distro balance
	if affiliate != nil && split.Affiliate.IsPositive() {
		if err := e.credit(ctx, in, affiliate.ID, models.BalanceKindDistro,
			models.TransactionKindCommission, split.Affiliate,
			fmt.Sprintf("affiliate commission for film %s", in.Film.UUID)); err != nil {
			return nil, err
		}
	}

	// Platform remainder
	platform, err := getPlatformAccount(ctx, e.customerRepo)
	if err != nil {
		return nil, err
	}
	if err := e.credit(ctx, in, platform.ID, models.BalanceKindReelBux,
		models.TransactionKindPlatformEarning, split.Platform,
		fmt.Sprintf("platform share for film %s", in.Film.UUID)); err != nil {
		return nil, err
	}

	grant, err := e.createGrant(ctx, in, now)
	if err != nil {
		return nil, err
	}

	if err := e.filmRepo.AddEarnings(ctx, in.Film.ID, in.GrantType, split.Filmmaker); err != nil {
		return nil, err
	}

	return &SettlementResult{
		Grant:     grant,
		Split:     split,
		Affiliate: affiliate,
	}, nil
}

// credit locks the recipient wallet, applies the share and writes the
// completed ledger leg.
func (e *SettlementEngine) credit(ctx context.Context, in SettlementInput, customerID uint, balanceKind models.BalanceKind, kind models.TransactionKind, amount decimal.Decimal, description string) error {
	wallet, err := e.walletRepo.ByCustomerIDForUpdate(ctx, customerID)
	if err != nil {
		return err
	}

	wallet.Credit(balanceKind, amount)
	if err := e.walletRepo.UpdateBalances(ctx, wallet); err != nil {
		return err
	}

	// The gateway reference lives on the payer leg only; earning legs
	// are tied back to it through the shared correlation id.
	leg := &models.Transaction{
		CorrelationID: in.CorrelationID,
		Source:        in.Source,
		Kind:          kind,
		BalanceKind:   balanceKind,
		Status:        models.PaymentStatusCompleted,
		Amount:        amount,
		Currency:      in.Film.Currency,
		CustomerID:    customerID,
		WalletID:      utils.ToPtr(wallet.ID),
		FilmID:        utils.ToPtr(in.Film.ID),
		Description:   description,
		Metadata:      marshalMetadata(map[string]any{"payer_id": in.Payer.ID}),
		CreatedAt:     utils.UTCNow(),
		UpdatedAt:     utils.UTCNow(),
	}
	return e.txRepo.Save(ctx, leg)
}

// createGrant writes the access grant. Buy grants are perpetual; rent
// grants expire after the requested hours (film default when zero).
func (e *SettlementEngine) createGrant(ctx context.Context, in SettlementInput, now time.Time) (*models.FilmAccessGrant, error) {
	grant := &models.FilmAccessGrant{
		CustomerID:    in.Payer.ID,
		FilmID:        in.Film.ID,
		GrantType:     in.GrantType,
		Status:        models.PaymentStatusActive,
		AcquiredAt:    now,
		PricePaid:     in.PricePaid,
		TransactionID: in.PayerLegID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if in.GrantType == models.GrantTypeRent {
		hours := in.RentHours
		if hours == 0 {
			hours = in.Film.RentalHours
		}
		grant.ExpiresAt = utils.ToPtr(utils.RentalExpiry(now, hours))
	}

	if err := e.grantRepo.Save(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}
