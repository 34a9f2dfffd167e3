// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepositoryImpl implements WalletRepository interface
type WalletRepositoryImpl struct {
	*BaseRepository[models.Wallet, models.WalletFilter]
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &WalletRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Wallet, models.WalletFilter](db),
	}
}

// ByUUID finds a wallet by UUID
func (r *WalletRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Where("uuid = ?", uuid).Last(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// ByCustomerID finds a wallet by customer ID
func (r *WalletRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Where("customer_id = ?", customerID).Last(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate returns the customer's wallet, creating a zero-balance row
// on first use.
func (r *WalletRepositoryImpl) GetOrCreate(ctx context.Context, customerID uint) (*models.Wallet, error) {
	wallet, err := r.ByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = &models.Wallet{
		CustomerID:     customerID,
		ReelBuxBalance: decimal.Zero,
		DistroBalance:  decimal.Zero,
		Metadata:       map[string]any{},
		CreatedAt:      utils.UTCNow(),
		UpdatedAt:      utils.UTCNow(),
	}
	if err := r.Save(ctx, wallet); err != nil {
		// A concurrent request may have created the row; the unique index
		// on customer_id makes the insert lose, so re-read.
		existing, readErr := r.ByCustomerID(ctx, customerID)
		if readErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return wallet, nil
}

// ByCustomerIDForUpdate locks the wallet row with SELECT ... FOR UPDATE.
// Requires a transaction in ctx. Creates the wallet first when the
// customer has none, then locks it.
func (r *WalletRepositoryImpl) ByCustomerIDForUpdate(ctx context.Context, customerID uint) (*models.Wallet, error) {
	tx, ok := ctx.Value(TxContextKey).(*gorm.DB)
	if !ok || tx == nil {
		return nil, fmt.Errorf("wallet row lock requires an active transaction")
	}

	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		Last(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if _, err := r.GetOrCreate(ctx, customerID); err != nil {
		return nil, err
	}
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		Last(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// UpdateBalances persists the wallet's balance columns. The caller must
// hold the row lock.
func (r *WalletRepositoryImpl) UpdateBalances(ctx context.Context, wallet *models.Wallet) error {
	db := r.getDB(ctx)

	wallet.UpdatedAt = utils.UTCNow()
	result := db.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]any{
			"reel_bux_balance": wallet.ReelBuxBalance,
			"distro_balance":   wallet.DistroBalance,
			"updated_at":       wallet.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet balances: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update wallet balances: wallet %d not found", wallet.ID)
	}
	return nil
}

// ByFilter retrieves wallets matching the filter criteria
func (r *WalletRepositoryImpl) ByFilter(ctx context.Context, filter models.WalletFilter, orderBy string, limit, offset int) ([]*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallets []*models.Wallet

	query := db.Model(&models.Wallet{})
	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

func (r *WalletRepositoryImpl) applyFilter(query *gorm.DB, filter models.WalletFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *WalletRepositoryImpl) Count(ctx context.Context, filter models.WalletFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Wallet{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *WalletRepositoryImpl) Exists(ctx context.Context, filter models.WalletFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
