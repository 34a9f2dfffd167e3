// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/models"
	"gorm.io/gorm"
)

// ErrStatusConflict is returned by UpdateStatus when the row left the
// expected state before the update ran.
var ErrStatusConflict = errors.New("transaction status conflict")

// TransactionRepositoryImpl implements TransactionRepository interface
type TransactionRepositoryImpl struct {
	*BaseRepository[models.Transaction, models.TransactionFilter]
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Transaction, models.TransactionFilter](db),
	}
}

// ByUUID finds a transaction by UUID
func (r *TransactionRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Transaction, error) {
	db := r.getDB(ctx)
	var transaction models.Transaction
	err := db.Where("uuid = ?", uuid).Last(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// ByCorrelationID finds all legs of one logical payment
func (r *TransactionRepositoryImpl) ByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.Transaction
	err := db.Where("correlation_id = ?", correlationID).Order("created_at DESC").Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// ByCustomerID finds transactions by customer ID
func (r *TransactionRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint, limit, offset int) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.Transaction

	query := db.Where("customer_id = ?", customerID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// ByExternalReference finds the most recent transaction carrying a
// gateway payment id
func (r *TransactionRepositoryImpl) ByExternalReference(ctx context.Context, externalReference string) (*models.Transaction, error) {
	db := r.getDB(ctx)
	var transaction models.Transaction
	err := db.Where("external_reference = ?", externalReference).Last(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// ByGatewayToken finds the pending transaction of a redirect checkout
func (r *TransactionRepositoryImpl) ByGatewayToken(ctx context.Context, gatewayToken string) (*models.Transaction, error) {
	db := r.getDB(ctx)
	var transaction models.Transaction
	err := db.Where("gateway_token = ?", gatewayToken).Last(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// ExistsSettled reports whether a non-failed ledger entry already carries
// this external reference. Mirrors the partial unique index on
// (external_reference) WHERE status <> 'failed'.
func (r *TransactionRepositoryImpl) ExistsSettled(ctx context.Context, externalReference string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Transaction{}).
		Where("external_reference = ? AND status <> ?", externalReference, models.PaymentStatusFailed).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus is a compare-and-set on the status column. The from guard
// serializes concurrent settlement attempts on the same row.
func (r *TransactionRepositoryImpl) UpdateStatus(ctx context.Context, transactionID uint, from, to models.PaymentStatus) error {
	db := r.getDB(ctx)

	result := db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", transactionID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// SetExternalReference stamps the gateway's settlement id on an existing
// row with a column-level update. Rows are insert-only through Save, so
// post-settlement mutations go through here.
func (r *TransactionRepositoryImpl) SetExternalReference(ctx context.Context, transactionID uint, externalReference string) error {
	db := r.getDB(ctx)
	return db.Model(&models.Transaction{}).
		Where("id = ?", transactionID).
		Updates(map[string]any{
			"external_reference": externalReference,
			"updated_at":         gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

// ByFilter retrieves transactions matching the filter criteria
func (r *TransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.TransactionFilter, orderBy string, limit, offset int) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.Transaction

	query := db.Model(&models.Transaction{})
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

	err := query.Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *TransactionRepositoryImpl) applyFilter(query *gorm.DB, filter models.TransactionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CorrelationID != nil {
		query = query.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.BalanceKind != nil {
		query = query.Where("balance_kind = ?", *filter.BalanceKind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.WalletID != nil {
		query = query.Where("wallet_id = ?", *filter.WalletID)
	}
	if filter.FilmID != nil {
		query = query.Where("film_id = ?", *filter.FilmID)
	}
	if filter.ExternalReference != nil {
		query = query.Where("external_reference = ?", *filter.ExternalReference)
	}
	if filter.GatewayToken != nil {
		query = query.Where("gateway_token = ?", *filter.GatewayToken)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *TransactionRepositoryImpl) Count(ctx context.Context, filter models.TransactionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Transaction{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TransactionRepositoryImpl) Exists(ctx context.Context, filter models.TransactionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
