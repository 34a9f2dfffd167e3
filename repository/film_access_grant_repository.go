// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/reelbux/reelbux/models"
	"gorm.io/gorm"
)

// FilmAccessGrantRepositoryImpl implements FilmAccessGrantRepository interface
type FilmAccessGrantRepositoryImpl struct {
	*BaseRepository[models.FilmAccessGrant, models.FilmAccessGrantFilter]
}

// NewFilmAccessGrantRepository creates a new film access grant repository
func NewFilmAccessGrantRepository(db *gorm.DB) FilmAccessGrantRepository {
	return &FilmAccessGrantRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FilmAccessGrant, models.FilmAccessGrantFilter](db),
	}
}

// ActiveGrantExists checks for a live grant under the lazy expiry rule:
// rows whose expires_at has passed do not count even while still marked
// active.
func (r *FilmAccessGrantRepositoryImpl) ActiveGrantExists(ctx context.Context, customerID, filmID uint, now time.Time) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.FilmAccessGrant{}).
		Where("customer_id = ? AND film_id = ? AND status = ?", customerID, filmID, models.PaymentStatusActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByCustomer returns a customer's grants, newest first
func (r *FilmAccessGrantRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.FilmAccessGrant, error) {
	db := r.getDB(ctx)
	var grants []*models.FilmAccessGrant

	query := db.Where("customer_id = ?", customerID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// ExpireDueGrants flips overdue rent grants to expired. Correctness does
// not depend on this running; readers already treat overdue rows as
// expired.
func (r *FilmAccessGrantRepositoryImpl) ExpireDueGrants(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.FilmAccessGrant{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.PaymentStatusActive, now).
		Updates(map[string]any{
			"status":     models.PaymentStatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ByFilter retrieves grants matching the filter criteria
func (r *FilmAccessGrantRepositoryImpl) ByFilter(ctx context.Context, filter models.FilmAccessGrantFilter, orderBy string, limit, offset int) ([]*models.FilmAccessGrant, error) {
	db := r.getDB(ctx)
	var grants []*models.FilmAccessGrant

	query := db.Model(&models.FilmAccessGrant{})
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

	err := query.Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *FilmAccessGrantRepositoryImpl) applyFilter(query *gorm.DB, filter models.FilmAccessGrantFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.FilmID != nil {
		query = query.Where("film_id = ?", *filter.FilmID)
	}
	if filter.GrantType != nil {
		query = query.Where("grant_type = ?", *filter.GrantType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at <= ?", *filter.ExpiresBefore)
	}
	if filter.ExpiresAfter != nil {
		query = query.Where("expires_at >= ?", *filter.ExpiresAfter)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *FilmAccessGrantRepositoryImpl) Count(ctx context.Context, filter models.FilmAccessGrantFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.FilmAccessGrant{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FilmAccessGrantRepositoryImpl) Exists(ctx context.Context, filter models.FilmAccessGrantFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
