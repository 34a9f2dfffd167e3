// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelbux/reelbux/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FilmRepositoryImpl implements FilmRepository interface
type FilmRepositoryImpl struct {
	*BaseRepository[models.Film, models.FilmFilter]
}

// NewFilmRepository creates a new film repository
func NewFilmRepository(db *gorm.DB) FilmRepository {
	return &FilmRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Film, models.FilmFilter](db),
	}
}

// ByUUID retrieves a film by UUID
func (r *FilmRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Film, error) {
	db := r.getDB(ctx)
	var film models.Film
	err := db.Where("uuid = ?", uuid).Last(&film).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &film, nil
}

// AddEarnings bumps the earnings aggregate by the filmmaker share of one
// settled payment. total_earning always moves together with the
// per-grant-type column, in the caller's transaction.
func (r *FilmRepositoryImpl) AddEarnings(ctx context.Context, filmID uint, grantType models.GrantType, amount decimal.Decimal) error {
	db := r.getDB(ctx)

	column := "total_buy_earning"
	if grantType == models.GrantTypeRent {
		column = "total_rent_earning"
	}

	result := db.Model(&models.Film{}).
		Where("id = ?", filmID).
		Updates(map[string]any{
			"total_earning": gorm.Expr("total_earning + ?", amount),
			column:          gorm.Expr(column+" + ?", amount),
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to add film earnings: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to add film earnings: film %d not found", filmID)
	}
	return nil
}

// ByFilter retrieves films matching the filter criteria
func (r *FilmRepositoryImpl) ByFilter(ctx context.Context, filter models.FilmFilter, orderBy string, limit, offset int) ([]*models.Film, error) {
	db := r.getDB(ctx)
	var films []*models.Film

	query := db.Model(&models.Film{})
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

	err := query.Find(&films).Error
	if err != nil {
		return nil, err
	}
	return films, nil
}

func (r *FilmRepositoryImpl) applyFilter(query *gorm.DB, filter models.FilmFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.FilmmakerID != nil {
		query = query.Where("filmmaker_id = ?", *filter.FilmmakerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Title != nil {
		query = query.Where("title = ?", *filter.Title)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *FilmRepositoryImpl) Count(ctx context.Context, filter models.FilmFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Film{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FilmRepositoryImpl) Exists(ctx context.Context, filter models.FilmFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
