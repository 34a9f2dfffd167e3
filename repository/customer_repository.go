// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/utils"
	"gorm.io/gorm"
)

// CustomerRepositoryImpl implements CustomerRepository interface
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer, models.CustomerFilter]
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer, models.CustomerFilter](db),
	}
}

// ByEmail retrieves a customer by email address
func (r *CustomerRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Customer, error) {
	filter := models.CustomerFilter{Email: &email}
	customers, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return customers[0], nil
}

// ByUUID retrieves a customer by UUID
func (r *CustomerRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Customer, error) {
	db := r.getDB(ctx)
	var customer models.Customer
	err := db.Where("uuid = ?", uuid).Last(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// ByDistroCode resolves a referral code to its owner
func (r *CustomerRepositoryImpl) ByDistroCode(ctx context.Context, code string) (*models.Customer, error) {
	if code == "" {
		return nil, nil
	}
	db := r.getDB(ctx)
	var customer models.Customer
	err := db.Where("distro_code = ?", code).Last(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// GetPlatformAccount returns the singleton platform revenue account
func (r *CustomerRepositoryImpl) GetPlatformAccount(ctx context.Context) (*models.Customer, error) {
	filter := models.CustomerFilter{IsPlatform: utils.ToPtr(true)}
	customers, err := r.ByFilter(ctx, filter, "id ASC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return customers[0], nil
}

// ByFilter retrieves customers matching the filter criteria
func (r *CustomerRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	db := r.getDB(ctx)
	var customers []*models.Customer

	query := db.Model(&models.Customer{})
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

	err := query.Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *CustomerRepositoryImpl) applyFilter(query *gorm.DB, filter models.CustomerFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.DistroCode != nil {
		query = query.Where("distro_code = ?", *filter.DistroCode)
	}
	if filter.IsPlatform != nil {
		query = query.Where("is_platform = ?", *filter.IsPlatform)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *CustomerRepositoryImpl) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Customer{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CustomerRepositoryImpl) Exists(ctx context.Context, filter models.CustomerFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
