package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GrantType distinguishes perpetual buys from time-boxed rentals
type GrantType string

const (
	GrantTypeBuy  GrantType = "buy"
	GrantTypeRent GrantType = "rent"
)

// FilmAccessGrant is the viewing right created by a settled payment.
// At most one active grant exists per (customer, film). Rent grants
// expire lazily: a reader must treat expires_at <= now as expired even
// while the row still says active; the scheduler sweep flips the column
// later as an optimization.
type FilmAccessGrant struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	CustomerID uint `gorm:"not null;index:idx_grants_customer_film" json:"customer_id"`
	FilmID     uint `gorm:"not null;index:idx_grants_customer_film" json:"film_id"`

	GrantType GrantType     `gorm:"type:varchar(10);not null" json:"grant_type"`
	Status    PaymentStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	AcquiredAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"acquired_at"`
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"` // Null iff grant_type = buy

	PricePaid     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price_paid"`
	TransactionID *uint           `gorm:"index" json:"transaction_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer    Customer     `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
	Film        Film         `gorm:"foreignKey:FilmID;constraint:OnDelete:CASCADE" json:"film,omitempty"`
	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}

func (FilmAccessGrant) TableName() string {
	return "film_access_grants"
}

// BeforeCreate ensures UUID is set
func (g *FilmAccessGrant) BeforeCreate(tx *gorm.DB) error {
	if g.UUID == uuid.Nil {
		g.UUID = uuid.New()
	}
	return nil
}

// IsActiveAt applies the lazy expiry rule at the given instant.
func (g *FilmAccessGrant) IsActiveAt(now time.Time) bool {
	if g.Status != PaymentStatusActive {
		return false
	}
	if g.ExpiresAt != nil && !now.Before(*g.ExpiresAt) {
		return false
	}
	return true
}

// IsPerpetual returns true for buy grants
func (g *FilmAccessGrant) IsPerpetual() bool {
	return g.GrantType == GrantTypeBuy && g.ExpiresAt == nil
}

// FilmAccessGrantFilter represents filter criteria for grant queries
type FilmAccessGrantFilter struct {
	ID            *uint          `json:"id,omitempty"`
	UUID          *uuid.UUID     `json:"uuid,omitempty"`
	CustomerID    *uint          `json:"customer_id,omitempty"`
	FilmID        *uint          `json:"film_id,omitempty"`
	GrantType     *GrantType     `json:"grant_type,omitempty"`
	Status        *PaymentStatus `json:"status,omitempty"`
	ExpiresBefore *time.Time     `json:"expires_before,omitempty"`
	ExpiresAfter  *time.Time     `json:"expires_after,omitempty"`
	CreatedAfter  *time.Time     `json:"created_after,omitempty"`
	CreatedBefore *time.Time     `json:"created_before,omitempty"`
}
