package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FilmStatus represents the review state of a film
type FilmStatus string

const (
	FilmStatusReview    FilmStatus = "review"
	FilmStatusPublished FilmStatus = "published"
	FilmStatusRejected  FilmStatus = "rejected"
)

// Film is the sellable catalog entity. Only the pricing and earnings
// fields matter to the payments core; catalog metadata stays minimal.
type Film struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	FilmmakerID uint     `gorm:"not null;index" json:"filmmaker_id"`
	Filmmaker   Customer `gorm:"foreignKey:FilmmakerID;references:ID" json:"filmmaker,omitempty"`

	Title    string     `gorm:"size:255;not null" json:"title"`
	Status   FilmStatus `gorm:"type:varchar(20);not null;default:'review';index" json:"status"`
	Currency string     `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	BuyPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"buy_price"`
	RentPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"rent_price"`
	RentalHours uint            `gorm:"not null;default:48" json:"rental_hours"`

	// Earnings aggregate, bumped by the filmmaker share of each settled
	// payment in the same transaction as the ledger credit. Always equals
	// the sum of completed filmmaker_earning legs for this film.
	TotalEarning     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_earning"`
	TotalBuyEarning  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_buy_earning"`
	TotalRentEarning decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_rent_earning"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	AccessGrants []FilmAccessGrant `gorm:"foreignKey:FilmID" json:"-"`
	Transactions []Transaction     `gorm:"foreignKey:FilmID" json:"-"`
}

func (Film) TableName() string {
	return "films"
}

// BeforeCreate ensures UUID is set
func (f *Film) BeforeCreate(tx *gorm.DB) error {
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	return nil
}

// IsPublished returns true if the film can be sold
func (f *Film) IsPublished() bool {
	return f.Status == FilmStatusPublished
}

// PriceFor returns the list price for the given grant type.
func (f *Film) PriceFor(grantType GrantType) decimal.Decimal {
	if grantType == GrantTypeRent {
		return f.RentPrice
	}
	return f.BuyPrice
}

// FilmFilter represents filter criteria for film queries
type FilmFilter struct {
	ID            *uint       `json:"id,omitempty"`
	UUID          *uuid.UUID  `json:"uuid,omitempty"`
	FilmmakerID   *uint       `json:"filmmaker_id,omitempty"`
	Status        *FilmStatus `json:"status,omitempty"`
	Title         *string     `json:"title,omitempty"`
	CreatedAfter  *time.Time  `json:"created_after,omitempty"`
	CreatedBefore *time.Time  `json:"created_before,omitempty"`
}
