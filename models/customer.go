// Package models contains domain entities and business models for the payments core
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`

	Email        string `gorm:"size:255;not null;uniqueIndex:idx_customers_email" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	FirstName    string `gorm:"size:255" json:"first_name"`
	LastName     string `gorm:"size:255" json:"last_name"`

	// DistroCode is the customer's referral code. Other customers attach it
	// to a purchase to route the affiliate share into this wallet.
	DistroCode *string `gorm:"size:32;uniqueIndex:uk_customers_distro_code" json:"distro_code,omitempty"`

	// IsPlatform marks the singleton platform account that receives the
	// remainder share of every split.
	IsPlatform *bool `gorm:"default:false;index:idx_customers_is_platform" json:"is_platform"`
	IsActive   *bool `gorm:"default:true;index:idx_customers_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_customers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Wallet       *Wallet           `gorm:"foreignKey:CustomerID" json:"wallet,omitempty"`
	Films        []Film            `gorm:"foreignKey:FilmmakerID" json:"films,omitempty"`
	Transactions []Transaction     `gorm:"foreignKey:CustomerID" json:"-"`
	AccessGrants []FilmAccessGrant `gorm:"foreignKey:CustomerID" json:"-"`
	AuditLogs    []AuditLog        `gorm:"foreignKey:CustomerID" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate ensures UUID is set
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	return nil
}

// IsPlatformAccount returns true for the platform revenue account.
func (c *Customer) IsPlatformAccount() bool {
	return c.IsPlatform != nil && *c.IsPlatform
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	Email         *string    `json:"email,omitempty"`
	DistroCode    *string    `json:"distro_code,omitempty"`
	IsPlatform    *bool      `json:"is_platform,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
