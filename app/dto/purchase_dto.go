package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseFilmRequest represents a wallet-funded film buy
type PurchaseFilmRequest struct {
	CustomerID uint   `json:"customer_id" validate:"required"` // Customer ID (from authenticated context)
	FilmUUID   string `json:"film_uuid" validate:"required,uuid4"`
	DistroCode string `json:"distro_code,omitempty" validate:"omitempty,max=32"` // Optional referral code
}

// RentFilmRequest represents a wallet-funded film rental
type RentFilmRequest struct {
	CustomerID uint   `json:"customer_id" validate:"required"`
	FilmUUID   string `json:"film_uuid" validate:"required,uuid4"`
	DistroCode string `json:"distro_code,omitempty" validate:"omitempty,max=32"`
	RentHours  uint   `json:"rent_hours,omitempty" validate:"omitempty,min=1,max=720"` // Film default when omitted
}

// PurchaseFilmResponse is returned by both buy and rent wallet payments
type PurchaseFilmResponse struct {
	TransactionUUID string          `json:"transaction_uuid"`
	GrantUUID       string          `json:"grant_uuid"`
	GrantType       string          `json:"grant_type"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Currency        string          `json:"currency"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"` // Rentals only
}

// AccessGrantItem represents a viewing right in listings
type AccessGrantItem struct {
	UUID       string          `json:"uuid"`
	FilmUUID   string          `json:"film_uuid"`
	FilmTitle  string          `json:"film_title"`
	GrantType  string          `json:"grant_type"`
	Status     string          `json:"status"`
	PricePaid  decimal.Decimal `json:"price_paid"`
	AcquiredAt time.Time       `json:"acquired_at"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

// ListAccessGrantsRequest represents the my-films listing request
type ListAccessGrantsRequest struct {
	CustomerID uint `json:"customer_id" validate:"required"`
	Page       uint `json:"page" validate:"min=1"`
	PageSize   uint `json:"page_size" validate:"min=1,max=100"`
}

// ListAccessGrantsResponse represents the my-films listing response
type ListAccessGrantsResponse struct {
	Items      []AccessGrantItem `json:"items"`
	Pagination PaginationInfo    `json:"pagination"`
}
