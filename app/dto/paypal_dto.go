package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatePaypalCheckoutRequest starts the PayPal redirect flow
type CreatePaypalCheckoutRequest struct {
	CustomerID uint   `json:"customer_id" validate:"required"`
	FilmUUID   string `json:"film_uuid" validate:"required,uuid4"`
	Intent     string `json:"intent" validate:"required,oneof=buy rent"`
	DistroCode string `json:"distro_code,omitempty" validate:"omitempty,max=32"`
	RentHours  uint   `json:"rent_hours,omitempty" validate:"omitempty,min=1,max=720"`
}

// CreatePaypalAddFundsRequest starts a PayPal wallet top-up
type CreatePaypalAddFundsRequest struct {
	CustomerID uint            `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

// CreatePaypalCheckoutResponse carries the approval redirect
type CreatePaypalCheckoutResponse struct {
	Token       string `json:"token"` // Correlation token for the execute phase
	PaymentID   string `json:"payment_id"`
	ApprovalURL string `json:"approval_url"`
}

// ExecutePaypalCheckoutRequest completes an approved checkout
type ExecutePaypalCheckoutRequest struct {
	CustomerID uint   `json:"customer_id" validate:"required"`
	Token      string `json:"token" validate:"required"`
	PayerID    string `json:"payer_id,omitempty"` // Empty when the payer bailed out
}

// ExecutePaypalCheckoutResponse reports the settled payment
type ExecutePaypalCheckoutResponse struct {
	TransactionUUID string          `json:"transaction_uuid"`
	GrantUUID       string          `json:"grant_uuid"`
	GrantType       string          `json:"grant_type"`
	Gross           decimal.Decimal `json:"gross"`
	Fee             decimal.Decimal `json:"fee"`
	Net             decimal.Decimal `json:"net"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
}

// CancelPaypalCheckoutRequest abandons a pending checkout
type CancelPaypalCheckoutRequest struct {
	CustomerID uint   `json:"customer_id" validate:"required"`
	Token      string `json:"token" validate:"required"`
}
