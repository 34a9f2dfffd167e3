package dto

import "github.com/shopspring/decimal"

// CreateStripeCheckoutRequest starts a Stripe checkout for a film
type CreateStripeCheckoutRequest struct {
	CustomerID uint   `json:"customer_id" validate:"required"`
	FilmUUID   string `json:"film_uuid" validate:"required,uuid4"`
	Intent     string `json:"intent" validate:"required,oneof=buy rent"`
	DistroCode string `json:"distro_code,omitempty" validate:"omitempty,max=32"`
	RentHours  uint   `json:"rent_hours,omitempty" validate:"omitempty,min=1,max=720"`
}

// CreateStripeAddFundsRequest starts a Stripe checkout that tops up the wallet
type CreateStripeAddFundsRequest struct {
	CustomerID uint            `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

// CreateStripeCheckoutResponse carries the hosted checkout redirect
type CreateStripeCheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// StripeWebhookResponse acknowledges a processed event
type StripeWebhookResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	EventType string `json:"event_type,omitempty"`
	GrantType string `json:"grant_type,omitempty"`
}
