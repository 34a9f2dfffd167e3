package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Currency and revenue split constants
const (
	// USDCurrency is the only settlement currency
	USDCurrency = "USD"

	// DefaultRentalHours is the rental window applied when a film does not override it
	DefaultRentalHours = 48
)

// Revenue split rates. The platform share is never computed from a rate;
// it is always the remainder so the three shares sum to the net amount.
var (
	// FilmmakerShareRate is the filmmaker's cut of the net amount (70%)
	FilmmakerShareRate = decimal.NewFromFloat(0.70)

	// AffiliateShareRate is the referring affiliate's cut of the net amount (20%)
	AffiliateShareRate = decimal.NewFromFloat(0.20)

	// StripeFeePercent and StripeFeeFixed estimate the Stripe processing fee
	// (2.9% + $0.30) when the authoritative balance transaction is not yet
	// available at webhook time.
	StripeFeePercent = decimal.NewFromFloat(0.029)
	StripeFeeFixed   = decimal.NewFromFloat(0.30)
)

// Platform account constants
const (
	// PlatformUserUUID is the UUID of the platform revenue account
	PlatformUserUUID = "8f2c4a1e-55d0-4f3a-9b6e-0d1c2a3b4c5d"

	// PlatformWalletUUID is the UUID of the platform wallet
	PlatformWalletUUID = "3a9e7d21-0c4b-46f8-8a5d-6e7f8091a2b3"
)
