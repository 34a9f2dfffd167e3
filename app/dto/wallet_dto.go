package dto

import (
	"time"

	"github.com/reelbux/reelbux/models"
	"github.com/shopspring/decimal"
)

// GetWalletBalanceRequest represents the request to read wallet balances
type GetWalletBalanceRequest struct {
	CustomerID uint `json:"customer_id" validate:"required"` // Customer ID (from authenticated context)
}

// GetWalletBalanceResponse represents both wallet balances
type GetWalletBalanceResponse struct {
	WalletUUID     string          `json:"wallet_uuid"`
	ReelBuxBalance decimal.Decimal `json:"reel_bux_balance"`
	DistroBalance  decimal.Decimal `json:"distro_balance"`
	Currency       string          `json:"currency"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// GetTransactionHistoryRequest represents the request to retrieve ledger history
type GetTransactionHistoryRequest struct {
	CustomerID uint       `json:"customer_id" validate:"required"`
	Page       uint       `json:"page" validate:"min=1"`
	PageSize   uint       `json:"page_size" validate:"min=1,max=100"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Source     *string    `json:"source,omitempty"`
	Kind       *string    `json:"kind,omitempty"`
	Status     *string    `json:"status,omitempty"`
}

// TransactionHistoryItem represents a single ledger entry for display
type TransactionHistoryItem struct {
	UUID        string          `json:"uuid"`
	Source      string          `json:"source"`
	Kind        string          `json:"kind"`
	Operation   string          `json:"operation"` // Human-readable kind
	Status      string          `json:"status"`
	BalanceKind string          `json:"balance_kind"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	FilmID      *uint           `json:"film_id,omitempty"`
	ExternalRef *string         `json:"external_ref,omitempty"`
	DateTime    time.Time       `json:"datetime"`
}

// TransactionHistoryResponse represents the response for ledger history
type TransactionHistoryResponse struct {
	Items      []TransactionHistoryItem `json:"items"`
	Pagination PaginationInfo           `json:"pagination"`
}

// TransferDistroRequest moves affiliate earnings into the spendable balance
type TransferDistroRequest struct {
	CustomerID uint            `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

// TransferDistroResponse reports the balances after the move
type TransferDistroResponse struct {
	TransferUUID   string          `json:"transfer_uuid"`
	ReelBuxBalance decimal.Decimal `json:"reel_bux_balance"`
	DistroBalance  decimal.Decimal `json:"distro_balance"`
}

// TransactionKindDisplay maps transaction kinds to human-readable operation names
var TransactionKindDisplay = map[models.TransactionKind]string{
	models.TransactionKindFund:             "Wallet Top-up",
	models.TransactionKindPurchase:         "Film Purchase",
	models.TransactionKindRent:             "Film Rental",
	models.TransactionKindCommission:       "Affiliate Commission",
	models.TransactionKindFilmmakerEarning: "Filmmaker Earning",
	models.TransactionKindPlatformEarning:  "Platform Earning",
	models.TransactionKindTransfer:         "Balance Transfer",
	models.TransactionKindWithdraw:         "Withdrawal",
	models.TransactionKindSubscription:     "Subscription",
}
