package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionSource identifies the payment rail a ledger entry came from
type TransactionSource string

const (
	TransactionSourceReelBux TransactionSource = "reelbux" // Internal wallet balance
	TransactionSourceStripe  TransactionSource = "stripe"
	TransactionSourcePaypal  TransactionSource = "paypal"
	TransactionSourceSystem  TransactionSource = "system" // Internal moves (transfers, adjustments)
)

// TransactionKind represents the business meaning of a ledger entry
type TransactionKind string

const (
	TransactionKindFund             TransactionKind = "fund"              // Wallet top-up via a gateway
	TransactionKindPurchase         TransactionKind = "purchase"          // Payer leg of a film buy
	TransactionKindRent             TransactionKind = "rent"              // Payer leg of a film rental
	TransactionKindCommission       TransactionKind = "commission"        // Affiliate share credit
	TransactionKindFilmmakerEarning TransactionKind = "filmmaker_earning" // Filmmaker share credit
	TransactionKindPlatformEarning  TransactionKind = "platform_earning"  // Platform remainder credit
	TransactionKindTransfer         TransactionKind = "transfer"          // Distro to ReelBux move
	TransactionKindWithdraw         TransactionKind = "withdraw"
	TransactionKindSubscription     TransactionKind = "subscription" // Reserved for recurring billing
)

// Transaction is an immutable ledger entry. Only Status ever changes
// after creation, and only along PaymentStatus.CanTransition edges.
type Transaction struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"` // Links the legs of one logical payment

	Source      TransactionSource `gorm:"type:varchar(20);not null;index" json:"source"`
	Kind        TransactionKind   `gorm:"type:varchar(30);not null;index" json:"kind"`
	BalanceKind BalanceKind       `gorm:"type:varchar(10);not null;default:'none'" json:"balance_kind"`
	Status      PaymentStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	CustomerID uint  `gorm:"not null;index" json:"customer_id"`
	WalletID   *uint `gorm:"index" json:"wallet_id,omitempty"`
	FilmID     *uint `gorm:"index" json:"film_id,omitempty"`

	// ExternalReference is the gateway payment id (Stripe session id,
	// PayPal payment id). A partial unique index on it WHERE status <>
	// 'failed' makes settlement idempotent under webhook replays.
	ExternalReference *string `gorm:"type:varchar(255);index:idx_transactions_external_reference" json:"external_reference,omitempty"`
	// GatewayToken correlates the two phases of a redirect checkout.
	GatewayToken *string `gorm:"type:varchar(255);index:idx_transactions_gateway_token" json:"gateway_token,omitempty"`

	Description string          `gorm:"type:text" json:"description"`
	Metadata    json.RawMessage `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
	Wallet   *Wallet  `gorm:"foreignKey:WalletID" json:"wallet,omitempty"`
	Film     *Film    `gorm:"foreignKey:FilmID" json:"film,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate ensures UUID and CorrelationID are set
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.CorrelationID == uuid.Nil {
		t.CorrelationID = uuid.New()
	}
	return nil
}

// IsCompleted returns true if the transaction settled successfully
func (t *Transaction) IsCompleted() bool {
	return t.Status == PaymentStatusCompleted
}

// IsPending returns true if the transaction is still awaiting a gateway outcome
func (t *Transaction) IsPending() bool {
	return t.Status == PaymentStatusPending || t.Status == PaymentStatusInitiated
}

// IsFinal returns true if the transaction reached a terminal state
func (t *Transaction) IsFinal() bool {
	return t.Status.IsTerminal()
}

// TransactionFilter represents filter criteria for transaction queries
type TransactionFilter struct {
	ID                *uint              `json:"id,omitempty"`
	UUID              *uuid.UUID         `json:"uuid,omitempty"`
	CorrelationID     *uuid.UUID         `json:"correlation_id,omitempty"`
	Source            *TransactionSource `json:"source,omitempty"`
	Kind              *TransactionKind   `json:"kind,omitempty"`
	BalanceKind       *BalanceKind       `json:"balance_kind,omitempty"`
	Status            *PaymentStatus     `json:"status,omitempty"`
	CustomerID        *uint              `json:"customer_id,omitempty"`
	WalletID          *uint              `json:"wallet_id,omitempty"`
	FilmID            *uint              `json:"film_id,omitempty"`
	ExternalReference *string            `json:"external_reference,omitempty"`
	GatewayToken      *string            `json:"gateway_token,omitempty"`
	CreatedAfter      *time.Time         `json:"created_after,omitempty"`
	CreatedBefore     *time.Time         `json:"created_before,omitempty"`
}
