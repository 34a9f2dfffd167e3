package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceKind selects which of the two wallet balances a transaction
// touches.
type BalanceKind string

const (
	BalanceKindReelBux BalanceKind = "reelbux" // Spendable balance
	BalanceKindDistro  BalanceKind = "distro"  // Affiliate commission balance
	BalanceKindNone    BalanceKind = "none"    // Informational legs (platform earning records etc.)
)

// Wallet holds a customer's two balances. Rows are created lazily on
// first use and mutated only under SELECT ... FOR UPDATE inside the
// enclosing payment transaction.
type Wallet struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID uint      `gorm:"not null;uniqueIndex" json:"customer_id"`

	// Both balances are non-negative invariants enforced by the flows
	// before any write.
	ReelBuxBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"reel_bux_balance"`
	DistroBalance  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"distro_balance"`

	Metadata map[string]any `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer     Customer      `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:WalletID" json:"transactions,omitempty"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// BeforeCreate ensures UUID is set
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	return nil
}

// BalanceFor returns the balance selected by kind.
func (w *Wallet) BalanceFor(kind BalanceKind) decimal.Decimal {
	switch kind {
	case BalanceKindDistro:
		return w.DistroBalance
	case BalanceKindReelBux:
		return w.ReelBuxBalance
	}
	return decimal.Zero
}

// CanDebit reports whether the selected balance covers amount.
func (w *Wallet) CanDebit(kind BalanceKind, amount decimal.Decimal) bool {
	return w.BalanceFor(kind).GreaterThanOrEqual(amount)
}

// Credit adds amount to the selected balance in memory. The caller
// persists the wallet while holding the row lock.
func (w *Wallet) Credit(kind BalanceKind, amount decimal.Decimal) {
	switch kind {
	case BalanceKindDistro:
		w.DistroBalance = w.DistroBalance.Add(amount)
	case BalanceKindReelBux:
		w.ReelBuxBalance = w.ReelBuxBalance.Add(amount)
	}
}

// Debit subtracts amount from the selected balance in memory.
func (w *Wallet) Debit(kind BalanceKind, amount decimal.Decimal) {
	switch kind {
	case BalanceKindDistro:
		w.DistroBalance = w.DistroBalance.Sub(amount)
	case BalanceKindReelBux:
		w.ReelBuxBalance = w.ReelBuxBalance.Sub(amount)
	}
}

// WalletFilter represents filter criteria for wallet queries
type WalletFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	CustomerID    *uint      `json:"customer_id,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
