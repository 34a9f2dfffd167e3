// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/models"
	"github.com/shopspring/decimal"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByEmail(ctx context.Context, email string) (*models.Customer, error)
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
	// ByDistroCode resolves a referral code to its owner. Nil when the
	// code is unknown.
	ByDistroCode(ctx context.Context, code string) (*models.Customer, error)
	// GetPlatformAccount returns the singleton platform revenue account.
	GetPlatformAccount(ctx context.Context) (*models.Customer, error)
}

// FilmRepository defines operations for films
type FilmRepository interface {
	Repository[models.Film, models.FilmFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Film, error)
	// AddEarnings bumps the film's earnings aggregate by the filmmaker
	// share of a settled payment. Must run inside the settlement
	// transaction.
	AddEarnings(ctx context.Context, filmID uint, grantType models.GrantType, amount decimal.Decimal) error
}

// WalletRepository defines operations for wallets
type WalletRepository interface {
	Repository[models.Wallet, models.WalletFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Wallet, error)
	ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error)
	// ByCustomerIDForUpdate locks the wallet row with SELECT ... FOR
	// UPDATE. Requires a transaction in ctx; creates the wallet first if
	// the customer has none yet.
	ByCustomerIDForUpdate(ctx context.Context, customerID uint) (*models.Wallet, error)
	// GetOrCreate returns the customer's wallet, creating a zero-balance
	// row on first use.
	GetOrCreate(ctx context.Context, customerID uint) (*models.Wallet, error)
	// UpdateBalances persists the wallet's balance columns. The caller
	// must hold the row lock.
	UpdateBalances(ctx context.Context, wallet *models.Wallet) error
}

// TransactionRepository defines operations for ledger entries
type TransactionRepository interface {
	Repository[models.Transaction, models.TransactionFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Transaction, error)
	ByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*models.Transaction, error)
	ByCustomerID(ctx context.Context, customerID uint, limit, offset int) ([]*models.Transaction, error)
	ByExternalReference(ctx context.Context, externalReference string) (*models.Transaction, error)
	ByGatewayToken(ctx context.Context, gatewayToken string) (*models.Transaction, error)
	// ExistsSettled reports whether a non-failed ledger entry already
	// carries this external reference. Webhook replay guard.
	ExistsSettled(ctx context.Context, externalReference string) (bool, error)
	// UpdateStatus is a compare-and-set on the status column. Returns
	// ErrStatusConflict when the row is no longer in the expected state.
	UpdateStatus(ctx context.Context, transactionID uint, from, to models.PaymentStatus) error
	// SetExternalReference stamps a gateway settlement id on an existing row
	SetExternalReference(ctx context.Context, transactionID uint, externalReference string) error
}

// FilmAccessGrantRepository defines operations for film access grants
type FilmAccessGrantRepository interface {
	Repository[models.FilmAccessGrant, models.FilmAccessGrantFilter]
	// ActiveGrantExists applies the lazy expiry rule: a rent grant whose
	// expires_at has passed does not count even if its row still says
	// active.
	ActiveGrantExists(ctx context.Context, customerID, filmID uint, now time.Time) (bool, error)
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.FilmAccessGrant, error)
	// ExpireDueGrants flips overdue rent grants to expired. Returns the
	// number of rows changed.
	ExpireDueGrants(ctx context.Context, now time.Time) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
