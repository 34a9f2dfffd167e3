// Package businessflow contains the core business logic and use cases for payment workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAccountInactive  = errors.New("account is inactive")

	// Film-related errors
	ErrFilmNotFound     = errors.New("film not found")
	ErrFilmNotPublished = errors.New("film is not published")
	ErrFilmAlreadyOwned = errors.New("film already owned")
	ErrInvalidRentHours = errors.New("invalid rental duration")

	// Wallet-related errors
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")

	// Ledger errors
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrPaymentAlreadyProcessed  = errors.New("payment already processed")
	ErrIllegalStatusTransition  = errors.New("illegal payment status transition")
	ErrDuplicateWebhookDelivery = errors.New("duplicate webhook delivery")

	// Gateway errors
	ErrGatewayFailure          = errors.New("payment gateway failure")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrCheckoutNotFound        = errors.New("checkout not found")
	ErrCheckoutNotApproved     = errors.New("checkout was not approved by the payer")

	// System errors
	ErrPlatformAccountMissing = errors.New("platform account missing")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsFilmNotFound(err error) bool {
	return errors.Is(err, ErrFilmNotFound)
}

func IsFilmNotPublished(err error) bool {
	return errors.Is(err, ErrFilmNotPublished)
}

func IsFilmAlreadyOwned(err error) bool {
	return errors.Is(err, ErrFilmAlreadyOwned)
}

func IsInvalidRentHours(err error) bool {
	return errors.Is(err, ErrInvalidRentHours)
}

func IsWalletNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

func IsTransactionNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}

func IsPaymentAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrPaymentAlreadyProcessed)
}

func IsIllegalStatusTransition(err error) bool {
	return errors.Is(err, ErrIllegalStatusTransition)
}

func IsDuplicateWebhookDelivery(err error) bool {
	return errors.Is(err, ErrDuplicateWebhookDelivery)
}

func IsGatewayFailure(err error) bool {
	return errors.Is(err, ErrGatewayFailure)
}

func IsInvalidWebhookSignature(err error) bool {
	return errors.Is(err, ErrInvalidWebhookSignature)
}

func IsCheckoutNotFound(err error) bool {
	return errors.Is(err, ErrCheckoutNotFound)
}

func IsCheckoutNotApproved(err error) bool {
	return errors.Is(err, ErrCheckoutNotApproved)
}

func IsPlatformAccountMissing(err error) bool {
	return errors.Is(err, ErrPlatformAccountMissing)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
