package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{"initiated to pending", PaymentStatusInitiated, PaymentStatusPending, true},
		{"initiated to completed", PaymentStatusInitiated, PaymentStatusCompleted, true},
		{"initiated to failed", PaymentStatusInitiated, PaymentStatusFailed, true},
		{"initiated to cancelled", PaymentStatusInitiated, PaymentStatusCancelled, true},
		{"pending to completed", PaymentStatusPending, PaymentStatusCompleted, true},
		{"pending to failed", PaymentStatusPending, PaymentStatusFailed, true},
		{"pending to cancelled", PaymentStatusPending, PaymentStatusCancelled, true},
		{"active to expired", PaymentStatusActive, PaymentStatusExpired, true},

		{"completed is terminal", PaymentStatusCompleted, PaymentStatusPending, false},
		{"completed cannot fail", PaymentStatusCompleted, PaymentStatusFailed, false},
		{"failed is terminal", PaymentStatusFailed, PaymentStatusPending, false},
		{"failed cannot complete", PaymentStatusFailed, PaymentStatusCompleted, false},
		{"cancelled is terminal", PaymentStatusCancelled, PaymentStatusCompleted, false},
		{"expired is terminal", PaymentStatusExpired, PaymentStatusActive, false},
		{"pending cannot regress", PaymentStatusPending, PaymentStatusInitiated, false},
		{"active cannot complete", PaymentStatusActive, PaymentStatusCompleted, false},
		{"no self transition", PaymentStatusPending, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusExpired}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	open := []PaymentStatus{PaymentStatusInitiated, PaymentStatusPending, PaymentStatusActive}
	for _, s := range open {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestPaymentStatusIsValid(t *testing.T) {
	valid := []PaymentStatus{
		PaymentStatusInitiated, PaymentStatusPending, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusActive, PaymentStatusExpired,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "%s should be valid", s)
	}

	assert.False(t, PaymentStatus("refunded").IsValid())
	assert.False(t, PaymentStatus("").IsValid())
}
