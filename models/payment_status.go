package models

// PaymentStatus tracks the lifecycle of a payment attempt. Access grants
// reuse the same state machine for their active/expired lifecycle so that
// every status change in the system goes through one transition table.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated" // Attempt created, nothing sent to a gateway yet
	PaymentStatusPending   PaymentStatus = "pending"   // Waiting for gateway confirmation
	PaymentStatusCompleted PaymentStatus = "completed" // Settled, ledger legs written
	PaymentStatusFailed    PaymentStatus = "failed"    // Gateway reported failure
	PaymentStatusCancelled PaymentStatus = "cancelled" // Abandoned by the payer or cancelled administratively

	// Grant lifecycle states
	PaymentStatusActive  PaymentStatus = "active"
	PaymentStatusExpired PaymentStatus = "expired"
)

// legalTransitions is the single source of truth for status changes.
// Terminal states have no outgoing edges and are never revisited.
var legalTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusInitiated: {PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusActive:    {PaymentStatusExpired},
}

// CanTransition reports whether moving from s to target is legal.
func (s PaymentStatus) CanTransition(target PaymentStatus) bool {
	for _, next := range legalTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transition is possible.
func (s PaymentStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// IsValid returns true for known status values.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusInitiated, PaymentStatusPending, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusActive, PaymentStatusExpired:
		return true
	}
	return false
}
