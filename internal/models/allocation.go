package models

// PaymentConfirmation is the normalised form of a succeeded payment.
type PaymentConfirmation struct {
	PaymentReference string   `json:"payment_reference" validate:"required"`
	BuyerEmail       string   `json:"email" validate:"required,email"`
	BuyerName        string   `json:"name" validate:"required"`
	BuyerPhone       string   `json:"phone,omitempty"`
	SessionIDs       []string `json:"session_ids" validate:"required,min=1,dive,required"`
	// AmountTotalCents is the charged total when known; zero means unknown.
	AmountTotalCents int64 `json:"amount_total_cents,omitempty" validate:"gte=0"`
}

// AllocationOutcome is the per-session result of an allocation run.
type AllocationOutcome string

const (
	OutcomeEnrolled         AllocationOutcome = "enrolled"
	OutcomeDuplicate        AllocationOutcome = "duplicate"
	OutcomeNotFound         AllocationOutcome = "not_found"
	OutcomeCapacityExceeded AllocationOutcome = "capacity_exceeded"
	OutcomeSessionCancelled AllocationOutcome = "session_cancelled"
	OutcomeFailed           AllocationOutcome = "failed"
)

// SessionAllocation reports what happened for one purchased session.
type SessionAllocation struct {
	SessionID      string            `json:"session_id"`
	Outcome        AllocationOutcome `json:"outcome"`
	EnrollmentID   string            `json:"enrollment_id,omitempty"`
	VoucherID      string            `json:"voucher_id,omitempty"`
	VoucherMissing bool              `json:"voucher_missing,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// AllocationResult aggregates a payment's per-session outcomes.
type AllocationResult struct {
	PaymentReference string              `json:"payment_reference"`
	Sessions         []SessionAllocation `json:"sessions"`
	EmailsQueued     int                 `json:"emails_queued"`
}

// Retryable reports whether redelivery could change the result.
func (r AllocationResult) Retryable() bool {
	for _, s := range r.Sessions {
		if s.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// Count returns how many sessions ended with outcome.
func (r AllocationResult) Count(outcome AllocationOutcome) int {
	n := 0
	for _, s := range r.Sessions {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}
