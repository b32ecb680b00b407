package dto

import "github.com/saveyours/booking-api/internal/models"

// AddVouchersRequest bulk-imports access URLs into a session pool.
type AddVouchersRequest struct {
	URLs []string `json:"urls" validate:"required,min=1"`
}

// AddVouchersResponse reports what the import did with the submitted lines.
type AddVouchersResponse struct {
	Added      int              `json:"added"`
	Skipped    int              `json:"skipped"`
	Duplicates int              `json:"duplicates"`
	Vouchers   []models.Voucher `json:"vouchers"`
}

// UpdateVoucherRequest replaces a voucher URL.
type UpdateVoucherRequest struct {
	URL string `json:"voucher_url" validate:"required,url"`
}

// DeleteVouchersRequest removes several vouchers at once.
type DeleteVouchersRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// AssignVoucherRequest records a buyer on a voucher by hand.
type AssignVoucherRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	EnrollmentID *string `json:"enrollment_id"`
}

// BackfillResult summarises a backfill run over a session.
type BackfillResult struct {
	SessionID string   `json:"session_id"`
	Assigned  int      `json:"assigned"`
	Remaining int      `json:"remaining"`
	Emailed   int      `json:"emailed"`
	Pending   []string `json:"pending_enrollment_ids,omitempty"`
}
