package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusConfirmed EnrollmentStatus = "confirmed"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// HoldsSeat reports whether enrollments in this status count against capacity.
func (s EnrollmentStatus) HoldsSeat() bool {
	return s != EnrollmentStatusCancelled
}

// PaymentStatus mirrors the processor state of the enrollment payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Enrollment links a buyer to a session through a payment reference.
type Enrollment struct {
	ID                    string           `db:"id" json:"id"`
	SessionID             string           `db:"session_id" json:"session_id"`
	UserID                *string          `db:"user_id" json:"user_id,omitempty"`
	GuestEmail            string           `db:"guest_email" json:"email"`
	GuestName             string           `db:"guest_name" json:"name"`
	GuestPhone            string           `db:"guest_phone" json:"phone,omitempty"`
	AmountPaidCents       int64            `db:"amount_paid_cents" json:"amount_paid_cents"`
	PaymentReference      string           `db:"payment_reference" json:"payment_reference"`
	Status                EnrollmentStatus `db:"status" json:"status"`
	PaymentStatus         PaymentStatus    `db:"payment_status" json:"payment_status"`
	OnlineCourseCompleted bool             `db:"online_course_completed" json:"online_course_completed"`
	EnrolledAt            time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt           *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt           *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// EnrollmentDetail adds session, class and voucher context for admin views.
type EnrollmentDetail struct {
	Enrollment
	ClassName     string         `db:"class_name" json:"class_name"`
	SessionDate   time.Time      `db:"session_date" json:"session_date"`
	StartTime     string         `db:"start_time" json:"start_time"`
	EndTime       string         `db:"end_time" json:"end_time"`
	Location      string         `db:"location" json:"location"`
	VoucherID     *string        `db:"voucher_id" json:"voucher_id,omitempty"`
	VoucherURL    *string        `db:"voucher_url" json:"voucher_url,omitempty"`
	VoucherStatus *VoucherStatus `db:"voucher_status" json:"voucher_status,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	SessionID string
	Status    EnrollmentStatus
	Email     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
