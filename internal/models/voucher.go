package models

import "time"

type VoucherStatus string

const (
	VoucherStatusAvailable VoucherStatus = "available"
	VoucherStatusAssigned  VoucherStatus = "assigned"
)

// Voucher is a single-use training portal access URL held in a session pool.
type Voucher struct {
	ID              string        `db:"id" json:"id"`
	SessionID       string        `db:"session_id" json:"session_id"`
	URL             string        `db:"voucher_url" json:"voucher_url"`
	Status          VoucherStatus `db:"status" json:"status"`
	EnrollmentID    *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	AssignedToEmail *string       `db:"assigned_to_email" json:"assigned_to_email,omitempty"`
	AssignedAt      *time.Time    `db:"assigned_at" json:"assigned_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// VoucherStats summarises a session pool.
type VoucherStats struct {
	Available int `db:"available" json:"available"`
	Assigned  int `db:"assigned" json:"assigned"`
	Total     int `db:"total" json:"total"`
}
