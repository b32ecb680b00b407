package models

import "time"

// ClassLine is one enrolled class as shown in the confirmation email.
type ClassLine struct {
	ClassName string
	Date      time.Time
	StartTime string
	EndTime   string
	Location  string
}

// EnrollmentConfirmation is the data for the per-payment confirmation email.
type EnrollmentConfirmation struct {
	Name    string
	Classes []ClassLine
}

// VoucherNotice is the data for a single voucher delivery email.
type VoucherNotice struct {
	Name       string
	ClassName  string
	Date       time.Time
	StartTime  string
	EndTime    string
	Location   string
	VoucherURL string
}
