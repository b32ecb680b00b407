package models

import "time"

// SessionStatus tracks whether a session still accepts bookings.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusFull      SessionStatus = "full"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Session is a dated, capacity-limited instance of a class.
type Session struct {
	ID                string        `db:"id" json:"id"`
	ClassID           string        `db:"class_id" json:"class_id"`
	Date              time.Time     `db:"date" json:"date"`
	StartTime         string        `db:"start_time" json:"start_time"`
	EndTime           string        `db:"end_time" json:"end_time"`
	Location          string        `db:"location" json:"location"`
	MaxCapacity       int           `db:"max_capacity" json:"max_capacity"`
	CurrentEnrollment int           `db:"current_enrollment" json:"current_enrollment"`
	Status            SessionStatus `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// Remaining returns the number of open seats.
func (s Session) Remaining() int {
	if s.Status == SessionStatusCancelled || s.CurrentEnrollment >= s.MaxCapacity {
		return 0
	}
	return s.MaxCapacity - s.CurrentEnrollment
}

// Bookable reports whether one more seat can be taken.
func (s Session) Bookable() bool {
	return s.Remaining() > 0
}

// DeriveSessionStatus computes the status implied by a seat count.
// Cancelled sessions stay cancelled.
func DeriveSessionStatus(current SessionStatus, enrolled, capacity int) SessionStatus {
	if current == SessionStatusCancelled {
		return SessionStatusCancelled
	}
	if enrolled >= capacity {
		return SessionStatusFull
	}
	return SessionStatusScheduled
}

// SessionDetail joins the class catalogue row.
type SessionDetail struct {
	Session
	ClassName       string    `db:"class_name" json:"class_name"`
	ClassType       ClassType `db:"class_type" json:"class_type"`
	ClassPriceCents int64     `db:"class_price_cents" json:"price_cents"`
}

// SessionFilter narrows admin and public session listings.
type SessionFilter struct {
	ClassID   string
	Status    SessionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortOrder string
}
