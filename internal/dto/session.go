package dto

import "github.com/saveyours/booking-api/internal/models"

// CreateClassRequest adds a course to the catalogue.
type CreateClassRequest struct {
	Name           string           `json:"name" validate:"required"`
	Type           models.ClassType `json:"type" validate:"required,oneof=cpr first_aid bls cpr_first_aid"`
	Audience       string           `json:"audience"`
	PriceCents     int64            `json:"price_cents" validate:"gte=0"`
	DurationOnline string           `json:"duration_online"`
	DurationSkills string           `json:"duration_skills"`
	Description    string           `json:"description"`
}

// CreateSessionRequest schedules a session. Date is YYYY-MM-DD; times are HH:MM.
type CreateSessionRequest struct {
	ClassID     string `json:"class_id" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04"`
	Location    string `json:"location"`
	MaxCapacity int    `json:"max_capacity" validate:"required,gt=0"`
}

// UpdateSessionRequest changes schedule fields; omitted fields keep their value.
type UpdateSessionRequest struct {
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location    *string `json:"location"`
	MaxCapacity *int    `json:"max_capacity" validate:"omitempty,gt=0"`
}

// SessionQuery mirrors the admin listing filters.
type SessionQuery struct {
	ClassID   string `form:"class_id"`
	Status    string `form:"status" validate:"omitempty,oneof=scheduled full cancelled"`
	DateFrom  string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortOrder string `form:"sort_order"`
}

// CancelSessionResponse reports the cascade.
type CancelSessionResponse struct {
	SessionID            string `json:"session_id"`
	EnrollmentsCancelled int    `json:"enrollments_cancelled"`
}
