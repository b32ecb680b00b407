package dto

// OnlineCourseRequest toggles the online-course-completed flag.
type OnlineCourseRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// EnrollmentQuery mirrors the admin listing filters.
type EnrollmentQuery struct {
	SessionID string `form:"session_id"`
	Status    string `form:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	Email     string `form:"email"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}
