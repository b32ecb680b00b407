package models

// MaxPageSize caps every paged listing. Larger requests are clamped, not reset.
const MaxPageSize = 200

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
