// Package dto contains request and response payloads for the payment API
package dto

// APIResponse is the envelope every endpoint returns
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail carries the machine-readable error code alongside the
// human message in the envelope
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PaginationInfo is the shared pagination block for list responses
type PaginationInfo struct {
	CurrentPage uint `json:"current_page"`
	PageSize    uint `json:"page_size"`
	TotalItems  uint `json:"total_items"`
	TotalPages  uint `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPaginationInfo derives the page metadata from a total count
func NewPaginationInfo(page, pageSize uint, totalItems uint) PaginationInfo {
	totalPages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		totalPages++
	}
	return PaginationInfo{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
