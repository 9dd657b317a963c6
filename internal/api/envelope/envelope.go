// Package envelope provides the uniform response shape every service returns.
// Exactly one of Data/Error is populated on any response.
package envelope

import (
	"time"

	"github.com/vurksha/backend/internal/api/apierror"
)

// Version is the wire version stamped into every response meta block.
const Version = "1.0.0"

// Response is the versioned API envelope.
type Response struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      *Error      `json:"error,omitempty"`
	Meta       Meta        `json:"meta"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Error is the wire form of an API error.
type Error struct {
	Code       string                `json:"code"`
	Message    string                `json:"message"`
	Details    map[string]any        `json:"details,omitempty"`
	Fields     []apierror.FieldError `json:"validationErrors,omitempty"`
	Retryable  bool                  `json:"retryable"`
	RetryAfter int                   `json:"retryAfter,omitempty"`
}

// Meta carries per-request bookkeeping.
type Meta struct {
	RequestID        string `json:"requestId"`
	Timestamp        string `json:"timestamp"`
	Version          string `json:"version"`
	ProcessingTimeMs int64  `json:"processingTimeMs,omitempty"`
}

// Pagination describes a page of a larger result set.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// NewPagination derives totalPages and hasMore from the raw page facts.
func NewPagination(page, limit int, total int64) *Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    int64(page)*int64(limit) < total,
	}
}

// Success builds a success envelope.
func Success(data any, requestID string) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    newMeta(requestID),
	}
}

// Paginated builds a success envelope with pagination meta.
func Paginated(data any, requestID string, page, limit int, total int64) Response {
	r := Success(data, requestID)
	r.Pagination = NewPagination(page, limit, total)
	return r
}

// Failure builds an error envelope from a classified error. Non-operational
// errors hide their internal message when hideInternal is set.
func Failure(err *apierror.Error, requestID string, hideInternal bool) Response {
	msg := err.Message
	if hideInternal && !err.Operational {
		msg = "An unexpected error occurred"
	}
	return Response{
		Success: false,
		Error: &Error{
			Code:       string(err.Code),
			Message:    msg,
			Details:    err.Details,
			Fields:     err.Fields,
			Retryable:  err.Retryable(),
			RetryAfter: err.RetryAfter,
		},
		Meta: newMeta(requestID),
	}
}

func newMeta(requestID string) Meta {
	return Meta{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Version:   Version,
	}
}
