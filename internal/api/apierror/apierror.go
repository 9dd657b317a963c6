// Package apierror defines the error taxonomy shared by all services. Every
// error that crosses the HTTP boundary carries a stable machine-readable code;
// clients branch on the code, never on the message text.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vurksha/backend/internal/infrastructure/resilience"
)

// Code is a stable wire-level error classification.
type Code string

// Error codes form a public API contract. Do not rename or remove
// existing codes.
const (
	// Authentication
	CodeUnauthorized   Code = "AUTH_001"
	CodeTokenExpired   Code = "AUTH_002"
	CodeTokenInvalid   Code = "AUTH_003"
	CodeSessionExpired Code = "AUTH_004"
	CodeOTPInvalid     Code = "AUTH_005"
	CodeOTPExpired     Code = "AUTH_006"
	CodeForbidden      Code = "AUTH_008"

	// Validation
	CodeValidation           Code = "VAL_001"
	CodeInvalidInput         Code = "VAL_002"
	CodeMissingRequiredField Code = "VAL_003"
	CodeInvalidFormat        Code = "VAL_004"

	// Resources
	CodeNotFound      Code = "RES_001"
	CodeAlreadyExists Code = "RES_002"
	CodeConflict      Code = "RES_003"

	// Business rules
	CodeInsufficientStock  Code = "BIZ_001"
	CodeOrderCannotCancel  Code = "BIZ_002"
	CodeCartEmpty          Code = "BIZ_003"
	CodePaymentFailed      Code = "BIZ_004"
	CodeMinimumOrderNotMet Code = "BIZ_006"

	// Rate limiting and idempotency
	CodeRateLimited         Code = "RATE_001"
	CodeOperationInProgress Code = "RATE_003"

	// System
	CodeInternal           Code = "SYS_001"
	CodeServiceUnavailable Code = "SYS_002"
	CodeTimeout            Code = "SYS_003"
	CodeDependencyFailed   Code = "SYS_004"
	CodeCircuitOpen        Code = "SYS_006"
)

// httpStatus maps each code to exactly one HTTP status.
var httpStatus = map[Code]int{
	CodeUnauthorized:   http.StatusUnauthorized,
	CodeTokenExpired:   http.StatusUnauthorized,
	CodeTokenInvalid:   http.StatusUnauthorized,
	CodeSessionExpired: http.StatusUnauthorized,
	CodeOTPInvalid:     http.StatusBadRequest,
	CodeOTPExpired:     http.StatusBadRequest,
	CodeForbidden:      http.StatusForbidden,

	CodeValidation:           http.StatusBadRequest,
	CodeInvalidInput:         http.StatusBadRequest,
	CodeMissingRequiredField: http.StatusBadRequest,
	CodeInvalidFormat:        http.StatusBadRequest,

	CodeNotFound:      http.StatusNotFound,
	CodeAlreadyExists: http.StatusConflict,
	CodeConflict:      http.StatusConflict,

	CodeInsufficientStock:  http.StatusUnprocessableEntity,
	CodeOrderCannotCancel:  http.StatusUnprocessableEntity,
	CodeCartEmpty:          http.StatusUnprocessableEntity,
	CodePaymentFailed:      http.StatusUnprocessableEntity,
	CodeMinimumOrderNotMet: http.StatusUnprocessableEntity,

	CodeRateLimited:         http.StatusTooManyRequests,
	CodeOperationInProgress: http.StatusConflict,

	CodeInternal:           http.StatusInternalServerError,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeDependencyFailed:   http.StatusBadGateway,
	CodeCircuitOpen:        http.StatusServiceUnavailable,
}

// retryable is the fixed set of codes a client may automatically retry.
// Derived per-code, never per-instance.
var retryable = map[Code]bool{
	CodeRateLimited:         true,
	CodeOperationInProgress: true,
	CodeServiceUnavailable:  true,
	CodeTimeout:             true,
	CodeDependencyFailed:    true,
	CodeCircuitOpen:         true,
	CodeInternal:            true,
}

// HTTPStatus returns the HTTP status for a code, 500 for unknown codes.
func HTTPStatus(code Code) int {
	if s, ok := httpStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Retryable reports whether a client should consider retrying the code.
func Retryable(code Code) bool {
	return retryable[code]
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error is the application error type. Operational errors (expected failure
// modes) carry Operational=true; anything else is treated as a bug and its
// message is hidden from clients in production.
type Error struct {
	Code        Code
	Message     string
	Details     map[string]any
	Fields      []FieldError
	RetryAfter  int // seconds, for rate-limited and in-progress responses
	Operational bool
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status for this error.
func (e *Error) Status() int { return HTTPStatus(e.Code) }

// Retryable reports whether the error's code is in the retryable set.
func (e *Error) Retryable() bool { return Retryable(e.Code) }

// New creates an operational error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Operational: true}
}

// Wrap creates an operational error that preserves its cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Operational: true, cause: cause}
}

// WithDetails attaches structured detail to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Validation creates a 400 error carrying per-field entries so a UI can
// highlight exact fields.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields, Operational: true}
}

// NotFound creates a standard resource-not-found error.
func NotFound(resource, id string) *Error {
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s with ID '%s' not found", resource, id)
	}
	return &Error{
		Code:        CodeNotFound,
		Message:     msg,
		Details:     map[string]any{"resource": resource, "id": id},
		Operational: true,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(CodeUnauthorized, message)
}

// RateLimited creates a 429 error carrying the seconds until the window
// resets.
func RateLimited(retryAfter int) *Error {
	return &Error{
		Code:        CodeRateLimited,
		Message:     "Too many requests, please try again later",
		RetryAfter:  retryAfter,
		Operational: true,
	}
}

// InProgress is returned when another request holds the idempotency lock for
// the same key.
func InProgress() *Error {
	return &Error{
		Code:        CodeOperationInProgress,
		Message:     "A request with this idempotency key is already being processed",
		RetryAfter:  5,
		Operational: true,
	}
}

// Dependency creates a 502 error for a failing downstream service.
func Dependency(service string, cause error) *Error {
	return &Error{
		Code:        CodeDependencyFailed,
		Message:     service + " is currently unavailable",
		Details:     map[string]any{"service": service},
		Operational: true,
		cause:       cause,
	}
}

// Timeout creates a 504 error for an operation that exceeded its deadline.
func Timeout(operation string, millis int64) *Error {
	return &Error{
		Code:        CodeTimeout,
		Message:     fmt.Sprintf("%s timed out after %dms", operation, millis),
		Details:     map[string]any{"operation": operation, "timeoutMs": millis},
		Operational: true,
	}
}

// CircuitOpen creates a 503 error for a call short-circuited by an open
// breaker.
func CircuitOpen(cause error) *Error {
	return &Error{
		Code:        CodeCircuitOpen,
		Message:     "A dependency is temporarily unavailable, please try again shortly",
		Operational: true,
		cause:       cause,
	}
}

// Internal creates a non-operational 500 error. The cause is logged
// server-side; the message shown to clients is generic in production.
func Internal(cause error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: "An unexpected error occurred",
		cause:   cause,
	}
}

// From classifies an arbitrary error. Typed *Error values pass through;
// breaker-open and deadline errors map to their retryable codes; anything
// else becomes a non-operational internal error.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case resilience.IsCircuitOpen(err):
		return CircuitOpen(err)
	case resilience.IsTimeout(err):
		return Wrap(CodeTimeout, "The operation timed out, please try again", err)
	}
	return Internal(err)
}
