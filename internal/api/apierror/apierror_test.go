package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vurksha/backend/internal/infrastructure/resilience"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeInsufficientStock, http.StatusUnprocessableEntity},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeOperationInProgress, http.StatusConflict},
		{CodeInternal, http.StatusInternalServerError},
		{CodeCircuitOpen, http.StatusServiceUnavailable},
		{CodeDependencyFailed, http.StatusBadGateway},
		{Code("BOGUS_999"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.code), string(tc.code))
	}
}

func TestEveryCodeHasAStatus(t *testing.T) {
	codes := []Code{
		CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid, CodeSessionExpired,
		CodeOTPInvalid, CodeOTPExpired, CodeForbidden,
		CodeValidation, CodeInvalidInput, CodeMissingRequiredField, CodeInvalidFormat,
		CodeNotFound, CodeAlreadyExists, CodeConflict,
		CodeInsufficientStock, CodeOrderCannotCancel, CodeCartEmpty,
		CodePaymentFailed, CodeMinimumOrderNotMet,
		CodeRateLimited, CodeOperationInProgress,
		CodeInternal, CodeServiceUnavailable, CodeTimeout,
		CodeDependencyFailed, CodeCircuitOpen,
	}
	for _, code := range codes {
		_, ok := httpStatus[code]
		assert.True(t, ok, "code %s has no status mapping", code)
	}
}

func TestRetryableByCodeOnly(t *testing.T) {
	assert.True(t, New(CodeRateLimited, "slow down").Retryable())
	assert.True(t, New(CodeDependencyFailed, "downstream").Retryable())
	assert.True(t, Internal(errors.New("boom")).Retryable())

	assert.False(t, New(CodeValidation, "bad input").Retryable())
	assert.False(t, New(CodeNotFound, "missing").Retryable())
	assert.False(t, New(CodeInsufficientStock, "out of stock").Retryable())
}

func TestFromPassesTypedErrorsThrough(t *testing.T) {
	orig := NotFound("Order", "ord-1")
	got := From(fmt.Errorf("handling request: %w", orig))
	assert.Same(t, orig, got)
	assert.Equal(t, "Order", got.Details["resource"])
}

func TestFromClassifiesBreakerOpen(t *testing.T) {
	got := From(fmt.Errorf("calling product-service: %w", resilience.ErrCircuitOpen))
	assert.Equal(t, CodeCircuitOpen, got.Code)
	assert.Equal(t, http.StatusServiceUnavailable, got.Status())
	assert.True(t, got.Retryable())
	assert.True(t, got.Operational)

	got = From(resilience.ErrTooManyRequests)
	assert.Equal(t, CodeCircuitOpen, got.Code)
}

func TestFromClassifiesDeadlineExpiry(t *testing.T) {
	got := From(fmt.Errorf("loading cart: %w", context.DeadlineExceeded))
	assert.Equal(t, CodeTimeout, got.Code)
	assert.Equal(t, http.StatusGatewayTimeout, got.Status())
	assert.True(t, got.Retryable())
	assert.True(t, got.Operational)
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	got := From(errors.New("disk on fire"))
	assert.Equal(t, CodeInternal, got.Code)
	assert.False(t, got.Operational)
	// The raw failure must stay out of the client-facing message.
	assert.NotContains(t, got.Message, "disk")
	assert.ErrorContains(t, got, "disk on fire")
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeDependencyFailed, "product service error", cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, err.Status())
}

func TestValidationCarriesFields(t *testing.T) {
	err := Validation("Invalid address",
		FieldError{Field: "pincode", Message: "must be 6 digits"},
		FieldError{Field: "city", Message: "required"})
	require.Len(t, err.Fields, 2)
	assert.Equal(t, "pincode", err.Fields[0].Field)
	assert.True(t, err.Operational)
}

func TestInternalIsNotOperational(t *testing.T) {
	err := Internal(errors.New("nil map write"))
	assert.False(t, err.Operational)
	assert.Equal(t, "An unexpected error occurred", err.Message)
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := RateLimited(42)
	assert.Equal(t, 42, err.RetryAfter)
	assert.Equal(t, http.StatusTooManyRequests, err.Status())
}
