package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/envelope"
)

// Gin context keys set by the middleware in this package.
const (
	ContextRequestID     = "request_id"
	ContextCorrelationID = "correlation_id"
	ContextUserID        = "user_id"
)

// RequestIDOf returns the request ID assigned by the RequestID
// middleware.
func RequestIDOf(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}

// CorrelationID returns the correlation ID flowing through this request.
func CorrelationID(c *gin.Context) string {
	return c.GetString(ContextCorrelationID)
}

// UserID returns the authenticated user's ID, empty when anonymous.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// OK renders a 200 success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope.Success(data, RequestIDOf(c)))
}

// Created renders a 201 success envelope.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, envelope.Success(data, RequestIDOf(c)))
}

// Page renders a 200 success envelope with pagination meta.
func Page(c *gin.Context, data any, page, limit int, total int64) {
	c.JSON(http.StatusOK, envelope.Paginated(data, RequestIDOf(c), page, limit, total))
}

// Fail classifies err, renders the error envelope at its mapped status,
// and aborts the handler chain. Retryable errors with a delay also get
// a Retry-After header.
func Fail(c *gin.Context, err error) {
	apiErr := apierror.From(err)
	if apiErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	hideInternal := gin.Mode() == gin.ReleaseMode
	c.AbortWithStatusJSON(apiErr.Status(), envelope.Failure(apiErr, RequestIDOf(c), hideInternal))
}
