package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/infrastructure/idempotency"
)

// Idempotency headers.
const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderReplayed       = "X-Idempotent-Replayed"
)

// bodyCapture tees the response body so a successful response can be
// recorded for replay.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotent deduplicates requests carrying an X-Idempotency-Key header.
// A completed response replays byte for byte with X-Idempotent-Replayed
// set; a concurrent duplicate gets a retryable 409. Requests without
// the header pass through untouched.
func Idempotent(store *idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		// Scope the key per user so two customers reusing a key never
		// see each other's responses.
		scoped := key
		if uid := UserID(c); uid != "" {
			scoped = uid + ":" + key
		}

		ctx := c.Request.Context()
		prior, err := store.Begin(ctx, scoped)
		if errors.Is(err, idempotency.ErrInProgress) {
			Fail(c, apierror.InProgress())
			return
		}
		if prior != nil {
			c.Header(HeaderReplayed, "true")
			c.Data(prior.StatusCode, "application/json", prior.Body)
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			_ = store.Complete(ctx, scoped, idempotency.Result{
				StatusCode: status,
				Body:       capture.buf.Bytes(),
				Timestamp:  time.Now().UTC(),
			})
			return
		}
		// Failures stay retryable with the same key.
		_ = store.Release(ctx, scoped)
	}
}
