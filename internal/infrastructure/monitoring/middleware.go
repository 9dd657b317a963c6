package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// headerReplayed mirrors the marker the idempotency middleware puts on
// replayed responses.
const headerReplayed = "X-Idempotent-Replayed"

// Middleware creates a Gin middleware recording request counts and
// latencies. The route template (not the raw URL) labels the path so
// parameterized routes share a series. Rate limit rejections and
// idempotent replays are observed from the response, so every limiter
// and the idempotency layer report here without their own wiring.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordHTTPRequest(method, path, strconv.Itoa(status), time.Since(start))

		if status == http.StatusTooManyRequests {
			metrics.RateLimitRejections.WithLabelValues(path).Inc()
		}
		if c.Writer.Header().Get(headerReplayed) == "true" {
			metrics.IdempotencyReplays.Inc()
		}
	}
}
