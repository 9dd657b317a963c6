package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/infrastructure/ratelimit"
)

// Rate limit response headers.
const (
	HeaderRateLimit          = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimit enforces the store-backed limiter per caller. Authenticated
// requests are scoped by user, anonymous ones by client IP. Every
// response carries the limit headers; rejected requests get a 429 with
// Retry-After.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "user:" + UserID(c)
		if UserID(c) == "" {
			key = "ip:" + c.ClientIP()
		}

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// The limiter itself fails open; an error here is a bug, not
			// a reason to reject traffic.
			c.Next()
			return
		}

		c.Header(HeaderRateLimit, strconv.FormatInt(res.Limit, 10))
		c.Header(HeaderRateLimitRemaining, strconv.FormatInt(res.Remaining, 10))
		c.Header(HeaderRateLimitReset, strconv.FormatInt(res.Reset.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(res.RetryAfter(time.Now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			Fail(c, apierror.RateLimited(retryAfter))
			return
		}
		c.Next()
	}
}
