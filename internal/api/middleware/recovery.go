package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/apierror"
)

// Recovery converts panics into 500 envelopes instead of dropped
// connections, logging the stack server-side.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", RequestIDOf(c)),
					zap.Stack("stack"))
				Fail(c, apierror.Internal(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
