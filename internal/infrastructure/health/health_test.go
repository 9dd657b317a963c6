package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(c *Checker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c.Routes(r)
	return r
}

func TestLiveAlwaysOK(t *testing.T) {
	c := NewChecker("order-service", "1.0.0")
	c.Register("redis", true, func(context.Context) error {
		return errors.New("connection refused")
	})
	r := newRouter(c)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alive"`)
}

func TestReadyReflectsCriticalChecks(t *testing.T) {
	c := NewChecker("order-service", "1.0.0")
	c.Register("redis", true, func(context.Context) error { return nil })
	r := newRouter(c)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyFailsWhenCriticalDown(t *testing.T) {
	c := NewChecker("order-service", "1.0.0")
	c.Register("redis", true, func(context.Context) error {
		return errors.New("connection refused")
	})
	r := newRouter(c)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNonCriticalFailureKeepsReady(t *testing.T) {
	c := NewChecker("order-service", "1.0.0")
	c.Register("redis", true, func(context.Context) error { return nil })
	c.Register("broker", false, func(context.Context) error {
		return errors.New("connection refused")
	})

	report := c.Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Equal(t, StatusDown, report.Checks["broker"].Status)
	assert.Equal(t, StatusUp, report.Checks["redis"].Status)
}

func TestDetailReport(t *testing.T) {
	c := NewChecker("order-service", "1.0.0")
	c.Register("redis", true, func(context.Context) error { return nil })
	c.Register("product-service", false, func(context.Context) error {
		return errors.New("dial tcp: refused")
	})
	r := newRouter(c)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"service":"order-service"`)
	assert.Contains(t, body, `"redis"`)
	assert.Contains(t, body, `"dial tcp: refused"`)
}

func TestRunHonorsContext(t *testing.T) {
	c := NewChecker("order-service", "1.0.0")
	c.Register("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := c.Run(ctx)
	assert.Equal(t, StatusDown, report.Status)
}
