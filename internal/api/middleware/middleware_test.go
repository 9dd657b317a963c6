package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/envelope"
	"github.com/vurksha/backend/internal/infrastructure/idempotency"
	"github.com/vurksha/backend/internal/infrastructure/ratelimit"
	"github.com/vurksha/backend/internal/infrastructure/resilience"
	"github.com/vurksha/backend/internal/infrastructure/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope.Response {
	t.Helper()
	var res envelope.Response
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { OK(c, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, w.Header().Get(HeaderCorrelationID))

	res := decode(t, w)
	assert.True(t, res.Success)
	assert.Equal(t, id, res.Meta.RequestID)
	assert.Equal(t, envelope.Version, res.Meta.Version)
}

func TestRequestIDHonorsCallerSupplied(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { OK(c, nil) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	req.Header.Set(HeaderCorrelationID, "corr-456")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "corr-456", w.Header().Get(HeaderCorrelationID))
}

func TestRequestIDVisibleToHandlers(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var got string
	r.GET("/", func(c *gin.Context) {
		got = RequestIDOf(c)
		OK(c, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-abc", got)
}

func TestFailRendersBreakerOpenAsUnavailable(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		Fail(c, fmt.Errorf("product-service: %w", resilience.ErrCircuitOpen))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	res := decode(t, w)
	require.NotNil(t, res.Error)
	assert.Equal(t, "SYS_006", res.Error.Code)
	assert.True(t, res.Error.Retryable)
	assert.NotContains(t, res.Error.Message, "unexpected")
}

func TestFailRendersTaxonomy(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		Fail(c, apierror.NotFound("product", "p-1"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	res := decode(t, w)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "RES_001", res.Error.Code)
	assert.False(t, res.Error.Retryable)
}

func TestPagePagination(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		Page(c, []string{"a", "b"}, 2, 10, 25)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	res := decode(t, w)
	require.NotNil(t, res.Pagination)
	assert.Equal(t, 3, res.Pagination.TotalPages)
	assert.True(t, res.Pagination.HasMore, "page 2 of 25 items at limit 10 has one more page")
}

func TestAuthRoundTrip(t *testing.T) {
	cfg := AuthConfig{Secret: []byte("test-secret"), Issuer: "vurksha", TokenTTL: time.Hour}
	token, err := IssueToken(cfg, "u-1", "+919876543210")
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID(), Auth(cfg))
	r.GET("/", func(c *gin.Context) { OK(c, gin.H{"user": UserID(c)}) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"u-1"`)
}

func TestAuthRejectsMissingAndExpired(t *testing.T) {
	cfg := AuthConfig{Secret: []byte("test-secret"), Issuer: "vurksha", TokenTTL: -time.Hour}
	expired, err := IssueToken(cfg, "u-1", "")
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID(), Auth(AuthConfig{Secret: cfg.Secret, Issuer: cfg.Issuer, TokenTTL: time.Hour}))
	r.GET("/", func(c *gin.Context) { OK(c, nil) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decode(t, w).Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_002", decode(t, w).Error.Code)
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	limiter := ratelimit.NewFixedWindow(store.NewMemory(), ratelimit.Config{Max: 2, Window: time.Minute}, zap.NewNop())
	r := gin.New()
	r.Use(RequestID(), RateLimit(limiter))
	r.GET("/", func(c *gin.Context) { OK(c, nil) })

	var w *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, "2", w.Header().Get(HeaderRateLimit))
	assert.Equal(t, "0", w.Header().Get(HeaderRateLimitRemaining))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	res := decode(t, w)
	assert.Equal(t, "RATE_001", res.Error.Code)
	assert.True(t, res.Error.Retryable)
}

func newIdempotentRouter(calls *int, status int) (*gin.Engine, *idempotency.Store) {
	s := idempotency.New(store.NewMemory(), zap.NewNop())
	r := gin.New()
	r.Use(RequestID(), Idempotent(s))
	r.POST("/orders", func(c *gin.Context) {
		*calls++
		if status >= 400 {
			Fail(c, apierror.New(apierror.CodePaymentFailed, "payment declined"))
			return
		}
		Created(c, gin.H{"orderId": "o-1"})
	})
	return r, s
}

func TestIdempotentReplay(t *testing.T) {
	calls := 0
	r, _ := newIdempotentRouter(&calls, 0)

	// The wire header name is part of the client contract.
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("X-Idempotency-Key", "key-1")
	first := httptest.NewRecorder()
	r.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req2.Header.Set(HeaderIdempotencyKey, "key-1")
	second := httptest.NewRecorder()
	r.ServeHTTP(second, req2)

	assert.Equal(t, 1, calls, "handler must run once")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes(), "replay must be byte identical")
}

func TestIdempotentFailureIsRetryable(t *testing.T) {
	calls := 0
	r, _ := newIdempotentRouter(&calls, http.StatusUnprocessableEntity)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(HeaderIdempotencyKey, "key-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	}
	assert.Equal(t, 2, calls, "failed attempts release the key for retry")
}

func TestIdempotentConcurrentDuplicates(t *testing.T) {
	s := idempotency.New(store.NewMemory(), zap.NewNop())
	release := make(chan struct{})
	r := gin.New()
	r.Use(RequestID(), Idempotent(s))
	r.POST("/orders", func(c *gin.Context) {
		<-release
		Created(c, gin.H{"orderId": "o-1"})
	})

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/orders", nil)
			req.Header.Set(HeaderIdempotencyKey, "key-1")
			w := httptest.NewRecorder()
			if i == 1 {
				// Let the first request take the lock.
				time.Sleep(50 * time.Millisecond)
				r.ServeHTTP(w, req)
			} else {
				go func() {
					time.Sleep(100 * time.Millisecond)
					close(release)
				}()
				r.ServeHTTP(w, req)
			}
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	assert.Equal(t, http.StatusCreated, codes[0])
	assert.Equal(t, http.StatusConflict, codes[1], "concurrent duplicate gets OPERATION_IN_PROGRESS")
}

func TestRecoveryRendersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_001", decode(t, w).Error.Code)
}

func TestThrottleSheds(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), GlobalThrottle(ThrottleConfig{RequestsPerSecond: 1, Burst: 1}))
	r.GET("/", func(c *gin.Context) { OK(c, nil) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
