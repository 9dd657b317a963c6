package user

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/envelope"
	"github.com/vurksha/backend/internal/api/middleware"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/ratelimit"
	"github.com/vurksha/backend/internal/infrastructure/store"
)

const testPhone = "+919876543210"

type fixture struct {
	router *gin.Engine
	svc    *Service
	bus    *events.MemoryBus
	lastOTP string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{bus: events.NewMemoryBus(5)}
	auth := middleware.AuthConfig{Secret: []byte("test-secret"), Issuer: "vurksha", TokenTTL: time.Hour}
	f.svc = NewService(NewMemoryRepository(), store.NewMemory(), f.bus, auth, logging.NewNop())
	f.svc.sendOTP = func(_, code string) { f.lastOTP = code }

	limiter := ratelimit.NewFixedWindow(store.NewMemory(), ratelimit.Config{Max: 100, Window: time.Minute}, zap.NewNop())
	f.router = gin.New()
	f.router.Use(middleware.RequestID())
	NewHandlers(f.svc).Routes(f.router, auth, limiter)
	return f
}

func (f *fixture) post(t *testing.T, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := sonic.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	w := f.post(t, "/api/auth/request-otp", gin.H{"phone": testPhone}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, f.lastOTP)

	w = f.post(t, "/api/auth/verify-otp", gin.H{"phone": testPhone, "otp": f.lastOTP}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Data struct {
			Token string `json:"token"`
			User  User   `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.Data.Token)
	return res.Data.Token
}

func TestOTPLoginFlow(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testPhone)
}

func TestFirstLoginPublishesRegistration(t *testing.T) {
	f := newFixture(t)
	var types []string
	require.NoError(t, f.bus.Subscribe(context.Background(), "audit", "user.*", func(_ context.Context, e events.DomainEvent) events.Outcome {
		types = append(types, e.EventType)
		return events.Ack
	}))

	f.login(t)
	assert.Equal(t, []string{events.UserRegistered}, types)

	// A second login for the same phone is not a registration.
	f.login(t)
	assert.Len(t, types, 1)
}

func TestOTPIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	code := f.lastOTP

	w := f.post(t, "/api/auth/verify-otp", gin.H{"phone": testPhone, "otp": code}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res envelope.Response
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "AUTH_006", res.Error.Code)
}

func TestWrongOTPRejected(t *testing.T) {
	f := newFixture(t)
	w := f.post(t, "/api/auth/request-otp", gin.H{"phone": testPhone}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.post(t, "/api/auth/verify-otp", gin.H{"phone": testPhone, "otp": "000000"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res envelope.Response
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "AUTH_005", res.Error.Code)
}

func TestRequestOTPValidatesPhone(t *testing.T) {
	f := newFixture(t)
	w := f.post(t, "/api/auth/request-otp", gin.H{"phone": "abc"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res envelope.Response
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "VAL_001", res.Error.Code)
	require.Len(t, res.Error.Fields, 1)
	assert.Equal(t, "phone", res.Error.Fields[0].Field)
}

func TestProfileUpdateAndAddresses(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	req := httptest.NewRequest(http.MethodPut, "/api/users/me", bytes.NewReader([]byte(`{"name":"Asha","email":"asha@example.com"}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Asha"`)

	w = f.post(t, "/api/users/me/addresses", gin.H{
		"label": "home", "line1": "12 MG Road", "city": "Bengaluru", "pincode": "560001",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users/me/addresses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "560001")
}

func TestAddressValidation(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := f.post(t, "/api/users/me/addresses", gin.H{"label": "home", "pincode": "1"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res envelope.Response
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Error.Fields, 3)
}
