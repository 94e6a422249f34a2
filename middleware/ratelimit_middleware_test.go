package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
	"github.com/brightline-ai/enhance-gateway/services/ratelimit"
)

func newLimiter(limit int64) *ratelimit.Limiter {
	cfg := ratelimit.Config{
		Authenticated:  []ratelimit.Window{{Name: "minute", Span: time.Minute, Limit: limit}},
		Anonymous:      []ratelimit.Window{{Name: "minute", Span: time.Minute, Limit: limit}},
		Cooldowns:      []time.Duration{60 * time.Second},
		ViolationReset: time.Hour,
	}
	return ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg, clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)), zap.NewNop())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLimit_AdmitsWithinLimit(t *testing.T) {
	m := NewRateLimitMiddleware(newLimiter(2), nil, zap.NewNop())
	handler := m.Limit(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/enhance", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLimit_RejectsWithRetryAfter(t *testing.T) {
	m := NewRateLimitMiddleware(newLimiter(1), nil, zap.NewNop())
	handler := m.Limit(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/api/v1/enhance", nil)
	first.RemoteAddr = "203.0.113.9:1234"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enhance", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLimit_BypassPrefixSkipsCounting(t *testing.T) {
	m := NewRateLimitMiddleware(newLimiter(1), []string{"/healthz"}, zap.NewNop())
	handler := m.Limit(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLimit_AuthenticatedIdentityIsSubject(t *testing.T) {
	m := NewRateLimitMiddleware(newLimiter(1), nil, zap.NewNop())
	handler := m.Limit(okHandler())

	// Same IP, different subjects: each gets their own allowance.
	for _, sub := range []string{"user-a", "user-b"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/enhance", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		req = req.WithContext(WithClaims(req.Context(), &Claims{Sub: sub}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "192.0.2.1, 198.51.100.7")
	assert.Equal(t, "192.0.2.1", clientIP(req))
}
