package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/services/ratelimit"
	"github.com/brightline-ai/enhance-gateway/utils"
)

// RateLimitMiddleware admits requests through the sliding-window limiter.
// Authenticated callers are limited by subject, anonymous callers by client
// IP. Bypass prefixes (health endpoints) are checked before any counting.
type RateLimitMiddleware struct {
	limiter        *ratelimit.Limiter
	bypassPrefixes []string
	logger         *zap.Logger
}

// NewRateLimitMiddleware creates a RateLimitMiddleware
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, bypassPrefixes []string, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:        limiter,
		bypassPrefixes: bypassPrefixes,
		logger:         logger,
	}
}

// Limit is the middleware handler
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range m.bypassPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		identity := identityFromRequest(r)
		decision := m.limiter.Admit(r.Context(), identity)
		if !decision.Allowed {
			m.logger.Info("request rate limited",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("identity", identity.Key),
				zap.String("window", decision.Window),
				zap.Duration("retry_after", decision.RetryAfter))
			_ = utils.WriteTooManyRequests(w, "", decision.RetryAfter, map[string]interface{}{
				"window": decision.Window,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// identityFromRequest resolves the limiting identity: the authenticated
// subject when present, otherwise the client IP.
func identityFromRequest(r *http.Request) ratelimit.Identity {
	if claims := GetClaimsFromContext(r.Context()); claims != nil && claims.Sub != "" {
		return ratelimit.Identity{Key: claims.Sub, Authenticated: true}
	}
	return ratelimit.Identity{Key: clientIP(r), Authenticated: false}
}

// clientIP trusts X-Forwarded-For / X-Real-IP from the fronting proxy before
// falling back to the connection address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
