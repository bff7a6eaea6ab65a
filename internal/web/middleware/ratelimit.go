package middleware

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/strata-api/strata/internal/web/ratelimit"
	"github.com/strata-api/strata/internal/web/response"
)

// RateLimit creates a middleware that throttles requests per client.
// Authenticated requests are keyed by user id, anonymous ones by client IP.
// Throttled requests receive a 429 error document with X-RateLimit headers.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetUserID(r.Context())
			if key == "" {
				key = clientIP(r)
			}

			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// Fail open: a broken limiter must not take the API down
				logger.Warn("rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				response.RenderStatusError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
