package http

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"qpesapay/internal/core/ports"
)

// RateLimiterMiddleware limits requests per client IP through the rate
// limiter port. On limiter errors it fails open: a degraded Redis must not
// take payments down with it.
func RateLimiterMiddleware(limiter ports.RateLimiterRepository, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			allowed, err := limiter.IsAllowed(r.Context(), ip, limit, window)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeJSONError(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
