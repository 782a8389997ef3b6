package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/pkg/ratelimiter"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

// RateLimit applies the per-tenant token bucket. It must run after Auth; a
// request without a tenant passes through.
func RateLimit(l *ratelimiter.MapLimiter, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := TenantFromContext(r.Context())
			if ok && !l.Allow(tenantkey.Namespace(id), time.Now()) {
				m.ObserveRateLimited()
				logger.Warn("rate limit exceeded", "tenant", id)
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBody caps request bodies at n bytes.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
