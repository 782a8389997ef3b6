package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const (
	APIKeyHeader   = "X-API-Key"
	AdminKeyHeader = "X-Admin-Key"
)

type ctxKey int

const tenantKey ctxKey = iota

// WithTenant returns a copy of ctx carrying id.
func WithTenant(ctx context.Context, id domain.TenantIdentity) context.Context {
	return context.WithValue(ctx, tenantKey, id)
}

// TenantFromContext returns the identity set by Auth.
func TenantFromContext(ctx context.Context) (domain.TenantIdentity, bool) {
	id, ok := ctx.Value(tenantKey).(domain.TenantIdentity)
	return id, ok
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// X-API-Key header.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

// Auth resolves the request's token to a tenant identity and stores it in the
// request context.
func Auth(resolver domain.IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				logger.Warn("API token missing from request", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: API token required", http.StatusUnauthorized)
				return
			}

			id, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrStorage) {
					logger.Error("failed to resolve API token", "error", err)
					http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
					return
				}
				logger.Warn("invalid API token provided", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: Invalid API token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), id)))
		})
	}
}

// AdminAuth checks the X-Admin-Key header. With an empty key every admin
// request is refused.
func AdminAuth(key string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, "Forbidden: admin API disabled", http.StatusForbidden)
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				logger.Warn("invalid admin key provided", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: Invalid admin key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
