package postgres

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const tokensSchema = `
CREATE TABLE IF NOT EXISTS api_tokens (
	token      TEXT PRIMARY KEY,
	identity   BYTEA NOT NULL CHECK (octet_length(identity) = 32),
	is_active  BOOLEAN NOT NULL DEFAULT true,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// TokenRepository resolves bearer tokens against the api_tokens table. A
// token resolves when it exists, is active and has not expired. It does no
// caching of its own; wrap it in auth.CachedResolver.
type TokenRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTokenRepository(db *sql.DB, logger *slog.Logger) *TokenRepository {
	return &TokenRepository{db: db, logger: logger.With("component", "pg_token_repository")}
}

func (r *TokenRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, tokensSchema); err != nil {
		return storageErr("migrate api_tokens", err)
	}
	return nil
}

// Resolve implements domain.IdentityResolver.
func (r *TokenRepository) Resolve(ctx context.Context, token string) (domain.TenantIdentity, error) {
	var raw []byte
	query := `SELECT identity FROM api_tokens WHERE token = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW())`
	err := r.db.QueryRowContext(ctx, query, token).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TenantIdentity{}, domain.NotFoundf("unknown or inactive token")
	}
	if err != nil {
		r.logger.Error("failed to resolve token in database", "error", err)
		return domain.TenantIdentity{}, storageErr("resolve token", err)
	}
	return domain.ParseTenantIdentity(hex.EncodeToString(raw))
}

// Issue stores token as a credential for id.
func (r *TokenRepository) Issue(ctx context.Context, token string, id domain.TenantIdentity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token, identity) VALUES ($1, $2) ON CONFLICT (token) DO UPDATE SET identity = EXCLUDED.identity, is_active = true`,
		token, id[:],
	)
	return storageErr("issue token", err)
}

// Revoke deactivates token. Revoking an unknown token is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_tokens SET is_active = false WHERE token = $1`, token)
	return storageErr("revoke token", err)
}
