// Package postgres holds the shared-deployment stores: the global desk
// catalog and the API token directory.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const desksSchema = `
CREATE TABLE IF NOT EXISTS desks (
	desk_id         UUID PRIMARY KEY,
	owner_namespace TEXT NOT NULL,
	owner_account   TEXT NOT NULL DEFAULT '',
	storage_path    TEXT NOT NULL,
	network         TEXT NOT NULL,
	market          JSONB NOT NULL,
	market_url      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE desks ADD COLUMN IF NOT EXISTS active BOOLEAN NOT NULL DEFAULT true;
CREATE INDEX IF NOT EXISTS idx_desks_created_at ON desks (created_at);`

const deskColumns = `desk_id, owner_namespace, owner_account, storage_path, network, market, market_url, active, created_at`

// DeskRepository implements domain.DeskRepository on PostgreSQL so several
// server processes can share one desk catalog.
type DeskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDeskRepository creates the desk catalog repository.
func NewDeskRepository(db *sql.DB, logger *slog.Logger) *DeskRepository {
	return &DeskRepository{db: db, logger: logger.With("component", "pg_desk_repository")}
}

// Migrate creates the desks table and adds columns introduced after the
// first release. It is safe to run on every start.
func (r *DeskRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, desksSchema); err != nil {
		return storageErr("migrate desks", err)
	}
	return nil
}

func (r *DeskRepository) UpsertDesk(ctx context.Context, rec domain.DeskRecord) error {
	market, err := json.Marshal(rec.Market)
	if err != nil {
		return fmt.Errorf("failed to encode market: %w", err)
	}
	query := `
		INSERT INTO desks (` + deskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (desk_id) DO UPDATE SET
			owner_namespace = EXCLUDED.owner_namespace,
			owner_account = EXCLUDED.owner_account,
			storage_path = EXCLUDED.storage_path,
			network = EXCLUDED.network,
			market = EXCLUDED.market,
			market_url = EXCLUDED.market_url,
			active = EXCLUDED.active`
	_, err = r.db.ExecContext(ctx, query,
		rec.DeskID.String(), rec.OwnerNamespace, rec.OwnerAccount, rec.StoragePath,
		string(rec.Network), market, rec.MarketURL, rec.Active, rec.CreatedAt.UTC(),
	)
	return storageErr("upsert desk", err)
}

func (r *DeskRepository) GetDesk(ctx context.Context, deskID uuid.UUID) (*domain.DeskRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deskColumns+` FROM desks WHERE desk_id = $1`, deskID.String())
	rec, err := scanDesk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get desk", err)
	}
	return &rec, nil
}

func (r *DeskRepository) ListDesks(ctx context.Context) ([]domain.DeskRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deskColumns+` FROM desks ORDER BY created_at ASC, desk_id ASC`)
	if err != nil {
		return nil, storageErr("list desks", err)
	}
	defer rows.Close()

	out := []domain.DeskRecord{}
	for rows.Next() {
		rec, err := scanDesk(rows)
		if err != nil {
			return nil, storageErr("list desks", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list desks", err)
	}
	return out, nil
}

func (r *DeskRepository) DeleteDesk(ctx context.Context, deskID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM desks WHERE desk_id = $1`, deskID.String())
	return storageErr("delete desk", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDesk(s scanner) (domain.DeskRecord, error) {
	var (
		rec       domain.DeskRecord
		id        string
		network   string
		market    []byte
		createdAt time.Time
	)
	err := s.Scan(&id, &rec.OwnerNamespace, &rec.OwnerAccount, &rec.StoragePath, &network, &market, &rec.MarketURL, &rec.Active, &createdAt)
	if err != nil {
		return rec, err
	}
	if rec.DeskID, err = uuid.Parse(id); err != nil {
		return rec, fmt.Errorf("malformed desk_id %q: %w", id, err)
	}
	if err := json.Unmarshal(market, &rec.Market); err != nil {
		return rec, fmt.Errorf("malformed market for desk %s: %w", id, err)
	}
	rec.Network = domain.Network(network)
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}

// storageErr wraps driver errors, naming the constraint or column when the
// server reports one.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint != "" {
		op = op + " (" + pqErr.Constraint + ")"
	}
	return &domain.StorageError{Op: op, Err: err}
}
