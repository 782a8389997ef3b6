package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/domain"
)

func setupDeskRepository(t *testing.T) *DeskRepository {
	t.Helper()
	repo, err := OpenDeskRepository(filepath.Join(t.TempDir(), "desks.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestDeskRepository_CRUD(t *testing.T) {
	repo := setupDeskRepository(t)
	ctx := context.Background()
	market := domain.Market{Base: domain.Currency{Code: "BTC", Issuer: "mlcl1btc"}, Quote: domain.Currency{Code: "USD", Issuer: "mlcl1usd"}}

	list, err := repo.ListDesks(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	first := domain.DeskRecord{
		DeskID: uuid.New(), OwnerNamespace: "ns1", OwnerAccount: "mlcl1owner", StoragePath: "/data/desks/1",
		Network: domain.NetworkLocalnet, Market: market, MarketURL: "http://x/market/1", Active: true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	second := first
	second.DeskID = uuid.New()
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	require.NoError(t, repo.UpsertDesk(ctx, first))
	require.NoError(t, repo.UpsertDesk(ctx, second))

	got, err := repo.GetDesk(ctx, first.DeskID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, market, got.Market)
	assert.True(t, got.Active)

	t.Run("deactivate persists false", func(t *testing.T) {
		first.Active = false
		require.NoError(t, repo.UpsertDesk(ctx, first))
		got, err := repo.GetDesk(ctx, first.DeskID)
		require.NoError(t, err)
		assert.False(t, got.Active)
	})

	t.Run("list in creation order", func(t *testing.T) {
		list, err := repo.ListDesks(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.DeskID, list[0].DeskID)
		assert.Equal(t, second.DeskID, list[1].DeskID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteDesk(ctx, second.DeskID))
		require.NoError(t, repo.DeleteDesk(ctx, second.DeskID))
		missing, err := repo.GetDesk(ctx, second.DeskID)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestMigrateDesks_LegacyRowsDefaultActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desks.sqlite3")
	db, err := openDB(path)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, execAll(db,
		`CREATE TABLE desks (desk_id TEXT PRIMARY KEY, owner_namespace TEXT NOT NULL, owner_account TEXT NOT NULL DEFAULT '', storage_path TEXT NOT NULL, network TEXT NOT NULL, market TEXT NOT NULL, market_url TEXT NOT NULL DEFAULT '', created_at DATETIME NOT NULL)`,
	))
	require.NoError(t, db.Exec(`INSERT INTO desks (desk_id, owner_namespace, storage_path, network, market, created_at) VALUES (?, 'ns', '/p', 'Localnet', '{"base":{"code":"A","issuer":""},"quote":{"code":"B","issuer":""}}', '2025-01-01 00:00:00+00:00')`, id.String()).Error)

	repo, err := NewDeskRepository(db)
	require.NoError(t, err)
	got, err := repo.GetDesk(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Active)
	assert.Equal(t, "A", got.Market.Base.Code)
	require.NoError(t, repo.Close())
}
