package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

var btcUSD = domain.Market{Base: domain.Currency{Code: "BTC"}, Quote: domain.Currency{Code: "USD"}}

func newDesk(t *testing.T, h *harness, owner domain.TenantIdentity, ownerAccount string) domain.DeskInfo {
	t.Helper()
	info, err := h.orch.NewDesk(context.Background(), owner, domain.NetworkLocalnet, btcUSD, ownerAccount)
	require.NoError(t, err)
	return info
}

func TestOrchestrator_NewDesk(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	owner := createClient(t, h, t1, "owner")

	info := newDesk(t, h, t1, owner.AccountID)
	assert.NotEqual(t, uuid.Nil, info.DeskID)
	assert.True(t, info.Active)
	assert.Equal(t, owner.AccountID, info.OwnerAccount)
	assert.Equal(t, "http://desk.test/market/"+info.DeskID.String(), info.MarketURL)

	rec := h.desks.Desks[info.DeskID]
	assert.Equal(t, tenantkey.Namespace(t1), rec.OwnerNamespace)
	assert.Equal(t, h.layout.DeskDir(info.DeskID), rec.StoragePath)

	// The desk account lives in the desk's namespace, not the owner's.
	deskAccounts, err := h.catalogs.Tenants[rec.StoragePath].ListAccountsByKind(ctx, domain.AccountDesk)
	require.NoError(t, err)
	require.Len(t, deskAccounts, 1)
	assert.Equal(t, info.AccountID, deskAccounts[0].AccountID)
	ownerAccounts, err := h.orch.ListAccounts(ctx, t1)
	require.NoError(t, err)
	assert.Len(t, ownerAccounts, 1)

	got, err := h.orch.GetDeskInfo(ctx, info.DeskID)
	require.NoError(t, err)
	assert.Equal(t, info, got)
	assert.Equal(t, []domain.DeskInfo{info}, h.orch.ListDesks(ctx))
}

func TestOrchestrator_NewDeskValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.NewDesk(ctx, tenant(1), domain.NetworkLocalnet, domain.Market{Base: domain.Currency{Code: "BTC"}}, "")
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = h.orch.NewDesk(ctx, tenant(1), domain.NetworkLocalnet, btcUSD, "mlcl1nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	h.desks.UpsertErr = errors.New("disk full")
	_, err = h.orch.NewDesk(ctx, tenant(1), domain.NetworkLocalnet, btcUSD, "")
	require.Error(t, err)
	assert.Empty(t, h.orch.ListDesks(ctx))
}

func TestOrchestrator_RestoreDesks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)

	kept1 := newDesk(t, h, t1, "")
	kept2 := newDesk(t, h, t1, "")
	deleted := newDesk(t, h, t1, "")
	broken := newDesk(t, h, t1, "")

	h.catalogs.Missing[h.layout.DeskDir(deleted.DeskID)] = true
	h.connector.FailDirs = map[string]error{
		tenantkey.LedgerDir(h.layout.DeskDir(broken.DeskID), domain.NetworkLocalnet): errors.New("corrupt store"),
	}

	h.restart(t)
	assert.Empty(t, h.orch.ListDesks(ctx))

	n, err := h.orch.RestoreDesks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	restored := h.orch.ListDesks(ctx)
	require.Len(t, restored, 2)
	ids := []uuid.UUID{restored[0].DeskID, restored[1].DeskID}
	assert.ElementsMatch(t, []uuid.UUID{kept1.DeskID, kept2.DeskID}, ids)
	for _, d := range restored {
		if d.DeskID == kept1.DeskID {
			assert.Equal(t, kept1.AccountID, d.AccountID)
		}
	}

	_, err = h.orch.GetDeskInfo(ctx, deleted.DeskID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrchestrator_RestoreDesksListFailure(t *testing.T) {
	h := newHarness(t)
	h.desks.ListErr = errors.New("connection refused")
	_, err := h.orch.RestoreDesks(context.Background())
	require.Error(t, err)
}

func TestOrchestrator_SetDeskActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	owner := createClient(t, h, t1, "owner")
	info := newDesk(t, h, t1, owner.AccountID)

	t.Run("wrong owner account", func(t *testing.T) {
		_, err := h.orch.SetDeskActive(ctx, t1, info.AccountID, "mlcl1other", false)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("other tenant", func(t *testing.T) {
		_, err := h.orch.SetDeskActive(ctx, tenant(2), info.AccountID, owner.AccountID, false)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown desk account", func(t *testing.T) {
		_, err := h.orch.SetDeskActive(ctx, t1, "mlcl1nodesk", owner.AccountID, false)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("deactivate then activate", func(t *testing.T) {
		res, err := h.orch.CreateAccountOrder(ctx, t1, domain.NetworkLocalnet, domain.AccountOrder{
			Type: domain.DeactivateDesk, DeskAccount: info.AccountID, OwnerAccount: owner.AccountID,
		})
		require.NoError(t, err)
		require.NotNil(t, res.Desk)
		assert.False(t, res.Desk.Active)
		assert.False(t, h.desks.Desks[info.DeskID].Active)

		_, err = h.orch.PushNote(ctx, info.DeskID, marketNote("aa"))
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := h.orch.SetDeskActive(ctx, t1, info.AccountID, owner.AccountID, true)
		require.NoError(t, err)
		assert.True(t, got.Active)
		_, err = h.orch.PushNote(ctx, info.DeskID, marketNote("aa"))
		assert.NoError(t, err)
	})
}
