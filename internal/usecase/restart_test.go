package usecase

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/adapter/ledger"
	"github.com/V4T54L/tradedesk/internal/adapter/ledger/local"
	"github.com/V4T54L/tradedesk/internal/adapter/repository/sqlite"
	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

// stack is a full local deployment over a data directory.
type stack struct {
	layout   tenantkey.Layout
	registry *sqlite.Registry
	desks    *sqlite.DeskRepository
}

func newStack(t *testing.T) *stack {
	t.Helper()
	layout := tenantkey.Layout{Root: t.TempDir()}
	desks, err := sqlite.OpenDeskRepository(layout.DesksCatalog())
	require.NoError(t, err)
	registry := sqlite.NewRegistry(discardLogger())
	t.Cleanup(func() {
		registry.Close()
		desks.Close()
	})
	return &stack{layout: layout, registry: registry, desks: desks}
}

// boot starts a fresh pool and orchestrator, as the server does at startup.
func (s *stack) boot(t *testing.T) (*Orchestrator, func()) {
	t.Helper()
	pool := ledger.NewPool(ledger.PoolConfig{
		Connector: local.Connector{SegmentSize: 1 << 20, MaxDiskSize: 1 << 26, Logger: discardLogger()},
		QueueSize: 16,
		Logger:    discardLogger(),
	})
	orch := NewOrchestrator(Config{
		Layout:   s.layout,
		Pool:     pool,
		Catalogs: s.registry,
		Desks:    s.desks,
		Compiler: local.Compiler{},
		Logger:   discardLogger(),
	})
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, pool.Close(ctx))
	}
	return orch, shutdown
}

func TestOrchestrator_StateSurvivesRestart(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	alice := tenant(0xA1)

	orch, shutdown := s.boot(t)
	owner, err := orch.CreateAccount(ctx, alice, domain.NetworkLocalnet, domain.AccountClient, "Alice")
	require.NoError(t, err)
	faucet, err := orch.CreateAccountOrder(ctx, alice, domain.NetworkLocalnet, domain.AccountOrder{
		Type: domain.CreateFaucet, Faucet: &domain.FaucetSpec{Symbol: "USDX", Decimals: 6, MaxSupply: 1_000_000},
	})
	require.NoError(t, err)

	desk, err := orch.NewDesk(ctx, alice, domain.NetworkLocalnet, btcUSD, owner.AccountID)
	require.NoError(t, err)

	order := domain.Order{Type: domain.OrderFundAccount, TargetAccountID: desk.AccountID, Amount: 250, Faucet: faucet.AccountID}
	res, err := orch.CreateOrder(ctx, alice, domain.NetworkLocalnet, owner.AccountID, order, true)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCommitted, res.Order.Status)
	require.NotNil(t, res.Note)

	noteID, err := orch.PushNote(ctx, desk.DeskID, domain.MarketNote{Market: "BTC/USD", Order: order, Note: *res.Note})
	require.NoError(t, err)
	_, err = orch.ConsumeDeskNote(ctx, desk.DeskID, noteID)
	require.NoError(t, err)
	shutdown()

	orch, shutdown = s.boot(t)
	defer shutdown()
	n, err := orch.RestoreDesks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restored, err := orch.GetDeskInfo(ctx, desk.DeskID)
	require.NoError(t, err)
	assert.Equal(t, desk, restored)

	accounts, err := orch.ListAccounts(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	got, err := orch.GetOrder(ctx, alice, res.Order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, got.Status)
	assert.Equal(t, res.Order.TxID, got.TxID)

	note, err := orch.GetDeskNote(ctx, desk.DeskID, noteID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeskNoteConsumed, note.Status)

	status, err := orch.GetStatus(ctx, alice, domain.NetworkLocalnet, owner.AccountID)
	require.NoError(t, err)
	assert.Equal(t, owner.AccountID, status.AccountID)

	_, err = orch.ConsumeDeskNote(ctx, desk.DeskID, noteID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestOrchestrator_RestoreSkipsDeletedNamespace(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	orch, shutdown := s.boot(t)
	kept, err := orch.NewDesk(ctx, tenant(1), domain.NetworkLocalnet, btcUSD, "")
	require.NoError(t, err)
	gone, err := orch.NewDesk(ctx, tenant(1), domain.NetworkTestnet, btcUSD, "")
	require.NoError(t, err)
	shutdown()

	goneDir := s.layout.DeskDir(gone.DeskID)
	require.NoError(t, os.RemoveAll(goneDir))

	orch, shutdown = s.boot(t)
	defer shutdown()
	n, err := orch.RestoreDesks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	desks := orch.ListDesks(ctx)
	require.Len(t, desks, 1)
	assert.Equal(t, kept.DeskID, desks[0].DeskID)

	_, err = os.Stat(goneDir)
	assert.True(t, os.IsNotExist(err), "restore must not recreate a deleted namespace")
}

func TestOrchestrator_ConcurrentCommitKeepsCommittedRow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	alice := tenant(0xA2)

	orch, shutdown := s.boot(t)
	defer shutdown()
	acct, err := orch.CreateAccount(ctx, alice, domain.NetworkLocalnet, domain.AccountClient, "Alice")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		order := domain.Order{
			Type: domain.OrderLimitOrder, Market: "BTC/USD", UUID: fmt.Sprintf("00000000-0000-4000-8000-%012d", i+1),
			Side: domain.SideSell, Amount: uint64(i + 1), Price: 100,
		}
		_, err := orch.CreateOrder(ctx, alice, domain.NetworkLocalnet, acct.AccountID, order, false)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j := range errs {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				_, errs[j] = orch.CreateOrder(ctx, alice, domain.NetworkLocalnet, acct.AccountID, order, true)
			}(j)
		}
		wg.Wait()

		rec, err := orch.GetOrder(ctx, alice, order.DeriveID(acct.AccountID))
		require.NoError(t, err)
		require.Equal(t, domain.StatusCommitted, rec.Status, "iteration %d: %s", i, rec.Error)
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrConflict)
			}
		}
	}
}
