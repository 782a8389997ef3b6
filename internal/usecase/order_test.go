package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

func kycOrder() domain.Order {
	return domain.Order{Type: domain.OrderKYCPassed, Market: "BTC/USD"}
}

func TestOrchestrator_CreateThenCommitKeepsOneRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")

	created, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageCreate, created.Order.Stage)
	assert.Equal(t, domain.StatusCreated, created.Order.Status)
	require.NotNil(t, created.Note)
	assert.Empty(t, created.Order.TxID)

	committed, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.NoError(t, err)
	assert.Equal(t, created.Order.OrderID, committed.Order.OrderID)
	assert.Equal(t, domain.StageCommit, committed.Order.Stage)
	assert.Equal(t, domain.StatusCommitted, committed.Order.Status)
	assert.Equal(t, "0xcommit0001", committed.Order.TxID)
	assert.Equal(t, created.Order.CreatedAt, committed.Order.CreatedAt)

	catalog := h.tenantCatalog(t1)
	assert.Len(t, catalog.Orders, 1)
	// pending insert, created, commit claim, committed
	assert.Equal(t, 4, catalog.OrderUpserts)

	orders, err := h.orch.ListOrders(ctx, t1, "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.StatusCommitted, orders[0].Status)
}

func TestOrchestrator_TerminalOrderIsNotRewritten(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")

	first, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.NoError(t, err)
	upserts := h.tenantCatalog(t1).OrderUpserts

	again, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.NoError(t, err)
	assert.Equal(t, first.Order, again.Order)
	assert.Nil(t, again.Note)
	assert.Equal(t, upserts, h.tenantCatalog(t1).OrderUpserts)
	assert.Len(t, h.ledgerClient(t1, domain.NetworkLocalnet).Committed, 1)
}

func TestOrchestrator_CommitFailureRecordsFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")
	h.ledgerClient(t1, domain.NetworkLocalnet).CommitErr = errors.New("insufficient funds")

	_, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCollaborator)

	rec, err := h.orch.GetOrder(ctx, t1, kycOrder().DeriveID(a1.AccountID))
	require.NoError(t, err)
	assert.Equal(t, domain.StageCommit, rec.Stage)
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Equal(t, "insufficient funds", rec.Error)
	assert.Empty(t, rec.TxID)
}

func TestOrchestrator_CompileFailureRecordsFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")
	h.compiler.CompileErr = errors.New("unknown market")

	_, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.Error(t, err)

	rec, err := h.orch.GetOrder(ctx, t1, kycOrder().DeriveID(a1.AccountID))
	require.NoError(t, err)
	assert.Equal(t, domain.StageCreate, rec.Stage)
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Equal(t, "unknown market", rec.Error)
	assert.NotContains(t, h.ledgerClient(t1, domain.NetworkLocalnet).CallLog(), "CommitNote")
}

func TestOrchestrator_CreateOrderValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")

	_, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, domain.Order{Type: domain.OrderKYCPassed}, false)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, "mlcl1unknown", kycOrder(), false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.orch.CreateOrder(ctx, t1, domain.NetworkTestnet, a1.AccountID, kycOrder(), false)
	assert.ErrorIs(t, err, domain.ErrInvalid, "account lives on another network")

	_, err = h.orch.CreateOrder(ctx, tenant(2), domain.NetworkLocalnet, a1.AccountID, kycOrder(), false)
	assert.ErrorIs(t, err, domain.ErrNotFound, "another tenant's account")

	assert.Zero(t, h.tenantCatalog(t1).OrderUpserts)
}

func TestOrchestrator_ListOrdersByAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "a")
	a2 := createClient(t, h, t1, "b")

	_, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), false)
	require.NoError(t, err)
	_, err = h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a2.AccountID, kycOrder(), false)
	require.NoError(t, err)

	all, err := h.orch.ListOrders(ctx, t1, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := h.orch.ListOrders(ctx, t1, a2.AccountID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a2.AccountID, mine[0].AccountID)

	none, err := h.orch.ListOrders(ctx, tenant(7), "")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = h.orch.GetOrder(ctx, t1, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrchestrator_ConcurrentCommitsReachLedgerOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")
	h.compiler.Delay = 20 * time.Millisecond

	const callers = 8
	var wg sync.WaitGroup
	results := make([]domain.OrderResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
		}(i)
	}
	wg.Wait()

	committed := 0
	for i := range errs {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], domain.ErrConflict)
			continue
		}
		assert.Equal(t, domain.StatusCommitted, results[i].Order.Status)
		committed++
	}
	assert.GreaterOrEqual(t, committed, 1)
	assert.Len(t, h.ledgerClient(t1, domain.NetworkLocalnet).Committed, 1)

	rec, err := h.orch.GetOrder(ctx, t1, kycOrder().DeriveID(a1.AccountID))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, rec.Status)
	assert.Equal(t, "0xcommit0001", rec.TxID)
}

func TestOrchestrator_OrderIDOwnedByOneAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "a")
	a2 := createClient(t, h, t1, "b")
	order := domain.Order{
		Type: domain.OrderLimitOrder, Market: "BTC/USD", UUID: "6f1c2a7e-5b0d-4c1e-9a53-0c4a1f7d2e10",
		Side: domain.SideBuy, Amount: 1, Price: 100,
	}

	first, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, order, false)
	require.NoError(t, err)
	assert.Equal(t, a1.AccountID, first.Order.AccountID)

	_, err = h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a2.AccountID, order, true)
	assert.ErrorIs(t, err, domain.ErrConflict)

	rec, err := h.orch.GetOrder(ctx, t1, first.Order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, a1.AccountID, rec.AccountID)
	assert.Equal(t, domain.StatusCreated, rec.Status)
	assert.NotContains(t, h.ledgerClient(t1, domain.NetworkLocalnet).CallLog(), "CommitNote")

	_, err = h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, order, true)
	require.NoError(t, err)
	_, err = h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a2.AccountID, order, false)
	assert.ErrorIs(t, err, domain.ErrConflict, "terminal rows are not handed to another account")
}

func TestOrchestrator_PendingRowRecordedBeforeCommit(t *testing.T) {
	h := newHarness(t)
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")
	client := h.ledgerClient(t1, domain.NetworkLocalnet)
	client.CommitDelay = 150 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	orderID := kycOrder().DeriveID(a1.AccountID)
	rec, err := h.orch.GetOrder(context.Background(), t1, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageCommit, rec.Stage)
	assert.Equal(t, domain.StatusPending, rec.Status)

	_, err = h.orch.CreateOrder(context.Background(), t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Sync queues behind the abandoned commit, which still runs once.
	_, err = h.orch.Sync(context.Background(), t1, domain.NetworkLocalnet)
	require.NoError(t, err)
	assert.Len(t, client.Committed, 1)
}

func TestOrchestrator_SpawnFailureReleasesCommitClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := tenant(1)
	a1 := createClient(t, h, t1, "Alice")

	h.orch.Flush(t1)
	ledgerDir := tenantkey.LedgerDir(h.layout.TenantDir(t1), domain.NetworkLocalnet)
	h.connector.FailDirs = map[string]error{ledgerDir: errors.New("disk full")}

	_, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.ErrorIs(t, err, domain.ErrSpawn)

	orderID := kycOrder().DeriveID(a1.AccountID)
	rec, err := h.orch.GetOrder(ctx, t1, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageCreate, rec.Stage)
	assert.Equal(t, domain.StatusPending, rec.Status)

	h.connector.FailDirs = nil
	res, err := h.orch.CreateOrder(ctx, t1, domain.NetworkLocalnet, a1.AccountID, kycOrder(), true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, res.Order.Status)
}
