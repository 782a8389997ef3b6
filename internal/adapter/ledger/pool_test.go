package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/domain/mocks"
)

func testNamespace(t *testing.T, b byte) domain.Namespace {
	var id domain.TenantIdentity
	id[0] = b
	return domain.Namespace{Identity: id, Dir: t.TempDir()}
}

func newTestPool(connector *mocks.MockLedgerConnector, m *metrics.Metrics) *Pool {
	return NewPool(PoolConfig{Connector: connector, QueueSize: 16, Logger: discardLogger(), Metrics: m})
}

func TestPool_ConcurrentFirstUseSpawnsOnce(t *testing.T) {
	connector := &mocks.MockLedgerConnector{ConnectDelay: 30 * time.Millisecond}
	pool := newTestPool(connector, nil)
	ns := testNamespace(t, 1)

	const callers = 32
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, connector.ConnectCount())
	assert.Equal(t, 1, pool.Len())
	for _, h := range handles {
		require.NotNil(t, h)
		assert.Same(t, handles[0].a, h.a)
	}
}

func TestPool_NetworksAreSeparateActors(t *testing.T) {
	connector := &mocks.MockLedgerConnector{}
	pool := newTestPool(connector, nil)
	ns := testNamespace(t, 1)

	local, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
	require.NoError(t, err)
	test, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkTestnet)
	require.NoError(t, err)

	assert.NotSame(t, local.a, test.a)
	assert.Equal(t, 2, pool.Len())
	assert.DirExists(t, filepath.Join(ns.Dir, "localnet"))
	assert.DirExists(t, filepath.Join(ns.Dir, "testnet"))
}

func TestPool_RejectsUnknownNetwork(t *testing.T) {
	pool := newTestPool(&mocks.MockLedgerConnector{}, nil)
	_, err := pool.GetOrCreate(context.Background(), testNamespace(t, 1), domain.Network("Mainnet"))
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestPool_SpawnFailureLeavesNoEntry(t *testing.T) {
	connector := &mocks.MockLedgerConnector{ConnectErr: errors.New("disk full")}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	pool := newTestPool(connector, m)
	ns := testNamespace(t, 1)

	_, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSpawn)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, pool.Len())

	connector.ConnectErr = nil
	h, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 2, connector.ConnectCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolSpawns.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolSpawns.WithLabelValues("ok")))
}

func TestPool_EvictByTenant(t *testing.T) {
	connector := &mocks.MockLedgerConnector{}
	pool := newTestPool(connector, nil)
	a := testNamespace(t, 1)
	b := testNamespace(t, 2)
	ctx := context.Background()

	hA, err := pool.GetOrCreate(ctx, a, domain.NetworkLocalnet)
	require.NoError(t, err)
	_, err = pool.GetOrCreate(ctx, a, domain.NetworkTestnet)
	require.NoError(t, err)
	hB, err := pool.GetOrCreate(ctx, b, domain.NetworkLocalnet)
	require.NoError(t, err)

	assert.Equal(t, 2, pool.Evict(a.Identity))
	assert.Equal(t, 1, pool.Len())
	assert.Equal(t, 0, pool.Evict(a.Identity))

	_, err = hA.Sync(ctx)
	assert.ErrorIs(t, err, domain.ErrActorStopped)
	_, err = hB.Sync(ctx)
	assert.NoError(t, err)

	fresh, err := pool.GetOrCreate(ctx, a, domain.NetworkLocalnet)
	require.NoError(t, err)
	assert.NotSame(t, hA.a, fresh.a)
	assert.Equal(t, 4, connector.ConnectCount())

	assert.Equal(t, 2, pool.EvictAll())
	assert.Equal(t, 0, pool.Len())
}

func TestPool_EvictMarksHandlesClosingUnderLock(t *testing.T) {
	connector := &mocks.MockLedgerConnector{}
	pool := newTestPool(connector, nil)
	ns := testNamespace(t, 1)
	ctx := context.Background()

	h, err := pool.GetOrCreate(ctx, ns, domain.NetworkLocalnet)
	require.NoError(t, err)

	// An entry already looked up by a caller that has not yet checked it.
	pool.mu.RLock()
	held := pool.actors[Key{Identity: ns.Identity, Network: domain.NetworkLocalnet}]
	pool.mu.RUnlock()
	require.NotNil(t, held)

	pool.mu.Lock()
	victims := pool.takeLocked(func(Key) bool { return true })
	closingBeforeUnlock := held.handle.a.closing.Load()
	pool.mu.Unlock()
	for _, v := range victims {
		v.enqueueShutdown()
	}

	require.Len(t, victims, 1)
	assert.True(t, closingBeforeUnlock)
	<-h.Done()

	fresh, err := pool.GetOrCreate(ctx, ns, domain.NetworkLocalnet)
	require.NoError(t, err)
	assert.NotSame(t, h.a, fresh.a)
	_, err = fresh.Sync(ctx)
	assert.NoError(t, err)
}

func TestPool_EvictLetsInFlightCommandsFinish(t *testing.T) {
	connector := &mocks.MockLedgerConnector{
		Configure: func(_ string, c *mocks.MockLedgerClient) { c.CreateDelay = 80 * time.Millisecond },
	}
	pool := newTestPool(connector, nil)
	ns := testNamespace(t, 1)

	h, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.CreateAccount(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, pool.Evict(ns.Identity))
	assert.NoError(t, <-done)
	<-h.Done()
}

func TestPool_SlowTenantDoesNotBlockOthers(t *testing.T) {
	a := testNamespace(t, 1)
	b := testNamespace(t, 2)
	slowDir := filepath.Join(a.Dir, "localnet")
	connector := &mocks.MockLedgerConnector{
		Configure: func(dir string, c *mocks.MockLedgerClient) {
			if dir == slowDir {
				c.CreateDelay = 300 * time.Millisecond
			}
		},
	}
	pool := newTestPool(connector, nil)
	ctx := context.Background()

	hA, err := pool.GetOrCreate(ctx, a, domain.NetworkLocalnet)
	require.NoError(t, err)
	hB, err := pool.GetOrCreate(ctx, b, domain.NetworkLocalnet)
	require.NoError(t, err)

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _ = hA.CreateAccount(ctx)
	}()
	require.Eventually(t, func() bool {
		return len(connector.Client(slowDir, domain.NetworkLocalnet).CallLog()) > 0
	}, time.Second, time.Millisecond)

	_, err = hB.ListAccounts(ctx)
	require.NoError(t, err)
	select {
	case <-slowDone:
		t.Fatal("tenant B waited for tenant A's slow command")
	default:
	}

	// Pool lookups for A also stay fast while its actor is busy.
	start := time.Now()
	again, err := pool.GetOrCreate(ctx, a, domain.NetworkLocalnet)
	require.NoError(t, err)
	assert.Same(t, hA.a, again.a)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	<-slowDone
}

func TestPool_CallerCancelWhileSpawning(t *testing.T) {
	connector := &mocks.MockLedgerConnector{ConnectDelay: 100 * time.Millisecond}
	pool := newTestPool(connector, nil)
	ns := testNamespace(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := pool.GetOrCreate(ctx, ns, domain.NetworkLocalnet)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	h, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 1, connector.ConnectCount())
}

func TestPool_Close(t *testing.T) {
	pool := newTestPool(&mocks.MockLedgerConnector{}, nil)
	ns := testNamespace(t, 1)

	h, err := pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Close(ctx))

	assert.Equal(t, StateStopped, h.State())
	_, err = pool.GetOrCreate(context.Background(), ns, domain.NetworkLocalnet)
	assert.ErrorIs(t, err, domain.ErrActorStopped)
}
