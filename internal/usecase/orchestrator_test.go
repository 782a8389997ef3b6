package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/adapter/ledger"
	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/domain/mocks"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

type harness struct {
	orch      *Orchestrator
	pool      *ledger.Pool
	layout    tenantkey.Layout
	connector *mocks.MockLedgerConnector
	catalogs  *mocks.MockCatalogOpener
	desks     *mocks.MockDeskRepository
	compiler  *mocks.MockNoteCompiler
	publisher *mocks.MockNotePublisher
	metrics   *metrics.Metrics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		layout:    tenantkey.Layout{Root: t.TempDir()},
		connector: &mocks.MockLedgerConnector{},
		catalogs:  mocks.NewMockCatalogOpener(),
		desks:     mocks.NewMockDeskRepository(),
		compiler:  &mocks.MockNoteCompiler{},
		publisher: &mocks.MockNotePublisher{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	h.restart(t)
	return h
}

// restart builds a fresh pool and orchestrator over the same stores and
// ledger state, as a process restart would.
func (h *harness) restart(t *testing.T) {
	t.Helper()
	h.pool = ledger.NewPool(ledger.PoolConfig{Connector: h.connector, QueueSize: 16, Logger: discardLogger(), Metrics: h.metrics})
	pool := h.pool
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Close(ctx)
	})
	h.orch = NewOrchestrator(Config{
		Layout:        h.layout,
		Pool:          h.pool,
		Catalogs:      h.catalogs,
		Desks:         h.desks,
		Compiler:      h.compiler,
		Publishers:    []domain.NotePublisher{h.publisher},
		MarketBaseURL: "http://desk.test/",
		Logger:        discardLogger(),
		Metrics:       h.metrics,
	})
}

// ledgerClient returns the fake client behind a tenant's actor.
func (h *harness) ledgerClient(id domain.TenantIdentity, network domain.Network) *mocks.MockLedgerClient {
	return h.connector.Client(tenantkey.LedgerDir(h.layout.TenantDir(id), network), network)
}

func (h *harness) tenantCatalog(id domain.TenantIdentity) *mocks.MockTenantCatalog {
	return h.catalogs.Tenants[h.layout.TenantDir(id)]
}

func tenant(b byte) domain.TenantIdentity {
	var id domain.TenantIdentity
	for i := range id {
		id[i] = b
	}
	return id
}

func createClient(t *testing.T, h *harness, id domain.TenantIdentity, name string) domain.AccountRecord {
	t.Helper()
	rec, err := h.orch.CreateAccount(context.Background(), id, domain.NetworkLocalnet, domain.AccountClient, name)
	require.NoError(t, err)
	return rec
}
