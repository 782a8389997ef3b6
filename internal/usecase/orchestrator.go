// Package usecase implements the tenant-facing workflows on top of the
// ledger actor pool and the catalog stores.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/adapter/ledger"
	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

// Config wires an Orchestrator.
type Config struct {
	Layout     tenantkey.Layout
	Pool       *ledger.Pool
	Catalogs   domain.CatalogOpener
	Desks      domain.DeskRepository
	Compiler   domain.NoteCompiler
	Publishers []domain.NotePublisher
	// MarketBaseURL prefixes desk market URLs; empty leaves them unset.
	MarketBaseURL string
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// deskEntry is the in-memory view of a desk, derived from its DeskRecord and
// the Desk account in its own catalog.
type deskEntry struct {
	ns             domain.Namespace
	accountID      string
	ownerNamespace string
	record         domain.DeskRecord
}

func (e *deskEntry) info() domain.DeskInfo {
	return domain.DeskInfo{
		DeskID:       e.record.DeskID,
		AccountID:    e.accountID,
		Network:      e.record.Network,
		Market:       e.record.Market,
		MarketURL:    e.record.MarketURL,
		OwnerAccount: e.record.OwnerAccount,
		Active:       e.record.Active,
	}
}

// Orchestrator composes the actor pool, the catalog stores and the note
// compiler into the workflows exposed to the API.
type Orchestrator struct {
	layout     tenantkey.Layout
	pool       *ledger.Pool
	catalogs   domain.CatalogOpener
	desks      domain.DeskRepository
	compiler   domain.NoteCompiler
	publishers []domain.NotePublisher
	marketURL  string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	deskMu    sync.RWMutex
	deskCache map[uuid.UUID]*deskEntry
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		layout:     cfg.Layout,
		pool:       cfg.Pool,
		catalogs:   cfg.Catalogs,
		desks:      cfg.Desks,
		compiler:   cfg.Compiler,
		publishers: cfg.Publishers,
		marketURL:  strings.TrimRight(cfg.MarketBaseURL, "/"),
		logger:     cfg.Logger.With("component", "orchestrator"),
		metrics:    cfg.Metrics,
		now:        func() time.Time { return cfg.Now().UTC() },
		deskCache:  make(map[uuid.UUID]*deskEntry),
	}
}

func (o *Orchestrator) tenantNamespace(id domain.TenantIdentity) domain.Namespace {
	return domain.Namespace{Identity: id, Dir: o.layout.TenantDir(id)}
}

func (o *Orchestrator) deskNamespace(deskID uuid.UUID, storagePath string) domain.Namespace {
	if storagePath == "" {
		storagePath = o.layout.DeskDir(deskID)
	}
	return domain.Namespace{Identity: tenantkey.DeskIdentity(deskID), Dir: storagePath}
}

func (o *Orchestrator) deskMarketURL(deskID uuid.UUID) string {
	if o.marketURL == "" {
		return ""
	}
	return o.marketURL + "/market/" + deskID.String()
}

func validNetwork(network domain.Network) error {
	if !network.Valid() {
		return domain.Invalidf("unsupported network %q", network)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// actor acquires the actor for ns on network.
func (o *Orchestrator) actor(ctx context.Context, ns domain.Namespace, network domain.Network) (*ledger.Handle, error) {
	h, err := o.pool.GetOrCreate(ctx, ns, network)
	if err != nil {
		return nil, fmt.Errorf("acquire ledger actor: %w", err)
	}
	return h, nil
}

// existingCatalog opens a tenant catalog without creating it. ok is false
// when the namespace has never been written.
func (o *Orchestrator) existingCatalog(ctx context.Context, dir string) (catalog domain.TenantCatalog, ok bool, err error) {
	catalog, err = o.catalogs.OpenTenant(ctx, dir, false)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return catalog, true, nil
}

// publish fans event out to every publisher. Failures are logged and counted
// but never fail the calling workflow.
func (o *Orchestrator) publish(ctx context.Context, event domain.NoteEvent) {
	for _, p := range o.publishers {
		if err := p.PublishNoteEvent(ctx, event); err != nil {
			name := fmt.Sprintf("%T", p)
			o.logger.Warn("failed to publish note event", "publisher", name, "desk_id", event.DeskID, "note_id", event.NoteID, "error", err)
			o.metrics.ObservePublishError(name)
		}
	}
}

func (o *Orchestrator) cacheDesk(e *deskEntry) {
	o.deskMu.Lock()
	o.deskCache[e.record.DeskID] = e
	o.deskMu.Unlock()
}

func (o *Orchestrator) cachedDesk(deskID uuid.UUID) (*deskEntry, bool) {
	o.deskMu.RLock()
	defer o.deskMu.RUnlock()
	e, ok := o.deskCache[deskID]
	return e, ok
}

func (o *Orchestrator) cachedDeskByAccount(accountID string) (*deskEntry, bool) {
	o.deskMu.RLock()
	defer o.deskMu.RUnlock()
	for _, e := range o.deskCache {
		if e.accountID == accountID {
			return e, true
		}
	}
	return nil, false
}

// cachedDesks returns a snapshot of the cache in desk creation order.
func (o *Orchestrator) cachedDesks() []*deskEntry {
	o.deskMu.RLock()
	out := make([]*deskEntry, 0, len(o.deskCache))
	for _, e := range o.deskCache {
		out = append(out, e)
	}
	o.deskMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].record, out[j].record
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.DeskID.String() < b.DeskID.String()
	})
	return out
}
