package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

// Key identifies a pooled actor.
type Key struct {
	Identity domain.TenantIdentity
	Network  domain.Network
}

// entry is a pool slot. It is inserted before the actor is spawned so that
// concurrent callers for the same key wait on ready instead of spawning
// again. handle and err are written once, before ready is closed.
type entry struct {
	ready  chan struct{}
	handle *Handle
	err    error
}

func (e *entry) completed() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Connector domain.LedgerConnector
	QueueSize int
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Pool is the registry of live actors keyed by (tenant, network). Its mutex
// guards only map lookups and inserts; it is never held while an actor
// initializes or a command runs.
type Pool struct {
	cfg    PoolConfig
	logger *slog.Logger

	mu     sync.RWMutex
	actors map[Key]*entry
	closed bool
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pool{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "ledger_pool"),
		actors: make(map[Key]*entry),
	}
}

// GetOrCreate returns the actor for (ns.Identity, network), spawning it on
// first use. Concurrent first calls for the same key share one spawn. A
// failed spawn leaves no entry behind, so the next call retries.
func (p *Pool) GetOrCreate(ctx context.Context, ns domain.Namespace, network domain.Network) (*Handle, error) {
	if !network.Valid() {
		return nil, domain.Invalidf("unsupported network %q", network)
	}
	key := Key{Identity: ns.Identity, Network: network}

	for {
		e, err := p.lookup(ctx, key, ns)
		if err != nil {
			return nil, err
		}

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}
		if !e.handle.a.closing.Load() {
			return e.handle, nil
		}
		// Evicted between lookup and wait; retry with a fresh entry.
		p.remove(key, e)
	}
}

func (p *Pool) lookup(ctx context.Context, key Key, ns domain.Namespace) (*entry, error) {
	// Fast path: shared lock.
	p.mu.RLock()
	e, ok := p.actors[key]
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, domain.ErrActorStopped
	}
	if ok {
		return e, nil
	}

	// Slow path: exclusive lock and re-check.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, domain.ErrActorStopped
	}
	if e, ok = p.actors[key]; ok {
		p.mu.Unlock()
		return e, nil
	}
	e = &entry{ready: make(chan struct{})}
	p.actors[key] = e
	p.mu.Unlock()

	go p.spawn(context.WithoutCancel(ctx), key, ns, e)
	return e, nil
}

func (p *Pool) spawn(ctx context.Context, key Key, ns domain.Namespace, e *entry) {
	h, err := Spawn(ctx, ActorConfig{
		Namespace: ns,
		Network:   key.Network,
		Dir:       tenantkey.LedgerDir(ns.Dir, key.Network),
		Connector: p.cfg.Connector,
		QueueSize: p.cfg.QueueSize,
		Logger:    p.cfg.Logger,
		Metrics:   p.cfg.Metrics,
	})
	p.cfg.Metrics.ObserveSpawn(err)

	if err != nil {
		p.logger.Error("failed to spawn ledger actor", "tenant", key.Identity, "network", key.Network, "error", err)
		e.err = fmt.Errorf("%w: %w", domain.ErrSpawn, err)
		p.remove(key, e)
		close(e.ready)
		return
	}

	e.handle = h
	close(e.ready)
	p.logger.Info("ledger actor spawned", "tenant", key.Identity, "network", key.Network)
	p.cfg.Metrics.SetPoolSize(p.Len())
}

func (p *Pool) remove(key Key, e *entry) {
	p.mu.Lock()
	if p.actors[key] == e {
		delete(p.actors, key)
	}
	p.mu.Unlock()
}

// Evict removes every ready actor belonging to id and returns how many were
// removed. Each removed actor finishes the commands already queued before it
// stops. Actors still being spawned are left in place.
func (p *Pool) Evict(id domain.TenantIdentity) int {
	return p.evict(func(k Key) bool { return k.Identity == id })
}

// EvictAll removes every ready actor.
func (p *Pool) EvictAll() int {
	return p.evict(func(Key) bool { return true })
}

func (p *Pool) evict(match func(Key) bool) int {
	p.mu.Lock()
	victims := p.takeLocked(match)
	size := len(p.actors)
	p.mu.Unlock()

	for _, h := range victims {
		h.enqueueShutdown()
	}
	p.cfg.Metrics.AddEvictions(len(victims))
	p.cfg.Metrics.SetPoolSize(size)
	if len(victims) > 0 {
		p.logger.Info("evicted ledger actors", "count", len(victims))
	}
	return len(victims)
}

// takeLocked removes matching ready entries and marks their handles closing
// before p.mu is released, so a concurrent GetOrCreate that already holds
// one of these entries sees it as closing and spawns afresh.
func (p *Pool) takeLocked(match func(Key) bool) []*Handle {
	var victims []*Handle
	for k, e := range p.actors {
		if !match(k) || !e.completed() || e.handle == nil {
			continue
		}
		delete(p.actors, k)
		if e.handle.markClosing() {
			victims = append(victims, e.handle)
		}
	}
	return victims
}

// Len returns the number of pool entries, including spawns in progress.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.actors)
}

// Close stops accepting new work, shuts every actor down and waits for them
// to drain or for ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	pending := make([]*entry, 0, len(p.actors))
	for _, e := range p.actors {
		pending = append(pending, e)
	}
	p.actors = make(map[Key]*entry)
	p.mu.Unlock()

	for _, e := range pending {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		if e.handle == nil {
			continue
		}
		e.handle.Shutdown()
		select {
		case <-e.handle.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.cfg.Metrics.SetPoolSize(0)
	return nil
}
