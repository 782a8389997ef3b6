// Package auth maps bearer tokens to tenant identities.
package auth

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/domain"
)

// HexResolver treats the token itself as the hex-encoded 32-byte identity.
// It is meant for single-operator and development deployments.
type HexResolver struct{}

func (HexResolver) Resolve(ctx context.Context, token string) (domain.TenantIdentity, error) {
	id, err := domain.ParseTenantIdentity(token)
	if err != nil {
		return domain.TenantIdentity{}, domain.NotFoundf("token is not a tenant identifier")
	}
	return id, nil
}

type cacheEntry struct {
	identity  domain.TenantIdentity
	expiresAt time.Time
}

// CachedResolver fronts another resolver with a TTL cache. Lookups take the
// read lock first; on a miss the write lock is taken and the entry checked
// again before the backing resolver is called, so concurrent misses for one
// token resolve it once. Failures are never cached.
type CachedResolver struct {
	next    domain.IdentityResolver
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	entries map[[sha256.Size]byte]cacheEntry
}

func NewCachedResolver(next domain.IdentityResolver, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedResolver {
	return &CachedResolver{
		next:    next,
		ttl:     ttl,
		logger:  logger.With("component", "token_cache"),
		metrics: m,
		now:     time.Now,
		entries: make(map[[sha256.Size]byte]cacheEntry),
	}
}

// Entries are keyed by token digest so raw tokens are not retained.
func cacheKey(token string) [sha256.Size]byte {
	return sha256.Sum256([]byte(token))
}

func (r *CachedResolver) Resolve(ctx context.Context, token string) (domain.TenantIdentity, error) {
	key := cacheKey(token)

	r.mu.RLock()
	entry, found := r.entries[key]
	r.mu.RUnlock()
	if found && r.now().Before(entry.expiresAt) {
		r.metrics.ObserveTokenCache(true)
		return entry.identity, nil
	}
	r.metrics.ObserveTokenCache(false)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have refreshed it while we waited.
	entry, found = r.entries[key]
	if found && r.now().Before(entry.expiresAt) {
		return entry.identity, nil
	}

	id, err := r.next.Resolve(ctx, token)
	if err != nil {
		delete(r.entries, key)
		return domain.TenantIdentity{}, err
	}
	r.entries[key] = cacheEntry{identity: id, expiresAt: r.now().Add(r.ttl)}
	return id, nil
}

// Invalidate drops token from the cache.
func (r *CachedResolver) Invalidate(token string) {
	r.mu.Lock()
	delete(r.entries, cacheKey(token))
	r.mu.Unlock()
}

// Prune removes expired entries and returns how many were dropped.
func (r *CachedResolver) Prune() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.entries {
		if !now.Before(e.expiresAt) {
			delete(r.entries, k)
			n++
		}
	}
	if n > 0 {
		r.logger.Debug("pruned token cache", "expired", n)
	}
	return n
}

func (r *CachedResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
