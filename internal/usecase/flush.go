package usecase

import (
	"github.com/V4T54L/tradedesk/internal/domain"
)

// Flush evicts every pooled actor of the tenant and returns how many were
// evicted. Catalogs are untouched; the next call respawns the actor.
func (o *Orchestrator) Flush(id domain.TenantIdentity) int {
	n := o.pool.Evict(id)
	o.logger.Info("tenant actors flushed", "tenant", id, "evicted", n)
	return n
}

// FlushAll evicts every pooled actor, desk actors included.
func (o *Orchestrator) FlushAll() int {
	n := o.pool.EvictAll()
	o.logger.Info("all actors flushed", "evicted", n)
	return n
}
