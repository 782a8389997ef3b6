package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/tenantkey"
)

// NewDesk registers a trading desk for market. The desk gets its own
// namespace and ledger identity; its Desk account is created there, the
// DeskRecord is written to the global catalog and the desk is cached.
func (o *Orchestrator) NewDesk(ctx context.Context, owner domain.TenantIdentity, network domain.Network, market domain.Market, ownerAccount string) (domain.DeskInfo, error) {
	if err := validNetwork(network); err != nil {
		return domain.DeskInfo{}, err
	}
	if err := market.Validate(); err != nil {
		return domain.DeskInfo{}, err
	}
	if ownerAccount != "" {
		if err := o.requireAccount(ctx, owner, ownerAccount); err != nil {
			return domain.DeskInfo{}, err
		}
	}

	deskID := uuid.New()
	ns := o.deskNamespace(deskID, "")
	acct, err := o.createAccount(ctx, ns, network, domain.AccountDesk, "desk "+market.String(), nil)
	if err != nil {
		return domain.DeskInfo{}, fmt.Errorf("create desk account: %w", err)
	}
	if _, err := o.catalogs.OpenNotes(ctx, ns.Dir, true); err != nil {
		return domain.DeskInfo{}, fmt.Errorf("open desk notes: %w", err)
	}

	rec := domain.DeskRecord{
		DeskID:         deskID,
		OwnerNamespace: tenantkey.Namespace(owner),
		OwnerAccount:   ownerAccount,
		StoragePath:    ns.Dir,
		Network:        network,
		Market:         market,
		MarketURL:      o.deskMarketURL(deskID),
		Active:         true,
		CreatedAt:      o.now(),
	}
	if err := o.desks.UpsertDesk(ctx, rec); err != nil {
		o.logger.Error("failed to record desk; its namespace is orphaned", "desk_id", deskID, "error", err)
		return domain.DeskInfo{}, fmt.Errorf("record desk: %w", err)
	}

	e := &deskEntry{ns: ns, accountID: acct.AccountID, ownerNamespace: rec.OwnerNamespace, record: rec}
	o.cacheDesk(e)
	o.logger.Info("desk registered", "desk_id", deskID, "network", network, "market", market.String(), "account_id", acct.AccountID)
	return e.info(), nil
}

func (o *Orchestrator) requireAccount(ctx context.Context, id domain.TenantIdentity, accountID string) error {
	catalog, ok, err := o.existingCatalog(ctx, o.tenantNamespace(id).Dir)
	if err != nil {
		return err
	}
	if ok {
		acct, err := catalog.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acct != nil {
			return nil
		}
	}
	return domain.NotFoundf("account %s", accountID)
}

// RestoreDesks rebuilds the desk cache from the global catalog. Each desk's
// actor is spawned and its Desk account looked up in the desk's own catalog.
// A desk that cannot be restored is logged and skipped; only a failure to
// read the global catalog is returned.
func (o *Orchestrator) RestoreDesks(ctx context.Context) (int, error) {
	records, err := o.desks.ListDesks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list desks: %w", err)
	}

	restored := 0
	for _, rec := range records {
		err := o.restoreDesk(ctx, rec)
		o.metrics.ObserveRestore(err)
		if err != nil {
			o.logger.Warn("skipping desk that could not be restored", "desk_id", rec.DeskID, "network", rec.Network, "error", err)
			continue
		}
		restored++
	}
	o.logger.Info("desks restored", "restored", restored, "total", len(records))
	return restored, nil
}

func (o *Orchestrator) restoreDesk(ctx context.Context, rec domain.DeskRecord) error {
	if err := validNetwork(rec.Network); err != nil {
		return err
	}
	ns := o.deskNamespace(rec.DeskID, rec.StoragePath)

	// Opening without create keeps a namespace deleted out of band from
	// being silently recreated.
	catalog, ok, err := o.existingCatalog(ctx, ns.Dir)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundf("desk namespace %s is missing", rec.StoragePath)
	}
	accounts, err := catalog.ListAccountsByKind(ctx, domain.AccountDesk)
	if err != nil {
		return err
	}
	var accountID string
	for _, a := range accounts {
		if a.Network == rec.Network {
			accountID = a.AccountID
			break
		}
	}
	if accountID == "" {
		return domain.NotFoundf("no desk account in namespace of desk %s", rec.DeskID)
	}
	if _, err := o.actor(ctx, ns, rec.Network); err != nil {
		return err
	}

	o.cacheDesk(&deskEntry{ns: ns, accountID: accountID, ownerNamespace: rec.OwnerNamespace, record: rec})
	return nil
}

// ListDesks returns every cached desk in creation order.
func (o *Orchestrator) ListDesks(ctx context.Context) []domain.DeskInfo {
	entries := o.cachedDesks()
	out := make([]domain.DeskInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.info())
	}
	return out
}

func (o *Orchestrator) GetDeskInfo(ctx context.Context, deskID uuid.UUID) (domain.DeskInfo, error) {
	e, ok := o.cachedDesk(deskID)
	if !ok {
		return domain.DeskInfo{}, domain.NotFoundf("desk %s", deskID)
	}
	return e.info(), nil
}

// SetDeskActive activates or deactivates the desk owning deskAccount. The
// caller must be the tenant that registered the desk and must name the
// desk's owner account.
func (o *Orchestrator) SetDeskActive(ctx context.Context, caller domain.TenantIdentity, deskAccount, ownerAccount string, active bool) (domain.DeskInfo, error) {
	e, ok := o.cachedDeskByAccount(deskAccount)
	if !ok || e.ownerNamespace != tenantkey.Namespace(caller) {
		return domain.DeskInfo{}, domain.NotFoundf("desk with account %s", deskAccount)
	}
	if e.record.OwnerAccount != ownerAccount {
		return domain.DeskInfo{}, domain.Conflictf("owner account does not match desk %s", e.record.DeskID)
	}

	rec, err := o.desks.GetDesk(ctx, e.record.DeskID)
	if err != nil {
		return domain.DeskInfo{}, err
	}
	if rec == nil {
		return domain.DeskInfo{}, domain.NotFoundf("desk %s", e.record.DeskID)
	}
	rec.Active = active
	if err := o.desks.UpsertDesk(ctx, *rec); err != nil {
		return domain.DeskInfo{}, fmt.Errorf("update desk: %w", err)
	}

	updated := &deskEntry{ns: e.ns, accountID: e.accountID, ownerNamespace: rec.OwnerNamespace, record: *rec}
	o.cacheDesk(updated)
	o.logger.Info("desk activation changed", "desk_id", rec.DeskID, "active", active)
	return updated.info(), nil
}
