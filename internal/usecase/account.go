package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// CreateAccount creates a Client or Liquidity account for the tenant and
// records it in the tenant's catalog. Desk accounts are created through
// NewDesk and faucets through CreateAccountOrder, which carry the extra
// parameters those kinds need.
func (o *Orchestrator) CreateAccount(ctx context.Context, id domain.TenantIdentity, network domain.Network, kind domain.AccountKind, name string) (domain.AccountRecord, error) {
	switch kind {
	case domain.AccountClient, domain.AccountLiquidity:
	case domain.AccountDesk:
		return domain.AccountRecord{}, domain.Invalidf("desk accounts are created by registering a desk")
	case domain.AccountFaucet:
		return domain.AccountRecord{}, domain.Invalidf("faucet accounts require symbol, decimals and max_supply")
	default:
		return domain.AccountRecord{}, domain.Invalidf("unsupported account kind %q", kind)
	}
	return o.createAccount(ctx, o.tenantNamespace(id), network, kind, name, nil)
}

// createAccount ensures the namespace catalog exists, creates the account
// through the namespace's actor and only then writes the AccountRecord, so a
// failure at any step leaves no record behind.
func (o *Orchestrator) createAccount(ctx context.Context, ns domain.Namespace, network domain.Network, kind domain.AccountKind, name string, faucet *domain.FaucetSpec) (domain.AccountRecord, error) {
	if err := validNetwork(network); err != nil {
		return domain.AccountRecord{}, err
	}
	if faucet != nil {
		if err := faucet.Validate(); err != nil {
			return domain.AccountRecord{}, err
		}
	}

	catalog, err := o.catalogs.OpenTenant(ctx, ns.Dir, true)
	if err != nil {
		return domain.AccountRecord{}, fmt.Errorf("open tenant catalog: %w", err)
	}
	h, err := o.actor(ctx, ns, network)
	if err != nil {
		return domain.AccountRecord{}, err
	}

	var snap domain.AccountSnapshot
	if faucet != nil {
		snap, err = h.CreateFaucetAccount(ctx, *faucet)
	} else {
		snap, err = h.CreateAccount(ctx)
	}
	if err != nil {
		o.logger.Error("ledger account creation failed", "tenant", ns.Identity, "network", network, "kind", kind, "error", err)
		return domain.AccountRecord{}, fmt.Errorf("create %s account: %w", kind, err)
	}

	rec := domain.AccountRecord{
		AccountID: snap.AccountID,
		Network:   network,
		Kind:      kind,
		Name:      strings.TrimSpace(name),
		CreatedAt: o.now(),
	}
	if err := catalog.UpsertAccount(ctx, rec); err != nil {
		o.logger.Error("failed to record created account", "tenant", ns.Identity, "account_id", rec.AccountID, "error", err)
		return domain.AccountRecord{}, fmt.Errorf("record account: %w", err)
	}
	if faucet != nil {
		if err := catalog.UpsertAsset(ctx, domain.AssetFromFaucet(rec.AccountID, *faucet, rec.CreatedAt)); err != nil {
			o.logger.Error("failed to register faucet asset", "tenant", ns.Identity, "account_id", rec.AccountID, "error", err)
			return domain.AccountRecord{}, fmt.Errorf("register asset: %w", err)
		}
	}
	o.logger.Info("account created", "tenant", ns.Identity, "network", network, "kind", kind, "account_id", rec.AccountID)
	return rec, nil
}

// ListAccounts returns the tenant's accounts in creation order. A tenant that
// never created anything has no accounts.
func (o *Orchestrator) ListAccounts(ctx context.Context, id domain.TenantIdentity) ([]domain.AccountRecord, error) {
	catalog, ok, err := o.existingCatalog(ctx, o.tenantNamespace(id).Dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.AccountRecord{}, nil
	}
	return catalog.ListAccounts(ctx)
}

// ListAssets returns the default assets followed by the tenant's registered
// ones, without hidden entries.
func (o *Orchestrator) ListAssets(ctx context.Context, id domain.TenantIdentity) ([]domain.AssetRecord, error) {
	catalog, ok, err := o.existingCatalog(ctx, o.tenantNamespace(id).Dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return domain.MergeAssets(domain.DefaultAssets(), nil), nil
	}
	own, err := catalog.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	return domain.MergeAssets(domain.DefaultAssets(), own), nil
}

// CreateAccountOrder dispatches an account-level workflow.
func (o *Orchestrator) CreateAccountOrder(ctx context.Context, id domain.TenantIdentity, network domain.Network, order domain.AccountOrder) (domain.AccountOrderResult, error) {
	if err := order.Validate(); err != nil {
		return domain.AccountOrderResult{}, err
	}
	result := domain.AccountOrderResult{Type: order.Type, OwnerAccount: order.OwnerAccount}

	switch order.Type {
	case domain.CreateClient, domain.CreateLiquidity:
		kind := domain.AccountClient
		if order.Type == domain.CreateLiquidity {
			kind = domain.AccountLiquidity
		}
		rec, err := o.CreateAccount(ctx, id, network, kind, order.Name)
		if err != nil {
			return domain.AccountOrderResult{}, err
		}
		result.AccountID, result.Name = rec.AccountID, rec.Name

	case domain.CreateFaucet:
		name := order.Name
		if name == "" {
			name = order.Faucet.Symbol
		}
		rec, err := o.createAccount(ctx, o.tenantNamespace(id), network, domain.AccountFaucet, name, order.Faucet)
		if err != nil {
			return domain.AccountOrderResult{}, err
		}
		result.AccountID, result.Name, result.Faucet = rec.AccountID, rec.Name, order.Faucet

	case domain.CreateDesk:
		info, err := o.NewDesk(ctx, id, network, *order.Market, order.OwnerAccount)
		if err != nil {
			return domain.AccountOrderResult{}, err
		}
		result.AccountID, result.Desk = info.AccountID, &info

	case domain.ActivateDesk, domain.DeactivateDesk:
		info, err := o.SetDeskActive(ctx, id, order.DeskAccount, order.OwnerAccount, order.Type == domain.ActivateDesk)
		if err != nil {
			return domain.AccountOrderResult{}, err
		}
		result.AccountID, result.Desk = info.AccountID, &info
	}
	return result, nil
}

// GetStatus returns the collaborator's view of an account's assets.
func (o *Orchestrator) GetStatus(ctx context.Context, id domain.TenantIdentity, network domain.Network, accountID string) (domain.AccountStatus, error) {
	if err := validNetwork(network); err != nil {
		return domain.AccountStatus{}, err
	}
	if accountID == "" {
		return domain.AccountStatus{}, domain.Invalidf("account_id is required")
	}
	h, err := o.actor(ctx, o.tenantNamespace(id), network)
	if err != nil {
		return domain.AccountStatus{}, err
	}
	status, err := h.GetStatus(ctx, accountID)
	if err != nil {
		return domain.AccountStatus{}, fmt.Errorf("get status of %s: %w", accountID, err)
	}
	return status, nil
}

// ConsumeNote consumes note on one of the tenant's own accounts. It does not
// touch any desk note inbox; see ConsumeDeskNote for that.
func (o *Orchestrator) ConsumeNote(ctx context.Context, id domain.TenantIdentity, network domain.Network, accountID string, note domain.Note) (domain.TransactionID, error) {
	if err := validNetwork(network); err != nil {
		return "", err
	}
	if accountID == "" {
		return "", domain.Invalidf("account_id is required")
	}
	if err := note.Validate(); err != nil {
		return "", err
	}
	h, err := o.actor(ctx, o.tenantNamespace(id), network)
	if err != nil {
		return "", err
	}
	tx, err := h.ConsumeNote(ctx, accountID, note)
	if err != nil {
		o.logger.Error("note consumption failed", "tenant", id, "account_id", accountID, "error", err)
		return "", fmt.Errorf("consume note on %s: %w", accountID, err)
	}
	return tx, nil
}

// Sync advances the tenant's ledger client on network.
func (o *Orchestrator) Sync(ctx context.Context, id domain.TenantIdentity, network domain.Network) (domain.SyncSummary, error) {
	if err := validNetwork(network); err != nil {
		return domain.SyncSummary{}, err
	}
	h, err := o.actor(ctx, o.tenantNamespace(id), network)
	if err != nil {
		return domain.SyncSummary{}, err
	}
	summary, err := h.Sync(ctx)
	if err != nil {
		return domain.SyncSummary{}, fmt.Errorf("sync: %w", err)
	}
	return summary, nil
}
