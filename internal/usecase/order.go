package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// CreateOrder runs the create → [commit] workflow for an order placed by one
// of the tenant's accounts.
//
// The order id is derived from the payload, so resubmitting the same payload
// targets the same row. The row is inserted as pending before anything else
// happens. An order that already reached committed or failed is returned
// unchanged. Otherwise the note is compiled; a compile failure is recorded as
// failed. Without commit the order is recorded as created. With commit the
// caller first claims the row by moving it to the commit stage; only the
// claiming caller reaches the ledger, and it records the outcome, committed or
// failed. Every write is conditional on the row's previous stage and status.
func (o *Orchestrator) CreateOrder(ctx context.Context, id domain.TenantIdentity, network domain.Network, accountID string, order domain.Order, commit bool) (domain.OrderResult, error) {
	if err := validNetwork(network); err != nil {
		return domain.OrderResult{}, err
	}
	if accountID == "" {
		return domain.OrderResult{}, domain.Invalidf("account_id is required")
	}
	if err := order.Validate(); err != nil {
		return domain.OrderResult{}, err
	}

	ns := o.tenantNamespace(id)
	catalog, ok, err := o.existingCatalog(ctx, ns.Dir)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if !ok {
		return domain.OrderResult{}, domain.NotFoundf("account %s", accountID)
	}
	acct, err := catalog.GetAccount(ctx, accountID)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if acct == nil {
		return domain.OrderResult{}, domain.NotFoundf("account %s", accountID)
	}
	if acct.Network != network {
		return domain.OrderResult{}, domain.Invalidf("account %s belongs to %s, not %s", accountID, acct.Network, network)
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("encode order payload: %w", err)
	}
	orderID := order.DeriveID(accountID)
	now := o.now()
	rec, err := o.loadOrInsertOrder(ctx, catalog, domain.OrderRecord{
		OrderID:   orderID,
		OrderType: order.Type,
		Payload:   payload,
		Stage:     domain.StageCreate,
		Status:    domain.StatusPending,
		AccountID: accountID,
		Network:   network,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.OrderResult{}, err
	}
	if rec.AccountID != accountID {
		return domain.OrderResult{}, domain.Conflictf("order %s belongs to another account", orderID)
	}
	if rec.Status.Terminal() {
		return domain.OrderResult{Order: rec}, nil
	}
	if rec.Stage == domain.StageCommit {
		return domain.OrderResult{}, domain.Conflictf("order %s is already being committed", orderID)
	}
	logger := o.logger.With("tenant", id, "order_id", orderID, "order_type", order.Type)

	note, compileErr := o.compiler.Compile(ctx, accountID, network, order)
	if compileErr != nil {
		logger.Error("order compilation failed", "error", compileErr)
		if _, err := o.moveOrder(ctx, catalog, &rec, domain.StageCreate, domain.StatusFailed, "", compileErr); err != nil {
			return domain.OrderResult{}, err
		}
		return domain.OrderResult{}, fmt.Errorf("compile order %s: %w", orderID, compileErr)
	}

	if !commit {
		if rec.Status == domain.StatusCreated {
			return domain.OrderResult{Order: rec, Note: &note}, nil
		}
		moved, err := o.moveOrder(ctx, catalog, &rec, domain.StageCreate, domain.StatusCreated, "", nil)
		if err != nil {
			return domain.OrderResult{}, err
		}
		if !moved {
			// A concurrent call moved the row first; report what it stored.
			cur, err := o.reloadOrder(ctx, catalog, orderID)
			if err != nil {
				return domain.OrderResult{}, err
			}
			return domain.OrderResult{Order: cur, Note: &note}, nil
		}
		return domain.OrderResult{Order: rec, Note: &note}, nil
	}

	claimed, err := o.moveOrder(ctx, catalog, &rec, domain.StageCommit, rec.Status, "", nil)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if !claimed {
		cur, err := o.reloadOrder(ctx, catalog, orderID)
		if err != nil {
			return domain.OrderResult{}, err
		}
		if cur.Status.Terminal() {
			return domain.OrderResult{Order: cur}, nil
		}
		return domain.OrderResult{}, domain.Conflictf("order %s is already being committed", orderID)
	}

	h, err := o.actor(ctx, ns, network)
	if err != nil {
		o.releaseOrder(ctx, catalog, &rec)
		return domain.OrderResult{}, err
	}
	tx, commitErr := h.CommitNote(ctx, accountID, note)
	switch {
	case commitErr == nil:
	case errors.Is(commitErr, domain.ErrCollaborator):
		logger.Error("order commit failed", "error", commitErr)
		if err := o.finishCommit(ctx, catalog, &rec, domain.StatusFailed, "", commitErr); err != nil {
			return domain.OrderResult{}, err
		}
		return domain.OrderResult{}, fmt.Errorf("commit order %s: %w", orderID, commitErr)
	case errors.Is(commitErr, domain.ErrActorStopped):
		// The command never ran, so the order can be committed again.
		o.releaseOrder(ctx, catalog, &rec)
		return domain.OrderResult{}, fmt.Errorf("commit order %s: %w", orderID, commitErr)
	default:
		// The caller gave up but the command may still run; the row stays
		// claimed at the commit stage.
		logger.Warn("order commit outcome unknown", "error", commitErr)
		return domain.OrderResult{}, fmt.Errorf("commit order %s: %w", orderID, commitErr)
	}
	if err := o.finishCommit(ctx, catalog, &rec, domain.StatusCommitted, string(tx), nil); err != nil {
		return domain.OrderResult{}, err
	}
	logger.Info("order committed", "tx_id", tx)
	return domain.OrderResult{Order: rec, Note: &note}, nil
}

// loadOrInsertOrder returns the stored row for fresh.OrderID, inserting fresh
// first when there is none.
func (o *Orchestrator) loadOrInsertOrder(ctx context.Context, catalog domain.TenantCatalog, fresh domain.OrderRecord) (domain.OrderRecord, error) {
	existing, err := catalog.GetOrder(ctx, fresh.OrderID)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	inserted, err := catalog.InsertOrder(ctx, fresh)
	if err != nil {
		o.logger.Error("failed to record pending order", "order_id", fresh.OrderID, "error", err)
		return domain.OrderRecord{}, fmt.Errorf("record order: %w", err)
	}
	if inserted {
		return fresh, nil
	}
	return o.reloadOrder(ctx, catalog, fresh.OrderID)
}

func (o *Orchestrator) reloadOrder(ctx context.Context, catalog domain.TenantCatalog, orderID string) (domain.OrderRecord, error) {
	cur, err := catalog.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if cur == nil {
		return domain.OrderRecord{}, domain.NotFoundf("order %s", orderID)
	}
	return *cur, nil
}

// moveOrder moves rec to (stage, status) only if the stored row still matches
// rec, and updates rec when it did.
func (o *Orchestrator) moveOrder(ctx context.Context, catalog domain.TenantCatalog, rec *domain.OrderRecord, stage domain.OrderStage, status domain.OrderStatus, txID string, cause error) (bool, error) {
	if !rec.Status.CanTransition(status) {
		return false, domain.Conflictf("order %s cannot move from %q to %q", rec.OrderID, rec.Status, status)
	}
	next := *rec
	next.Stage = stage
	next.Status = status
	next.TxID = txID
	next.Error = ""
	if cause != nil {
		next.Error = failureMessage(cause)
	}
	next.UpdatedAt = o.now()

	moved, err := catalog.CompareAndSetOrder(ctx, next, rec.Stage, rec.Status)
	if err != nil {
		o.logger.Error("failed to record order outcome", "order_id", rec.OrderID, "status", status, "error", err)
		return false, fmt.Errorf("record order: %w", err)
	}
	if !moved {
		return false, nil
	}
	if status != rec.Status {
		o.metrics.ObserveOrder(string(status))
	}
	*rec = next
	return true, nil
}

// finishCommit records the outcome of a commit the caller has claimed.
func (o *Orchestrator) finishCommit(ctx context.Context, catalog domain.TenantCatalog, rec *domain.OrderRecord, status domain.OrderStatus, txID string, cause error) error {
	moved, err := o.moveOrder(ctx, catalog, rec, domain.StageCommit, status, txID, cause)
	if err != nil {
		return err
	}
	if !moved {
		return domain.Conflictf("order %s changed while it was being committed", rec.OrderID)
	}
	return nil
}

// releaseOrder returns a claimed order to the create stage after a commit
// that never reached the ledger.
func (o *Orchestrator) releaseOrder(ctx context.Context, catalog domain.TenantCatalog, rec *domain.OrderRecord) {
	if _, err := o.moveOrder(ctx, catalog, rec, domain.StageCreate, rec.Status, "", nil); err != nil {
		o.logger.Warn("failed to release order claim", "order_id", rec.OrderID, "error", err)
	}
}

// failureMessage prefers the collaborator's own wording.
func failureMessage(err error) string {
	var le *domain.LedgerError
	if errors.As(err, &le) {
		return le.Message
	}
	return err.Error()
}

// ListOrders returns the tenant's orders newest first, optionally narrowed to
// one account.
func (o *Orchestrator) ListOrders(ctx context.Context, id domain.TenantIdentity, accountID string) ([]domain.OrderRecord, error) {
	catalog, ok, err := o.existingCatalog(ctx, o.tenantNamespace(id).Dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.OrderRecord{}, nil
	}
	if accountID != "" {
		return catalog.ListOrdersByAccount(ctx, accountID)
	}
	return catalog.ListOrders(ctx)
}

func (o *Orchestrator) GetOrder(ctx context.Context, id domain.TenantIdentity, orderID string) (domain.OrderRecord, error) {
	catalog, ok, err := o.existingCatalog(ctx, o.tenantNamespace(id).Dir)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if !ok {
		return domain.OrderRecord{}, domain.NotFoundf("order %s", orderID)
	}
	rec, err := catalog.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if rec == nil {
		return domain.OrderRecord{}, domain.NotFoundf("order %s", orderID)
	}
	return *rec, nil
}
