package ledger

import (
	"context"
	"fmt"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// Handle is a cloneable reference to a running actor. It holds no mutable
// state of its own; copies all address the same actor.
type Handle struct {
	a *actor
}

func (h *Handle) Namespace() domain.Namespace { return h.a.cfg.Namespace }
func (h *Handle) Network() domain.Network     { return h.a.cfg.Network }
func (h *Handle) State() ActorState           { return ActorState(h.a.state.Load()) }

// Done is closed once the actor has stopped.
func (h *Handle) Done() <-chan struct{} { return h.a.done }

// Shutdown queues a Shutdown command behind every command already sent and
// returns immediately. Commands sent afterwards fail with ErrActorStopped.
func (h *Handle) Shutdown() {
	if h.markClosing() {
		h.enqueueShutdown()
	}
}

// markClosing flips the handle to closing and reports whether this call did
// it. Once it returns, new calls fail fast with ErrActorStopped.
func (h *Handle) markClosing() bool {
	return h.a.closing.CompareAndSwap(false, true)
}

func (h *Handle) enqueueShutdown() {
	cmd := command{op: OpShutdown, reply: make(chan reply, 1)}
	go func() {
		select {
		case h.a.queue <- cmd:
		case <-h.a.done:
		}
	}()
}

// call enqueues cmd and waits for its reply. Giving up on ctx does not cancel
// the command; its reply is discarded.
func (h *Handle) call(ctx context.Context, cmd command) (any, error) {
	if h.a.closing.Load() {
		return nil, domain.ErrActorStopped
	}
	cmd.reply = make(chan reply, 1)

	select {
	case h.a.queue <- cmd:
	case <-h.a.done:
		return nil, domain.ErrActorStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r.value, r.err
	case <-h.a.done:
		select {
		case r := <-cmd.reply:
			return r.value, r.err
		default:
			return nil, domain.ErrActorStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func typed[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected reply type %T", v)
	}
	return out, nil
}

func (h *Handle) Sync(ctx context.Context) (domain.SyncSummary, error) {
	return typed[domain.SyncSummary](h.call(ctx, command{op: OpSync}))
}

func (h *Handle) CreateAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	return typed[domain.AccountSnapshot](h.call(ctx, command{op: OpCreateAccount}))
}

func (h *Handle) CreateFaucetAccount(ctx context.Context, spec domain.FaucetSpec) (domain.AccountSnapshot, error) {
	return typed[domain.AccountSnapshot](h.call(ctx, command{op: OpCreateFaucetAccount, faucet: spec}))
}

// GetAccount returns (nil, nil) when the collaborator does not know the id.
func (h *Handle) GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	return typed[*domain.AccountSnapshot](h.call(ctx, command{op: OpGetAccount, accountID: accountID}))
}

func (h *Handle) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	return typed[[]domain.AccountSnapshot](h.call(ctx, command{op: OpListAccounts}))
}

func (h *Handle) CommitNote(ctx context.Context, accountID string, note domain.Note) (domain.TransactionID, error) {
	return typed[domain.TransactionID](h.call(ctx, command{op: OpCommitNote, accountID: accountID, note: note}))
}

func (h *Handle) ConsumeNote(ctx context.Context, accountID string, note domain.Note) (domain.TransactionID, error) {
	return typed[domain.TransactionID](h.call(ctx, command{op: OpConsumeNote, accountID: accountID, note: note}))
}

func (h *Handle) GetStatus(ctx context.Context, accountID string) (domain.AccountStatus, error) {
	return typed[domain.AccountStatus](h.call(ctx, command{op: OpGetStatus, accountID: accountID}))
}
