// Package ledger owns live ledger client connections. Each (tenant, network)
// pair gets one actor goroutine that exclusively holds its client and
// executes commands from a FIFO queue; the Pool guarantees at most one actor
// per pair.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/V4T54L/tradedesk/internal/adapter/metrics"
	"github.com/V4T54L/tradedesk/internal/domain"
)

// ActorState is the lifecycle position of an actor.
type ActorState int32

const (
	StateUninitialized ActorState = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateStopped
)

func (s ActorState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("ActorState(%d)", int32(s))
}

// Op tags a queued command.
type Op string

const (
	OpSync                Op = "Sync"
	OpCreateAccount       Op = "CreateAccount"
	OpCreateFaucetAccount Op = "CreateFaucetAccount"
	OpGetAccount          Op = "GetAccount"
	OpListAccounts        Op = "ListAccounts"
	OpCommitNote          Op = "CommitNote"
	OpConsumeNote         Op = "ConsumeNote"
	OpGetStatus           Op = "GetStatus"
	OpShutdown            Op = "Shutdown"
)

type command struct {
	op        Op
	accountID string
	faucet    domain.FaucetSpec
	note      domain.Note
	// reply has capacity 1 so the actor never blocks on a caller that has
	// stopped waiting.
	reply chan reply
}

type reply struct {
	value any
	err   error
}

// ActorConfig configures a single actor.
type ActorConfig struct {
	Namespace domain.Namespace
	Network   domain.Network
	// Dir is the ledger state directory; it is created on first spawn.
	Dir       string
	Connector domain.LedgerConnector
	QueueSize int
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

type actor struct {
	cfg     ActorConfig
	queue   chan command
	done    chan struct{}
	state   atomic.Int32
	closing atomic.Bool
	logger  *slog.Logger
}

// Spawn starts an actor on its own goroutine and blocks until its client is
// connected or has failed to connect. The actor runs under a context derived
// from ctx without its cancellation, so a caller giving up does not tear the
// actor down.
func Spawn(ctx context.Context, cfg ActorConfig) (*Handle, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &actor{
		cfg:   cfg,
		queue: make(chan command, cfg.QueueSize),
		done:  make(chan struct{}),
		logger: cfg.Logger.With(
			"component", "ledger_actor",
			"tenant", cfg.Namespace.Identity,
			"network", cfg.Network,
		),
	}

	ready := make(chan error, 1)
	actorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go a.run(actorCtx, cancel, ready)

	if err := <-ready; err != nil {
		return nil, err
	}
	return &Handle{a: a}, nil
}

func (a *actor) setState(s ActorState) {
	a.state.Store(int32(s))
}

func (a *actor) run(ctx context.Context, cancel context.CancelFunc, ready chan<- error) {
	defer cancel()

	a.setState(StateInitializing)
	client, err := a.connect(ctx)
	if err != nil {
		a.setState(StateStopped)
		close(a.done)
		ready <- err
		return
	}
	a.setState(StateReady)
	a.logger.Debug("ledger actor ready", "dir", a.cfg.Dir)
	ready <- nil

	for cmd := range a.queue {
		if cmd.op == OpShutdown {
			a.setState(StateShuttingDown)
			cmd.reply <- reply{}
			break
		}
		start := time.Now()
		value, err := a.execute(ctx, client, cmd)
		a.cfg.Metrics.ObserveCommand(string(cmd.op), err, time.Since(start))
		cmd.reply <- reply{value: value, err: err}
	}

	if err := client.Close(); err != nil {
		a.logger.Warn("failed to close ledger client", "error", err)
	}
	a.setState(StateStopped)
	close(a.done)
	a.rejectPending()
	a.logger.Debug("ledger actor stopped")
}

func (a *actor) connect(ctx context.Context) (domain.LedgerClient, error) {
	if a.cfg.Connector == nil {
		return nil, errors.New("no ledger connector configured")
	}
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	client, err := a.cfg.Connector.Connect(ctx, a.cfg.Dir, a.cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to connect ledger client: %w", err)
	}
	return client, nil
}

// rejectPending answers commands that were buffered behind Shutdown.
func (a *actor) rejectPending() {
	for {
		select {
		case cmd := <-a.queue:
			cmd.reply <- reply{err: domain.ErrActorStopped}
		default:
			return
		}
	}
}

func (a *actor) execute(ctx context.Context, client domain.LedgerClient, cmd command) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("ledger client panicked", "op", cmd.op, "panic", r)
			value, err = nil, &domain.LedgerError{Op: string(cmd.op), Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	switch cmd.op {
	case OpSync:
		value, err = client.Sync(ctx)
	case OpCreateAccount:
		value, err = client.CreateAccount(ctx)
	case OpCreateFaucetAccount:
		value, err = client.CreateFaucetAccount(ctx, cmd.faucet)
	case OpGetAccount:
		value, err = client.GetAccount(ctx, cmd.accountID)
	case OpListAccounts:
		value, err = client.ListAccounts(ctx)
	case OpCommitNote:
		value, err = client.CommitNote(ctx, cmd.accountID, cmd.note)
	case OpConsumeNote:
		value, err = client.ConsumeNote(ctx, cmd.accountID, cmd.note)
	case OpGetStatus:
		value, err = client.GetStatus(ctx, cmd.accountID)
	default:
		err = fmt.Errorf("unknown command %q", cmd.op)
	}
	if err != nil {
		return nil, asLedgerError(cmd.op, err)
	}
	return value, nil
}

func asLedgerError(op Op, err error) error {
	var le *domain.LedgerError
	if errors.As(err, &le) {
		return err
	}
	return &domain.LedgerError{Op: string(op), Message: err.Error()}
}
