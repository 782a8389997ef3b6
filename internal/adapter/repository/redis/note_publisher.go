// Package redis publishes desk note events to a Redis stream and reads them
// back for operators.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/journal"
)

const spoolKind = "note_event"

// StreamClient is the subset of *redis.Client the publisher uses.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NotePublisher appends NoteEvents to a capped Redis stream. While Redis is
// unreachable events go to an optional on-disk spool, which is replayed into
// the stream once the connection recovers.
type NotePublisher struct {
	client      StreamClient
	logger      *slog.Logger
	streamKey   string
	maxLen      int64
	spool       *journal.Journal
	isAvailable atomic.Bool
}

// NewNotePublisher creates a publisher for streamKey. maxLen <= 0 leaves the
// stream uncapped; spool may be nil.
func NewNotePublisher(client StreamClient, logger *slog.Logger, streamKey string, maxLen int64, spool *journal.Journal) *NotePublisher {
	p := &NotePublisher{
		client:    client,
		logger:    logger.With("component", "redis_note_publisher"),
		streamKey: streamKey,
		maxLen:    maxLen,
		spool:     spool,
	}
	p.isAvailable.Store(true)
	return p
}

// PublishNoteEvent implements domain.NotePublisher.
func (p *NotePublisher) PublishNoteEvent(ctx context.Context, event domain.NoteEvent) error {
	if !p.isAvailable.Load() {
		return p.spoolEvent(event, errors.New("redis is unavailable"))
	}

	err := p.xadd(ctx, event)
	if err != nil && isNetworkError(err) {
		if p.isAvailable.CompareAndSwap(true, false) {
			p.logger.Error("Redis connection lost during publish", "error", err)
		}
		return p.spoolEvent(event, err)
	}
	return err
}

func (p *NotePublisher) spoolEvent(event domain.NoteEvent, cause error) error {
	if p.spool == nil {
		return fmt.Errorf("note event dropped: %w", cause)
	}
	p.logger.Warn("Redis is unavailable, spooling note event", "desk_id", event.DeskID, "note_id", event.NoteID)
	return p.spool.Append(spoolKind, event)
}

func (p *NotePublisher) xadd(ctx context.Context, event domain.NoteEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal note event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.streamKey,
		Values: map[string]interface{}{
			"desk_id": event.DeskID,
			"note_id": strconv.FormatInt(event.NoteID, 10),
			"status":  string(event.Status),
			"payload": payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// StartHealthCheck pings Redis every interval, flipping availability and
// replaying the spool on recovery. It returns when ctx is done.
func (p *NotePublisher) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			p.checkHealth(ctx)
		}
	}
}

func (p *NotePublisher) checkHealth(ctx context.Context) {
	if err := p.client.Ping(ctx).Err(); err != nil {
		if p.isAvailable.CompareAndSwap(true, false) {
			p.logger.Error("Redis connection lost", "error", err)
		}
		return
	}
	if p.isAvailable.CompareAndSwap(false, true) {
		p.logger.Info("Redis connection recovered")
		if err := p.ReplaySpool(ctx); err != nil {
			p.logger.Error("Failed to replay note spool after Redis recovery", "error", err)
			p.isAvailable.Store(false)
		}
	}
}

// ReplaySpool publishes every spooled event in order and truncates the spool
// on success.
func (p *NotePublisher) ReplaySpool(ctx context.Context) error {
	if p.spool == nil {
		return nil
	}
	replayed := 0
	err := p.spool.Replay(ctx, func(rec journal.Record) error {
		var event domain.NoteEvent
		if err := json.Unmarshal(rec.Data, &event); err != nil {
			p.logger.Warn("Skipping malformed spooled note event", "error", err)
			return nil
		}
		replayed++
		return p.xadd(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("note spool replay failed: %w", err)
	}
	if err := p.spool.Truncate(); err != nil {
		return fmt.Errorf("failed to truncate note spool after replay: %w", err)
	}
	if replayed > 0 {
		p.logger.Info("Note spool replayed to Redis", "events", replayed)
	}
	return nil
}

func (p *NotePublisher) Available() bool {
	return p.isAvailable.Load()
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
