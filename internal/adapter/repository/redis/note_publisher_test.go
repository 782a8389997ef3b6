package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/domain"
	"github.com/V4T54L/tradedesk/internal/pkg/journal"
)

type fakeStream struct {
	mu      sync.Mutex
	added   []*redis.XAddArgs
	addErr  error
	pingErr error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return redis.NewStringResult("", f.addErr)
	}
	f.added = append(f.added, a)
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeStream) Ping(ctx context.Context) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeStream) set(addErr, pingErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addErr, f.pingErr = addErr, pingErr
}

func (f *fakeStream) events(t *testing.T) []domain.NoteEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.NoteEvent, 0, len(f.added))
	for _, a := range f.added {
		values := a.Values.(map[string]interface{})
		var ev domain.NoteEvent
		require.NoError(t, json.Unmarshal(values["payload"].([]byte), &ev))
		out = append(out, ev)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errRefused = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

func TestNotePublisher_Publish(t *testing.T) {
	fake := &fakeStream{}
	p := NewNotePublisher(fake, testLogger(), "desk_note_events", 1000, nil)

	ev := domain.NoteEvent{DeskID: "d1", NoteID: 7, Status: domain.DeskNoteNew, Market: "BTC/USD", At: time.Now().UTC()}
	require.NoError(t, p.PublishNoteEvent(context.Background(), ev))

	require.Len(t, fake.added, 1)
	args := fake.added[0]
	assert.Equal(t, "desk_note_events", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)
	values := args.Values.(map[string]interface{})
	assert.Equal(t, "7", values["note_id"])
	assert.Equal(t, "d1", fake.events(t)[0].DeskID)
}

func TestNotePublisher_NoSpoolDropsOnOutage(t *testing.T) {
	fake := &fakeStream{addErr: errRefused}
	p := NewNotePublisher(fake, testLogger(), "s", 0, nil)

	err := p.PublishNoteEvent(context.Background(), domain.NoteEvent{DeskID: "d1"})
	require.Error(t, err)
	assert.False(t, p.Available())

	// Non-network errors do not flip availability.
	fake2 := &fakeStream{addErr: errors.New("WRONGTYPE")}
	p2 := NewNotePublisher(fake2, testLogger(), "s", 0, nil)
	require.Error(t, p2.PublishNoteEvent(context.Background(), domain.NoteEvent{}))
	assert.True(t, p2.Available())
}

func TestNotePublisher_SpoolsAndReplaysOnRecovery(t *testing.T) {
	spool, err := journal.Open(t.TempDir(), 0, 0, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { spool.Close() })

	fake := &fakeStream{addErr: errRefused}
	p := NewNotePublisher(fake, testLogger(), "s", 0, spool)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, p.PublishNoteEvent(ctx, domain.NoteEvent{DeskID: "d1", NoteID: i, Status: domain.DeskNoteNew}))
	}
	assert.False(t, p.Available())
	assert.Empty(t, fake.added)

	// Still down: health check keeps it unavailable.
	fake.set(errRefused, errRefused)
	p.checkHealth(ctx)
	assert.False(t, p.Available())

	fake.set(nil, nil)
	p.checkHealth(ctx)
	assert.True(t, p.Available())

	events := fake.events(t)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.NoteID, "spooled events replay in order")
	}

	// The spool is empty after a successful replay.
	count := 0
	require.NoError(t, spool.Replay(ctx, func(journal.Record) error { count++; return nil }))
	assert.Zero(t, count)
}

func TestNotePublisher_StartHealthCheckStops(t *testing.T) {
	p := NewNotePublisher(&fakeStream{}, testLogger(), "s", 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.StartHealthCheck(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health check did not stop")
	}
}
