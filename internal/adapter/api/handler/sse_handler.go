package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/V4T54L/tradedesk/internal/domain"
)

var errBrokerBusy = errors.New("sse broker queue is full")

const heartbeatInterval = 15 * time.Second

type sseClient struct {
	deskID string
	ch     chan []byte
}

// SSEBroker streams desk note events to connected clients. It implements
// domain.NotePublisher so the orchestrator can publish to it directly.
type SSEBroker struct {
	logger  *slog.Logger
	clients map[*sseClient]struct{}
	mu      sync.RWMutex
	events  chan domain.NoteEvent
}

// NewSSEBroker creates a new SSEBroker and starts its processing loop.
func NewSSEBroker(ctx context.Context, logger *slog.Logger) *SSEBroker {
	broker := &SSEBroker{
		logger:  logger.With("component", "sse_broker"),
		clients: make(map[*sseClient]struct{}),
		events:  make(chan domain.NoteEvent, 1000),
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP handles GET /market/{desk_id}/stream.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deskID, err := pathUUID(r, "desk_id")
	if err != nil {
		respondWithError(w, b.logger, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := &sseClient{deskID: deskID.String(), ch: make(chan []byte, 64)}
	b.addClient(client)
	defer b.removeClient(client)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.ch:
			if !ok {
				return
			}
			if msg == nil {
				fmt.Fprint(w, ": ping\n\n")
			} else {
				fmt.Fprintf(w, "event: note\ndata: %s\n\n", msg)
			}
			flusher.Flush()
		}
	}
}

// PublishNoteEvent queues event for broadcast without blocking the caller.
func (b *SSEBroker) PublishNoteEvent(ctx context.Context, event domain.NoteEvent) error {
	select {
	case b.events <- event:
		return nil
	default:
		return errBrokerBusy
	}
}

// Clients returns the number of connected clients.
func (b *SSEBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) addClient(c *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = struct{}{}
	b.logger.Info("SSE client connected", "desk_id", c.deskID)
}

func (b *SSEBroker) removeClient(c *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.ch)
		b.logger.Info("SSE client disconnected", "desk_id", c.deskID)
	}
}

// broadcast sends msg to every client watching deskID; an empty deskID
// reaches everyone. Slow clients miss messages rather than block.
func (b *SSEBroker) broadcast(deskID string, msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		if deskID != "" && c.deskID != deskID {
			continue
		}
		select {
		case c.ch <- msg:
		default:
		}
	}
}

func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			data, err := json.Marshal(ev)
			if err != nil {
				b.logger.Error("failed to marshal note event", "error", err)
				continue
			}
			b.broadcast(ev.DeskID, data)
		case <-ticker.C:
			b.broadcast("", nil)
		}
	}
}
