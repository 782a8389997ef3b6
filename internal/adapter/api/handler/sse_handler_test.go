package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tradedesk/internal/domain"
)

func TestSSEBroker_StreamsDeskEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := NewSSEBroker(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.Handle("GET /market/{desk_id}/stream", broker)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	deskID := uuid.New()
	other := uuid.New()
	resp, err := http.Get(srv.URL + "/market/" + deskID.String() + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return broker.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, broker.PublishNoteEvent(ctx, domain.NoteEvent{DeskID: other.String(), NoteID: 1, Status: domain.DeskNoteNew}))
	require.NoError(t, broker.PublishNoteEvent(ctx, domain.NoteEvent{DeskID: deskID.String(), NoteID: 2, Status: domain.DeskNoteNew}))

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				lines <- data
				return
			}
		}
	}()

	select {
	case data := <-lines:
		var ev domain.NoteEvent
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		assert.Equal(t, deskID.String(), ev.DeskID)
		assert.Equal(t, int64(2), ev.NoteID, "events for other desks are filtered out")
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestSSEBroker_RejectsBadDeskID(t *testing.T) {
	broker := NewSSEBroker(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.Handle("GET /market/{desk_id}/stream", broker)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/market/nope/stream", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
