package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// StreamReader is the subset of *redis.Client NoteStream uses.
type StreamReader interface {
	XRevRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd
	XLen(ctx context.Context, stream string) *redis.IntCmd
	XTrimMaxLen(ctx context.Context, key string, maxLen int64) *redis.IntCmd
}

// StreamEntry is a NoteEvent together with its stream message id.
type StreamEntry struct {
	ID    string           `json:"id"`
	Event domain.NoteEvent `json:"event"`
}

// NoteStream gives operators read and trim access to the note event stream.
type NoteStream struct {
	client    StreamReader
	logger    *slog.Logger
	streamKey string
}

func NewNoteStream(client StreamReader, logger *slog.Logger, streamKey string) *NoteStream {
	return &NoteStream{client: client, logger: logger.With("component", "redis_note_stream"), streamKey: streamKey}
}

// Recent returns up to count entries, newest first. Entries that do not
// decode are skipped.
func (s *NoteStream) Recent(ctx context.Context, count int64) ([]StreamEntry, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.streamKey, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read note stream %s: %w", s.streamKey, err)
	}

	out := make([]StreamEntry, 0, len(msgs))
	for _, msg := range msgs {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			s.logger.Warn("Invalid message format in stream, skipping", "message_id", msg.ID)
			continue
		}
		var event domain.NoteEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.logger.Warn("Failed to unmarshal note event from stream, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		out = append(out, StreamEntry{ID: msg.ID, Event: event})
	}
	return out, nil
}

func (s *NoteStream) Len(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, s.streamKey).Result()
}

// Trim caps the stream at maxLen entries and returns how many were removed.
func (s *NoteStream) Trim(ctx context.Context, maxLen int64) (int64, error) {
	if maxLen < 0 {
		return 0, domain.Invalidf("max length must not be negative")
	}
	return s.client.XTrimMaxLen(ctx, s.streamKey, maxLen).Result()
}
