// Package kafka publishes desk note events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/V4T54L/tradedesk/internal/domain"
)

// MessageWriter is the subset of *kafkago.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter builds a writer that keys messages by desk id, so every event of
// one desk lands on the same partition in publish order.
func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NoteProducer implements domain.NotePublisher over a Kafka topic.
type NoteProducer struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewNoteProducer(writer MessageWriter, logger *slog.Logger) *NoteProducer {
	return &NoteProducer{writer: writer, logger: logger.With("component", "kafka_note_producer")}
}

func (p *NoteProducer) PublishNoteEvent(ctx context.Context, event domain.NoteEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal note event: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(event.DeskID),
		Value: payload,
		Time:  event.At,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(event.Status)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish note event", "desk_id", event.DeskID, "note_id", event.NoteID, "error", err)
		return fmt.Errorf("failed to publish note event: %w", err)
	}
	return nil
}

func (p *NoteProducer) Close() error {
	return p.writer.Close()
}
