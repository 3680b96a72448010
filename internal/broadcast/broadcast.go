// Package broadcast publishes engine events to Kafka for downstream
// consumers such as market data feeds and client notification services.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/njorogedev/sokoni/internal/events"
)

// Publisher is a Kafka-backed event sink. Events for the same ticker
// share a message key, so per-instrument ordering survives partitioning.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Publisher writing to topic on the given brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Name implements events.Sink.
func (p *Publisher) Name() string { return "broadcast" }

// Publish implements events.Sink.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Ticker),
		Value: value,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
