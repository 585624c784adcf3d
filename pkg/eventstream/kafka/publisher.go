// Package kafka publishes record events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chronicle/pkg/eventstream"
)

// Config holds the Kafka publisher settings.
type Config struct {
	// Brokers lists the bootstrap broker addresses.
	Brokers []string

	// Topic is the topic record events are written to.
	Topic string
}

// Publisher writes record events to Kafka, keyed by trace id so all events
// of one trace land on the same partition in order.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(c.Brokers...),
		Topic:    c.Topic,
		Balancer: &kafkago.Hash{},
	}

	logger.Info("kafka publisher initialized",
		"brokers", c.Brokers,
		"topic", c.Topic,
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishRecord marshals the event as JSON and writes it keyed by trace id.
func (p *Publisher) PublishRecord(ctx context.Context, event *eventstream.RecordAppendedEvent) error {
	if event == nil {
		return eventstream.ErrNilRecordEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.EventID, err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Record.TraceID),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published record event",
		"event_id", event.EventID,
		"trace_id", event.Record.TraceID,
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
