package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes envelopes to Kafka, one topic per event type.
// The writer is synchronous with full acks; callers that cannot afford
// to wait should bound the context.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher over the given brokers.
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events: no kafka brokers")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}, nil
}

// Publish sends one event. The message key is the event ID so retries
// land in a stable partition.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, data any) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("events: publisher not initialized")
	}

	ev, err := New(eventType, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", eventType, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: eventType,
		Key:   []byte(ev.EventID),
		Value: payload,
		Time:  ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", eventType, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
