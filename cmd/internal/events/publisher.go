package events

import "context"

// Publisher is the outbound event boundary. The Kafka implementation is
// the production one; Noop serves development and tests.
type Publisher interface {
	// Publish sends one event to the topic named by eventType.
	Publish(ctx context.Context, eventType string, data any) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish implements Publisher and always succeeds.
func (NoopPublisher) Publish(ctx context.Context, eventType string, data any) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
