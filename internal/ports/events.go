package ports

import "context"

// EventPublisher is the outbound lifecycle-event publish port.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
