package queue

import (
	"context"
)

// EventPublisher announces configuration changes.
// This interface enables better testability by allowing mock implementations
type EventPublisher interface {
	Publish(ctx context.Context, event *ReconfigureEvent) error
	Close() error
}

// EventSubscriber delivers configuration changes to a running server.
type EventSubscriber interface {
	// Subscribe returns a channel of events. Every subscriber receives every
	// event published after it subscribed. Both channels are closed when ctx
	// is cancelled or the connection is lost.
	Subscribe(ctx context.Context) (<-chan *ReconfigureEvent, <-chan error, error)

	// HealthCheck verifies the connection is healthy
	HealthCheck(ctx context.Context) error

	Close() error
}
