// Package eventbus carries workflow events between the engine and the processes that act on them.
//
// The engine publishes workflow.transitioned after every committed transition and the services publish
// workflow.instance.created. Actions publish notification.requested and webhook.requested; the notifier
// consumes those outside of any trigger. Every event goes to one topic, keyed by instance id, with its
// type and tenant in the message metadata.
package eventbus

import (
	"context"

	"github.com/hydromis/wfengine/pkg/events"
)

// Event is any payload with a registered events.EventType.
type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish sends event. key orders events of the same instance on partitioned transports.
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	// Handle routes events of eventType to handler. One handler per type; the last one wins.
	Handle(eventType events.EventType, handler EventHandler) error
	// Subscribe starts consuming until ctx is done. Handlers must be installed first.
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, e.g. *events.WebhookRequested.
// A returned error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
