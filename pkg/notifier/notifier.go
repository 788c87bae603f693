// Package notifier delivers the notification and webhook requests published by workflow actions.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/events"
)

// Sink hands a notification to whatever delivers it.
type Sink interface {
	Deliver(ctx context.Context, notification *events.NotificationRequested) error
}

// Notifier consumes notification.requested events and passes them to a sink.
type Notifier struct {
	sink   Sink
	logger *slog.Logger
}

func New(sink Sink, logger *slog.Logger) *Notifier {
	return &Notifier{sink: sink, logger: logger.With("module", "notifier")}
}

// Register installs the notifier's handler on subscriber. Subscribe must be called afterwards.
func (n *Notifier) Register(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.NotificationRequestedEvent, n.handle)
}

func (n *Notifier) handle(ctx context.Context, event any) error {
	notification, ok := event.(*events.NotificationRequested)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	logger := n.logger.With(
		"tenant_id", notification.TenantID,
		"instance_id", notification.InstanceID,
		"action", notification.Action,
	)

	if err := n.sink.Deliver(ctx, notification); err != nil {
		logger.ErrorContext(ctx, "Failed to deliver notification", "error", err)

		return err
	}

	logger.DebugContext(ctx, "Notification delivered", "role", notification.Role)

	return nil
}

// LogSink writes notifications to the log. It is the default when no delivery backend is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, notification *events.NotificationRequested) error {
	s.logger.InfoContext(ctx, "Notification",
		"tenant_id", notification.TenantID,
		"instance_id", notification.InstanceID,
		"role", notification.Role,
		"recipient_id", notification.RecipientID,
		"entity_type", notification.EntityType,
		"entity_id", notification.EntityID,
		"state", notification.State,
	)

	return nil
}
