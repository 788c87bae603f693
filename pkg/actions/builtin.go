package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/events"
)

const (
	NotifyRequester = "notify.requester"
	NotifyAssignee  = "notify.assignee"
	NotifyRole      = "notify.role"
	LogInfo         = "log.info"
)

// RegisterBuiltins installs the notification and logging actions.
// Notifications are handed to publisher; delivery happens out of band.
func RegisterBuiltins(registry *Registry, publisher eventbus.EventPublisher, logger *slog.Logger) error {
	notifier := &notifyAction{publisher: publisher, logger: logger}

	builtins := map[string]Handler{
		NotifyRequester: notifier.fixedRole("requester"),
		NotifyAssignee:  notifier.fixedRole("assignee"),
		NotifyRole:      notifier.namedRole,
		LogInfo:         logAction(logger),
	}

	for actionType, handler := range builtins {
		if err := registry.Register(actionType, handler); err != nil {
			return err
		}
	}

	return nil
}

type notifyAction struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func (n *notifyAction) fixedRole(role string) Handler {
	return func(ctx context.Context, invocation Invocation) error {
		return n.notify(ctx, role, invocation)
	}
}

func (n *notifyAction) namedRole(ctx context.Context, invocation Invocation) error {
	role := strings.TrimSpace(invocation.Reference.Args)
	if role == "" {
		return fmt.Errorf("%w: %s", ErrMissingActionArgs, invocation.Reference.Type)
	}

	return n.notify(ctx, role, invocation)
}

func (n *notifyAction) notify(ctx context.Context, role string, invocation Invocation) error {
	instance := invocation.Instance

	event := events.NotificationRequested{
		BaseEvent:   events.NewBaseEvent(events.NotificationRequestedEvent, instance.TenantID, instance.ID),
		Action:      invocation.Reference.Type,
		Role:        role,
		RecipientID: recipientID(instance.Context, role),
		EntityType:  instance.EntityType,
		EntityID:    instance.EntityID,
		State:       instance.State,
		Args:        invocation.Reference.Args,
		Payload:     invocation.Payload,
	}

	if n.publisher == nil {
		n.logger.InfoContext(ctx, "Notification requested without a publisher",
			"instance_id", instance.ID, "role", role, "recipient_id", event.RecipientID)

		return nil
	}

	if err := n.publisher.Publish(ctx, instance.ID, event); err != nil {
		return fmt.Errorf("failed to publish notification for %s: %w", role, err)
	}

	return nil
}

// recipientID reads "<role>_id" from the instance context.
func recipientID(values map[string]any, role string) string {
	value, ok := values[role+"_id"]
	if !ok || value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprint(value)
}

func logAction(logger *slog.Logger) Handler {
	return func(ctx context.Context, invocation Invocation) error {
		logger.InfoContext(ctx, invocation.Reference.Args,
			"instance_id", invocation.Instance.ID,
			"state", invocation.Instance.State,
			"entity_type", invocation.Instance.EntityType,
			"entity_id", invocation.Instance.EntityID,
		)

		return nil
	}
}
