package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/events"
)

// HTTPPost posts the instance to the URL given as argument: http.post(https://hooks.example/gis).
// The action only publishes a webhook.requested event; the notifier performs the request.
const HTTPPost = "http.post"

// ErrWebhookURLInvalid is returned when the argument is not an absolute http(s) URL.
var ErrWebhookURLInvalid = errors.New("invalid webhook URL")

// RegisterWebhook installs the http.post action.
func RegisterWebhook(registry *Registry, publisher eventbus.EventPublisher, logger *slog.Logger) error {
	hook := &webhookAction{publisher: publisher, logger: logger.With("module", "webhook_action")}

	return registry.Register(HTTPPost, hook.execute)
}

type webhookAction struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func (a *webhookAction) execute(ctx context.Context, invocation Invocation) error {
	target, err := ParseWebhookURL(invocation.Reference.Args)
	if err != nil {
		return err
	}

	instance := invocation.Instance

	event := events.WebhookRequested{
		BaseEvent: events.NewBaseEvent(events.WebhookRequestedEvent, instance.TenantID, instance.ID),
		Action:    invocation.Reference.String(),
		URL:       target,
		Instance:  instance.Clone(),
		Payload:   invocation.Payload,
	}

	if a.publisher == nil {
		a.logger.InfoContext(ctx, "Webhook requested without a publisher", "instance_id", instance.ID, "url", target)

		return nil
	}

	if err := a.publisher.Publish(ctx, instance.ID, event); err != nil {
		return fmt.Errorf("failed to publish webhook request for %s: %w", target, err)
	}

	return nil
}

// ParseWebhookURL trims raw and checks it is an absolute http(s) URL.
func ParseWebhookURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingActionArgs, HTTPPost)
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrWebhookURLInvalid, raw)
	}

	return u.String(), nil
}
