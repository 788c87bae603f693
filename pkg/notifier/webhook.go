package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/events"
	"github.com/hydromis/wfengine/pkg/models"
)

const defaultWebhookTimeout = 30 * time.Second

// ErrWebhookStatus is returned when the endpoint answers with a non-2xx status.
var ErrWebhookStatus = errors.New("webhook returned an error status")

// WebhookConfig configures delivery of webhook.requested events.
type WebhookConfig struct {
	Client   *http.Client
	Attempts int
	Delay    time.Duration
}

// WebhookBody is the JSON document posted to the endpoint.
type WebhookBody struct {
	Action   string                   `json:"action"`
	Instance *models.WorkflowInstance `json:"instance"`
	Payload  map[string]any           `json:"payload,omitempty"`
	SentAt   time.Time                `json:"sent_at"`
}

// WebhookSender consumes webhook.requested events and POSTs them, retrying on 5xx and transport errors.
type WebhookSender struct {
	config WebhookConfig
	logger *slog.Logger
}

func NewWebhookSender(config WebhookConfig, logger *slog.Logger) *WebhookSender {
	if config.Client == nil {
		config.Client = &http.Client{Timeout: defaultWebhookTimeout}
	}

	if config.Attempts < 1 {
		config.Attempts = 1
	}

	return &WebhookSender{config: config, logger: logger.With("module", "webhook_sender")}
}

// Register installs the sender's handler on subscriber. Subscribe must be called afterwards.
func (s *WebhookSender) Register(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.WebhookRequestedEvent, s.handle)
}

// handle acks failed deliveries after logging them. Retries happen only inside Deliver.
func (s *WebhookSender) handle(ctx context.Context, event any) error {
	request, ok := event.(*events.WebhookRequested)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	logger := s.logger.With("tenant_id", request.TenantID, "instance_id", request.InstanceID, "url", request.URL)

	if err := s.Deliver(ctx, request); err != nil {
		logger.ErrorContext(ctx, "Webhook delivery failed", "error", err)

		return nil
	}

	logger.DebugContext(ctx, "Webhook delivered")

	return nil
}

// Deliver posts request, making up to Attempts tries spaced by Delay.
func (s *WebhookSender) Deliver(ctx context.Context, request *events.WebhookRequested) error {
	body, err := json.Marshal(WebhookBody{
		Action:   request.Action,
		Instance: request.Instance,
		Payload:  request.Payload,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= s.config.Attempts; attempt++ {
		if attempt > 1 {
			s.logger.InfoContext(ctx, "Retrying webhook", "attempt", attempt, "url", request.URL)

			select {
			case <-time.After(s.config.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retry, err := s.post(ctx, request.URL, body)
		if err == nil {
			return nil
		}

		lastErr = err

		if !retry {
			break
		}
	}

	return fmt.Errorf("webhook %s failed: %w", request.URL, lastErr)
}

// post sends one request. It reports whether a failure is worth retrying.
func (s *WebhookSender) post(ctx context.Context, target string, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return false, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.config.Client.Do(req)
	if err != nil {
		return true, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)

		if err := resp.Body.Close(); err != nil {
			s.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	return resp.StatusCode >= 500, fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
}
