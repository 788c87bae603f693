package actions

import (
	"context"
	"log/slog"

	"github.com/hydromis/wfengine/pkg/models"
)

type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Execute parses reference and runs the matching handler.
func (d *Dispatcher) Execute(ctx context.Context, reference string, instance *models.WorkflowInstance, payload map[string]any) error {
	ref := Parse(reference)

	return d.ExecuteAction(ctx, ref.Type, ref.Args, instance, payload)
}

// ExecuteAction runs the handler registered for actionType. Handler errors are returned unwrapped.
func (d *Dispatcher) ExecuteAction(
	ctx context.Context,
	actionType, args string,
	instance *models.WorkflowInstance,
	payload map[string]any,
) error {
	handler := d.registry.Resolve(actionType)

	return handler(ctx, Invocation{
		Reference: Reference{Type: actionType, Args: args},
		Instance:  instance,
		Payload:   payload,
	})
}
