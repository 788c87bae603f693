// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hydromis/wfengine/pkg/actions"
	"github.com/hydromis/wfengine/pkg/engine"
	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/metrics"
	"github.com/hydromis/wfengine/pkg/otelhelper"
	"github.com/hydromis/wfengine/pkg/persistence"
	"go.opentelemetry.io/otel/trace"
)

// NewRegistry creates the action registry with the built-in handlers registered.
func NewRegistry(logger *slog.Logger, publisher eventbus.EventPublisher) (*actions.Registry, error) {
	registry := actions.NewRegistry(logger)

	if err := actions.RegisterBuiltins(registry, publisher, logger); err != nil {
		return nil, fmt.Errorf("failed to register built-in actions: %w", err)
	}

	if err := actions.RegisterWebhook(registry, publisher, logger); err != nil {
		return nil, fmt.Errorf("failed to register webhook action: %w", err)
	}

	logger.Info("Registered actions", "types", registry.Types())

	return registry, nil
}

// NewEngine wires an engine over p with the built-in actions, publishing on bus.
func NewEngine(
	logger *slog.Logger,
	p persistence.Persistence,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
	m *metrics.Metrics,
) (*engine.Engine, error) {
	registry, err := NewRegistry(logger, bus)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPublisher(bus),
		engine.WithMetrics(m),
	}

	if tracer != nil {
		opts = append(opts, engine.WithTracer(tracer))
	}

	return engine.New(
		p.DefinitionRepository(),
		p.InstanceRepository(),
		actions.NewDispatcher(registry, logger),
		opts...,
	), nil
}

// NewTracer starts the OTLP tracer when enabled. The returned shutdown func is never nil.
func NewTracer(ctx context.Context, logger *slog.Logger, enabled bool, serviceName string) (trace.Tracer, otelhelper.ShutdownFunc) {
	noop := func(context.Context) error { return nil }

	if !enabled {
		return nil, noop
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)

		return nil, noop
	}

	return tracer, shutdown
}
