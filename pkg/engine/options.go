package engine

import (
	"log/slog"
	"time"

	"github.com/hydromis/wfengine/pkg/compiler"
	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/metrics"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPublisher makes the engine publish a workflow.transitioned event after every committed transition.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithCache shares a compiled definition cache, e.g. with the definition service.
func WithCache(cache *compiler.Cache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}
