// Package engine executes triggers against persisted workflow instances.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hydromis/wfengine/pkg/compiler"
	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/events"
	"github.com/hydromis/wfengine/pkg/guard"
	"github.com/hydromis/wfengine/pkg/metrics"
	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/otelhelper"
	"github.com/hydromis/wfengine/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ActionExecutor runs a single action reference on behalf of an instance.
type ActionExecutor interface {
	Execute(ctx context.Context, reference string, instance *models.WorkflowInstance, payload map[string]any) error
}

type Engine struct {
	definitions persistence.DefinitionRepository
	instances   persistence.InstanceRepository
	actions     ActionExecutor
	guards      *guard.Evaluator
	cache       *compiler.Cache
	locks       *stripedLock
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func New(
	definitions persistence.DefinitionRepository,
	instances persistence.InstanceRepository,
	actions ActionExecutor,
	opts ...Option,
) *Engine {
	e := &Engine{
		definitions: definitions,
		instances:   instances,
		actions:     actions,
		guards:      guard.NewEvaluator(),
		cache:       compiler.NewCache(),
		locks:       &stripedLock{},
		tracer:      otel.Tracer("wfengine/engine"),
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Trigger applies triggerName to instance.
//
// It returns false with a nil error when the instance's state is unknown to its definition
// or no transition matches; nothing is written in that case. On success the transition record
// and new state are committed atomically and instance is updated in place.
//
// Triggers for one instance are serialized and evaluated against the latest stored version,
// so instance only needs to identify the tenant and instance id. A concurrent writer in
// another process surfaces as persistence.ErrVersionConflict.
//
// A failing exit action aborts before any write. A failing enter action is reported as an
// *ActionError together with true, since the transition has already been committed.
func (e *Engine) Trigger(
	ctx context.Context,
	instance *models.WorkflowInstance,
	triggerName string,
	payload map[string]any,
	actorID *string,
) (bool, error) {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.trigger",
		attribute.String(otelhelper.TenantIDKey, instance.TenantID),
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
		attribute.String(otelhelper.TriggerKey, triggerName),
	)
	defer span.End()

	unlock := e.locks.lock(instance.TenantID + "/" + instance.ID)
	defer unlock()

	ok, err := e.trigger(ctx, span, instance, triggerName, payload, actorID)

	result := metrics.ResultTransitioned

	switch {
	case persistence.IsVersionConflict(err):
		result = metrics.ResultConflict
	case err != nil && !ok:
		result = metrics.ResultError
	case !ok:
		result = metrics.ResultNoMatch
	}

	attrs := []attribute.KeyValue{attribute.String(otelhelper.ResultKey, result)}

	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		attrs = append(attrs,
			attribute.String(otelhelper.ActionTypeKey, actionErr.Reference),
			attribute.String(otelhelper.ActionPhaseKey, string(actionErr.Phase)),
		)
	}

	otelhelper.SetError(span, err, attrs...)

	e.metrics.ObserveTrigger(result, time.Since(started))

	return ok, err
}

func (e *Engine) trigger(
	ctx context.Context,
	span trace.Span,
	instance *models.WorkflowInstance,
	triggerName string,
	payload map[string]any,
	actorID *string,
) (bool, error) {
	logger := e.logger.With("instance_id", instance.ID, "trigger", triggerName)

	current, err := e.instances.GetByID(ctx, instance.TenantID, instance.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load instance: %w", err)
	}

	*instance = *current.Clone()

	compiled, err := e.compiled(ctx, current)
	if err != nil {
		return false, err
	}

	state, ok := compiled.State(current.State)
	if !ok {
		logger.DebugContext(ctx, "Instance state is not declared by its definition", "state", current.State)

		return false, nil
	}

	transition, ok, err := e.match(state, triggerName, current, payload)
	if err != nil {
		return false, err
	}

	if !ok {
		logger.DebugContext(ctx, "No matching transition", "state", current.State)

		return false, nil
	}

	span.SetAttributes(
		attribute.String(otelhelper.DefinitionIDKey, current.DefinitionID),
		attribute.String(otelhelper.FromStateKey, current.State),
		attribute.String(otelhelper.ToStateKey, transition.To),
	)

	if err := e.runActions(ctx, PhaseExit, state.OnExit, current, payload); err != nil {
		return false, err
	}

	now := e.now()

	next := current.Clone()
	next.State = transition.To
	next.Version = current.Version + 1
	next.UpdatedAt = now

	transitionID, err := uuid.NewV7()
	if err != nil {
		return false, fmt.Errorf("failed to generate transition ID: %w", err)
	}

	record := &models.WorkflowTransition{
		ID:         transitionID.String(),
		InstanceID: current.ID,
		FromState:  current.State,
		ToState:    transition.To,
		Trigger:    triggerName,
		ActorID:    actorID,
		Payload:    payload,
		CreatedAt:  now,
	}

	if err := e.instances.ApplyTransition(ctx, next, current.Version, record); err != nil {
		return false, fmt.Errorf("failed to apply transition: %w", err)
	}

	*instance = *next

	logger.InfoContext(ctx, "Instance transitioned", "from", record.FromState, "to", record.ToState, "version", next.Version)

	target, targetKnown := compiled.State(transition.To)

	e.publish(ctx, next, record, targetKnown && target.Terminal())

	if !targetKnown {
		logger.WarnContext(ctx, "Transition target is not declared; skipping enter actions", "state", transition.To)

		return true, nil
	}

	if err := e.runActions(ctx, PhaseEnter, target.OnEnter, next.Clone(), payload); err != nil {
		return true, err
	}

	return true, nil
}

// match returns the first transition for triggerName whose guard is empty or truthy.
func (e *Engine) match(
	state *compiler.State,
	triggerName string,
	instance *models.WorkflowInstance,
	payload map[string]any,
) (compiler.Transition, bool, error) {
	env := guard.Env{
		Context:    instance.Context,
		Payload:    payload,
		State:      instance.State,
		EntityType: instance.EntityType,
		EntityID:   instance.EntityID,
	}

	for _, transition := range state.Transitions {
		if transition.Trigger != triggerName {
			continue
		}

		ok, err := e.guards.Evaluate(transition.Guard, env)
		if err != nil {
			return compiler.Transition{}, false, fmt.Errorf("%w: transition %s -> %s: %w", ErrGuardFailed, state.Name, transition.To, err)
		}

		if ok {
			return transition, true, nil
		}
	}

	return compiler.Transition{}, false, nil
}

func (e *Engine) runActions(
	ctx context.Context,
	phase Phase,
	references []string,
	instance *models.WorkflowInstance,
	payload map[string]any,
) error {
	for _, reference := range references {
		err := e.actions.Execute(ctx, reference, instance, payload)
		e.metrics.ObserveAction(string(phase), err)

		if err != nil {
			e.logger.ErrorContext(ctx, "Action failed",
				"instance_id", instance.ID, "phase", phase, "action", reference, "error", err)

			return &ActionError{Phase: phase, Reference: reference, Err: err}
		}
	}

	return nil
}

// AvailableTriggers lists, in declaration order and without duplicates, the trigger names
// leaving the instance's current state. Guards are not evaluated.
func (e *Engine) AvailableTriggers(ctx context.Context, instance *models.WorkflowInstance) ([]string, error) {
	compiled, err := e.compiled(ctx, instance)
	if err != nil {
		return nil, err
	}

	triggers := make([]string, 0)

	state, ok := compiled.State(instance.State)
	if !ok {
		return triggers, nil
	}

	seen := make(map[string]bool, len(state.Transitions))
	for _, transition := range state.Transitions {
		if seen[transition.Trigger] {
			continue
		}

		seen[transition.Trigger] = true
		triggers = append(triggers, transition.Trigger)
	}

	return triggers, nil
}

func (e *Engine) compiled(ctx context.Context, instance *models.WorkflowInstance) (*compiler.CompiledDefinition, error) {
	definition, err := e.definitions.GetByID(ctx, instance.TenantID, instance.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	return e.cache.Get(definition), nil
}

func (e *Engine) publish(ctx context.Context, instance *models.WorkflowInstance, record *models.WorkflowTransition, terminal bool) {
	if e.publisher == nil {
		return
	}

	event := events.WorkflowTransitioned{
		BaseEvent:    events.NewBaseEvent(events.WorkflowTransitionedEvent, instance.TenantID, instance.ID),
		DefinitionID: instance.DefinitionID,
		EntityType:   instance.EntityType,
		EntityID:     instance.EntityID,
		TransitionID: record.ID,
		FromState:    record.FromState,
		ToState:      record.ToState,
		Trigger:      record.Trigger,
		ActorID:      record.ActorID,
		Payload:      record.Payload,
		Version:      instance.Version,
		Terminal:     terminal,
	}

	if err := e.publisher.Publish(ctx, instance.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish transition event", "instance_id", instance.ID, "error", err)
	}
}

// ActionExecutorFunc adapts a function to ActionExecutor.
type ActionExecutorFunc func(ctx context.Context, reference string, instance *models.WorkflowInstance, payload map[string]any) error

func (f ActionExecutorFunc) Execute(ctx context.Context, reference string, instance *models.WorkflowInstance, payload map[string]any) error {
	return f(ctx, reference, instance, payload)
}
