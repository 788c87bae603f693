package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hydromis/wfengine/pkg/engine"
	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/events"
	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
)

// CreateInstanceRequest starts a workflow for an external business entity.
type CreateInstanceRequest struct {
	DefinitionKey string         `validate:"required"`
	EntityType    string         `validate:"required"`
	EntityID      string         `validate:"required"`
	Context       map[string]any
}

// TriggerRequest asks the engine to move an instance. A nil ActorID marks a system trigger.
type TriggerRequest struct {
	Trigger string `validate:"required"`
	Payload map[string]any
	ActorID *string
}

type Instance struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewInstance creates a new instance service. publisher may be nil.
func NewInstance(
	persistence persistence.Persistence,
	engine *engine.Engine,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Instance {
	return &Instance{
		persistence: persistence,
		engine:      engine,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// Create resolves the tenant's active definition by key and starts an instance in its first state.
func (s *Instance) Create(ctx context.Context, tenantID string, req CreateInstanceRequest) (*models.WorkflowInstance, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("Create", "INVALID_INSTANCE", err.Error(), ErrInvalidRequest)
	}

	definition, err := s.persistence.DefinitionRepository().GetByKey(ctx, tenantID, req.DefinitionKey)
	if err != nil {
		return nil, err
	}

	if !definition.Active {
		return nil, &ServiceError{
			Op:      "Create",
			Code:    "DEFINITION_INACTIVE",
			Message: fmt.Sprintf("definition %q is not active", definition.Key),
			Err:     ErrDefinitionInactive,
		}
	}

	initial, ok := definition.InitialState()
	if !ok {
		return nil, NewValidationError("Create", "NO_INITIAL_STATE",
			fmt.Sprintf("definition %q declares no states", definition.Key), ErrInvalidSpec)
	}

	values := req.Context
	if values == nil {
		values = map[string]any{}
	}

	instance := &models.WorkflowInstance{
		TenantID:     tenantID,
		DefinitionID: definition.ID,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		State:        initial,
		Context:      values,
		Version:      1,
	}

	if err := s.persistence.InstanceRepository().Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	s.logger.InfoContext(ctx, "Instance created",
		"instance_id", instance.ID, "definition_key", definition.Key, "state", instance.State)

	s.publishCreated(ctx, instance, definition.Key)

	return instance, nil
}

// Trigger fires req.Trigger on the instance and returns its persisted representation.
//
// A trigger that matches no transition yields ErrInvalidTrigger. When an enter action fails the
// transition is already committed, so the updated instance is returned along with the error.
func (s *Instance) Trigger(
	ctx context.Context,
	tenantID, instanceID string,
	req TriggerRequest,
) (*models.WorkflowInstance, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("Trigger", "INVALID_TRIGGER_REQUEST", err.Error(), ErrInvalidRequest)
	}

	instance := &models.WorkflowInstance{ID: instanceID, TenantID: tenantID}

	ok, err := s.engine.Trigger(ctx, instance, req.Trigger, req.Payload, req.ActorID)
	if err != nil {
		if ok {
			return instance, err
		}

		return nil, err
	}

	if !ok {
		return nil, &ServiceError{
			Op:      "Trigger",
			Code:    "INVALID_TRIGGER",
			Message: fmt.Sprintf("trigger %q is not available in state %q", req.Trigger, instance.State),
			Err:     ErrInvalidTrigger,
		}
	}

	return instance, nil
}

// FetchByID retrieves an instance by its ID.
func (s *Instance) FetchByID(ctx context.Context, tenantID, instanceID string) (*models.WorkflowInstance, error) {
	return s.persistence.InstanceRepository().GetByID(ctx, tenantID, instanceID)
}

// History returns the instance's transition log, oldest first.
func (s *Instance) History(ctx context.Context, tenantID, instanceID string) ([]*models.WorkflowTransition, error) {
	return s.persistence.InstanceRepository().Transitions(ctx, tenantID, instanceID)
}

// AvailableTriggers lists the triggers declared on the instance's current state.
func (s *Instance) AvailableTriggers(ctx context.Context, instance *models.WorkflowInstance) ([]string, error) {
	return s.engine.AvailableTriggers(ctx, instance)
}

func (s *Instance) publishCreated(ctx context.Context, instance *models.WorkflowInstance, key string) {
	if s.publisher == nil {
		return
	}

	event := events.WorkflowInstanceCreated{
		BaseEvent:     events.NewBaseEvent(events.WorkflowInstanceCreatedEvent, instance.TenantID, instance.ID),
		DefinitionID:  instance.DefinitionID,
		DefinitionKey: key,
		EntityType:    instance.EntityType,
		EntityID:      instance.EntityID,
		State:         instance.State,
	}

	if err := s.publisher.Publish(ctx, instance.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish instance created event", "instance_id", instance.ID, "error", err)
	}
}
