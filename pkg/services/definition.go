package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hydromis/wfengine/pkg/compiler"
	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
)

type Definition struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewDefinition creates a new definition service.
func NewDefinition(persistence persistence.Persistence) *Definition {
	return &Definition{
		persistence: persistence,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (d *Definition) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// DefinitionUpdate is a partial update. Nil fields are left unchanged.
type DefinitionUpdate struct {
	Name   *string
	Spec   *models.Spec
	Active *bool
}

// Create validates spec and stores it as version 1 of a new active definition.
func (d *Definition) Create(ctx context.Context, tenantID string, spec *models.Spec) (*models.WorkflowDefinition, error) {
	if err := checkSpec("Create", spec); err != nil {
		return nil, err
	}

	definition := &models.WorkflowDefinition{
		TenantID: strings.TrimSpace(tenantID),
		Key:      spec.Key,
		Name:     spec.Name,
		Version:  1,
		Spec:     spec.Clone(),
		Active:   true,
	}

	if err := d.validateDefinition("Create", definition); err != nil {
		return nil, err
	}

	err := d.persistence.DefinitionRepository().Create(ctx, definition)
	if err != nil {
		if persistence.IsDefinitionAlreadyExists(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to create definition: %w", err)
	}

	return definition, nil
}

// Update applies update to the definition. A new spec bumps the version by exactly one.
func (d *Definition) Update(
	ctx context.Context,
	tenantID, definitionID string,
	update DefinitionUpdate,
) (*models.WorkflowDefinition, error) {
	existing, err := d.FetchByID(ctx, tenantID, definitionID)
	if err != nil {
		return nil, err
	}

	expected := persistence.RevisionOf(existing)
	definition := *existing

	if update.Spec != nil {
		if err := checkSpec("Update", update.Spec); err != nil {
			return nil, err
		}

		if update.Spec.Key != existing.Key {
			return nil, NewValidationError(
				"Update",
				"KEY_IMMUTABLE",
				fmt.Sprintf("workflow key is %q, got %q", existing.Key, update.Spec.Key),
				ErrKeyImmutable,
			)
		}

		definition.Spec = update.Spec.Clone()
		definition.Version = existing.Version + 1

		if update.Spec.Name != "" {
			definition.Name = update.Spec.Name
		}
	}

	if update.Name != nil {
		definition.Name = *update.Name
	}

	if update.Active != nil {
		definition.Active = *update.Active
	}

	definition.UpdatedAt = time.Now().UTC()

	if err := d.validateDefinition("Update", &definition); err != nil {
		return nil, err
	}

	err = d.persistence.DefinitionRepository().Update(ctx, &definition, expected)
	if err != nil {
		if persistence.IsNotFound(err) || persistence.IsVersionConflict(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to update definition: %w", err)
	}

	return &definition, nil
}

// Activate allows the definition to spawn new instances.
func (d *Definition) Activate(ctx context.Context, tenantID, definitionID string) (*models.WorkflowDefinition, error) {
	active := true

	return d.Update(ctx, tenantID, definitionID, DefinitionUpdate{Active: &active})
}

// Deactivate stops the definition from spawning new instances. Existing instances keep running.
func (d *Definition) Deactivate(ctx context.Context, tenantID, definitionID string) (*models.WorkflowDefinition, error) {
	active := false

	return d.Update(ctx, tenantID, definitionID, DefinitionUpdate{Active: &active})
}

// FetchByID retrieves a definition by its ID.
func (d *Definition) FetchByID(ctx context.Context, tenantID, definitionID string) (*models.WorkflowDefinition, error) {
	return d.persistence.DefinitionRepository().GetByID(ctx, tenantID, definitionID)
}

// FetchByKey retrieves the tenant's definition registered under key.
func (d *Definition) FetchByKey(ctx context.Context, tenantID, key string) (*models.WorkflowDefinition, error) {
	return d.persistence.DefinitionRepository().GetByKey(ctx, tenantID, key)
}

// List returns all definitions of a tenant.
func (d *Definition) List(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	definitions, err := d.persistence.DefinitionRepository().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	return definitions, nil
}

func (d *Definition) validateDefinition(op string, definition *models.WorkflowDefinition) error {
	if definition.TenantID == "" {
		return ErrEmptyTenantID
	}

	if err := d.validate.Struct(definition); err != nil {
		return NewValidationError(op, "INVALID_DEFINITION", err.Error(), ErrInvalidRequest)
	}

	return nil
}

// checkSpec rejects specs that fail validation or carry check errors. Warnings are accepted.
func checkSpec(op string, spec *models.Spec) error {
	if !compiler.Validate(spec) {
		return NewValidationError(op, "INVALID_SPEC", "spec requires a key and a states list", ErrInvalidSpec)
	}

	report := compiler.Check(spec)
	if report.HasErrors() {
		return NewValidationError(op, "INVALID_SPEC", report.Error(), ErrInvalidSpec)
	}

	return nil
}
