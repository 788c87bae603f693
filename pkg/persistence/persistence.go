// Package persistence provides the storage abstraction for workflow definitions, instances and their transition log.
package persistence

import (
	"context"
	"time"

	"github.com/hydromis/wfengine/pkg/models"
)

type Persistence interface {
	DefinitionRepository() DefinitionRepository
	InstanceRepository() InstanceRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores versioned workflow definitions. Every lookup is tenant scoped.
type DefinitionRepository interface {
	// Create stores a new definition. The key must be unique within the tenant.
	Create(ctx context.Context, definition *models.WorkflowDefinition) error
	// Update replaces a stored definition if the stored revision still equals expected.
	Update(ctx context.Context, definition *models.WorkflowDefinition, expected Revision) error
	GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowDefinition, error)
	GetByKey(ctx context.Context, tenantID, key string) (*models.WorkflowDefinition, error)
	List(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error)
}

// InstanceRepository stores workflow instances and their append-only transition log.
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error)
	// ApplyTransition appends transition and writes instance in one atomic step.
	// It fails with ErrVersionConflict, writing nothing, unless the stored version equals expectedVersion.
	ApplyTransition(
		ctx context.Context,
		instance *models.WorkflowInstance,
		expectedVersion int,
		transition *models.WorkflowTransition,
	) error
	// Transitions returns the log of an instance, oldest first.
	Transitions(ctx context.Context, tenantID, instanceID string) ([]*models.WorkflowTransition, error)
	ListByState(ctx context.Context, tenantID, definitionID, state string) ([]*models.WorkflowInstance, error)
}

// Revision identifies the stored definition an update was computed from. Name and activation
// changes keep the version, so the update timestamp is compared as well.
type Revision struct {
	Version   int
	UpdatedAt time.Time
}

func RevisionOf(definition *models.WorkflowDefinition) Revision {
	return Revision{Version: definition.Version, UpdatedAt: definition.UpdatedAt}
}

// Matches reports whether definition is still at revision r.
func (r Revision) Matches(definition *models.WorkflowDefinition) bool {
	return definition.Version == r.Version && definition.UpdatedAt.Equal(r.UpdatedAt)
}

// NextUpdatedAt returns an update timestamp strictly after the expected one, truncated to precision.
func (r Revision) NextUpdatedAt(now time.Time, precision time.Duration) time.Time {
	next := now.UTC().Truncate(precision)
	if !next.After(r.UpdatedAt) {
		next = r.UpdatedAt.UTC().Truncate(precision).Add(precision)
	}

	return next
}
