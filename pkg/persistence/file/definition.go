package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
)

// DefinitionRepository handles definition file operations.
type DefinitionRepository struct {
	root string
	mu   sync.Mutex
}

func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (r *DefinitionRepository) Create(ctx context.Context, definition *models.WorkflowDefinition) error {
	if err := validateID(definition.TenantID); err != nil {
		return persistence.NewDefinitionKeyError("Create", definition.TenantID, definition.Key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.findByKey(definition.TenantID, definition.Key)
	if err != nil {
		return persistence.NewDefinitionKeyError("Create", definition.TenantID, definition.Key, err)
	}

	if existing != nil {
		return persistence.NewDefinitionKeyError("Create", definition.TenantID, definition.Key, persistence.ErrDefinitionAlreadyExists)
	}

	if definition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate definition ID: %w", err)
		}

		definition.ID = id.String()
	} else if err := validateID(definition.ID); err != nil {
		return persistence.NewDefinitionError("Create", definition.TenantID, definition.ID, err)
	}

	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	return writeJSON(r.path(definition.TenantID, definition.ID), definition)
}

func (r *DefinitionRepository) Update(ctx context.Context, definition *models.WorkflowDefinition, expected persistence.Revision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.read(definition.TenantID, definition.ID)
	if err != nil {
		return persistence.NewDefinitionError("Update", definition.TenantID, definition.ID, err)
	}

	if !expected.Matches(stored) {
		return persistence.NewDefinitionError("Update", definition.TenantID, definition.ID, persistence.ErrVersionConflict)
	}

	if stored.Key != definition.Key {
		other, err := r.findByKey(definition.TenantID, definition.Key)
		if err != nil {
			return persistence.NewDefinitionError("Update", definition.TenantID, definition.ID, err)
		}

		if other != nil {
			return persistence.NewDefinitionError("Update", definition.TenantID, definition.ID, persistence.ErrDefinitionAlreadyExists)
		}
	}

	definition.CreatedAt = stored.CreatedAt
	definition.UpdatedAt = expected.NextUpdatedAt(time.Now(), time.Nanosecond)

	return writeJSON(r.path(definition.TenantID, definition.ID), definition)
}

func (r *DefinitionRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowDefinition, error) {
	definition, err := r.read(tenantID, id)
	if err != nil {
		return nil, persistence.NewDefinitionError("GetByID", tenantID, id, err)
	}

	return definition, nil
}

func (r *DefinitionRepository) GetByKey(ctx context.Context, tenantID, key string) (*models.WorkflowDefinition, error) {
	if err := validateID(tenantID); err != nil {
		return nil, persistence.NewDefinitionKeyError("GetByKey", tenantID, key, err)
	}

	definition, err := r.findByKey(tenantID, key)
	if err != nil {
		return nil, persistence.NewDefinitionKeyError("GetByKey", tenantID, key, err)
	}

	if definition == nil {
		return nil, persistence.NewDefinitionKeyError("GetByKey", tenantID, key, persistence.ErrDefinitionNotFound)
	}

	return definition, nil
}

// List returns the tenant's definitions ordered by creation time.
func (r *DefinitionRepository) List(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	if err := validateID(tenantID); err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	definitions, err := r.all(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	sort.SliceStable(definitions, func(i, j int) bool {
		return definitions[i].CreatedAt.Before(definitions[j].CreatedAt)
	})

	return definitions, nil
}

func (r *DefinitionRepository) dir(tenantID string) string {
	return filepath.Join(r.root, "definitions", tenantID)
}

func (r *DefinitionRepository) path(tenantID, id string) string {
	return filepath.Join(r.dir(tenantID), id+".json")
}

func (r *DefinitionRepository) read(tenantID, id string) (*models.WorkflowDefinition, error) {
	if err := validateID(tenantID); err != nil {
		return nil, err
	}

	if err := validateID(id); err != nil {
		return nil, persistence.ErrDefinitionNotFound
	}

	var definition models.WorkflowDefinition

	err := readJSON(r.path(tenantID, id), &definition)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.ErrDefinitionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	return &definition, nil
}

func (r *DefinitionRepository) all(tenantID string) ([]*models.WorkflowDefinition, error) {
	ids, err := listJSON(r.dir(tenantID))
	if err != nil {
		return nil, err
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(ids))
	for _, id := range ids {
		definition, err := r.read(tenantID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition %s: %w", id, err)
		}

		definitions = append(definitions, definition)
	}

	return definitions, nil
}

func (r *DefinitionRepository) findByKey(tenantID, key string) (*models.WorkflowDefinition, error) {
	definitions, err := r.all(tenantID)
	if err != nil {
		return nil, err
	}

	for _, definition := range definitions {
		if definition.Key == key {
			return definition, nil
		}
	}

	return nil, nil
}
