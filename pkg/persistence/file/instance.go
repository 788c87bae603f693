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

// instanceDocument is the on-disk form of an instance. Keeping the log in the same file
// makes ApplyTransition a single atomic rename.
type instanceDocument struct {
	Instance    *models.WorkflowInstance     `json:"instance"`
	Transitions []*models.WorkflowTransition `json:"transitions"`
}

// InstanceRepository handles instance file operations.
type InstanceRepository struct {
	root string
	mu   sync.Mutex
}

func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	if err := validateID(instance.TenantID); err != nil {
		return persistence.NewInstanceError("Create", instance.TenantID, instance.ID, err)
	}

	if instance.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}

		instance.ID = id.String()
	} else if err := validateID(instance.ID); err != nil {
		return persistence.NewInstanceError("Create", instance.TenantID, instance.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path(instance.TenantID, instance.ID)
	if _, err := os.Stat(path); err == nil {
		return persistence.NewInstanceError("Create", instance.TenantID, instance.ID, persistence.ErrInstanceAlreadyExists)
	}

	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	if instance.Version == 0 {
		instance.Version = 1
	}

	return writeJSON(path, instanceDocument{
		Instance:    instance,
		Transitions: []*models.WorkflowTransition{},
	})
}

func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	document, err := r.read(tenantID, id)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", tenantID, id, err)
	}

	return document.Instance, nil
}

func (r *InstanceRepository) ApplyTransition(
	ctx context.Context,
	instance *models.WorkflowInstance,
	expectedVersion int,
	transition *models.WorkflowTransition,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := r.read(instance.TenantID, instance.ID)
	if err != nil {
		return persistence.NewInstanceError("ApplyTransition", instance.TenantID, instance.ID, err)
	}

	if document.Instance.Version != expectedVersion {
		return persistence.NewInstanceError("ApplyTransition", instance.TenantID, instance.ID, persistence.ErrVersionConflict)
	}

	if transition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transition ID: %w", err)
		}

		transition.ID = id.String()
	}

	transition.InstanceID = instance.ID

	document.Instance = instance
	document.Transitions = append(document.Transitions, transition)

	return writeJSON(r.path(instance.TenantID, instance.ID), document)
}

func (r *InstanceRepository) Transitions(ctx context.Context, tenantID, instanceID string) ([]*models.WorkflowTransition, error) {
	document, err := r.read(tenantID, instanceID)
	if err != nil {
		return nil, persistence.NewInstanceError("Transitions", tenantID, instanceID, err)
	}

	return document.Transitions, nil
}

// ListByState returns the definition's instances currently in state, oldest first.
func (r *InstanceRepository) ListByState(ctx context.Context, tenantID, definitionID, state string) ([]*models.WorkflowInstance, error) {
	if err := validateID(tenantID); err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	ids, err := listJSON(r.dir(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	instances := make([]*models.WorkflowInstance, 0)

	for _, id := range ids {
		document, err := r.read(tenantID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load instance %s: %w", id, err)
		}

		if document.Instance.DefinitionID == definitionID && document.Instance.State == state {
			instances = append(instances, document.Instance)
		}
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})

	return instances, nil
}

func (r *InstanceRepository) dir(tenantID string) string {
	return filepath.Join(r.root, "instances", tenantID)
}

func (r *InstanceRepository) path(tenantID, id string) string {
	return filepath.Join(r.dir(tenantID), id+".json")
}

func (r *InstanceRepository) read(tenantID, id string) (*instanceDocument, error) {
	if err := validateID(tenantID); err != nil {
		return nil, err
	}

	if err := validateID(id); err != nil {
		return nil, persistence.ErrInstanceNotFound
	}

	var document instanceDocument

	err := readJSON(r.path(tenantID, id), &document)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.ErrInstanceNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read instance: %w", err)
	}

	if document.Instance == nil {
		return nil, fmt.Errorf("instance document %s has no instance", id)
	}

	if document.Transitions == nil {
		document.Transitions = []*models.WorkflowTransition{}
	}

	return &document, nil
}
