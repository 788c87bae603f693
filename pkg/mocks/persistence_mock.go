package mocks

import (
	"context"

	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockDefinitionRepository is a mock implementation of persistence.DefinitionRepository interface.
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) Create(ctx context.Context, definition *models.WorkflowDefinition) error {
	args := m.Called(ctx, definition)

	return args.Error(0)
}

func (m *MockDefinitionRepository) Update(ctx context.Context, definition *models.WorkflowDefinition, expected persistence.Revision) error {
	args := m.Called(ctx, definition, expected)

	return args.Error(0)
}

func (m *MockDefinitionRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) GetByKey(ctx context.Context, tenantID, key string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) List(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowDefinition), args.Error(1)
}

// MockInstanceRepository is a mock implementation of persistence.InstanceRepository interface.
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	args := m.Called(ctx, instance)

	return args.Error(0)
}

func (m *MockInstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) ApplyTransition(
	ctx context.Context,
	instance *models.WorkflowInstance,
	expectedVersion int,
	transition *models.WorkflowTransition,
) error {
	args := m.Called(ctx, instance, expectedVersion, transition)

	return args.Error(0)
}

func (m *MockInstanceRepository) Transitions(ctx context.Context, tenantID, instanceID string) ([]*models.WorkflowTransition, error) {
	args := m.Called(ctx, tenantID, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowTransition), args.Error(1)
}

func (m *MockInstanceRepository) ListByState(ctx context.Context, tenantID, definitionID, state string) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx, tenantID, definitionID, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}
