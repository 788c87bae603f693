package services

import (
	"context"
	"testing"

	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
	"github.com/hydromis/wfengine/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantID = "tenant-1"

func approvalSpec() *models.Spec {
	return &models.Spec{
		Key:  "approval",
		Name: "Approval",
		States: []models.StateSpec{
			{Name: "draft", Transitions: []models.TransitionSpec{{Trigger: "submit", To: "review"}}},
			{
				Name:    "review",
				OnEnter: []string{"notify.assignee"},
				Transitions: []models.TransitionSpec{
					{Trigger: "approve", To: "approved"},
					{Trigger: "reject", To: "draft"},
				},
			},
			{Name: "approved", Transitions: []models.TransitionSpec{}},
		},
	}
}

func TestNewDefinition(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewDefinition(persistence)

	assert.NotNil(t, service)
	assert.Equal(t, persistence, service.persistence)

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)
}

func TestDefinition_Create(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	created, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, tenantID, created.TenantID)
	assert.Equal(t, "approval", created.Key)
	assert.Equal(t, "Approval", created.Name)
	assert.Equal(t, 1, created.Version)
	assert.True(t, created.Active)
	assert.False(t, created.CreatedAt.IsZero())

	fetched, err := service.FetchByID(t.Context(), tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Spec, fetched.Spec)

	byKey, err := service.FetchByKey(t.Context(), tenantID, "approval")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byKey.ID)
}

func TestDefinition_CreateRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec *models.Spec
	}{
		{name: "nil spec", spec: nil},
		{name: "missing key", spec: &models.Spec{States: []models.StateSpec{{Name: "a"}}}},
		{name: "missing states", spec: &models.Spec{Key: "k"}},
		{
			name: "dangling target",
			spec: &models.Spec{Key: "k", States: []models.StateSpec{
				{Name: "a", Transitions: []models.TransitionSpec{{Trigger: "go", To: "nowhere"}}},
			}},
		},
		{
			name: "duplicate state",
			spec: &models.Spec{Key: "k", States: []models.StateSpec{{Name: "a"}, {Name: "a"}}},
		},
		{
			name: "bad guard",
			spec: &models.Spec{Key: "k", States: []models.StateSpec{
				{Name: "a", Transitions: []models.TransitionSpec{{Trigger: "go", To: "a", Guard: "payload.["}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := file.NewPersistence(t.TempDir())
			service := NewDefinition(store)

			_, err := service.Create(t.Context(), tenantID, tt.spec)

			require.ErrorIs(t, err, ErrInvalidSpec)
			assert.True(t, IsValidationError(err))

			definitions, err := store.DefinitionRepository().List(t.Context(), tenantID)
			require.NoError(t, err)
			assert.Empty(t, definitions)
		})
	}
}

func TestDefinition_CreateAcceptsWarnings(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	spec := &models.Spec{Key: "orphans", States: []models.StateSpec{{Name: "start"}, {Name: "island"}}}

	created, err := service.Create(t.Context(), tenantID, spec)
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)
}

func TestDefinition_CreateRequiresTenant(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	_, err := service.Create(t.Context(), "  ", approvalSpec())

	require.ErrorIs(t, err, ErrEmptyTenantID)
}

func TestDefinition_CreateDuplicateKey(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	_, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	_, err = service.Create(t.Context(), tenantID, approvalSpec())
	assert.True(t, persistence.IsDefinitionAlreadyExists(err))

	_, err = service.Create(t.Context(), "tenant-2", approvalSpec())
	assert.NoError(t, err)
}

func TestDefinition_UpdateVersionMonotonicity(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	created, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)
	require.Equal(t, 1, created.Version)

	spec := approvalSpec()
	spec.States[2].OnEnter = []string{"notify.requester"}

	updated, err := service.Update(t.Context(), tenantID, created.ID, DefinitionUpdate{Spec: spec})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, []string{"notify.requester"}, updated.Spec.States[2].OnEnter)

	spec = approvalSpec()
	spec.States[2].OnEnter = []string{"notify.role(finance)"}

	updated, err = service.Update(t.Context(), tenantID, created.ID, DefinitionUpdate{Spec: spec})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)

	stored, err := service.FetchByID(t.Context(), tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Version)
	assert.Equal(t, []string{"notify.role(finance)"}, stored.Spec.States[2].OnEnter)
}

func TestDefinition_UpdateWithoutSpecKeepsVersion(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	created, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	name := "Purchase approval"

	updated, err := service.Update(t.Context(), tenantID, created.ID, DefinitionUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "Purchase approval", updated.Name)
}

func TestDefinition_UpdateRejectsKeyChange(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	created, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	spec := approvalSpec()
	spec.Key = "renamed"

	_, err = service.Update(t.Context(), tenantID, created.ID, DefinitionUpdate{Spec: spec})
	require.ErrorIs(t, err, ErrKeyImmutable)
	assert.True(t, IsValidationError(err))
}

func TestDefinition_UpdateInvalidSpecLeavesStoredVersion(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	created, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	_, err = service.Update(t.Context(), tenantID, created.ID, DefinitionUpdate{Spec: &models.Spec{Key: "approval"}})
	require.ErrorIs(t, err, ErrInvalidSpec)

	stored, err := service.FetchByID(t.Context(), tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestDefinition_UpdateNotFound(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	_, err := service.Update(t.Context(), tenantID, "missing", DefinitionUpdate{})

	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestDefinition_ActivateDeactivate(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	created, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	deactivated, err := service.Deactivate(t.Context(), tenantID, created.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	assert.Equal(t, 1, deactivated.Version)

	activated, err := service.Activate(t.Context(), tenantID, created.ID)
	require.NoError(t, err)
	assert.True(t, activated.Active)
}

// interleavedDefinitions runs before once, between the service's read and its write.
type interleavedDefinitions struct {
	persistence.DefinitionRepository

	before func()
}

func (r *interleavedDefinitions) Update(ctx context.Context, definition *models.WorkflowDefinition, expected persistence.Revision) error {
	if before := r.before; before != nil {
		r.before = nil
		before()
	}

	return r.DefinitionRepository.Update(ctx, definition, expected)
}

type interleavedPersistence struct {
	persistence.Persistence

	definitions *interleavedDefinitions
}

func (p *interleavedPersistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.definitions
}

func TestDefinition_UpdateDoesNotRevertConcurrentDeactivation(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	definitions := &interleavedDefinitions{DefinitionRepository: store.DefinitionRepository()}
	service := NewDefinition(&interleavedPersistence{Persistence: store, definitions: definitions})

	created, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	definitions.before = func() {
		_, err := NewDefinition(store).Deactivate(t.Context(), tenantID, created.ID)
		require.NoError(t, err)
	}

	_, err = service.Update(t.Context(), tenantID, created.ID, DefinitionUpdate{Spec: approvalSpec()})
	assert.True(t, persistence.IsVersionConflict(err))

	stored, err := service.FetchByID(t.Context(), tenantID, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, 1, stored.Version)
}

func TestDefinition_List(t *testing.T) {
	service := NewDefinition(file.NewPersistence(t.TempDir()))

	_, err := service.Create(t.Context(), tenantID, approvalSpec())
	require.NoError(t, err)

	other := approvalSpec()
	other.Key = "purchase"

	_, err = service.Create(t.Context(), tenantID, other)
	require.NoError(t, err)

	_, err = service.Create(t.Context(), "tenant-2", approvalSpec())
	require.NoError(t, err)

	definitions, err := service.List(t.Context(), tenantID)
	require.NoError(t, err)
	assert.Len(t, definitions, 2)

	_, err = service.List(t.Context(), "")
	assert.ErrorIs(t, err, ErrEmptyTenantID)
}
