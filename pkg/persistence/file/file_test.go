package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefinition(tenantID, key string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		TenantID: tenantID,
		Key:      key,
		Name:     "Approval",
		Version:  1,
		Active:   true,
		Spec: &models.Spec{
			Key: key,
			States: []models.StateSpec{
				{Name: "draft", Transitions: []models.TransitionSpec{{Trigger: "submit", To: "review"}}},
				{Name: "review", OnEnter: []string{"notify.assignee"}},
			},
		},
	}
}

func newInstance(tenantID, definitionID string) *models.WorkflowInstance {
	return &models.WorkflowInstance{
		TenantID:     tenantID,
		DefinitionID: definitionID,
		EntityType:   "work_order",
		EntityID:     "wo-1",
		State:        "draft",
		Context:      map[string]any{"requester_id": "user-1"},
	}
}

func TestNewPersistence(t *testing.T) {
	root := t.TempDir()
	p := NewPersistence("file://" + root)

	assert.Equal(t, root, p.root)
	assert.NoError(t, p.HealthCheck(t.Context()))
	assert.NoError(t, p.Close(t.Context()))

	missing := NewPersistence(filepath.Join(root, "missing"))
	assert.ErrorIs(t, missing.HealthCheck(t.Context()), os.ErrNotExist)
}

func TestDefinitionRepository_CreateAndGet(t *testing.T) {
	repo := NewPersistence(t.TempDir()).DefinitionRepository()
	ctx := t.Context()

	definition := newDefinition("tenant-1", "approval")
	require.NoError(t, repo.Create(ctx, definition))

	assert.NotEmpty(t, definition.ID)
	assert.False(t, definition.CreatedAt.IsZero())

	byID, err := repo.GetByID(ctx, "tenant-1", definition.ID)
	require.NoError(t, err)
	assert.Equal(t, "approval", byID.Key)
	assert.Equal(t, definition.Spec, byID.Spec)

	byKey, err := repo.GetByKey(ctx, "tenant-1", "approval")
	require.NoError(t, err)
	assert.Equal(t, definition.ID, byKey.ID)
}

func TestDefinitionRepository_TenantScoping(t *testing.T) {
	repo := NewPersistence(t.TempDir()).DefinitionRepository()
	ctx := t.Context()

	definition := newDefinition("tenant-1", "approval")
	require.NoError(t, repo.Create(ctx, definition))

	_, err := repo.GetByID(ctx, "tenant-2", definition.ID)
	assert.True(t, persistence.IsDefinitionNotFound(err))

	_, err = repo.GetByKey(ctx, "tenant-2", "approval")
	assert.True(t, persistence.IsDefinitionNotFound(err))

	require.NoError(t, repo.Create(ctx, newDefinition("tenant-2", "approval")))
}

func TestDefinitionRepository_DuplicateKey(t *testing.T) {
	repo := NewPersistence(t.TempDir()).DefinitionRepository()
	ctx := t.Context()

	require.NoError(t, repo.Create(ctx, newDefinition("tenant-1", "approval")))

	err := repo.Create(ctx, newDefinition("tenant-1", "approval"))
	assert.True(t, persistence.IsDefinitionAlreadyExists(err))
}

func TestDefinitionRepository_UpdateVersionCheck(t *testing.T) {
	repo := NewPersistence(t.TempDir()).DefinitionRepository()
	ctx := t.Context()

	definition := newDefinition("tenant-1", "approval")
	require.NoError(t, repo.Create(ctx, definition))
	createdAt := definition.CreatedAt
	created := persistence.RevisionOf(definition)

	definition.Version = 2
	definition.Active = false
	require.NoError(t, repo.Update(ctx, definition, created))

	stored, err := repo.GetByID(ctx, "tenant-1", definition.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.False(t, stored.Active)
	assert.True(t, createdAt.Equal(stored.CreatedAt))

	definition.Version = 3
	err = repo.Update(ctx, definition, created)
	assert.True(t, persistence.IsVersionConflict(err))

	missing := newDefinition("tenant-1", "other")
	missing.ID = "does-not-exist"
	err = repo.Update(ctx, missing, created)
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestDefinitionRepository_UpdateRejectsStaleRevision(t *testing.T) {
	repo := NewPersistence(t.TempDir()).DefinitionRepository()
	ctx := t.Context()

	definition := newDefinition("tenant-1", "approval")
	require.NoError(t, repo.Create(ctx, definition))

	stale := persistence.RevisionOf(definition)

	// Deactivation keeps the version but moves the revision.
	deactivated := *definition
	deactivated.Active = false
	require.NoError(t, repo.Update(ctx, &deactivated, stale))
	assert.Equal(t, 1, deactivated.Version)
	assert.True(t, deactivated.UpdatedAt.After(stale.UpdatedAt))

	specUpdate := *definition
	specUpdate.Version = 2
	err := repo.Update(ctx, &specUpdate, stale)
	assert.True(t, persistence.IsVersionConflict(err))

	stored, err := repo.GetByID(ctx, "tenant-1", definition.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, 1, stored.Version)

	require.NoError(t, repo.Update(ctx, &specUpdate, persistence.RevisionOf(stored)))
}

func TestDefinitionRepository_List(t *testing.T) {
	repo := NewPersistence(t.TempDir()).DefinitionRepository()
	ctx := t.Context()

	empty, err := repo.List(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	first := newDefinition("tenant-1", "first")
	first.CreatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, newDefinition("tenant-1", "second")))
	require.NoError(t, repo.Create(ctx, newDefinition("tenant-2", "third")))

	list, err := repo.List(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Key)
	assert.Equal(t, "second", list[1].Key)
}

func TestDefinitionRepository_RejectsUnsafeIDs(t *testing.T) {
	repo := NewPersistence(t.TempDir()).DefinitionRepository()
	ctx := t.Context()

	err := repo.Create(ctx, newDefinition("../escape", "approval"))
	assert.ErrorIs(t, err, persistence.ErrInvalidID)

	_, err = repo.GetByID(ctx, "tenant-1", "../../etc/passwd")
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestInstanceRepository_CreateAndGet(t *testing.T) {
	repo := NewPersistence(t.TempDir()).InstanceRepository()
	ctx := t.Context()

	instance := newInstance("tenant-1", "def-1")
	require.NoError(t, repo.Create(ctx, instance))

	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, 1, instance.Version)

	stored, err := repo.GetByID(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", stored.State)
	assert.Equal(t, "user-1", stored.Context["requester_id"])

	_, err = repo.GetByID(ctx, "tenant-2", instance.ID)
	assert.True(t, persistence.IsInstanceNotFound(err))

	transitions, err := repo.Transitions(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	assert.Empty(t, transitions)

	err = repo.Create(ctx, instance)
	assert.ErrorIs(t, err, persistence.ErrInstanceAlreadyExists)
}

func TestInstanceRepository_ApplyTransition(t *testing.T) {
	repo := NewPersistence(t.TempDir()).InstanceRepository()
	ctx := t.Context()

	instance := newInstance("tenant-1", "def-1")
	require.NoError(t, repo.Create(ctx, instance))

	actor := "user-7"
	next := instance.Clone()
	next.State = "review"
	next.Version = 2

	transition := &models.WorkflowTransition{
		FromState: "draft",
		ToState:   "review",
		Trigger:   "submit",
		ActorID:   &actor,
		Payload:   map[string]any{"comment": "ready"},
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.ApplyTransition(ctx, next, 1, transition))
	assert.NotEmpty(t, transition.ID)
	assert.Equal(t, instance.ID, transition.InstanceID)

	stored, err := repo.GetByID(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "review", stored.State)
	assert.Equal(t, 2, stored.Version)

	transitions, err := repo.Transitions(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "submit", transitions[0].Trigger)
	assert.Equal(t, "user-7", *transitions[0].ActorID)
}

func TestInstanceRepository_ApplyTransitionConflictWritesNothing(t *testing.T) {
	repo := NewPersistence(t.TempDir()).InstanceRepository()
	ctx := t.Context()

	instance := newInstance("tenant-1", "def-1")
	require.NoError(t, repo.Create(ctx, instance))

	stale := instance.Clone()
	stale.State = "review"
	stale.Version = 4

	err := repo.ApplyTransition(ctx, stale, 3, &models.WorkflowTransition{FromState: "draft", ToState: "review", Trigger: "submit"})
	assert.True(t, persistence.IsVersionConflict(err))

	stored, err := repo.GetByID(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", stored.State)

	transitions, err := repo.Transitions(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	assert.Empty(t, transitions)

	missing := newInstance("tenant-1", "def-1")
	missing.ID = "missing"
	err = repo.ApplyTransition(ctx, missing, 1, &models.WorkflowTransition{})
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_ConcurrentApplyOnlyOneWins(t *testing.T) {
	repo := NewPersistence(t.TempDir()).InstanceRepository()
	ctx := t.Context()

	instance := newInstance("tenant-1", "def-1")
	require.NoError(t, repo.Create(ctx, instance))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			next := instance.Clone()
			next.State = "review"
			next.Version = 2

			err := repo.ApplyTransition(ctx, next, 1, &models.WorkflowTransition{FromState: "draft", ToState: "review", Trigger: "submit"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)

	transitions, err := repo.Transitions(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	assert.Len(t, transitions, 1)
}

func TestInstanceRepository_ListByState(t *testing.T) {
	repo := NewPersistence(t.TempDir()).InstanceRepository()
	ctx := t.Context()

	a := newInstance("tenant-1", "def-1")
	b := newInstance("tenant-1", "def-1")
	b.State = "review"
	c := newInstance("tenant-1", "def-2")
	d := newInstance("tenant-2", "def-1")

	for _, instance := range []*models.WorkflowInstance{a, b, c, d} {
		require.NoError(t, repo.Create(ctx, instance))
	}

	drafts, err := repo.ListByState(ctx, "tenant-1", "def-1", "draft")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, a.ID, drafts[0].ID)

	none, err := repo.ListByState(ctx, "tenant-3", "def-1", "draft")
	require.NoError(t, err)
	assert.Empty(t, none)
}
