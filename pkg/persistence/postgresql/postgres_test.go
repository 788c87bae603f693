package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
	"github.com/hydromis/wfengine/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last
	for _, table := range []string{"workflow_transitions", "workflow_instances", "workflow_definitions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("wfengine_test"),
			postgres.WithUsername("wfengine"),
			postgres.WithPassword("wfengine"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

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

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)

	// Re-running against a migrated schema is a no-op.
	again, err := postgresql.NewPersistence(ctx, slog.Default(), databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestDefinitionRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.DefinitionRepository()

	definition := newDefinition("tenant-1", "approval")
	require.NoError(t, repo.Create(ctx, definition))
	assert.NotEmpty(t, definition.ID)

	err := repo.Create(ctx, newDefinition("tenant-1", "approval"))
	assert.True(t, persistence.IsDefinitionAlreadyExists(err))

	require.NoError(t, repo.Create(ctx, newDefinition("tenant-2", "approval")))

	byKey, err := repo.GetByKey(ctx, "tenant-1", "approval")
	require.NoError(t, err)
	assert.Equal(t, definition.ID, byKey.ID)
	assert.Equal(t, definition.Spec, byKey.Spec)

	_, err = repo.GetByID(ctx, "tenant-2", definition.ID)
	assert.True(t, persistence.IsDefinitionNotFound(err))

	created := persistence.RevisionOf(definition)

	deactivated := *definition
	deactivated.Active = false
	require.NoError(t, repo.Update(ctx, &deactivated, created))

	// Same version, older timestamp: a concurrent activation change wins.
	definition.Version = 2
	definition.Active = false
	err = repo.Update(ctx, definition, created)
	assert.True(t, persistence.IsVersionConflict(err))

	require.NoError(t, repo.Update(ctx, definition, persistence.RevisionOf(&deactivated)))

	err = repo.Update(ctx, definition, persistence.RevisionOf(&deactivated))
	assert.True(t, persistence.IsVersionConflict(err))

	missing := newDefinition("tenant-1", "missing")
	missing.ID = "missing"
	err = repo.Update(ctx, missing, created)
	assert.True(t, persistence.IsDefinitionNotFound(err))

	list, err := repo.List(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Version)
	assert.False(t, list[0].Active)
}

func TestInstanceRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	definition := newDefinition("tenant-1", "approval")
	require.NoError(t, p.DefinitionRepository().Create(ctx, definition))

	repo := p.InstanceRepository()

	instance := &models.WorkflowInstance{
		TenantID:     "tenant-1",
		DefinitionID: definition.ID,
		EntityType:   "work_order",
		EntityID:     "wo-1",
		State:        "draft",
		Context:      map[string]any{"requester_id": "user-1", "amount": 1200.5},
	}
	require.NoError(t, repo.Create(ctx, instance))
	assert.Equal(t, 1, instance.Version)

	stored, err := repo.GetByID(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.Context, stored.Context)

	actor := "user-1"
	next := stored.Clone()
	next.State = "review"
	next.Version = 2
	next.UpdatedAt = time.Now().UTC()

	transition := &models.WorkflowTransition{
		FromState: "draft",
		ToState:   "review",
		Trigger:   "submit",
		ActorID:   &actor,
		Payload:   map[string]any{"comment": "ready"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.ApplyTransition(ctx, next, 1, transition))

	err = repo.ApplyTransition(ctx, next, 1, &models.WorkflowTransition{FromState: "draft", ToState: "review", Trigger: "submit", CreatedAt: time.Now().UTC()})
	assert.True(t, persistence.IsVersionConflict(err))

	system := stored.Clone()
	system.State = "draft"
	system.Version = 3
	system.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.ApplyTransition(ctx, system, 2, &models.WorkflowTransition{
		FromState: "review", ToState: "draft", Trigger: "reject", CreatedAt: time.Now().UTC(),
	}))

	transitions, err := repo.Transitions(ctx, "tenant-1", instance.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "submit", transitions[0].Trigger)
	assert.Equal(t, "user-1", *transitions[0].ActorID)
	assert.Equal(t, "ready", transitions[0].Payload["comment"])
	assert.Nil(t, transitions[1].ActorID)
	assert.Equal(t, transitions[0].ToState, transitions[1].FromState)

	_, err = repo.Transitions(ctx, "tenant-2", instance.ID)
	assert.True(t, persistence.IsInstanceNotFound(err))

	drafts, err := repo.ListByState(ctx, "tenant-1", definition.ID, "draft")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, 3, drafts[0].Version)
}
