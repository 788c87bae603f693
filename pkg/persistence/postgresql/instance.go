package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
)

const instanceColumns = `
	id
  , tenant_id
  , definition_id
  , entity_type
  , entity_id
  , state
  , context
  , version
  , created_at
  , updated_at
`

// InstanceRepository handles instance and transition log database operations.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()

	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	if instance.Version == 0 {
		instance.Version = 1
	}

	if instance.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}

		instance.ID = id.String()
	}

	contextJSON, err := marshalObject(instance.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.TenantID,
		instance.DefinitionID,
		instance.EntityType,
		instance.EntityID,
		instance.State,
		contextJSON,
		instance.Version,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return persistence.NewInstanceError("Create", instance.TenantID, instance.ID, persistence.ErrInstanceAlreadyExists)
	}

	if err != nil {
		return fmt.Errorf("failed to insert instance: %w", err)
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = $1 AND id = $2`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewInstanceError("GetByID", tenantID, id, persistence.ErrInstanceNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

// ApplyTransition updates the instance row with a version check and appends the
// transition in the same transaction.
func (r *InstanceRepository) ApplyTransition(
	ctx context.Context,
	instance *models.WorkflowInstance,
	expectedVersion int,
	transition *models.WorkflowTransition,
) error {
	if transition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transition ID: %w", err)
		}

		transition.ID = id.String()
	}

	transition.InstanceID = instance.ID

	contextJSON, err := marshalObject(instance.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	var payload []byte
	if transition.Payload != nil {
		payload, err = json.Marshal(transition.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE workflow_instances
		SET state = $3
		  , context = $4
		  , version = $5
		  , updated_at = $6
		WHERE tenant_id = $1 AND id = $2 AND version = $7
	`,
		instance.TenantID,
		instance.ID,
		instance.State,
		contextJSON,
		instance.Version,
		instance.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		if _, err := r.GetByID(ctx, instance.TenantID, instance.ID); err != nil {
			return persistence.NewInstanceError("ApplyTransition", instance.TenantID, instance.ID, err)
		}

		return persistence.NewInstanceError("ApplyTransition", instance.TenantID, instance.ID, persistence.ErrVersionConflict)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_transitions (id, instance_id, from_state, to_state, trigger_name, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		transition.ID,
		transition.InstanceID,
		transition.FromState,
		transition.ToState,
		transition.Trigger,
		transition.ActorID,
		payload,
		transition.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	return nil
}

func (r *InstanceRepository) Transitions(ctx context.Context, tenantID, instanceID string) ([]*models.WorkflowTransition, error) {
	if _, err := r.GetByID(ctx, tenantID, instanceID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instance_id, from_state, to_state, trigger_name, actor_id, payload, created_at
		FROM workflow_transitions
		WHERE instance_id = $1
		ORDER BY seq
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	transitions := make([]*models.WorkflowTransition, 0)

	for rows.Next() {
		var (
			transition models.WorkflowTransition
			actorID    sql.NullString
			payload    []byte
		)

		err := rows.Scan(
			&transition.ID,
			&transition.InstanceID,
			&transition.FromState,
			&transition.ToState,
			&transition.Trigger,
			&actorID,
			&payload,
			&transition.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		if actorID.Valid {
			transition.ActorID = &actorID.String
		}

		if len(payload) > 0 {
			err = json.Unmarshal(payload, &transition.Payload)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		transitions = append(transitions, &transition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}

func (r *InstanceRepository) ListByState(ctx context.Context, tenantID, definitionID, state string) ([]*models.WorkflowInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE tenant_id = $1 AND definition_id = $2 AND state = $3
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, definitionID, state)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

func scanInstance(row scanner) (*models.WorkflowInstance, error) {
	var (
		instance    models.WorkflowInstance
		contextJSON []byte
	)

	err := row.Scan(
		&instance.ID,
		&instance.TenantID,
		&instance.DefinitionID,
		&instance.EntityType,
		&instance.EntityID,
		&instance.State,
		&contextJSON,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(contextJSON, &instance.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}

	return &instance, nil
}

// marshalObject encodes m, storing a nil map as an empty object.
func marshalObject(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(m)
}
