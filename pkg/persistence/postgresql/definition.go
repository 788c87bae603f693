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

const definitionColumns = `
	id
  , tenant_id
  , workflow_key
  , name
  , version
  , spec
  , active
  , created_at
  , updated_at
`

// DefinitionRepository handles definition database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

func (r *DefinitionRepository) Create(ctx context.Context, definition *models.WorkflowDefinition) error {
	now := time.Now().UTC().Truncate(time.Microsecond)

	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	if definition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate definition ID: %w", err)
		}

		definition.ID = id.String()
	}

	spec, err := json.Marshal(definition.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (` + definitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		definition.ID,
		definition.TenantID,
		definition.Key,
		definition.Name,
		definition.Version,
		spec,
		definition.Active,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return persistence.NewDefinitionKeyError("Create", definition.TenantID, definition.Key, persistence.ErrDefinitionAlreadyExists)
	}

	if err != nil {
		return fmt.Errorf("failed to insert definition: %w", err)
	}

	return nil
}

func (r *DefinitionRepository) Update(ctx context.Context, definition *models.WorkflowDefinition, expected persistence.Revision) error {
	definition.UpdatedAt = expected.NextUpdatedAt(time.Now(), time.Microsecond)

	spec, err := json.Marshal(definition.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	query := `
		UPDATE workflow_definitions
		SET workflow_key = $3
		  , name = $4
		  , version = $5
		  , spec = $6
		  , active = $7
		  , updated_at = $8
		WHERE tenant_id = $1 AND id = $2 AND version = $9 AND updated_at = $10
		RETURNING created_at
	`

	err = r.db.QueryRowContext(ctx, query,
		definition.TenantID,
		definition.ID,
		definition.Key,
		definition.Name,
		definition.Version,
		spec,
		definition.Active,
		definition.UpdatedAt,
		expected.Version,
		expected.UpdatedAt,
	).Scan(&definition.CreatedAt)

	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return persistence.NewDefinitionError("Update", definition.TenantID, definition.ID, persistence.ErrDefinitionAlreadyExists)
	case errors.Is(err, sql.ErrNoRows):
		if _, getErr := r.GetByID(ctx, definition.TenantID, definition.ID); getErr != nil {
			return getErr
		}

		return persistence.NewDefinitionError("Update", definition.TenantID, definition.ID, persistence.ErrVersionConflict)
	default:
		return fmt.Errorf("failed to update definition: %w", err)
	}
}

func (r *DefinitionRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE tenant_id = $1 AND id = $2`

	definition, err := scanDefinition(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewDefinitionError("GetByID", tenantID, id, persistence.ErrDefinitionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	return definition, nil
}

func (r *DefinitionRepository) GetByKey(ctx context.Context, tenantID, key string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE tenant_id = $1 AND workflow_key = $2`

	definition, err := scanDefinition(r.db.QueryRowContext(ctx, query, tenantID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewDefinitionKeyError("GetByKey", tenantID, key, persistence.ErrDefinitionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	return definition, nil
}

func (r *DefinitionRepository) List(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE tenant_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}

func scanDefinition(row scanner) (*models.WorkflowDefinition, error) {
	var (
		definition models.WorkflowDefinition
		spec       []byte
	)

	err := row.Scan(
		&definition.ID,
		&definition.TenantID,
		&definition.Key,
		&definition.Name,
		&definition.Version,
		&spec,
		&definition.Active,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(spec, &definition.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal spec: %w", err)
	}

	return &definition, nil
}
