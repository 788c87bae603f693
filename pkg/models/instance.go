package models

import (
	"maps"
	"time"
)

// WorkflowInstance is one running execution of a definition, bound to an external business entity.
type WorkflowInstance struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"     validate:"required"`
	DefinitionID string         `json:"definition_id" validate:"required"`
	EntityType   string         `json:"entity_type"   validate:"required"`
	EntityID     string         `json:"entity_id"     validate:"required"`
	State        string         `json:"state"         validate:"required"`
	Context      map[string]any `json:"context"`
	// Version is incremented on every applied transition and guards concurrent writers.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy whose context map can be modified independently.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	if i == nil {
		return nil
	}

	clone := *i
	if i.Context != nil {
		clone.Context = maps.Clone(i.Context)
	}

	return &clone
}
