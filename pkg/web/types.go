// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/hydromis/wfengine/pkg/models"

// TenantHeader carries the calling tenant on every request.
const TenantHeader = "X-Tenant-ID"

// UpdateDefinitionRequest represents the request body for updating a definition.
// All fields are optional to support partial updates.
type UpdateDefinitionRequest struct {
	Name   *string      `json:"name,omitempty"   validate:"omitempty,min=1"`
	Spec   *models.Spec `json:"spec,omitempty"`
	Active *bool        `json:"active,omitempty"`
}

// CreateInstanceRequest represents the request body for starting a workflow instance.
type CreateInstanceRequest struct {
	DefinitionKey string         `json:"definition_key" validate:"required"`
	EntityType    string         `json:"entity_type"    validate:"required"`
	EntityID      string         `json:"entity_id"      validate:"required"`
	Context       map[string]any `json:"context"`
}

// TriggerRequest represents the request body for firing a trigger.
type TriggerRequest struct {
	Trigger string         `json:"trigger"            validate:"required"`
	Payload map[string]any `json:"payload,omitempty"`
	ActorID *string        `json:"actor_id,omitempty"`
}

// InstanceResponse is an instance together with what can be done with it next.
type InstanceResponse struct {
	*models.WorkflowInstance

	AvailableTriggers []string `json:"available_triggers"`
	Terminal          bool     `json:"terminal"`
}

// NewInstanceResponse builds the response for instance given the triggers leaving its state.
func NewInstanceResponse(instance *models.WorkflowInstance, triggers []string) InstanceResponse {
	if triggers == nil {
		triggers = []string{}
	}

	return InstanceResponse{
		WorkflowInstance:  instance,
		AvailableTriggers: triggers,
		Terminal:          len(triggers) == 0,
	}
}
