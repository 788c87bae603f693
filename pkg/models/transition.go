package models

import "time"

// WorkflowTransition is an immutable audit record of one applied trigger.
type WorkflowTransition struct {
	ID         string         `json:"id"`
	InstanceID string         `json:"instance_id"`
	FromState  string         `json:"from_state"`
	ToState    string         `json:"to_state"`
	Trigger    string         `json:"trigger"`
	ActorID    *string        `json:"actor_id"` // nil for system-initiated transitions
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
