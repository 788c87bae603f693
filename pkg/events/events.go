// Package events defines the domain events emitted by the workflow engine.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/hydromis/wfengine/pkg/models"
)

type EventType string

// Topic carries every workflow engine event.
const Topic = "wfengine.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"
const EventTenantMetadataKey = "tenant_id"

const (
	WorkflowInstanceCreatedEvent EventType = "workflow.instance.created"
	WorkflowTransitionedEvent    EventType = "workflow.transitioned"
	NotificationRequestedEvent   EventType = "notification.requested"
	WebhookRequestedEvent        EventType = "webhook.requested"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	TenantID   string         `json:"tenant_id"`
	InstanceID string         `json:"instance_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Tenant returns the owning tenant, used as message metadata by the bus.
func (b BaseEvent) Tenant() string {
	return b.TenantID
}

type WorkflowInstanceCreated struct {
	BaseEvent

	DefinitionID  string `json:"definition_id"`
	DefinitionKey string `json:"definition_key"`
	EntityType    string `json:"entity_type"`
	EntityID      string `json:"entity_id"`
	State         string `json:"state"`
}

func (w WorkflowInstanceCreated) GetType() EventType {
	return WorkflowInstanceCreatedEvent
}

// WorkflowTransitioned is published once the transition record and new state are committed.
type WorkflowTransitioned struct {
	BaseEvent

	DefinitionID string         `json:"definition_id"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	TransitionID string         `json:"transition_id"`
	FromState    string         `json:"from_state"`
	ToState      string         `json:"to_state"`
	Trigger      string         `json:"trigger"`
	ActorID      *string        `json:"actor_id"`
	Payload      map[string]any `json:"payload,omitempty"`
	Version      int            `json:"version"`
	Terminal     bool           `json:"terminal"`
}

func (w WorkflowTransitioned) GetType() EventType {
	return WorkflowTransitionedEvent
}

// NotificationRequested asks the delivery side to notify a party about an instance.
type NotificationRequested struct {
	BaseEvent

	Action      string         `json:"action"`
	Role        string         `json:"role"`
	RecipientID string         `json:"recipient_id,omitempty"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Args        string         `json:"args,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

func (n NotificationRequested) GetType() EventType {
	return NotificationRequestedEvent
}

// WebhookRequested asks the delivery side to POST the instance snapshot to URL.
type WebhookRequested struct {
	BaseEvent

	Action   string                   `json:"action"`
	URL      string                   `json:"url"`
	Instance *models.WorkflowInstance `json:"instance"`
	Payload  map[string]any           `json:"payload,omitempty"`
}

func (w WebhookRequested) GetType() EventType {
	return WebhookRequestedEvent
}

func NewBaseEvent(eventType EventType, tenantID, instanceID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		TenantID:   tenantID,
		InstanceID: instanceID,
		Metadata:   make(map[string]any),
	}
}
