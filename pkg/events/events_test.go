package events

import (
	"encoding/json"
	"testing"

	"github.com/hydromis/wfengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(WorkflowTransitionedEvent, "tenant-1", "inst-1")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, WorkflowTransitionedEvent, base.Type)
	assert.Equal(t, "tenant-1", base.TenantID)
	assert.Equal(t, "inst-1", base.InstanceID)
	assert.False(t, base.Timestamp.IsZero())
	assert.NotNil(t, base.Metadata)
}

func TestGetType(t *testing.T) {
	assert.Equal(t, WorkflowInstanceCreatedEvent, WorkflowInstanceCreated{}.GetType())
	assert.Equal(t, WorkflowTransitionedEvent, WorkflowTransitioned{}.GetType())
	assert.Equal(t, NotificationRequestedEvent, NotificationRequested{}.GetType())
	assert.Equal(t, WebhookRequestedEvent, WebhookRequested{}.GetType())
}

func TestBaseEvent_Tenant(t *testing.T) {
	event := WebhookRequested{BaseEvent: NewBaseEvent(WebhookRequestedEvent, "tenant-3", "inst-1")}

	assert.Equal(t, "tenant-3", event.Tenant())
}

func TestWorkflowTransitioned_SystemActorSerializesAsNull(t *testing.T) {
	event := WorkflowTransitioned{
		BaseEvent: NewBaseEvent(WorkflowTransitionedEvent, "tenant-1", "inst-1"),
		FromState: "draft",
		ToState:   "review",
		Trigger:   "submit",
		Version:   2,
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"type":"workflow.transitioned"`)
	assert.Contains(t, string(data), `"actor_id":null`)
	assert.Contains(t, string(data), `"from_state":"draft"`)
	assert.NotContains(t, string(data), `"payload"`)
}

func TestNotificationRequested_JSONShape(t *testing.T) {
	event := NotificationRequested{
		BaseEvent:   NewBaseEvent(NotificationRequestedEvent, "tenant-1", "inst-1"),
		Action:      "notify.role",
		Role:        "supervisor",
		RecipientID: "user-9",
		State:       "review",
		Args:        "supervisor",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded NotificationRequested
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, event.Role, decoded.Role)
	assert.Equal(t, event.RecipientID, decoded.RecipientID)
	assert.Equal(t, event.TenantID, decoded.TenantID)
	assert.Equal(t, NotificationRequestedEvent, decoded.Type)
}

func TestWebhookRequested_JSONShape(t *testing.T) {
	event := WebhookRequested{
		BaseEvent: NewBaseEvent(WebhookRequestedEvent, "tenant-1", "inst-1"),
		Action:    "http.post(https://hooks.example/gis)",
		URL:       "https://hooks.example/gis",
		Instance:  &models.WorkflowInstance{ID: "inst-1", State: "review", Version: 2},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"type":"webhook.requested"`)
	assert.Contains(t, string(data), `"url":"https://hooks.example/gis"`)

	var decoded WebhookRequested
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.NotNil(t, decoded.Instance)
	assert.Equal(t, "review", decoded.Instance.State)
	assert.Equal(t, 2, decoded.Instance.Version)
}
