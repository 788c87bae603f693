package eventbus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/hydromis/wfengine/pkg/channels/gochannel"
	"github.com/hydromis/wfengine/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.WorkflowTransitioned, 1)
	require.NoError(t, bus.Handle(events.WorkflowTransitionedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowTransitioned)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	actor := "user-1"
	err := bus.Publish(ctx, "inst-1", events.WorkflowTransitioned{
		BaseEvent: events.NewBaseEvent(events.WorkflowTransitionedEvent, "tenant-1", "inst-1"),
		FromState: "draft",
		ToState:   "review",
		Trigger:   "submit",
		ActorID:   &actor,
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "inst-1", event.InstanceID)
		assert.Equal(t, "tenant-1", event.TenantID)
		assert.Equal(t, "review", event.ToState)
		require.NotNil(t, event.ActorID)
		assert.Equal(t, "user-1", *event.ActorID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.NotificationRequested, 1)
	require.NoError(t, bus.Handle(events.NotificationRequestedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.NotificationRequested)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "inst-1", events.WorkflowInstanceCreated{
		BaseEvent: events.NewBaseEvent(events.WorkflowInstanceCreatedEvent, "tenant-1", "inst-1"),
	}))
	require.NoError(t, bus.Publish(ctx, "inst-1", &events.NotificationRequested{
		BaseEvent: events.NewBaseEvent(events.NotificationRequestedEvent, "tenant-1", "inst-1"),
		Role:      "assignee",
	}))

	select {
	case event := <-received:
		assert.Equal(t, "assignee", event.Role)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestTenantOf(t *testing.T) {
	base := events.NewBaseEvent(events.NotificationRequestedEvent, "tenant-9", "inst-1")

	assert.Equal(t, "tenant-9", tenantOf(events.NotificationRequested{BaseEvent: base}))
	assert.Equal(t, "tenant-9", tenantOf(&events.NotificationRequested{BaseEvent: base}))
	assert.Equal(t, "tenant-9", tenantOf(&events.WebhookRequested{BaseEvent: base}))
	assert.Empty(t, tenantOf(nil))
}
