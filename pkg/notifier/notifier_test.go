package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/alicebob/miniredis/v2"
	"github.com/hydromis/wfengine/pkg/channels/gochannel"
	"github.com/hydromis/wfengine/pkg/eventbus"
	"github.com/hydromis/wfengine/pkg/events"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []*events.NotificationRequested
	err       error
}

func (s *recordingSink) Deliver(_ context.Context, notification *events.NotificationRequested) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delivered = append(s.delivered, notification)

	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.delivered)
}

func notification() events.NotificationRequested {
	return events.NotificationRequested{
		BaseEvent:   events.NewBaseEvent(events.NotificationRequestedEvent, "tenant-1", "inst-1"),
		Action:      "notify.assignee",
		Role:        "assignee",
		RecipientID: "user-9",
		EntityType:  "work_order",
		EntityID:    "wo-1",
		State:       "review",
	}
}

func setupRedisSink(t *testing.T, opts ...RedisOption) (*RedisSink, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSink(client, opts...), mr
}

func TestRedisSink_Deliver(t *testing.T) {
	sink, mr := setupRedisSink(t)
	n := notification()

	require.NoError(t, sink.Deliver(t.Context(), &n))
	require.NoError(t, sink.Deliver(t.Context(), &n))

	items, err := mr.List("wfengine:notifications:tenant-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	var decoded events.NotificationRequested
	require.NoError(t, json.Unmarshal([]byte(items[0]), &decoded))
	assert.Equal(t, "user-9", decoded.RecipientID)
	assert.Equal(t, events.NotificationRequestedEvent, decoded.Type)
	assert.Equal(t, "inst-1", decoded.InstanceID)
}

func TestRedisSink_KeyPrefix(t *testing.T) {
	sink, mr := setupRedisSink(t, WithKeyPrefix("gis:notify"))
	n := notification()

	require.NoError(t, sink.Deliver(t.Context(), &n))

	assert.Equal(t, "gis:notify:tenant-1", sink.Key("tenant-1"))
	assert.True(t, mr.Exists("gis:notify:tenant-1"))
}

func TestRedisSink_ServerDown(t *testing.T) {
	sink, mr := setupRedisSink(t)
	mr.Close()

	n := notification()

	assert.Error(t, sink.Deliver(t.Context(), &n))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(t.Context(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = NewRedisClient(t.Context(), "not a url")
	assert.Error(t, err)
}

func TestLogSink_Deliver(t *testing.T) {
	n := notification()

	assert.NoError(t, NewLogSink(slog.Default()).Deliver(t.Context(), &n))
}

func TestNotifier_Handle(t *testing.T) {
	sink := &recordingSink{}
	notifier := New(sink, slog.Default())
	n := notification()

	require.NoError(t, notifier.handle(t.Context(), &n))
	assert.Equal(t, 1, sink.count())

	assert.Error(t, notifier.handle(t.Context(), &events.WorkflowTransitioned{}))

	sink.err = errors.New("down")
	assert.Error(t, notifier.handle(t.Context(), &n))
}

func TestNotifier_ConsumesBus(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())

	t.Cleanup(func() { _ = bus.Close() })

	sink := &recordingSink{}
	require.NoError(t, New(sink, slog.Default()).Register(bus))
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "inst-1", notification()))

	assert.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
