package cmd

import (
	"log/slog"
	"testing"

	"github.com/hydromis/wfengine/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	assert.Equal(t, "postgres", parsePersistenceProvider("postgres://u:p@localhost/db"))
	assert.Equal(t, "postgres", parsePersistenceProvider("postgresql://localhost/db"))
	assert.Equal(t, "file", parsePersistenceProvider("file:///var/lib/wfengine"))
	assert.Equal(t, "file", parsePersistenceProvider("./data"))
}

func TestNewPersistence_File(t *testing.T) {
	p, err := NewPersistence(t.Context(), slog.Default(), "file://"+t.TempDir())
	require.NoError(t, err)

	assert.IsType(t, &file.Persistence{}, p)
	assert.NoError(t, p.HealthCheck(t.Context()))
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", "", "wfengine-test", slog.Default())
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("rabbitmq", "", "wfengine-test", slog.Default())
	assert.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	p, err := NewPersistence(t.Context(), slog.Default(), t.TempDir())
	require.NoError(t, err)

	eng, err := NewEngine(slog.Default(), p, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, eng)

	tracer, shutdown := NewTracer(t.Context(), slog.Default(), false, "wfengine-test")
	assert.Nil(t, tracer)
	assert.NoError(t, shutdown(t.Context()))
}
