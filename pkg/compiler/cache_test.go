package compiler

import (
	"sync"
	"testing"

	"github.com/hydromis/wfengine/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCache_ReusesSameVersion(t *testing.T) {
	cache := NewCache()
	def := &models.WorkflowDefinition{ID: "def-1", Version: 1, Spec: approvalSpec()}

	first := cache.Get(def)
	second := cache.Get(def)

	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_VersionBumpRecompiles(t *testing.T) {
	cache := NewCache()
	def := &models.WorkflowDefinition{ID: "def-1", Version: 1, Spec: approvalSpec()}

	stale := cache.Get(def)

	updated := approvalSpec()
	updated.States = append(updated.States, models.StateSpec{Name: "archived"})
	bumped := &models.WorkflowDefinition{ID: "def-1", Version: 2, Spec: updated}

	fresh := cache.Get(bumped)

	assert.NotSame(t, stale, fresh)
	assert.Equal(t, 3, stale.Len())
	assert.Equal(t, 4, fresh.Len())

	// An older version is compiled on demand but never replaces the newer entry.
	old := cache.Get(def)
	assert.Equal(t, 3, old.Len())
	assert.Same(t, fresh, cache.Get(bumped))
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache()
	def := &models.WorkflowDefinition{ID: "def-1", Version: 1, Spec: approvalSpec()}

	first := cache.Get(def)
	cache.Invalidate("def-1")

	assert.Equal(t, 0, cache.Len())
	assert.NotSame(t, first, cache.Get(def))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(version int) {
			defer wg.Done()
			def := &models.WorkflowDefinition{ID: "def-1", Version: version%4 + 1, Spec: approvalSpec()}
			assert.Equal(t, 3, cache.Get(def).Len())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
}
