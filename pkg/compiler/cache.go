package compiler

import (
	"sync"

	"github.com/hydromis/wfengine/pkg/models"
)

type cacheEntry struct {
	version  int
	compiled *CompiledDefinition
}

// Cache memoizes compiled definitions keyed by definition id and version.
// Only the latest version seen per definition is retained.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the compiled form of def, compiling on a miss.
func (c *Cache) Get(def *models.WorkflowDefinition) *CompiledDefinition {
	c.mu.RLock()
	entry, ok := c.entries[def.ID]
	c.mu.RUnlock()

	if ok && entry.version == def.Version {
		return entry.compiled
	}

	compiled := Compile(def.Spec)

	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.entries[def.ID]; !ok || current.version <= def.Version {
		c.entries[def.ID] = cacheEntry{version: def.Version, compiled: compiled}
	}

	return compiled
}

// Invalidate drops any compiled form held for the definition id.
func (c *Cache) Invalidate(definitionID string) {
	c.mu.Lock()
	delete(c.entries, definitionID)
	c.mu.Unlock()
}

// Len returns the number of cached definitions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
