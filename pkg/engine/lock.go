package engine

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// stripedLock serializes work per key using a fixed set of mutexes.
// Distinct keys may share a stripe; a key always maps to the same one.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()

	return mu.Unlock
}
