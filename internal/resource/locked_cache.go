package resource

import (
	"sync"

	"tilecache/internal/tileset"
)

// LockedCache serializes every call to an underlying Cache with one mutex,
// held for the whole of GetOrTryInsertTileset including the constructor.
type LockedCache struct {
	mu    sync.Mutex
	inner Cache
}

func NewLockedCache(inner Cache) *LockedCache {
	return &LockedCache{inner: inner}
}

func (c *LockedCache) Tileset(path string) (*tileset.Tileset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inner.Tileset(path)
}

func (c *LockedCache) GetOrTryInsertTileset(path string, f Constructor) (*tileset.Tileset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inner.GetOrTryInsertTileset(path, f)
}

// Len reports the number of entries, or -1 if the inner cache cannot tell.
func (c *LockedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.inner.(interface{ Len() int }); ok {
		return l.Len()
	}
	return -1
}
