package resource

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"tilecache/internal/tileset"
)

// SyncCache is a FilesystemCache that is safe for concurrent use. Concurrent
// misses on the same path share a single successful constructor call; a
// caller only ever sees the error of its own constructor.
type SyncCache struct {
	mu       sync.RWMutex
	tilesets map[string]*tileset.Tileset
	group    singleflight.Group
}

func NewSyncCache() *SyncCache {
	return &SyncCache{
		tilesets: make(map[string]*tileset.Tileset),
	}
}

func (c *SyncCache) Tileset(path string) (*tileset.Tileset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ts, ok := c.tilesets[path]
	return ts, ok
}

func (c *SyncCache) GetOrTryInsertTileset(path string, f Constructor) (*tileset.Tileset, error) {
	for {
		if ts, ok := c.Tileset(path); ok {
			return ts, nil
		}

		ran := false
		v, err, _ := c.group.Do(path, func() (interface{}, error) {
			// A flight for path may have finished between the probe above and Do.
			if ts, ok := c.Tileset(path); ok {
				return ts, nil
			}

			ran = true
			value, err := f()
			if err != nil {
				return nil, err
			}

			ts := &value
			c.mu.Lock()
			c.tilesets[path] = ts
			c.mu.Unlock()
			return ts, nil
		})
		if err != nil {
			// Another caller's constructor failed; ours has not run yet.
			if !ran {
				continue
			}
			return nil, err
		}
		return v.(*tileset.Tileset), nil
	}
}

func (c *SyncCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.tilesets)
}
