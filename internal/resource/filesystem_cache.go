package resource

import "tilecache/internal/tileset"

// FilesystemCache identifies tilesets by their path in the user's filesystem.
// Paths are compared as given: "a.tsx" and "./a.tsx" are different keys.
//
// FilesystemCache is not safe for concurrent use. Use SyncCache when the cache
// is shared between goroutines.
type FilesystemCache struct {
	tilesets map[string]*tileset.Tileset
}

func NewFilesystemCache() *FilesystemCache {
	return &FilesystemCache{
		tilesets: make(map[string]*tileset.Tileset),
	}
}

func (c *FilesystemCache) Tileset(path string) (*tileset.Tileset, bool) {
	ts, ok := c.tilesets[path]
	return ts, ok
}

func (c *FilesystemCache) GetOrTryInsertTileset(path string, f Constructor) (*tileset.Tileset, error) {
	if ts, ok := c.tilesets[path]; ok {
		return ts, nil
	}

	value, err := f()
	if err != nil {
		return nil, err
	}

	ts := &value
	c.tilesets[path] = ts
	return ts, nil
}

func (c *FilesystemCache) Len() int {
	return len(c.tilesets)
}
