package resource

import "tilecache/internal/tileset"

// Constructor builds a tileset on a cache miss. Its error is returned to the
// caller of GetOrTryInsertTileset as is.
type Constructor func() (tileset.Tileset, error)

// Cache hands out shared tileset handles keyed by filesystem path.
type Cache interface {
	// Tileset returns the cached handle for path, if any. It never constructs.
	Tileset(path string) (*tileset.Tileset, bool)

	// GetOrTryInsertTileset returns the handle cached for path. On a miss it
	// calls f once and caches the result; a failed f leaves the cache unchanged.
	GetOrTryInsertTileset(path string, f Constructor) (*tileset.Tileset, error)
}
