package library

import (
	"errors"
	"path"
	"strings"

	"go.uber.org/zap"

	"tilecache/internal/resource"
	"tilecache/internal/tileset"
	"tilecache/internal/tileset_list"
)

var (
	ErrInvalidPath = errors.New("invalid tileset path")
	ErrNotFound    = errors.New("tileset not found")
)

type Loader interface {
	Constructor(path string) func() (tileset.Tileset, error)
}

// Library resolves asset-relative tileset paths through the shared cache.
type Library struct {
	scanner *tileset_list.Scanner
	cache   resource.Cache
	loader  Loader
	logger  *zap.Logger
}

func New(scanner *tileset_list.Scanner, cache resource.Cache, loader Loader, logger *zap.Logger) *Library {
	return &Library{
		scanner: scanner,
		cache:   cache,
		loader:  loader,
		logger:  logger,
	}
}

// Clean validates a user supplied relative path and returns its canonical
// form. The cache compares keys verbatim, so every caller must go through
// Clean before building a key.
func Clean(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" || strings.Contains(rel, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(strings.TrimPrefix(rel, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// Path returns the cache key for a scanned relative path.
func (l *Library) Path(rel string) (string, error) {
	cleaned, err := Clean(rel)
	if err != nil {
		return "", err
	}
	if !l.scanner.Contains(cleaned) {
		return "", ErrNotFound
	}
	return l.scanner.GetTilesetPath(cleaned), nil
}

// Get returns the shared tileset for rel, loading it on first use. hit is
// false when this call found the cache without an entry.
func (l *Library) Get(rel string) (ts *tileset.Tileset, hit bool, err error) {
	key, err := l.Path(rel)
	if err != nil {
		return nil, false, err
	}

	if ts, ok := l.cache.Tileset(key); ok {
		return ts, true, nil
	}

	ts, err = l.cache.GetOrTryInsertTileset(key, l.loader.Constructor(key))
	if err != nil {
		l.logger.Warn("Failed to load tileset", zap.String("path", key), zap.Error(err))
		return nil, false, err
	}
	return ts, false, nil
}

// Cached returns the tileset for rel only if it is already loaded.
func (l *Library) Cached(rel string) (*tileset.Tileset, bool) {
	key, err := l.Path(rel)
	if err != nil {
		return nil, false
	}
	return l.cache.Tileset(key)
}

// Paths returns the scanned tileset paths, relative to the asset directory.
func (l *Library) Paths() []string {
	return l.scanner.GetTilesets()
}

// Keys returns the cache keys of every scanned tileset.
func (l *Library) Keys() []string {
	rels := l.scanner.GetTilesets()
	keys := make([]string, len(rels))
	for i, rel := range rels {
		keys[i] = l.scanner.GetTilesetPath(rel)
	}
	return keys
}
