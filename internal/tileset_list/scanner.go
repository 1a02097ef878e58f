package tileset_list

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tilecache/internal/tileset"
)

// Scanner lists the tileset files under an asset directory. Paths are
// reported relative to the directory, with forward slashes.
type Scanner struct {
	assetDir string
	logger   *zap.Logger

	mu       sync.RWMutex
	tilesets []string
	known    map[string]bool
}

func New(assetDir string, logger *zap.Logger) *Scanner {
	return &Scanner{
		assetDir: assetDir,
		logger:   logger,
		known:    map[string]bool{},
	}
}

func (s *Scanner) Scan() error {
	var found []string

	err := filepath.WalkDir(s.assetDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.assetDir {
				return err
			}
			s.logger.Warn("Error walking asset directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != s.assetDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !tileset.IsTilesetFile(path) {
			return nil
		}

		rel, err := filepath.Rel(s.assetDir, path)
		if err != nil {
			s.logger.Warn("Failed to relativize path", zap.String("path", path), zap.Error(err))
			return nil
		}
		found = append(found, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read asset directory: %w", err)
	}

	sort.Strings(found)
	known := make(map[string]bool, len(found))
	for _, rel := range found {
		known[rel] = true
	}

	s.mu.Lock()
	s.tilesets = found
	s.known = known
	s.mu.Unlock()

	s.logger.Info("Scanned asset directory", zap.String("asset_dir", s.assetDir), zap.Int("tilesets", len(found)))
	return nil
}

func (s *Scanner) GetTilesets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.tilesets))
	copy(out, s.tilesets)
	return out
}

// Contains reports whether rel was found by the last scan.
func (s *Scanner) Contains(rel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.known[rel]
}

// GetTilesetPath maps a scanned relative path to the key used for caching.
func (s *Scanner) GetTilesetPath(rel string) string {
	return filepath.Join(s.assetDir, filepath.FromSlash(rel))
}
