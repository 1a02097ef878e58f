package resource

import (
	"fmt"

	"go.uber.org/zap"
)

// NewCache creates a cache instance based on the cache mode
func NewCache(mode string, log *zap.Logger) (Cache, error) {
	switch mode {
	case "sync":
		log.Info("Using synchronized tileset cache")
		return NewSyncCache(), nil
	case "local":
		log.Info("Using locked tileset cache")
		return NewLockedCache(NewFilesystemCache()), nil
	default:
		return nil, fmt.Errorf("unknown cache mode: %s (supported: sync, local)", mode)
	}
}
