package imageprobe

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"
)

type Config struct {
	MaxCacheMB  int
	Concurrency int
}

// Startup initializes libvips and routes its warnings and errors to log.
// Callers must defer vips.Shutdown.
func Startup(cfg Config, log *zap.Logger) {
	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelWarning)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: cfg.Concurrency,
		MaxCacheMem:      cfg.MaxCacheMB * 1024 * 1024,
		MaxCacheFiles:    0,
		MaxCacheSize:     0,
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	})

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.MaxCacheMB),
		zap.Int("concurrency", cfg.Concurrency),
	)
}

// VipsProber reads atlas image dimensions with libvips.
type VipsProber struct{}

func NewVipsProber() *VipsProber {
	return &VipsProber{}
}

func (p *VipsProber) Probe(path string) (int, int, error) {
	image, err := Open(path, false)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer image.Close()

	return image.Width(), image.Height(), nil
}

// Open loads an image based on file extension. Random access suits cropping
// anywhere in the image; sequential access is enough for reading the header.
func Open(path string, random bool) (*vips.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))

	access := vips.AccessSequential
	if random {
		access = vips.AccessRandom
	}

	switch ext {
	case ".tif", ".tiff":
		opts := vips.DefaultTiffloadOptions()
		opts.Access = access
		return vips.NewTiffload(path, opts)
	case ".jpg", ".jpeg":
		opts := vips.DefaultJpegloadOptions()
		opts.Access = access
		return vips.NewJpegload(path, opts)
	case ".png":
		opts := vips.DefaultPngloadOptions()
		opts.Access = access
		return vips.NewPngload(path, opts)
	case ".webp":
		opts := vips.DefaultWebploadOptions()
		opts.Access = access
		return vips.NewWebpload(path, opts)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", ext)
	}
}
