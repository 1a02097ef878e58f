package tileset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageProber reports the pixel dimensions of an image file.
type ImageProber interface {
	Probe(path string) (width, height int, err error)
}

type decodeFunc func(data []byte) (*Tileset, error)

var decoders = map[string]decodeFunc{
	".tsx":  decodeTSX,
	".tsj":  decodeJSON,
	".json": decodeJSON,
	".yaml": decodeYAML,
	".yml":  decodeYAML,
}

// IsTilesetFile reports whether path has an extension the loader can decode.
func IsTilesetFile(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

type Loader struct {
	prober ImageProber
	logger *zap.Logger
}

// NewLoader creates a loader. prober may be nil, in which case tilesets must
// declare their image dimensions or columns themselves.
func NewLoader(prober ImageProber, logger *zap.Logger) *Loader {
	return &Loader{
		prober: prober,
		logger: logger,
	}
}

func (l *Loader) Load(path string) (Tileset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Tileset{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tileset{}, fmt.Errorf("failed to read tileset: %w", err)
	}

	ts, err := decode(data)
	if err != nil {
		return Tileset{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := ts.validate(); err != nil {
		return Tileset{}, err
	}

	if (ts.Image.Width <= 0 || ts.Image.Height <= 0) && l.prober != nil {
		imagePath := ts.Image.Source
		if !filepath.IsAbs(imagePath) {
			imagePath = filepath.Join(filepath.Dir(path), imagePath)
		}
		w, h, err := l.prober.Probe(imagePath)
		if err != nil {
			return Tileset{}, fmt.Errorf("failed to probe image %s: %w", imagePath, err)
		}
		ts.Image.Width, ts.Image.Height = w, h
	}

	ts.fillDerived()
	if ts.Columns <= 0 {
		return Tileset{}, fmt.Errorf("%w: cannot determine columns", ErrInvalidTileset)
	}
	if ts.TileCount <= 0 {
		return Tileset{}, fmt.Errorf("%w: cannot determine tile count", ErrInvalidTileset)
	}
	if ts.Name == "" {
		ts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	ts.InstanceID = uuid.New().String()

	l.logger.Debug("Loaded tileset",
		zap.String("path", path),
		zap.String("name", ts.Name),
		zap.String("instance_id", ts.InstanceID),
		zap.Int("tile_count", ts.TileCount),
	)

	return *ts, nil
}

// Constructor returns a closure that loads path when invoked. It is meant to
// be handed to a resource cache as the construct-on-miss routine.
func (l *Loader) Constructor(path string) func() (Tileset, error) {
	return func() (Tileset, error) {
		return l.Load(path)
	}
}
