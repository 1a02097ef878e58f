package tile_renderer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"tilecache/internal/imageprobe"
	"tilecache/internal/library"
	"tilecache/internal/tileset"
)

type Renderer struct {
	library *library.Library
	logger  *zap.Logger
}

func New(library *library.Library, logger *zap.Logger) *Renderer {
	return &Renderer{
		library: library,
		logger:  logger,
	}
}

// RenderTile crops tile id out of the atlas image of the tileset at rel and
// encodes it as PNG.
func (r *Renderer) RenderTile(rel string, id int) (*tileset.TileImage, error) {
	ts, _, err := r.library.Get(rel)
	if err != nil {
		return nil, err
	}

	if _, err := ts.TileRect(id); err != nil {
		return nil, err
	}

	key, err := r.library.Path(rel)
	if err != nil {
		return nil, err
	}
	imagePath := ts.Image.Source
	if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(filepath.Dir(key), imagePath)
	}

	image, err := imageprobe.Open(imagePath, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer image.Close()

	rect, err := ts.AtlasRect(id, image.Width(), image.Height())
	if err != nil {
		return nil, err
	}

	if err := image.ExtractArea(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy()); err != nil {
		return nil, fmt.Errorf("failed to extract area: %w", err)
	}

	tileData, err := image.PngsaveBuffer(vips.DefaultPngsaveBufferOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	r.logger.Debug("Rendered tile",
		zap.String("path", key),
		zap.Int("id", id),
		zap.Int("bytes", len(tileData)),
	)

	return &tileset.TileImage{
		Data:        tileData,
		ContentType: "image/png",
		ETag:        generateETag(ts, id),
	}, nil
}

// The instance id changes whenever the tileset is constructed again, which
// only happens in a new process.
func generateETag(ts *tileset.Tileset, id int) string {
	keyStr := fmt.Sprintf("%s/%d", ts.InstanceID, id)
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])[:16]
}
