package tileset

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported tileset format")
	ErrInvalidTileset    = errors.New("invalid tileset")
	ErrTileOutOfRange    = errors.New("tile id out of range")
)

// Image is the atlas image a tileset slices into tiles.
type Image struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Tile holds per-tile metadata. Tiles without metadata are not listed.
type Tile struct {
	ID         int               `json:"id"`
	Type       string            `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Tileset is a parsed tileset. Once handed to a cache it is shared by every
// caller and must not be modified.
type Tileset struct {
	InstanceID string `json:"instance_id"`
	Name       string `json:"name"`
	TileWidth  int    `json:"tile_width"`
	TileHeight int    `json:"tile_height"`
	Spacing    int    `json:"spacing"`
	Margin     int    `json:"margin"`
	TileCount  int    `json:"tile_count"`
	Columns    int    `json:"columns"`
	Image      Image  `json:"image"`
	Tiles      []Tile `json:"tiles,omitempty"`
}

func (t *Tileset) Rows() int {
	if t.Columns <= 0 {
		return 0
	}
	return (t.TileCount + t.Columns - 1) / t.Columns
}

// TileRect returns the pixel rectangle of tile id inside the atlas image.
func (t *Tileset) TileRect(id int) (image.Rectangle, error) {
	if id < 0 || id >= t.TileCount || t.Columns <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %d (tile count %d)", ErrTileOutOfRange, id, t.TileCount)
	}

	col := id % t.Columns
	row := id / t.Columns
	x := t.Margin + col*(t.TileWidth+t.Spacing)
	y := t.Margin + row*(t.TileHeight+t.Spacing)
	return image.Rect(x, y, x+t.TileWidth, y+t.TileHeight), nil
}

// AtlasRect is TileRect checked against the actual atlas size. A tile that
// falls outside the image means the tileset disagrees with its image.
func (t *Tileset) AtlasRect(id, width, height int) (image.Rectangle, error) {
	rect, err := t.TileRect(id)
	if err != nil {
		return image.Rectangle{}, err
	}
	if rect.Max.X > width || rect.Max.Y > height {
		return image.Rectangle{}, fmt.Errorf("%w: tile %d lies outside the %dx%d atlas", ErrInvalidTileset, id, width, height)
	}
	return rect, nil
}

// Tile returns the metadata of tile id, if any was declared.
func (t *Tileset) Tile(id int) (Tile, bool) {
	for _, tile := range t.Tiles {
		if tile.ID == id {
			return tile, true
		}
	}
	return Tile{}, false
}

func (t *Tileset) validate() error {
	if t.TileWidth <= 0 || t.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalidTileset, t.TileWidth, t.TileHeight)
	}
	if t.Image.Source == "" {
		return fmt.Errorf("%w: missing image source", ErrInvalidTileset)
	}
	if t.Spacing < 0 || t.Margin < 0 {
		return fmt.Errorf("%w: negative spacing or margin", ErrInvalidTileset)
	}
	return nil
}

// fillDerived computes columns and tile count from the image geometry when the
// file left them out.
func (t *Tileset) fillDerived() {
	if t.Columns <= 0 && t.Image.Width > 0 {
		usable := t.Image.Width - 2*t.Margin + t.Spacing
		t.Columns = usable / (t.TileWidth + t.Spacing)
	}
	if t.TileCount <= 0 && t.Columns > 0 && t.Image.Height > 0 {
		usable := t.Image.Height - 2*t.Margin + t.Spacing
		rows := usable / (t.TileHeight + t.Spacing)
		t.TileCount = t.Columns * rows
	}
}

// TileImage is one tile cut out of the atlas and encoded.
type TileImage struct {
	Data        []byte
	ContentType string
	ETag        string
}
