package tileset

import (
	"encoding/json"
	"encoding/xml"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Tiled XML (.tsx)

type tsxProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type tsxTile struct {
	ID         int           `xml:"id,attr"`
	Type       string        `xml:"type,attr"`
	Class      string        `xml:"class,attr"`
	Properties []tsxProperty `xml:"properties>property"`
}

type tsxImage struct {
	Source string `xml:"source,attr"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
}

type tsxTileset struct {
	XMLName    xml.Name  `xml:"tileset"`
	Name       string    `xml:"name,attr"`
	TileWidth  int       `xml:"tilewidth,attr"`
	TileHeight int       `xml:"tileheight,attr"`
	Spacing    int       `xml:"spacing,attr"`
	Margin     int       `xml:"margin,attr"`
	TileCount  int       `xml:"tilecount,attr"`
	Columns    int       `xml:"columns,attr"`
	Image      tsxImage  `xml:"image"`
	Tiles      []tsxTile `xml:"tile"`
}

func decodeTSX(data []byte) (*Tileset, error) {
	var raw tsxTileset
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	ts := &Tileset{
		Name:       raw.Name,
		TileWidth:  raw.TileWidth,
		TileHeight: raw.TileHeight,
		Spacing:    raw.Spacing,
		Margin:     raw.Margin,
		TileCount:  raw.TileCount,
		Columns:    raw.Columns,
		Image: Image{
			Source: raw.Image.Source,
			Width:  raw.Image.Width,
			Height: raw.Image.Height,
		},
	}
	for _, t := range raw.Tiles {
		tile := Tile{ID: t.ID, Type: t.Type}
		// Tiled 1.9 renamed "type" to "class".
		if tile.Type == "" {
			tile.Type = t.Class
		}
		if len(t.Properties) > 0 {
			tile.Properties = make(map[string]string, len(t.Properties))
			for _, p := range t.Properties {
				tile.Properties[p.Name] = p.Value
			}
		}
		ts.Tiles = append(ts.Tiles, tile)
	}
	return ts, nil
}

// Tiled JSON (.tsj, .json)

type jsonProperty struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type jsonTile struct {
	ID         int            `json:"id"`
	Type       string         `json:"type"`
	Class      string         `json:"class"`
	Properties []jsonProperty `json:"properties"`
}

type jsonTileset struct {
	Name        string     `json:"name"`
	TileWidth   int        `json:"tilewidth"`
	TileHeight  int        `json:"tileheight"`
	Spacing     int        `json:"spacing"`
	Margin      int        `json:"margin"`
	TileCount   int        `json:"tilecount"`
	Columns     int        `json:"columns"`
	Image       string     `json:"image"`
	ImageWidth  int        `json:"imagewidth"`
	ImageHeight int        `json:"imageheight"`
	Tiles       []jsonTile `json:"tiles"`
}

func decodeJSON(data []byte) (*Tileset, error) {
	var raw jsonTileset
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	ts := &Tileset{
		Name:       raw.Name,
		TileWidth:  raw.TileWidth,
		TileHeight: raw.TileHeight,
		Spacing:    raw.Spacing,
		Margin:     raw.Margin,
		TileCount:  raw.TileCount,
		Columns:    raw.Columns,
		Image: Image{
			Source: raw.Image,
			Width:  raw.ImageWidth,
			Height: raw.ImageHeight,
		},
	}
	for _, t := range raw.Tiles {
		tile := Tile{ID: t.ID, Type: t.Type}
		if tile.Type == "" {
			tile.Type = t.Class
		}
		if len(t.Properties) > 0 {
			tile.Properties = make(map[string]string, len(t.Properties))
			for _, p := range t.Properties {
				tile.Properties[p.Name] = fmt.Sprint(p.Value)
			}
		}
		ts.Tiles = append(ts.Tiles, tile)
	}
	return ts, nil
}

// YAML (.yaml, .yml) uses the Tiled JSON key names with a flat property map.

type yamlTile struct {
	ID         int               `yaml:"id"`
	Type       string            `yaml:"type"`
	Properties map[string]string `yaml:"properties"`
}

type yamlTileset struct {
	Name        string     `yaml:"name"`
	TileWidth   int        `yaml:"tilewidth"`
	TileHeight  int        `yaml:"tileheight"`
	Spacing     int        `yaml:"spacing"`
	Margin      int        `yaml:"margin"`
	TileCount   int        `yaml:"tilecount"`
	Columns     int        `yaml:"columns"`
	Image       string     `yaml:"image"`
	ImageWidth  int        `yaml:"imagewidth"`
	ImageHeight int        `yaml:"imageheight"`
	Tiles       []yamlTile `yaml:"tiles"`
}

func decodeYAML(data []byte) (*Tileset, error) {
	var raw yamlTileset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	ts := &Tileset{
		Name:       raw.Name,
		TileWidth:  raw.TileWidth,
		TileHeight: raw.TileHeight,
		Spacing:    raw.Spacing,
		Margin:     raw.Margin,
		TileCount:  raw.TileCount,
		Columns:    raw.Columns,
		Image: Image{
			Source: raw.Image,
			Width:  raw.ImageWidth,
			Height: raw.ImageHeight,
		},
	}
	for _, t := range raw.Tiles {
		ts.Tiles = append(ts.Tiles, Tile{
			ID:         t.ID,
			Type:       t.Type,
			Properties: t.Properties,
		})
	}
	return ts, nil
}
