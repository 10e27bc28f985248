// Package tiled loads Tiled JSON maps and extracts the objects the game
// cares about: team start positions and collision rectangles.
package tiled

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// Object types recognized in object groups.
const (
	StartPositionType = "startPosition"
	CollisionBoxType  = "collisionBox"
)

// Layer types.
const (
	TileLayer   = "tilelayer"
	ObjectGroup = "objectgroup"
)

// Map is a decoded Tiled map. Only the fields the server uses are kept.
type Map struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	TileWidth  int       `json:"tilewidth"`
	TileHeight int       `json:"tileheight"`
	Infinite   bool      `json:"infinite"`
	Layers     []Layer   `json:"layers"`
	TileSets   []TileSet `json:"tilesets"`
}

// PixelSize returns the map size in pixels.
func (m *Map) PixelSize() (int, int) {
	return m.Width * m.TileWidth, m.Height * m.TileHeight
}

// Layer is a tile layer or an object group.
type Layer struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Visible     bool    `json:"visible"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	OffsetX     float64 `json:"offsetx"`
	OffsetY     float64 `json:"offsety"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	StartX      int     `json:"startx"`
	StartY      int     `json:"starty"`
	Encoding    string  `json:"encoding"`
	Compression string  `json:"compression"`

	Data    TileData `json:"data"`
	Chunks  []Chunk  `json:"chunks"`
	Objects []Object `json:"objects"`
	Layers  []Layer  `json:"layers"` // group layers
}

// Chunk is a piece of an infinite tile layer.
type Chunk struct {
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Data   TileData `json:"data"`
}

// Object is a shape placed in an object group.
type Object struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Class    string  `json:"class"` // Tiled 1.9+ name for type
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	Visible  bool    `json:"visible"`
}

// Kind returns the object's type, falling back to its class.
func (o Object) Kind() string {
	if o.Type != "" {
		return o.Type
	}
	return o.Class
}

// TileSet is an embedded tileset.
type TileSet struct {
	FirstGID   uint32   `json:"firstgid"`
	Name       string   `json:"name"`
	TileCount  uint32   `json:"tilecount"`
	Columns    int      `json:"columns"`
	TileWidth  int      `json:"tilewidth"`
	TileHeight int      `json:"tileheight"`
	Source     string   `json:"source"`
	Tiles      TileList `json:"tiles"`
}

// Tile carries per-tile configuration such as collision objects.
type Tile struct {
	ID          uint32       `json:"id"`
	ObjectGroup *ObjectLayer `json:"objectgroup"`
}

// ObjectLayer is the object group attached to a tile.
type ObjectLayer struct {
	Objects []Object `json:"objects"`
}

// TileList maps local tile ids to their configuration. Tiled writes it as
// an array of tiles, older versions as an object keyed by id.
type TileList map[uint32]Tile

func (l *TileList) UnmarshalJSON(b []byte) error {
	out := make(TileList)
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var keyed map[string]Tile
		if err := json.Unmarshal(b, &keyed); err != nil {
			return err
		}
		for k, t := range keyed {
			id, err := strconv.ParseUint(k, 10, 32)
			if err != nil {
				return fmt.Errorf("tile id %q: %w", k, err)
			}
			t.ID = uint32(id)
			out[t.ID] = t
		}
		*l = out
		return nil
	}

	var list []Tile
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	for _, t := range list {
		out[t.ID] = t
	}
	*l = out
	return nil
}

// TileData holds layer gids. CSV arrays decode directly; base64 strings are
// kept raw until the layer's encoding is known.
type TileData struct {
	GIDs []uint32
	raw  string
}

func (d *TileData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &d.raw)
	}
	return json.Unmarshal(b, &d.GIDs)
}

// MarshalJSON writes gids back as a CSV array.
func (d TileData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.GIDs)
}

func (d *TileData) decode(encoding, compression string) error {
	if d.raw == "" {
		return nil
	}
	if encoding != "base64" {
		return fmt.Errorf("unsupported tile encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(d.raw)
	if err != nil {
		return fmt.Errorf("decode base64 tiles: %w", err)
	}

	var r io.Reader = bytes.NewReader(data)
	switch compression {
	case "":
	case "zlib":
		if r, err = zlib.NewReader(r); err != nil {
			return fmt.Errorf("open zlib tiles: %w", err)
		}
	case "gzip":
		if r, err = gzip.NewReader(r); err != nil {
			return fmt.Errorf("open gzip tiles: %w", err)
		}
	default:
		return fmt.Errorf("unsupported tile compression %q", compression)
	}

	data, err = io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("inflate tiles: %w", err)
	}
	if len(data)%4 != 0 {
		return errors.New("tile data is not a multiple of 4 bytes")
	}
	d.GIDs = make([]uint32, len(data)/4)
	for i := range d.GIDs {
		d.GIDs[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	d.raw = ""
	return nil
}

// Load reads and parses a map file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a Tiled JSON map.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return nil, fmt.Errorf("invalid tile size %dx%d", m.TileWidth, m.TileHeight)
	}
	if err := decodeLayers(m.Layers); err != nil {
		return nil, err
	}
	// tileset lookup walks in gid order
	sort.Slice(m.TileSets, func(i, j int) bool { return m.TileSets[i].FirstGID < m.TileSets[j].FirstGID })
	return &m, nil
}

func decodeLayers(layers []Layer) error {
	for i := range layers {
		l := &layers[i]
		if err := l.Data.decode(l.Encoding, l.Compression); err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
		for j := range l.Chunks {
			if err := l.Chunks[j].Data.decode(l.Encoding, l.Compression); err != nil {
				return fmt.Errorf("layer %q chunk %d: %w", l.Name, j, err)
			}
		}
		if err := decodeLayers(l.Layers); err != nil {
			return err
		}
	}
	return nil
}
