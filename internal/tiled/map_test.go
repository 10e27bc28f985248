package tiled

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// 4x3 map of 16px tiles. Tile 1 of the "walls" tileset carries a full-tile
// collision box, tile 2 a half-height one.
const testMap = `{
  "width": 4, "height": 3, "tilewidth": 16, "tileheight": 16, "infinite": false,
  "tilesets": [
    {"firstgid": 10, "name": "decor", "tilecount": 5, "columns": 5, "tilewidth": 16, "tileheight": 16},
    {"firstgid": 1, "name": "walls", "tilecount": 4, "columns": 2, "tilewidth": 16, "tileheight": 16,
     "tiles": [
       {"id": 1, "objectgroup": {"objects": [{"id": 1, "type": "collisionBox", "x": 0, "y": 0, "width": 16, "height": 16}]}},
       {"id": 2, "objectgroup": {"objects": [{"id": 1, "class": "collisionBox", "x": 0, "y": 8, "width": 16, "height": 8}]}}
     ]}
  ],
  "layers": [
    {"name": "ground", "type": "tilelayer", "visible": true, "x": 0, "y": 0, "width": 4, "height": 3,
     "data": [2, 0, 0, 0,
              0, 10, 0, 0,
              0, 0, 0, 3]},
    {"name": "hidden", "type": "tilelayer", "visible": false, "x": 0, "y": 0, "width": 4, "height": 3,
     "data": [2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2]},
    {"name": "spawns", "type": "objectgroup", "visible": false, "x": 0, "y": 0, "offsetx": 2, "offsety": 1,
     "objects": [
       {"id": 5, "name": "red", "type": "startPosition", "x": 8, "y": 8, "width": 0, "height": 0},
       {"id": 6, "name": "blue", "type": "startPosition", "x": 56, "y": 40, "width": 0, "height": 0},
       {"id": 7, "name": "deco", "type": "other", "x": 1, "y": 1}
     ]},
    {"name": "collisions", "type": "objectgroup", "visible": true, "x": 0, "y": 0, "offsetx": 0, "offsety": 0,
     "objects": [
       {"id": 8, "name": "", "type": "collisionBox", "x": 20, "y": 4, "width": 10, "height": 2}
     ]}
  ]
}`

func mustParse(t *testing.T, data string) *Map {
	t.Helper()
	m, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return m
}

// TestStartPositions verifies start objects are offset by their layer
func TestStartPositions(t *testing.T) {
	m := mustParse(t, testMap)

	got := m.StartPositions()
	want := map[string]Point{
		"red":  {X: 10, Y: 9},
		"blue": {X: 58, Y: 41},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestCollisionRects covers object boxes, tile boxes, flip flags and hidden layers
func TestCollisionRects(t *testing.T) {
	m := mustParse(t, testMap)

	got := m.CollisionRects()
	want := []Rect{
		{X: 20, Y: 4, Width: 10, Height: 2}, // object group
		{X: 0, Y: 0, Width: 16, Height: 16},  // gid 2 at (0,0)
		{X: 48, Y: 40, Width: 16, Height: 8}, // gid 3 at (3,2)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestRealGIDStripsFlipFlags checks flipped gids resolve to the same tile
func TestRealGIDStripsFlipFlags(t *testing.T) {
	m := mustParse(t, testMap)

	flipped := uint32(2) | FlippedHorizontally | FlippedDiagonally
	if got := RealGID(flipped); got != 2 {
		t.Errorf("Expected gid 2, got %d", got)
	}
	if ts := m.TileSetFor(flipped); ts == nil || ts.Name != "walls" {
		t.Errorf("Expected walls tileset, got %+v", ts)
	}
	if ts := m.TileSetFor(12); ts == nil || ts.Name != "decor" {
		t.Errorf("Expected decor tileset, got %+v", ts)
	}
	if ts := m.TileSetFor(99); ts != nil {
		t.Errorf("Expected no tileset for gid 99, got %s", ts.Name)
	}
	if got := m.GID("decor", 3); got != 13 {
		t.Errorf("Expected gid 13, got %d", got)
	}
	if got := m.GID("missing", 3); got != 0 {
		t.Errorf("Expected gid 0 for unknown tileset, got %d", got)
	}
}

// TestLegacyTileObject decodes the older keyed tile format
func TestLegacyTileObject(t *testing.T) {
	m := mustParse(t, `{
	  "width": 1, "height": 1, "tilewidth": 8, "tileheight": 8,
	  "tilesets": [{"firstgid": 1, "name": "old", "tilecount": 2,
	    "tiles": {"1": {"objectgroup": {"objects": [{"type": "collisionBox", "x": 1, "y": 1, "width": 2, "height": 2}]}}}}],
	  "layers": [{"type": "tilelayer", "visible": true, "width": 1, "height": 1, "data": [2]}]
	}`)

	want := []Rect{{X: 1, Y: 1, Width: 2, Height: 2}}
	if got := m.CollisionRects(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func encodeTiles(t *testing.T, gids []uint32) string {
	t.Helper()
	raw := make([]byte, 4*len(gids))
	for i, g := range gids {
		binary.LittleEndian.PutUint32(raw[i*4:], g)
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(raw)
	w.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// TestInfiniteChunks decodes compressed chunk data and places tiles by chunk origin
func TestInfiniteChunks(t *testing.T) {
	data := encodeTiles(t, []uint32{0, 0, 0, 2})
	m := mustParse(t, `{
	  "width": 4, "height": 4, "tilewidth": 16, "tileheight": 16, "infinite": true,
	  "tilesets": [{"firstgid": 1, "name": "walls", "tilecount": 4,
	    "tiles": [{"id": 1, "objectgroup": {"objects": [{"type": "collisionBox", "x": 0, "y": 0, "width": 16, "height": 16}]}}]}],
	  "layers": [{"type": "tilelayer", "visible": true, "encoding": "base64", "compression": "zlib",
	    "chunks": [{"x": -2, "y": 4, "width": 2, "height": 2, "data": "`+data+`"}]}]
	}`)

	want := []Rect{{X: -16, Y: 80, Width: 16, Height: 16}}
	if got := m.CollisionRects(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestParseErrors covers malformed input
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"zero tile size", `{"width": 1, "height": 1, "tilewidth": 0, "tileheight": 16}`},
		{"bad encoding", `{"tilewidth": 16, "tileheight": 16, "layers": [{"type": "tilelayer", "encoding": "xml", "data": "abc"}]}`},
		{"bad compression", `{"tilewidth": 16, "tileheight": 16, "layers": [{"type": "tilelayer", "encoding": "base64", "compression": "zstd", "data": "AAAAAA=="}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

// TestLoadCatalog reads every map directory and skips the rest
func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "default"), 0o755)
	os.MkdirAll(filepath.Join(dir, "empty"), 0o755)
	os.WriteFile(filepath.Join(dir, "default", MapFile), []byte(testMap), 0o644)
	os.WriteFile(filepath.Join(dir, "README"), []byte("not a map"), 0o644)

	c, err := LoadCatalog(dir)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if got := c.Names(); !reflect.DeepEqual(got, []string{"default"}) {
		t.Errorf("Expected [default], got %v", got)
	}
	m, ok := c.Get("default")
	if !ok {
		t.Fatal("Expected default map")
	}
	if w, h := m.PixelSize(); w != 64 || h != 48 {
		t.Errorf("Expected 64x48, got %dx%d", w, h)
	}
	if got := MapURL("default"); got != "/maps/default/map.json" {
		t.Errorf("Unexpected map url %s", got)
	}

	if _, err := LoadCatalog(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing dir")
	}
}
