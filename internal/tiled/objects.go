package tiled

// Flip flags stored in the high bits of a gid.
const (
	FlippedHorizontally uint32 = 0x80000000
	FlippedVertically   uint32 = 0x40000000
	FlippedDiagonally   uint32 = 0x20000000

	flipMask = FlippedHorizontally | FlippedVertically | FlippedDiagonally
)

// Point is a position in map pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in map pixels, anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the rectangle's center.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// RealGID strips the flip flags from a gid.
func RealGID(gid uint32) uint32 {
	return gid &^ flipMask
}

// TileSetFor returns the tileset owning a gid, or nil.
func (m *Map) TileSetFor(gid uint32) *TileSet {
	id := RealGID(gid)
	for i := range m.TileSets {
		ts := &m.TileSets[i]
		if id >= ts.FirstGID && id < ts.FirstGID+ts.TileCount {
			return ts
		}
	}
	return nil
}

// TileSetByName returns the tileset with the given name, or nil.
func (m *Map) TileSetByName(name string) *TileSet {
	for i := range m.TileSets {
		if m.TileSets[i].Name == name {
			return &m.TileSets[i]
		}
	}
	return nil
}

// GID returns the global id of a tileset's local tile, or 0 when the
// tileset does not exist.
func (m *Map) GID(tileSet string, localID uint32) uint32 {
	ts := m.TileSetByName(tileSet)
	if ts == nil {
		return 0
	}
	return ts.FirstGID + localID
}

// Tile returns the configuration of the tile a gid points at.
func (ts *TileSet) Tile(gid uint32) (Tile, bool) {
	if ts == nil || ts.Tiles == nil {
		return Tile{}, false
	}
	t, ok := ts.Tiles[RealGID(gid)-ts.FirstGID]
	return t, ok
}

func (m *Map) layerOrigin(l *Layer) Point {
	return Point{
		X: float64(l.X*m.TileWidth) + l.OffsetX,
		Y: float64(l.Y*m.TileHeight) + l.OffsetY,
	}
}

// StartPositions returns the startPosition objects of every object group,
// keyed by object name. Later layers win on duplicate names.
func (m *Map) StartPositions() map[string]Point {
	out := make(map[string]Point)
	walkLayers(m.Layers, func(l *Layer) {
		if l.Type != ObjectGroup {
			return
		}
		origin := m.layerOrigin(l)
		for _, o := range l.Objects {
			if o.Kind() != StartPositionType {
				continue
			}
			out[o.Name] = Point{X: origin.X + o.X, Y: origin.Y + o.Y}
		}
	})
	return out
}

// CollisionRects returns every collisionBox in visible layers: objects of
// object groups, then boxes attached to the tiles of tile layers.
func (m *Map) CollisionRects() []Rect {
	var out []Rect
	walkLayers(m.Layers, func(l *Layer) {
		if l.Type != ObjectGroup || !l.Visible {
			return
		}
		origin := m.layerOrigin(l)
		for _, o := range l.Objects {
			if o.Kind() != CollisionBoxType {
				continue
			}
			out = append(out, Rect{X: origin.X + o.X, Y: origin.Y + o.Y, Width: o.Width, Height: o.Height})
		}
	})

	walkLayers(m.Layers, func(l *Layer) {
		if l.Type != TileLayer || !l.Visible {
			return
		}
		for _, c := range l.Chunks {
			out = m.tileRects(out, l, c.Data.GIDs, c.X, c.Y, c.Width)
		}
		out = m.tileRects(out, l, l.Data.GIDs, l.StartX, l.StartY, l.Width)
	})
	return out
}

// tileRects appends the collision boxes of a row-major grid of gids whose
// first tile sits at tile coordinates (x0, y0).
func (m *Map) tileRects(out []Rect, l *Layer, gids []uint32, x0, y0, width int) []Rect {
	if width <= 0 {
		return out
	}
	for i, gid := range gids {
		if gid == 0 {
			continue
		}
		tile, ok := m.TileSetFor(gid).Tile(gid)
		if !ok || tile.ObjectGroup == nil {
			continue
		}
		tx := float64((l.X+x0+i%width)*m.TileWidth) + l.OffsetX
		ty := float64((l.Y+y0+i/width)*m.TileHeight) + l.OffsetY
		for _, o := range tile.ObjectGroup.Objects {
			if o.Kind() != CollisionBoxType {
				continue
			}
			out = append(out, Rect{X: tx + o.X, Y: ty + o.Y, Width: o.Width, Height: o.Height})
		}
	}
	return out
}

func walkLayers(layers []Layer, fn func(*Layer)) {
	for i := range layers {
		fn(&layers[i])
		walkLayers(layers[i].Layers, fn)
	}
}
