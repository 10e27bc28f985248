// Package spatial provides a uniform grid for broad-phase neighbor queries
// over static map geometry.
//
// Items are stored as integer indices into the caller's slice, not pointers.
package spatial

import (
	"math"
)

// SpatialGrid buckets axis-aligned boxes into fixed-size cells. A box is
// listed in every cell it overlaps, so a query only visits nearby cells.
//
// Optimal cell size is close to the largest query radius. For splashes
// (radius 24, shadow reach 26.4) two tiles of 16px work well.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]uint32 // cells[row*cols+col] = list of item indices
	seen        []uint32   // query stamp per item, dedups boxes spanning cells
	stamp       uint32
	scratch     []uint32 // reusable buffer for query results
}

// NewSpatialGrid creates a grid for the given world bounds.
func NewSpatialGrid(worldWidth, worldHeight, cellSize float64) *SpatialGrid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       make([][]uint32, cols*rows),
		scratch:     make([]uint32, 0, 16),
	}
}

// Insert adds the box [x0, x1] x [y0, y1] under id. Boxes outside the grid
// are clamped onto its border cells.
func (g *SpatialGrid) Insert(id uint32, x0, y0, x1, y1 float64) {
	minCol, minRow, maxCol, maxRow := g.cellRange(x0, y0, x1, y1)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.cells[idx] = append(g.cells[idx], id)
		}
	}
	for int(id) >= len(g.seen) {
		g.seen = append(g.seen, 0)
	}
}

// QueryRadius returns every id whose box may lie within radius of (cx, cy),
// each once, in insertion order per cell.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// The caller must perform a precise distance check (narrow phase).
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]
	g.stamp++
	if g.stamp == 0 {
		// wrapped, forget old stamps
		for i := range g.seen {
			g.seen[i] = 0
		}
		g.stamp = 1
	}

	minCol, minRow, maxCol, maxRow := g.cellRange(cx-radius, cy-radius, cx+radius, cy+radius)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, id := range g.cells[row*g.cols+col] {
				if g.seen[id] == g.stamp {
					continue
				}
				g.seen[id] = g.stamp
				g.scratch = append(g.scratch, id)
			}
		}
	}
	return g.scratch
}

func (g *SpatialGrid) cellRange(x0, y0, x1, y1 float64) (minCol, minRow, maxCol, maxRow int) {
	minCol = g.clampCol(int(math.Floor(x0 * g.invCellSize)))
	maxCol = g.clampCol(int(math.Floor(x1 * g.invCellSize)))
	minRow = g.clampRow(int(math.Floor(y0 * g.invCellSize)))
	maxRow = g.clampRow(int(math.Floor(y1 * g.invCellSize)))
	return
}

func (g *SpatialGrid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *SpatialGrid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// Stats returns grid statistics for debugging/profiling.
func (g *SpatialGrid) Stats() GridStats {
	var entries, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		entries += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}

	avgPerCell := 0.0
	if nonEmpty > 0 {
		avgPerCell = float64(entries) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		Items:          len(g.seen),
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	TotalCells     int     `json:"totalCells"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	Items          int     `json:"items"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}

// Dimensions returns the grid dimensions.
func (g *SpatialGrid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
