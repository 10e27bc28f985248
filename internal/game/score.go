package game

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/fogleman/gg"

	"bombersplash/internal/game/spatial"
	"bombersplash/internal/tiled"
)

// wallCellSize is the wall index cell size in map pixels
const wallCellSize = 32

// Score paints splashes onto a canvas the size of the map and counts the
// pixels each team covers. Walls and the area they shadow from a splash
// center stay unpainted.
type Score struct {
	width, height int
	rects         []tiled.Rect
	walls         *spatial.SpatialGrid // indexes rects
	canvas        *gg.Context
}

// NewScore creates an empty canvas of the given pixel size
func NewScore(width, height int, rects []tiled.Rect) *Score {
	walls := spatial.NewSpatialGrid(float64(width), float64(height), wallCellSize)
	for i, r := range rects {
		walls.Insert(uint32(i), r.X, r.Y, r.X+r.Width, r.Y+r.Height)
	}
	return &Score{
		width:  width,
		height: height,
		rects:  rects,
		walls:  walls,
		canvas: gg.NewContext(width, height),
	}
}

// AddSplash paints a splash in its team colour. Splashes of unknown teams
// are rejected.
func (s *Score) AddSplash(sp Splash) error {
	c, ok := TeamColors[sp.Team]
	if !ok {
		return fmt.Errorf("splash %s: unknown team %q", sp.ID, sp.Team)
	}

	dc := gg.NewContext(s.width, s.height)
	if err := dc.SetMask(s.shadowMask(sp)); err != nil {
		return fmt.Errorf("splash %s: %w", sp.ID, err)
	}
	dc.InvertMask()

	dc.SetColor(c)
	dc.DrawCircle(float64(sp.Pos.X), float64(sp.Pos.Y), float64(sp.R))
	dc.Fill()

	if dst, ok := s.canvas.Image().(draw.Image); ok {
		draw.Draw(dst, dst.Bounds(), dc.Image(), image.Point{}, draw.Over)
	}
	return nil
}

// shadowMask covers every wall near the splash plus the wedge behind it, as
// seen from the splash center.
func (s *Score) shadowMask(sp Splash) *image.Alpha {
	dc := gg.NewContext(s.width, s.height)
	dc.SetColor(color.Black)

	cx, cy := float64(sp.Pos.X), float64(sp.Pos.Y)
	reach := float64(sp.R) * 1.1

	for _, i := range s.walls.QueryRadius(cx, cy, reach) {
		r := s.rects[i]
		if rectDistance(r, cx, cy) > reach {
			continue
		}
		dc.DrawRectangle(r.X, r.Y, r.Width, r.Height)
		dc.Fill()

		corners := [4]tiled.Point{
			{X: r.X, Y: r.Y},
			{X: r.X, Y: r.Y + r.Height},
			{X: r.X + r.Width, Y: r.Y},
			{X: r.X + r.Width, Y: r.Y + r.Height},
		}

		// the two corners spanning the widest angle from the center
		minA, maxA := math.Inf(1), math.Inf(-1)
		var minP, maxP tiled.Point
		for _, p := range corners {
			a := math.Atan2(p.Y-cy, p.X-cx)
			if cx > r.X+r.Width {
				// keep angles continuous across the -x axis
				a = math.Mod(a+2*math.Pi, 2*math.Pi)
			}
			if a > maxA {
				maxA, maxP = a, p
			}
			if a < minA {
				minA, minP = a, p
			}
		}

		dc.NewSubPath()
		dc.DrawArc(cx, cy, reach, minA, maxA)
		dc.LineTo(maxP.X, maxP.Y)
		dc.LineTo(minP.X, minP.Y)
		dc.ClosePath()
		dc.Fill()
	}

	return dc.AsMask()
}

// rectDistance returns the distance from a point to the closest point of a rect
func rectDistance(r tiled.Rect, x, y float64) float64 {
	dx := math.Max(math.Max(r.X-x, 0), x-(r.X+r.Width))
	dy := math.Max(math.Max(r.Y-y, 0), y-(r.Y+r.Height))
	return math.Hypot(dx, dy)
}

// Count returns the number of pixels painted in each team colour
func (s *Score) Count() map[string]int {
	counts := make(map[string]int, len(TeamColors))
	for name := range TeamColors {
		counts[name] = 0
	}

	img, ok := s.canvas.Image().(*image.RGBA)
	if !ok {
		return counts
	}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		if img.Pix[i+3] != 0xff {
			continue
		}
		px := color.RGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: 0xff}
		for name, c := range TeamColors {
			if px == c {
				counts[name]++
				break
			}
		}
	}
	return counts
}

// Image returns the painted canvas
func (s *Score) Image() image.Image {
	return s.canvas.Image()
}

// Walls returns the wall rectangles the score was built with
func (s *Score) Walls() []tiled.Rect {
	return s.rects
}

// SavePNG writes the canvas to a PNG file
func (s *Score) SavePNG(path string) error {
	return s.canvas.SavePNG(path)
}
