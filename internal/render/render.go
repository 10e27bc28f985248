// Package render draws spectator frames of a match: painted territory,
// walls, bombs and players plus a small HUD.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"bombersplash/internal/game"
	"bombersplash/internal/world"
)

var (
	backgroundColor = color.RGBA{12, 12, 28, 255}
	gridColor       = color.RGBA{30, 30, 45, 255}
	wallColor       = color.RGBA{70, 70, 90, 255}
	wallEdgeColor   = color.RGBA{110, 110, 140, 255}
	bombColor       = color.RGBA{20, 20, 20, 255}
	panelColor      = color.RGBA{0, 0, 0, 178}
	textColor       = color.RGBA{240, 240, 240, 255}
	neutralColor    = color.RGBA{200, 200, 200, 255}
)

// Renderer draws frames. Font faces are cached and shared, so one renderer
// draws one frame at a time.
type Renderer struct {
	mu       sync.Mutex
	scale    float64
	fontHUD  font.Face
	fontTime font.Face
}

// New creates a renderer drawing scale output pixels per map pixel
func New(scale float64) (*Renderer, error) {
	if !(scale > 0) {
		return nil, fmt.Errorf("render: scale %v must be positive", scale)
	}
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	hud, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    12,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: hud face: %w", err)
	}
	clock, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    18,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: clock face: %w", err)
	}
	return &Renderer{scale: scale, fontHUD: hud, fontTime: clock}, nil
}

// Render draws one frame of sc
func (r *Renderer) Render(sc game.Scene) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := int(float64(sc.Width) * r.scale)
	h := int(float64(sc.Height) * r.scale)
	dc := gg.NewContext(max(w, 1), max(h, 1))

	r.drawBackground(dc, w, h)

	// world layers are drawn in map pixels
	dc.Push()
	dc.Scale(r.scale, r.scale)
	dc.DrawImage(sc.Territory, 0, 0)
	r.drawWalls(dc, sc)
	r.drawBombs(dc, sc.State.Bombs)
	r.drawPlayers(dc, sc.State.Players)
	dc.Pop()

	r.drawHUD(dc, sc, w)
	return dc.Image()
}

// WritePNG renders sc and encodes it as PNG
func (r *Renderer) WritePNG(w io.Writer, sc game.Scene) error {
	return png.Encode(w, r.Render(sc))
}

func (r *Renderer) drawBackground(dc *gg.Context, w, h int) {
	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	// one line per 64 output pixels
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := 0.0; x < float64(w); x += 64 {
		dc.DrawLine(x, 0, x, float64(h))
		dc.Stroke()
	}
	for y := 0.0; y < float64(h); y += 64 {
		dc.DrawLine(0, y, float64(w), y)
		dc.Stroke()
	}
}

func (r *Renderer) drawWalls(dc *gg.Context, sc game.Scene) {
	for _, wall := range sc.Walls {
		dc.SetColor(wallColor)
		dc.DrawRectangle(wall.X, wall.Y, wall.Width, wall.Height)
		dc.FillPreserve()
		dc.SetColor(wallEdgeColor)
		dc.SetLineWidth(1 / r.scale)
		dc.Stroke()
	}
}

func (r *Renderer) drawBombs(dc *gg.Context, bombs []world.EntityState) {
	for _, b := range bombs {
		x, y, radius := float64(b.Pos.X), float64(b.Pos.Y), float64(b.R)
		dc.SetColor(bombColor)
		dc.DrawCircle(x, y, radius)
		dc.Fill()

		dc.SetColor(teamColor(b.Team))
		dc.SetLineWidth(1.5 / r.scale)
		dc.DrawCircle(x, y, radius)
		dc.Stroke()
	}
}

func (r *Renderer) drawPlayers(dc *gg.Context, players []world.EntityState) {
	for _, p := range players {
		x, y, radius := float64(p.Pos.X), float64(p.Pos.Y), float64(p.R)

		// Shadow
		dc.SetColor(color.RGBA{0, 0, 0, 128})
		dc.DrawCircle(x, y+1, radius)
		dc.Fill()

		// Body
		dc.SetColor(teamColor(p.Team))
		dc.DrawCircle(x, y, radius)
		dc.Fill()

		// Border
		dc.SetColor(color.White)
		dc.SetLineWidth(2 / r.scale)
		dc.DrawCircle(x, y, radius)
		dc.Stroke()
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, sc game.Scene, w int) {
	// Clock
	secs := (sc.State.RemainingTime + 999) / 1000
	dc.SetFontFace(r.fontTime)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(fmt.Sprintf("%d:%02d", secs/60, secs%60), float64(w)/2, 16, 0.5, 0.5)

	// Standings
	standings := game.Standings(sc.State.Scores)
	if len(standings) == 0 {
		return
	}
	x, y := 10.0, 12.0
	dc.SetColor(panelColor)
	dc.DrawRectangle(x-6, y-10, 130, float64(len(standings))*16+8)
	dc.Fill()

	dc.SetFontFace(r.fontHUD)
	for i, s := range standings {
		dc.SetColor(teamColor(s.Team))
		dc.DrawCircle(x+4, y+float64(i)*16, 4)
		dc.Fill()
		dc.SetColor(textColor)
		dc.DrawStringAnchored(fmt.Sprintf("%d. %s  %d", s.Rank, s.Team, s.Score), x+14, y+float64(i)*16, 0, 0.35)
	}
}

func teamColor(team string) color.Color {
	if c, ok := game.TeamColors[team]; ok {
		return c
	}
	return neutralColor
}
