package game

import (
	"math"
	"time"

	"bombersplash/internal/world"
)

const (
	PlayerRadius   = 5
	MaxSpeed       = 8 * 16 // tiles * tile size per second
	MaxBombs       = 6
	BombsPerSecond = 2
)

// bombRegenInterval is the time needed to regain one bomb
const bombRegenInterval = time.Second / BombsPerSecond

// Inputs is one frame of controller state sent by a client
type Inputs struct {
	Vel     world.Vec2 `json:"vel" msgpack:"vel"`
	Actions Actions    `json:"actions" msgpack:"actions"`
}

// Actions are the discrete buttons of the controller
type Actions struct {
	PlaceBomb bool `json:"placeBomb" msgpack:"placeBomb"`
}

// Player is the controller side of a player: team membership, bomb budget
// and input edge detection. The body lives in the world session.
type Player struct {
	ID   string
	Team *Team

	bombs   int
	regen   time.Duration
	placing bool
}

// PlayerInfo is the JSON view of a player's controller state
type PlayerInfo struct {
	ID    string `json:"id"`
	Team  string `json:"team"`
	Bombs int    `json:"bombs"`
}

func newPlayer(id string, team *Team) *Player {
	return &Player{
		ID:    id,
		Team:  team,
		bombs: MaxBombs,
	}
}

// Bombs returns how many bombs the player can place right now
func (p *Player) Bombs() int {
	return p.bombs
}

func (p *Player) info() PlayerInfo {
	return PlayerInfo{ID: p.ID, Team: p.Team.Name, Bombs: p.bombs}
}

// clampInput limits a stick vector to unit length
func clampInput(v world.Vec2) world.Vec2 {
	x, y := float64(v.X), float64(v.Y)
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return world.Vec2{}
	}
	h := math.Hypot(x, y)
	if h < 1 {
		return v
	}
	return world.Vec2{X: float32(x / h), Y: float32(y / h)}
}

// inputVelocity maps a stick vector to a body velocity
func inputVelocity(v world.Vec2) world.Vec2 {
	c := clampInput(v)
	return world.Vec2{X: c.X * MaxSpeed, Y: c.Y * MaxSpeed}
}

// pressPlaceBomb applies the placeBomb button and reports whether a bomb
// should be placed: only on the press edge and only with budget left.
func (p *Player) pressPlaceBomb(pressed bool) bool {
	if !pressed {
		p.placing = false
		return false
	}
	if p.placing {
		return false
	}
	p.placing = true
	if p.bombs < 1 {
		return false
	}
	p.bombs--
	return true
}

// regenerate adds one bomb per elapsed interval, up to MaxBombs
func (p *Player) regenerate(dt time.Duration) {
	p.regen += dt
	for p.regen >= bombRegenInterval {
		p.regen -= bombRegenInterval
		if p.bombs < MaxBombs {
			p.bombs++
		}
	}
}
