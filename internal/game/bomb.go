package game

import (
	"math"
	"time"

	"bombersplash/internal/world"
)

const (
	BombRadius   = 5
	BombFuse     = 4 * time.Second
	SplashRadius = 24
)

// Bomb is a placed bomb waiting for its fuse to burn down
type Bomb struct {
	ID    string
	Owner string
	Team  *Team

	fuse time.Duration
}

// Splash is the paint left by an exploded bomb
type Splash struct {
	ID   string     `json:"id" msgpack:"id"`
	Team string     `json:"team" msgpack:"team"`
	Pos  world.Vec2 `json:"pos" msgpack:"pos"`
	Rot  float32    `json:"rot" msgpack:"rot"`
	R    float32    `json:"r" msgpack:"r"`
}

// bombPosition puts a new bomb behind a moving player, one bomb radius
// away at full speed.
func bombPosition(pos, vel world.Vec2) world.Vec2 {
	return world.Vec2{
		X: pos.X - vel.X/MaxSpeed*BombRadius,
		Y: pos.Y - vel.Y/MaxSpeed*BombRadius,
	}
}

// quarterTurn returns the rotation of n quarter turns
func quarterTurn(n int) float32 {
	return float32(n) * math.Pi / 2
}

// roundVec rounds both components, halves toward +Inf
func roundVec(v world.Vec2) world.Vec2 {
	return world.Vec2{
		X: float32(math.Floor(float64(v.X) + 0.5)),
		Y: float32(math.Floor(float64(v.Y) + 0.5)),
	}
}
