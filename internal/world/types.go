// Package world binds game entities (walls, players, bombs) to a rigid-body
// engine and exposes a snapshot-based synchronization surface.
//
// All positions, rotations and velocities crossing this package's API are in
// the external frame: Y grows downward and rotation is clockwise-positive.
// The engine frame (Y up, counter-clockwise) never leaves the package.
package world

import "math"

// Vec2 is a 2D vector in the external frame.
type Vec2 struct {
	X float32 `json:"x" msgpack:"x"`
	Y float32 `json:"y" msgpack:"y"`
}

// IsZero reports whether both components are zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

func (v Vec2) finite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

// WallDescriptor describes a static wall: center position, rotation and size.
type WallDescriptor struct {
	Pos Vec2    `json:"pos" msgpack:"pos"`
	Rot float32 `json:"rot" msgpack:"rot"`
	W   float32 `json:"w" msgpack:"w"`
	H   float32 `json:"h" msgpack:"h"`
}

// EntityState is both the descriptor used to create a player or bomb and the
// view returned when reading one back.
type EntityState struct {
	ID   string  `json:"id" msgpack:"id"`
	Team string  `json:"team" msgpack:"team"`
	Pos  Vec2    `json:"pos" msgpack:"pos"`
	Rot  float32 `json:"rot" msgpack:"rot"`
	Vel  Vec2    `json:"vel" msgpack:"vel"`
	R    float32 `json:"r" msgpack:"r"`
}

// WorldState is a full snapshot of the dynamic entity population.
type WorldState struct {
	Players []EntityState `json:"players" msgpack:"players"`
	Bombs   []EntityState `json:"bombs" msgpack:"bombs"`
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
