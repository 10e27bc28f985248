package world

import "bombersplash/internal/physics"

// ToEngine converts an external position and rotation into an engine pose.
// Y and rotation are negated; the transform is its own inverse.
func ToEngine(pos Vec2, rot float32) physics.Pose {
	return physics.Pose{
		Position: physics.Vector{X: float64(pos.X), Y: -float64(pos.Y)},
		Rotation: -float64(rot),
	}
}

// VelocityToEngine converts an external linear velocity into engine space.
func VelocityToEngine(vel Vec2) physics.Vector {
	return physics.Vector{X: float64(vel.X), Y: -float64(vel.Y)}
}

// ToExternal converts an engine pose and linear velocity into the external frame.
func ToExternal(pose physics.Pose, vel physics.Vector) (pos Vec2, rot float32, v Vec2) {
	pos = Vec2{X: float32(pose.Position.X), Y: float32(-pose.Position.Y)}
	rot = float32(-pose.Rotation)
	v = Vec2{X: float32(vel.X), Y: float32(-vel.Y)}
	return pos, rot, v
}
