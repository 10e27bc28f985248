package world

import (
	"math"
	"testing"
)

// TestCoordinateRoundTrip checks the frame conversion is its own inverse
func TestCoordinateRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pos  Vec2
		rot  float32
		vel  Vec2
	}{
		{"origin", Vec2{}, 0, Vec2{}},
		{"positive", Vec2{X: 3.5, Y: 12.25}, 0.75, Vec2{X: 1, Y: 2}},
		{"negative", Vec2{X: -100, Y: -0.001}, -3.1, Vec2{X: -7, Y: 128}},
		{"large", Vec2{X: 1e6, Y: -1e6}, 100, Vec2{X: 1e-6, Y: -1e-6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose := ToEngine(tt.pos, tt.rot)
			pos, rot, vel := ToExternal(pose, VelocityToEngine(tt.vel))
			if pos != tt.pos || rot != tt.rot || vel != tt.vel {
				t.Errorf("Round trip changed values: got (%v, %v, %v), want (%v, %v, %v)",
					pos, rot, vel, tt.pos, tt.rot, tt.vel)
			}
		})
	}
}

// TestToEngineFlipsY verifies the engine frame is Y-up and counter-clockwise
func TestToEngineFlipsY(t *testing.T) {
	pose := ToEngine(Vec2{X: 2, Y: 5}, 0.5)
	if pose.Position.X != 2 || pose.Position.Y != -5 {
		t.Errorf("Expected engine position (2, -5), got %+v", pose.Position)
	}
	if math.Abs(pose.Rotation+0.5) > 1e-9 {
		t.Errorf("Expected engine rotation -0.5, got %v", pose.Rotation)
	}
	if v := VelocityToEngine(Vec2{X: 0, Y: 5}); v.Y != -5 {
		t.Errorf("Expected engine velocity Y -5, got %v", v.Y)
	}
}
