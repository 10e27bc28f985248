package world

import (
	"errors"
	"math"
	"testing"

	"bombersplash/internal/physics"
)

func player(id string, pos Vec2, vel Vec2, r float32) EntityState {
	return EntityState{ID: id, Team: "red", Pos: pos, Vel: vel, R: r}
}

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

// TestNewSessionIsEmpty verifies a fresh session holds nothing
func TestNewSessionIsEmpty(t *testing.T) {
	s := NewSession()

	ws := s.GetWorldState()
	if len(ws.Players) != 0 || len(ws.Bombs) != 0 {
		t.Errorf("Expected empty world, got %+v", ws)
	}
	if got := s.Stats(); got != (Stats{}) {
		t.Errorf("Expected zero stats, got %+v", got)
	}
}

// TestRemovePlayerLeavesNothing checks removal frees every engine object
func TestRemovePlayerLeavesNothing(t *testing.T) {
	s := NewSession()
	p := player("p1", Vec2{X: 1, Y: 1}, Vec2{}, 0.5)

	if err := s.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer failed: %v", err)
	}
	if got := s.Stats().Engine; got != (physics.Stats{Bodies: 1, Colliders: 1, Constraints: 1}) {
		t.Errorf("Unexpected engine stats after add: %+v", got)
	}

	if err := s.RemovePlayer("p1"); err != nil {
		t.Fatalf("RemovePlayer failed: %v", err)
	}
	if got := s.Stats(); got != (Stats{}) {
		t.Errorf("Expected nothing left, got %+v", got)
	}
	for _, ps := range s.GetWorldState().Players {
		if ps.ID == "p1" {
			t.Error("Removed player still in world state")
		}
	}

	if err := s.AddPlayer(p); err != nil {
		t.Errorf("Re-adding removed id should succeed, got %v", err)
	}
}

// TestAddRejectsDuplicateIDs checks ids are unique per entity kind
func TestAddRejectsDuplicateIDs(t *testing.T) {
	s := NewSession()
	p := player("x", Vec2{}, Vec2{}, 1)

	if err := s.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer failed: %v", err)
	}
	if err := s.AddPlayer(p); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}

	// Same id as a player is fine for a bomb
	if err := s.AddBomb(p); err != nil {
		t.Fatalf("AddBomb with player id failed: %v", err)
	}
	if err := s.AddBomb(p); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID for bomb, got %v", err)
	}

	if got := s.Stats(); got.Players != 1 || got.Bombs != 1 {
		t.Errorf("Duplicates must not be registered, got %+v", got)
	}
}

// TestUnknownIDsAreNotFound covers every lookup on a ghost id
func TestUnknownIDsAreNotFound(t *testing.T) {
	s := NewSession()

	checks := map[string]error{
		"RemovePlayer":      s.RemovePlayer("ghost"),
		"SetPlayerVelocity": s.SetPlayerVelocity("ghost", Vec2{X: 1}),
		"RemoveBomb":        s.RemoveBomb("ghost"),
	}
	_, checks["GetPlayerState"] = s.GetPlayerState("ghost")
	_, checks["GetBombState"] = s.GetBombState("ghost")

	for name, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
		var ee *EntityError
		if !errors.As(err, &ee) || ee.ID != "ghost" {
			t.Errorf("%s: expected EntityError naming ghost, got %v", name, err)
		}
	}
}

// TestInvalidDescriptorsAreRejected checks bad input never reaches the engine
func TestInvalidDescriptorsAreRejected(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	entities := []struct {
		name string
		e    EntityState
	}{
		{"empty id", EntityState{R: 1}},
		{"zero radius", EntityState{ID: "a"}},
		{"negative radius", EntityState{ID: "a", R: -1}},
		{"nan radius", EntityState{ID: "a", R: nan}},
		{"nan position", EntityState{ID: "a", R: 1, Pos: Vec2{X: nan}}},
		{"infinite rotation", EntityState{ID: "a", R: 1, Rot: inf}},
		{"infinite velocity", EntityState{ID: "a", R: 1, Vel: Vec2{Y: -inf}}},
	}

	s := NewSession()
	for _, tt := range entities {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.AddPlayer(tt.e); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("AddPlayer: expected ErrInvalidDescriptor, got %v", err)
			}
			if err := s.ReplacePlayer(tt.e); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("ReplacePlayer: expected ErrInvalidDescriptor, got %v", err)
			}
			if err := s.AddBomb(tt.e); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("AddBomb: expected ErrInvalidDescriptor, got %v", err)
			}
		})
	}

	walls := []struct {
		name string
		w    WallDescriptor
	}{
		{"zero width", WallDescriptor{W: 0, H: 1}},
		{"negative height", WallDescriptor{W: 1, H: -1}},
		{"thinner than margin", WallDescriptor{W: 0.015, H: 1}},
		{"nan size", WallDescriptor{W: nan, H: 1}},
		{"infinite position", WallDescriptor{Pos: Vec2{X: inf}, W: 1, H: 1}},
	}
	for _, tt := range walls {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.AddWall(tt.w); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("AddWall: expected ErrInvalidDescriptor, got %v", err)
			}
		})
	}

	if got := s.Stats(); got != (Stats{}) {
		t.Errorf("Rejected descriptors left state behind: %+v", got)
	}

	s.AddPlayer(player("p", Vec2{}, Vec2{}, 1))
	if err := s.SetPlayerVelocity("p", Vec2{X: nan}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("SetPlayerVelocity: expected ErrInvalidDescriptor, got %v", err)
	}
}

// TestReplacePlayer verifies replace teleports without leaking constraints
func TestReplacePlayer(t *testing.T) {
	s := NewSession()

	// Tolerates a missing player
	if err := s.ReplacePlayer(player("p1", Vec2{X: 1, Y: 2}, Vec2{}, 0.5)); err != nil {
		t.Fatalf("ReplacePlayer on empty session failed: %v", err)
	}

	next := player("p1", Vec2{X: 10, Y: 20}, Vec2{X: 1}, 0.5)
	next.Team = "blue"
	for i := 0; i < 5; i++ {
		if err := s.ReplacePlayer(next); err != nil {
			t.Fatalf("ReplacePlayer failed: %v", err)
		}
	}

	if got := s.Stats().Engine; got != (physics.Stats{Bodies: 1, Colliders: 1, Constraints: 1}) {
		t.Errorf("Replace leaked engine objects: %+v", got)
	}

	got, err := s.GetPlayerState("p1")
	if err != nil {
		t.Fatalf("GetPlayerState failed: %v", err)
	}
	if got.Pos != next.Pos || got.Team != "blue" || got.Vel != next.Vel {
		t.Errorf("Expected replaced player %+v, got %+v", next, got)
	}
}

// TestPlayerStopsAtWall drops a player onto a wall and checks it comes to rest on top
func TestPlayerStopsAtWall(t *testing.T) {
	s := NewSession()

	if err := s.AddWall(WallDescriptor{Pos: Vec2{}, Rot: 0, W: 10, H: 1}); err != nil {
		t.Fatalf("AddWall failed: %v", err)
	}
	if err := s.AddPlayer(player("p1", Vec2{X: 0, Y: -5}, Vec2{X: 0, Y: 5}, 0.5)); err != nil {
		t.Fatalf("AddPlayer failed: %v", err)
	}

	for i := 0; i < 180; i++ {
		s.Step(1.0 / 60.0)
	}

	got, _ := s.GetPlayerState("p1")
	// wall top is at y = -0.5, so the center rests one radius above it
	if got.Pos.Y < -1.1 || got.Pos.Y > -0.9 {
		t.Errorf("Expected player to rest at y ~ -1, got %v", got.Pos.Y)
	}
	if !near(got.Pos.X, 0, 1e-3) {
		t.Errorf("Expected x to stay 0, got %v", got.Pos.X)
	}
	if !near(got.Rot, 0, 1e-4) {
		t.Errorf("Expected rotation 0, got %v", got.Rot)
	}
}

// TestRotationLock slides a player and a bomb along a wall; only the bomb spins
func TestRotationLock(t *testing.T) {
	wall := WallDescriptor{W: 10, H: 1}
	start := Vec2{X: -3, Y: -5}
	vel := Vec2{X: 3, Y: 5}

	ps := NewSession()
	ps.AddWall(wall)
	if err := ps.AddPlayer(player("p", start, vel, 0.3)); err != nil {
		t.Fatalf("AddPlayer failed: %v", err)
	}

	bs := NewSession()
	bs.AddWall(wall)
	if err := bs.AddBomb(player("b", start, vel, 0.3)); err != nil {
		t.Fatalf("AddBomb failed: %v", err)
	}

	for i := 0; i < 90; i++ {
		ps.Step(1.0 / 60.0)
		bs.Step(1.0 / 60.0)
	}

	p, _ := ps.GetPlayerState("p")
	if !near(p.Rot, 0, 1e-2) {
		t.Errorf("Player rotation should stay locked at 0, got %v", p.Rot)
	}
	b, _ := bs.GetBombState("b")
	if near(b.Rot, 0, 0.05) {
		t.Errorf("Bomb should spin from friction against the wall, got rotation %v", b.Rot)
	}
}

// TestBombFreeFlight checks a bomb moves by v*N*dt with no collisions
func TestBombFreeFlight(t *testing.T) {
	s := NewSession()
	if err := s.AddBomb(EntityState{ID: "b1", Team: "red", Vel: Vec2{X: 1}, R: 0.3}); err != nil {
		t.Fatalf("AddBomb failed: %v", err)
	}

	const n = 30
	const dt = float32(1.0 / 60.0)
	for i := 0; i < n; i++ {
		s.Step(dt)
	}

	got, err := s.GetBombState("b1")
	if err != nil {
		t.Fatalf("GetBombState failed: %v", err)
	}
	if !near(got.Pos.X, n*dt, 1e-4) {
		t.Errorf("Expected x %v, got %v", n*dt, got.Pos.X)
	}
	if got.Pos.Y != 0 {
		t.Errorf("Expected y 0, got %v", got.Pos.Y)
	}
}

// TestStepIgnoresBadTimestep verifies step is a no-op for non-positive dt
func TestStepIgnoresBadTimestep(t *testing.T) {
	s := NewSession()
	s.AddBomb(EntityState{ID: "b", Vel: Vec2{X: 1}, R: 1})

	for _, dt := range []float32{0, -1, float32(math.NaN()), float32(math.Inf(1))} {
		s.Step(dt)
	}

	got, _ := s.GetBombState("b")
	if got.Pos.X != 0 {
		t.Errorf("Expected bomb not to move, got %v", got.Pos)
	}
}

// TestSetPlayerVelocityWakesPlayer checks a resting player moves again after a velocity write
func TestSetPlayerVelocityWakesPlayer(t *testing.T) {
	s := NewSession()
	s.AddPlayer(player("p", Vec2{}, Vec2{}, 0.5))

	for i := 0; i < 120; i++ {
		s.Step(1.0 / 60.0)
	}

	if err := s.SetPlayerVelocity("p", Vec2{X: 2, Y: 1}); err != nil {
		t.Fatalf("SetPlayerVelocity failed: %v", err)
	}
	for i := 0; i < 30; i++ {
		s.Step(1.0 / 60.0)
	}

	got, _ := s.GetPlayerState("p")
	if !near(got.Pos.X, 1, 1e-3) || !near(got.Pos.Y, 0.5, 1e-3) {
		t.Errorf("Expected player at (1, 0.5), got %v", got.Pos)
	}
	if got.Vel != (Vec2{X: 2, Y: 1}) {
		t.Errorf("Expected velocity (2, 1), got %v", got.Vel)
	}
}

type brokenEngine struct {
	*physics.Space
}

func (brokenEngine) RigidBody(h physics.BodyHandle) (physics.BodyState, error) {
	return physics.BodyState{}, physics.ErrUnknownHandle
}

// TestRejectedHandlePanics verifies an engine losing a registered body is fatal
func TestRejectedHandlePanics(t *testing.T) {
	s := NewSession(WithEngine(brokenEngine{physics.NewSpace(physics.DefaultConfig())}))
	if err := s.AddPlayer(player("p", Vec2{}, Vec2{}, 1)); err != nil {
		t.Fatalf("AddPlayer failed: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on rejected handle")
		}
	}()
	s.GetPlayerState("p")
}
