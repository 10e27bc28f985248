package world

import (
	"bombersplash/internal/physics"
)

// density used for player and bomb mass properties
const density = 1.0

func validateWall(op string, d WallDescriptor) error {
	switch {
	case !d.Pos.finite() || !isFinite(d.Rot):
		return invalid(op, KindWall, "", "non-finite pose")
	case !isFinite(d.W) || !isFinite(d.H):
		return invalid(op, KindWall, "", "non-finite size")
	case float64(d.W)/2 <= physics.CollisionMargin || float64(d.H)/2 <= physics.CollisionMargin:
		return invalid(op, KindWall, "", "width and height must exceed twice the collision margin")
	}
	return nil
}

func validateEntity(op string, kind Kind, s EntityState) error {
	switch {
	case s.ID == "":
		return invalid(op, kind, s.ID, "empty id")
	case !s.Pos.finite() || !isFinite(s.Rot):
		return invalid(op, kind, s.ID, "non-finite pose")
	case !s.Vel.finite():
		return invalid(op, kind, s.ID, "non-finite velocity")
	case !isFinite(s.R) || !(s.R > 0):
		return invalid(op, kind, s.ID, "radius must be positive")
	}
	return nil
}

// buildWall attaches a static box to the ground body. The collision margin is
// taken off each half extent so that the skin lands on the wall's edge.
func buildWall(engine physics.Engine, d WallDescriptor) error {
	half := physics.Vector{
		X: float64(d.W)/2 - physics.CollisionMargin,
		Y: float64(d.H)/2 - physics.CollisionMargin,
	}
	_, err := engine.AddCollider(physics.CollisionMargin, physics.Box(half), physics.Ground, ToEngine(d.Pos, d.Rot), physics.DefaultMaterial())
	return err
}

// buildDisk creates a dynamic disk body with its collider.
func buildDisk(engine physics.Engine, s EntityState) (physics.BodyHandle, physics.ColliderHandle, error) {
	shape := physics.Disk(float64(s.R))
	body := engine.AddRigidBody(ToEngine(s.Pos, s.Rot), shape.Inertia(density), shape.CenterOfMass())
	if err := engine.SetLinearVelocity(body, VelocityToEngine(s.Vel)); err != nil {
		_ = engine.RemoveBodies(body)
		return 0, 0, err
	}
	collider, err := engine.AddCollider(physics.CollisionMargin, shape, body, physics.Identity, physics.DefaultMaterial())
	if err != nil {
		_ = engine.RemoveBodies(body)
		return 0, 0, err
	}
	return body, collider, nil
}

func buildPlayer(engine physics.Engine, s EntityState) (*Player, error) {
	body, collider, err := buildDisk(engine, s)
	if err != nil {
		return nil, err
	}
	constraint, err := engine.AddConstraint(physics.NewRotationLock(physics.Ground, body))
	if err != nil {
		_ = engine.RemoveBodies(body)
		return nil, err
	}
	return &Player{
		ID:         s.ID,
		Team:       s.Team,
		Radius:     s.R,
		Body:       body,
		Collider:   collider,
		Constraint: constraint,
	}, nil
}

func buildBomb(engine physics.Engine, s EntityState) (*Bomb, error) {
	body, collider, err := buildDisk(engine, s)
	if err != nil {
		return nil, err
	}
	return &Bomb{
		ID:       s.ID,
		Team:     s.Team,
		Radius:   s.R,
		Body:     body,
		Collider: collider,
	}, nil
}

func destroyPlayer(engine physics.Engine, p *Player) {
	if err := engine.RemoveConstraint(p.Constraint); err != nil {
		invariantBreach("remove player", p.ID, err)
	}
	if err := engine.RemoveColliders(p.Collider); err != nil {
		invariantBreach("remove player", p.ID, err)
	}
	if err := engine.RemoveBodies(p.Body); err != nil {
		invariantBreach("remove player", p.ID, err)
	}
}

func destroyBomb(engine physics.Engine, b *Bomb) {
	if err := engine.RemoveColliders(b.Collider); err != nil {
		invariantBreach("remove bomb", b.ID, err)
	}
	if err := engine.RemoveBodies(b.Body); err != nil {
		invariantBreach("remove bomb", b.ID, err)
	}
}
