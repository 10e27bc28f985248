package physics

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
)

// Config tunes a Space.
type Config struct {
	Gravity            Vector
	Timestep           float64
	Iterations         int     // solver iterations per step
	SleepTimeThreshold float64 // seconds of rest before a body falls asleep
	CollisionSlop      float64 // allowed overlap between colliders
}

// DefaultConfig returns the settings used for a top-down arena.
func DefaultConfig() Config {
	return Config{
		Gravity:            Vector{},
		Timestep:           DefaultTimestep,
		Iterations:         10,
		SleepTimeThreshold: 0.5,
		CollisionSlop:      CollisionMargin,
	}
}

type bodyEntry struct {
	body        *cp.Body
	colliders   map[ColliderHandle]struct{}
	constraints map[ConstraintHandle]struct{}
}

type colliderEntry struct {
	shape *cp.Shape
	body  BodyHandle
	// anchor is the static body carrying a ground collider placed at a
	// non-identity pose. It lives and dies with the collider.
	anchor *cp.Body
}

type constraintEntry struct {
	constraint *cp.Constraint
	a, b       BodyHandle
}

// Space is an Engine backed by a Chipmunk2D space.
type Space struct {
	space    *cp.Space
	timestep float64

	nextHandle  uint64
	bodies      map[BodyHandle]*bodyEntry
	colliders   map[ColliderHandle]*colliderEntry
	constraints map[ConstraintHandle]*constraintEntry
}

var _ Engine = (*Space)(nil)

// NewSpace creates an empty space holding only the ground body.
func NewSpace(cfg Config) *Space {
	space := cp.NewSpace()
	if cfg.Iterations > 0 {
		space.Iterations = uint(cfg.Iterations)
	}
	space.SetGravity(toCP(cfg.Gravity))
	if cfg.SleepTimeThreshold > 0 {
		space.SleepTimeThreshold = cfg.SleepTimeThreshold
	}
	if cfg.CollisionSlop > 0 {
		space.SetCollisionSlop(cfg.CollisionSlop)
	}

	timestep := cfg.Timestep
	if timestep <= 0 {
		timestep = DefaultTimestep
	}

	s := &Space{
		space:       space,
		timestep:    timestep,
		bodies:      make(map[BodyHandle]*bodyEntry),
		colliders:   make(map[ColliderHandle]*colliderEntry),
		constraints: make(map[ConstraintHandle]*constraintEntry),
	}
	s.bodies[Ground] = newBodyEntry(space.StaticBody)
	return s
}

func newBodyEntry(body *cp.Body) *bodyEntry {
	return &bodyEntry{
		body:        body,
		colliders:   make(map[ColliderHandle]struct{}),
		constraints: make(map[ConstraintHandle]struct{}),
	}
}

func (s *Space) allocate() uint64 {
	s.nextHandle++
	return s.nextHandle
}

// SetGravity sets the global gravity vector.
func (s *Space) SetGravity(g Vector) {
	s.space.SetGravity(toCP(g))
}

// SetTimestep sets the length of the next steps.
func (s *Space) SetTimestep(dt float64) {
	s.timestep = dt
}

// Timestep returns the current step length.
func (s *Space) Timestep() float64 {
	return s.timestep
}

// Step advances the space by one timestep.
func (s *Space) Step() {
	s.space.Step(s.timestep)
}

// AddRigidBody adds a dynamic body. Mass and moment must be positive.
func (s *Space) AddRigidBody(pose Pose, inertia Inertia, centerOfMass Vector) BodyHandle {
	body := cp.NewBody(inertia.Mass, inertia.Moment)
	body.SetCenterOfGravity(toCP(centerOfMass))
	body.SetPosition(toCP(pose.Position))
	body.SetAngle(pose.Rotation)
	s.space.AddBody(body)

	h := BodyHandle(s.allocate())
	s.bodies[h] = newBodyEntry(body)
	return h
}

// AddCollider attaches a collider to a body. The margin is a skin added
// around the shape. Ground colliders may use any local pose; dynamic bodies
// only accept unrotated boxes.
func (s *Space) AddCollider(margin float64, shape Shape, body BodyHandle, local Pose, material Material) (ColliderHandle, error) {
	entry, ok := s.bodies[body]
	if !ok {
		return 0, fmt.Errorf("add collider to body %d: %w", body, ErrUnknownHandle)
	}

	target := entry.body
	var anchor *cp.Body
	if body == Ground && local != Identity {
		anchor = cp.NewStaticBody()
		anchor.SetPosition(toCP(local.Position))
		anchor.SetAngle(local.Rotation)
		target = anchor
		local = Identity
	}

	cpShape, err := buildShape(target, shape, local, margin)
	if err != nil {
		return 0, err
	}
	cpShape.SetFriction(material.Friction)
	cpShape.SetElasticity(material.Restitution)

	if anchor != nil {
		s.space.AddBody(anchor)
	}
	s.space.AddShape(cpShape)

	h := ColliderHandle(s.allocate())
	s.colliders[h] = &colliderEntry{shape: cpShape, body: body, anchor: anchor}
	entry.colliders[h] = struct{}{}
	return h, nil
}

func buildShape(body *cp.Body, shape Shape, local Pose, margin float64) (*cp.Shape, error) {
	if margin < 0 || math.IsNaN(margin) {
		return nil, fmt.Errorf("margin %v: %w", margin, ErrUnsupportedShape)
	}
	switch shape.Kind {
	case ShapeDisk:
		if !(shape.Radius > 0) {
			return nil, fmt.Errorf("disk radius %v: %w", shape.Radius, ErrUnsupportedShape)
		}
		return cp.NewCircle(body, shape.Radius+margin, toCP(local.Position)), nil
	case ShapeBox:
		hx, hy := shape.HalfExtents.X, shape.HalfExtents.Y
		if !(hx > 0) || !(hy > 0) {
			return nil, fmt.Errorf("box half extents (%v, %v): %w", hx, hy, ErrUnsupportedShape)
		}
		if local.Rotation != 0 {
			return nil, fmt.Errorf("rotated box on dynamic body: %w", ErrUnsupportedShape)
		}
		if local.Position.IsZero() {
			return cp.NewBox(body, 2*hx, 2*hy, margin), nil
		}
		p := local.Position
		bb := cp.BB{L: p.X - hx, B: p.Y - hy, R: p.X + hx, T: p.Y + hy}
		return cp.NewBox2(body, bb, margin), nil
	}
	return nil, fmt.Errorf("shape kind %v: %w", shape.Kind, ErrUnsupportedShape)
}

// AddConstraint adds a joint between two bodies.
func (s *Space) AddConstraint(spec ConstraintSpec) (ConstraintHandle, error) {
	a, ok := s.bodies[spec.BodyA]
	if !ok {
		return 0, fmt.Errorf("add constraint: body %d: %w", spec.BodyA, ErrUnknownHandle)
	}
	b, ok := s.bodies[spec.BodyB]
	if !ok {
		return 0, fmt.Errorf("add constraint: body %d: %w", spec.BodyB, ErrUnknownHandle)
	}
	if spec.BodyA == spec.BodyB {
		return 0, fmt.Errorf("add constraint: body %d constrained to itself", spec.BodyA)
	}

	var c *cp.Constraint
	switch spec.Kind {
	case RotationLock:
		// gear ratio 1 holds b.angle - a.angle at phase
		phase := b.body.Angle() - a.body.Angle()
		c = cp.NewGearJoint(a.body, b.body, phase, 1)
	default:
		return 0, fmt.Errorf("add constraint: unknown kind %d", spec.Kind)
	}
	s.space.AddConstraint(c)

	h := ConstraintHandle(s.allocate())
	s.constraints[h] = &constraintEntry{constraint: c, a: spec.BodyA, b: spec.BodyB}
	a.constraints[h] = struct{}{}
	b.constraints[h] = struct{}{}
	return h, nil
}

// RemoveConstraint removes a joint.
func (s *Space) RemoveConstraint(handle ConstraintHandle) error {
	entry, ok := s.constraints[handle]
	if !ok {
		return fmt.Errorf("remove constraint %d: %w", handle, ErrUnknownHandle)
	}
	s.space.RemoveConstraint(entry.constraint)
	if a, ok := s.bodies[entry.a]; ok {
		delete(a.constraints, handle)
	}
	if b, ok := s.bodies[entry.b]; ok {
		delete(b.constraints, handle)
	}
	delete(s.constraints, handle)
	return nil
}

// RemoveColliders removes colliders. Nothing is removed unless every handle is live.
func (s *Space) RemoveColliders(handles ...ColliderHandle) error {
	for _, h := range handles {
		if _, ok := s.colliders[h]; !ok {
			return fmt.Errorf("remove collider %d: %w", h, ErrUnknownHandle)
		}
	}
	for _, h := range handles {
		s.removeCollider(h)
	}
	return nil
}

func (s *Space) removeCollider(h ColliderHandle) {
	entry, ok := s.colliders[h]
	if !ok {
		return
	}
	s.space.RemoveShape(entry.shape)
	if entry.anchor != nil {
		s.space.RemoveBody(entry.anchor)
	}
	if b, ok := s.bodies[entry.body]; ok {
		delete(b.colliders, h)
	}
	delete(s.colliders, h)
}

// RemoveBodies removes bodies and whatever is still attached to them.
// Nothing is removed unless every handle is live.
func (s *Space) RemoveBodies(handles ...BodyHandle) error {
	for _, h := range handles {
		if h == Ground {
			return fmt.Errorf("remove body: %w", ErrGroundBody)
		}
		if _, ok := s.bodies[h]; !ok {
			return fmt.Errorf("remove body %d: %w", h, ErrUnknownHandle)
		}
	}
	for _, h := range handles {
		entry, ok := s.bodies[h]
		if !ok {
			continue // listed twice
		}
		for c := range entry.constraints {
			_ = s.RemoveConstraint(c)
		}
		for c := range entry.colliders {
			s.removeCollider(c)
		}
		s.space.RemoveBody(entry.body)
		delete(s.bodies, h)
	}
	return nil
}

// RigidBody reads a body's live state.
func (s *Space) RigidBody(handle BodyHandle) (BodyState, error) {
	entry, ok := s.bodies[handle]
	if !ok {
		return BodyState{}, fmt.Errorf("rigid body %d: %w", handle, ErrUnknownHandle)
	}
	b := entry.body
	return BodyState{
		Pose:            Pose{Position: fromCP(b.Position()), Rotation: b.Angle()},
		Velocity:        fromCP(b.Velocity()),
		AngularVelocity: b.AngularVelocity(),
		Active:          handle != Ground && !b.IsSleeping(),
	}, nil
}

// SetLinearVelocity overwrites a body's linear velocity.
func (s *Space) SetLinearVelocity(handle BodyHandle, v Vector) error {
	if handle == Ground {
		return ErrGroundBody
	}
	entry, ok := s.bodies[handle]
	if !ok {
		return fmt.Errorf("set velocity of body %d: %w", handle, ErrUnknownHandle)
	}
	entry.body.SetVelocity(v.X, v.Y)
	return nil
}

// Activate wakes a sleeping body.
func (s *Space) Activate(handle BodyHandle) error {
	if handle == Ground {
		return ErrGroundBody
	}
	entry, ok := s.bodies[handle]
	if !ok {
		return fmt.Errorf("activate body %d: %w", handle, ErrUnknownHandle)
	}
	entry.body.Activate()
	return nil
}

// Stats counts live objects, excluding the ground body.
func (s *Space) Stats() Stats {
	return Stats{
		Bodies:      len(s.bodies) - 1,
		Colliders:   len(s.colliders),
		Constraints: len(s.constraints),
	}
}

func toCP(v Vector) cp.Vector {
	return cp.Vector{X: v.X, Y: v.Y}
}

func fromCP(v cp.Vector) Vector {
	return Vector{X: v.X, Y: v.Y}
}
