// Package physics defines the rigid-body engine capability used by the world
// session, plus a Chipmunk2D-backed implementation (Space).
//
// Everything the engine owns is addressed through opaque handles. A handle is
// an index into the engine's arena: it is never reused and becomes invalid as
// soon as the object it names is removed.
package physics

import (
	"errors"
	"math"
)

// CollisionMargin is the default collision skin added around every collider.
const CollisionMargin = 0.01

// DefaultTimestep is the tick length used until SetTimestep is called.
const DefaultTimestep = 1.0 / 60.0

var (
	// ErrUnknownHandle is returned when a handle does not name a live object.
	ErrUnknownHandle = errors.New("physics: unknown handle")
	// ErrGroundBody is returned when an operation is not valid on the ground body.
	ErrGroundBody = errors.New("physics: operation not allowed on ground body")
	// ErrUnsupportedShape is returned for shape/pose combinations the engine cannot build.
	ErrUnsupportedShape = errors.New("physics: unsupported shape")
)

// Vector is a 2D vector in engine space (Y up).
type Vector struct {
	X, Y float64
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector { return Vector{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector { return Vector{v.X - o.X, v.Y - o.Y} }

// Scale returns v * s.
func (v Vector) Scale(s float64) Vector { return Vector{v.X * s, v.Y * s} }

// IsZero reports whether both components are zero.
func (v Vector) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Pose is a rigid transform: translation plus rotation in radians (CCW).
type Pose struct {
	Position Vector
	Rotation float64
}

// Identity is the identity pose.
var Identity = Pose{}

// Inertia holds the mass properties of a rigid body.
type Inertia struct {
	Mass   float64
	Moment float64
}

// BodyHandle names a rigid body.
type BodyHandle uint64

// ColliderHandle names a collider.
type ColliderHandle uint64

// ConstraintHandle names a constraint.
type ConstraintHandle uint64

// Ground is the immovable ground reference body. It always exists and cannot be removed.
const Ground BodyHandle = 0

// ShapeKind selects the collider geometry.
type ShapeKind int

const (
	ShapeDisk ShapeKind = iota
	ShapeBox
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeDisk:
		return "disk"
	case ShapeBox:
		return "box"
	default:
		return "unknown"
	}
}

// Shape describes collider geometry centered on its local origin.
type Shape struct {
	Kind        ShapeKind
	Radius      float64 // disk only
	HalfExtents Vector  // box only
}

// Disk returns a disk shape.
func Disk(radius float64) Shape {
	return Shape{Kind: ShapeDisk, Radius: radius}
}

// Box returns an axis-aligned box shape with the given half extents.
func Box(halfExtents Vector) Shape {
	return Shape{Kind: ShapeBox, HalfExtents: halfExtents}
}

// Area returns the shape's area.
func (s Shape) Area() float64 {
	switch s.Kind {
	case ShapeDisk:
		return math.Pi * s.Radius * s.Radius
	case ShapeBox:
		return 4 * s.HalfExtents.X * s.HalfExtents.Y
	}
	return 0
}

// Inertia returns the mass properties of the shape for a uniform density.
func (s Shape) Inertia(density float64) Inertia {
	m := s.Area() * density
	switch s.Kind {
	case ShapeDisk:
		return Inertia{Mass: m, Moment: m * s.Radius * s.Radius / 2}
	case ShapeBox:
		w, h := 2*s.HalfExtents.X, 2*s.HalfExtents.Y
		return Inertia{Mass: m, Moment: m * (w*w + h*h) / 12}
	}
	return Inertia{}
}

// CenterOfMass returns the local center of mass. Both supported shapes are
// symmetric around their origin.
func (s Shape) CenterOfMass() Vector {
	return Vector{}
}

// Material holds contact response coefficients.
type Material struct {
	Friction    float64
	Restitution float64
}

// DefaultMaterial returns the material used when callers have no preference.
func DefaultMaterial() Material {
	return Material{Friction: 0.5, Restitution: 0}
}

// ConstraintKind selects the joint type.
type ConstraintKind int

const (
	// RotationLock removes the relative rotational degree of freedom between
	// two bodies while leaving translation free. The relative orientation of
	// the anchor frames is held at its value when the constraint is added.
	RotationLock ConstraintKind = iota
)

// ConstraintSpec describes a constraint between two bodies.
type ConstraintSpec struct {
	Kind    ConstraintKind
	BodyA   BodyHandle
	BodyB   BodyHandle
	AnchorA Pose
	AnchorB Pose
}

// NewRotationLock returns a rotation lock between a and b with identity anchor frames.
func NewRotationLock(a, b BodyHandle) ConstraintSpec {
	return ConstraintSpec{Kind: RotationLock, BodyA: a, BodyB: b, AnchorA: Identity, AnchorB: Identity}
}

// BodyState is a read-only view of a body's live transform and velocity.
type BodyState struct {
	Pose            Pose
	Velocity        Vector
	AngularVelocity float64
	Active          bool
}

// Stats counts live engine objects (ground excluded).
type Stats struct {
	Bodies      int
	Colliders   int
	Constraints int
}

// Engine is the rigid-body simulation capability. Implementations are not
// safe for concurrent use.
type Engine interface {
	SetGravity(g Vector)
	SetTimestep(dt float64)
	Timestep() float64
	// Step advances the simulation by exactly one timestep.
	Step()

	AddRigidBody(pose Pose, inertia Inertia, centerOfMass Vector) BodyHandle
	AddCollider(margin float64, shape Shape, body BodyHandle, local Pose, material Material) (ColliderHandle, error)
	AddConstraint(spec ConstraintSpec) (ConstraintHandle, error)

	// RemoveBodies removes bodies together with any colliders and
	// constraints still attached to them.
	RemoveBodies(handles ...BodyHandle) error
	RemoveColliders(handles ...ColliderHandle) error
	RemoveConstraint(handle ConstraintHandle) error

	RigidBody(handle BodyHandle) (BodyState, error)
	SetLinearVelocity(handle BodyHandle, v Vector) error
	Activate(handle BodyHandle) error

	Stats() Stats
}
