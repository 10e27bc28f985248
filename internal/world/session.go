package world

import (
	"fmt"
	"math"

	"bombersplash/internal/physics"
)

// Session owns one physics engine and the registry of entities bound to it.
// A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	engine   physics.Engine
	registry *registry
	walls    int
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	engine physics.Engine
	config physics.Config
}

// WithEngine makes the session drive the given engine instead of a new Space.
// The engine must be empty apart from its ground body.
func WithEngine(engine physics.Engine) Option {
	return func(o *sessionOptions) { o.engine = engine }
}

// WithPhysicsConfig sets solver tuning for the default Space. Gravity and
// timestep are always reset to zero and 1/60.
func WithPhysicsConfig(cfg physics.Config) Option {
	return func(o *sessionOptions) { o.config = cfg }
}

// NewSession creates a session with zero gravity, a 1/60 s timestep and no entities.
func NewSession(opts ...Option) *Session {
	o := sessionOptions{config: physics.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = physics.NewSpace(o.config)
	}
	o.engine.SetGravity(physics.Vector{})
	o.engine.SetTimestep(physics.DefaultTimestep)

	return &Session{
		engine:   o.engine,
		registry: newRegistry(),
	}
}

// Step sets the engine timestep to dt and advances exactly one tick.
// A non-positive or non-finite dt does nothing.
func (s *Session) Step(dt float32) {
	if !(dt > 0) || math.IsInf(float64(dt), 1) {
		return
	}
	s.engine.SetTimestep(float64(dt))
	s.engine.Step()
}

// AddWall adds a permanent static wall. Walls cannot be queried or removed.
func (s *Session) AddWall(d WallDescriptor) error {
	if err := validateWall("add", d); err != nil {
		return err
	}
	if err := buildWall(s.engine, d); err != nil {
		return &EntityError{Op: "add", Kind: KindWall, Err: err}
	}
	s.walls++
	return nil
}

// AddPlayer creates a player. The id must not already name a player.
func (s *Session) AddPlayer(p EntityState) error {
	if err := validateEntity("add", KindPlayer, p); err != nil {
		return err
	}
	if _, ok := s.registry.player(p.ID); ok {
		return duplicate("add", KindPlayer, p.ID)
	}
	return s.addPlayer(p)
}

func (s *Session) addPlayer(p EntityState) error {
	player, err := buildPlayer(s.engine, p)
	if err != nil {
		return &EntityError{Op: "add", Kind: KindPlayer, ID: p.ID, Err: err}
	}
	s.registry.putPlayer(player)
	return nil
}

// RemovePlayer destroys a player's constraint, collider and body.
func (s *Session) RemovePlayer(id string) error {
	p, ok := s.registry.player(id)
	if !ok {
		return notFound("remove", KindPlayer, id)
	}
	destroyPlayer(s.engine, p)
	s.registry.deletePlayer(id)
	return nil
}

// ReplacePlayer removes the player with the descriptor's id, if any, and
// creates it again from the descriptor.
func (s *Session) ReplacePlayer(p EntityState) error {
	if err := validateEntity("replace", KindPlayer, p); err != nil {
		return err
	}
	if old, ok := s.registry.player(p.ID); ok {
		destroyPlayer(s.engine, old)
		s.registry.deletePlayer(p.ID)
	}
	return s.addPlayer(p)
}

// SetPlayerVelocity overwrites a player's linear velocity, waking the body
// when it is asleep and the new velocity is non-zero.
func (s *Session) SetPlayerVelocity(id string, vel Vec2) error {
	p, ok := s.registry.player(id)
	if !ok {
		return notFound("set velocity", KindPlayer, id)
	}
	if !vel.finite() {
		return invalid("set velocity", KindPlayer, id, "non-finite velocity")
	}

	state, err := s.engine.RigidBody(p.Body)
	if err != nil {
		invariantBreach("set velocity", id, err)
	}
	if !state.Active && !vel.IsZero() {
		if err := s.engine.Activate(p.Body); err != nil {
			invariantBreach("set velocity", id, err)
		}
	}
	if err := s.engine.SetLinearVelocity(p.Body, VelocityToEngine(vel)); err != nil {
		invariantBreach("set velocity", id, err)
	}
	return nil
}

// GetPlayerState reads a player's live pose and velocity.
func (s *Session) GetPlayerState(id string) (EntityState, error) {
	p, ok := s.registry.player(id)
	if !ok {
		return EntityState{}, notFound("get", KindPlayer, id)
	}
	return s.playerState(p), nil
}

// HasPlayer reports whether a player with the id exists.
func (s *Session) HasPlayer(id string) bool {
	_, ok := s.registry.player(id)
	return ok
}

// AddBomb creates a bomb. The id must not already name a bomb.
func (s *Session) AddBomb(b EntityState) error {
	if err := validateEntity("add", KindBomb, b); err != nil {
		return err
	}
	if _, ok := s.registry.bomb(b.ID); ok {
		return duplicate("add", KindBomb, b.ID)
	}
	return s.addBomb(b)
}

func (s *Session) addBomb(b EntityState) error {
	bomb, err := buildBomb(s.engine, b)
	if err != nil {
		return &EntityError{Op: "add", Kind: KindBomb, ID: b.ID, Err: err}
	}
	s.registry.putBomb(bomb)
	return nil
}

// RemoveBomb destroys a bomb's collider and body.
func (s *Session) RemoveBomb(id string) error {
	b, ok := s.registry.bomb(id)
	if !ok {
		return notFound("remove", KindBomb, id)
	}
	destroyBomb(s.engine, b)
	s.registry.deleteBomb(id)
	return nil
}

// GetBombState reads a bomb's live pose and velocity.
func (s *Session) GetBombState(id string) (EntityState, error) {
	b, ok := s.registry.bomb(id)
	if !ok {
		return EntityState{}, notFound("get", KindBomb, id)
	}
	return s.bombState(b), nil
}

// Stats summarizes the session for diagnostics.
type Stats struct {
	Players int           `json:"players"`
	Bombs   int           `json:"bombs"`
	Walls   int           `json:"walls"`
	Engine  physics.Stats `json:"engine"`
}

// Stats returns entity counts and the engine's live object counts.
func (s *Session) Stats() Stats {
	return Stats{
		Players: len(s.registry.players),
		Bombs:   len(s.registry.bombs),
		Walls:   s.walls,
		Engine:  s.engine.Stats(),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%d players, %d bombs, %d walls (%d bodies, %d colliders, %d constraints)",
		s.Players, s.Bombs, s.Walls, s.Engine.Bodies, s.Engine.Colliders, s.Engine.Constraints)
}
