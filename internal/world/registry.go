package world

import "bombersplash/internal/physics"

// Player is a registered player avatar. Only identity and engine handles are
// kept here; transforms live in the engine.
type Player struct {
	ID     string
	Team   string
	Radius float32

	Body       physics.BodyHandle
	Collider   physics.ColliderHandle
	Constraint physics.ConstraintHandle
}

// Bomb is a registered bomb. Bombs spin freely, so there is no constraint.
type Bomb struct {
	ID     string
	Team   string
	Radius float32

	Body     physics.BodyHandle
	Collider physics.ColliderHandle
}

// registry maps ids to entity records. Player and bomb ids live in separate
// namespaces.
type registry struct {
	players map[string]*Player
	bombs   map[string]*Bomb
}

func newRegistry() *registry {
	return &registry{
		players: make(map[string]*Player),
		bombs:   make(map[string]*Bomb),
	}
}

func (r *registry) player(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

func (r *registry) bomb(id string) (*Bomb, bool) {
	b, ok := r.bombs[id]
	return b, ok
}

func (r *registry) putPlayer(p *Player) {
	r.players[p.ID] = p
}

func (r *registry) putBomb(b *Bomb) {
	r.bombs[b.ID] = b
}

func (r *registry) deletePlayer(id string) {
	delete(r.players, id)
}

func (r *registry) deleteBomb(id string) {
	delete(r.bombs, id)
}

func (r *registry) clearPlayers() {
	r.players = make(map[string]*Player)
}

func (r *registry) clearBombs() {
	r.bombs = make(map[string]*Bomb)
}
