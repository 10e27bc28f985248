package game

import (
	"sync/atomic"
	"time"

	"bombersplash/internal/world"
)

// State is the serialized match sent to clients
type State struct {
	RemainingTime int64               `json:"remainingTime" msgpack:"remainingTime"` // milliseconds
	Players       []world.EntityState `json:"players" msgpack:"players"`
	Bombs         []world.EntityState `json:"bombs" msgpack:"bombs"`
	Splashes      []Splash            `json:"splashes" msgpack:"splashes"`
	Scores        map[string]int      `json:"scores" msgpack:"scores"`
}

// MatchSnapshot is an immutable copy of the match taken at the end of a tick.
// Readers must not modify it.
type MatchSnapshot struct {
	Sequence  uint64
	Timestamp time.Time
	Tick      uint64
	Finished  bool
	State     State
}

// SnapshotPool publishes snapshots from the game loop to any number of
// readers without taking the match lock. Published snapshots are never
// written again; each write starts from a fresh value sized like the last one.
type SnapshotPool struct {
	current  atomic.Pointer[MatchSnapshot]
	sequence atomic.Uint64
	players  int // initial capacity
}

// NewSnapshotPool creates an empty pool
func NewSnapshotPool(maxPlayers int) *SnapshotPool {
	return &SnapshotPool{players: maxPlayers}
}

// AcquireWrite returns a blank snapshot for the producer to fill
func (p *SnapshotPool) AcquireWrite() *MatchSnapshot {
	players, bombs, splashes := p.players, 0, 0
	if last := p.current.Load(); last != nil {
		players = len(last.State.Players)
		bombs = len(last.State.Bombs)
		splashes = len(last.State.Splashes) + 1
	}
	return &MatchSnapshot{
		Sequence:  p.sequence.Add(1),
		Timestamp: time.Now(),
		State: State{
			Players:  make([]world.EntityState, 0, players),
			Bombs:    make([]world.EntityState, 0, bombs),
			Splashes: make([]Splash, 0, splashes),
		},
	}
}

// PublishWrite makes snap the latest snapshot
func (p *SnapshotPool) PublishWrite(snap *MatchSnapshot) {
	p.current.Store(snap)
}

// AcquireRead returns the latest snapshot, or nil before the first publish
func (p *SnapshotPool) AcquireRead() *MatchSnapshot {
	return p.current.Load()
}
