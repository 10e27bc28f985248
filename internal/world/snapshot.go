package world

import "bombersplash/internal/physics"

func (s *Session) readBody(op, id string, h physics.BodyHandle) (Vec2, float32, Vec2) {
	state, err := s.engine.RigidBody(h)
	if err != nil {
		invariantBreach(op, id, err)
	}
	return ToExternal(state.Pose, state.Velocity)
}

func (s *Session) playerState(p *Player) EntityState {
	pos, rot, vel := s.readBody("read player", p.ID, p.Body)
	return EntityState{ID: p.ID, Team: p.Team, Pos: pos, Rot: rot, Vel: vel, R: p.Radius}
}

func (s *Session) bombState(b *Bomb) EntityState {
	pos, rot, vel := s.readBody("read bomb", b.ID, b.Body)
	return EntityState{ID: b.ID, Team: b.Team, Pos: pos, Rot: rot, Vel: vel, R: b.Radius}
}

// GetWorldState returns every player and bomb with its live state. Walls are
// not included and the order is unspecified.
func (s *Session) GetWorldState() WorldState {
	ws := WorldState{
		Players: make([]EntityState, 0, len(s.registry.players)),
		Bombs:   make([]EntityState, 0, len(s.registry.bombs)),
	}
	for _, p := range s.registry.players {
		ws.Players = append(ws.Players, s.playerState(p))
	}
	for _, b := range s.registry.bombs {
		ws.Bombs = append(ws.Bombs, s.bombState(b))
	}
	return ws
}

// SetWorldState replaces all players and bombs with the snapshot's. Every
// entity is destroyed and rebuilt, even those present in both states. Walls
// are kept. The snapshot is validated first; on error nothing changes.
func (s *Session) SetWorldState(ws WorldState) error {
	if err := validateSnapshot(ws); err != nil {
		return err
	}

	for _, p := range s.registry.players {
		destroyPlayer(s.engine, p)
	}
	s.registry.clearPlayers()
	for _, b := range s.registry.bombs {
		destroyBomb(s.engine, b)
	}
	s.registry.clearBombs()

	for _, p := range ws.Players {
		if err := s.addPlayer(p); err != nil {
			return err
		}
	}
	for _, b := range ws.Bombs {
		if err := s.addBomb(b); err != nil {
			return err
		}
	}
	return nil
}

func validateSnapshot(ws WorldState) error {
	const op = "set world state"
	seen := make(map[string]struct{}, len(ws.Players))
	for _, p := range ws.Players {
		if err := validateEntity(op, KindPlayer, p); err != nil {
			return err
		}
		if _, ok := seen[p.ID]; ok {
			return duplicate(op, KindPlayer, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(ws.Bombs))
	for _, b := range ws.Bombs {
		if err := validateEntity(op, KindBomb, b); err != nil {
			return err
		}
		if _, ok := seen[b.ID]; ok {
			return duplicate(op, KindBomb, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}
