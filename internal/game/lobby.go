package game

import (
	"sync"

	"bombersplash/internal/tiled"
)

// Lobby hands out the match new players join. There is at most one current
// match; a new one is created when the previous one has ended.
type Lobby struct {
	mu      sync.Mutex
	mapName string
	tileMap *tiled.Map
	opts    Options
	current *Match
	onMatch []func(*Match)
}

// NewLobby creates a lobby playing one map
func NewLobby(mapName string, m *tiled.Map, opts Options) *Lobby {
	return &Lobby{mapName: mapName, tileMap: m, opts: opts}
}

// OnMatch registers fn to be called for every new match, before it starts
// and before any player joins it.
func (l *Lobby) OnMatch(fn func(*Match)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onMatch = append(l.onMatch, fn)
}

// Join adds a new player to the current match, starting a fresh match
// first when needed.
func (l *Lobby) Join() (*Match, *Player, error) {
	match, err := l.match()
	if err != nil {
		return nil, nil, err
	}
	p, err := match.AddPlayer()
	if err != nil {
		return nil, nil, err
	}
	return match, p, nil
}

func (l *Lobby) match() (*Match, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil && !l.current.Finished() {
		return l.current, nil
	}

	match, err := NewMatch(l.mapName, l.tileMap, l.opts)
	if err != nil {
		return nil, err
	}
	for _, fn := range l.onMatch {
		fn(match)
	}
	l.current = match
	match.Start()
	return match, nil
}

// Current returns the current match, or nil before the first join
func (l *Lobby) Current() *Match {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// MapName returns the name of the map every match is played on
func (l *Lobby) MapName() string {
	return l.mapName
}

// Stop stops the loop of the current match
func (l *Lobby) Stop() {
	if m := l.Current(); m != nil {
		m.Stop()
	}
}
