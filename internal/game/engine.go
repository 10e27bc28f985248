package game

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"bombersplash/internal/config"
	"bombersplash/internal/physics"
	"bombersplash/internal/tiled"
	"bombersplash/internal/world"
)

var (
	ErrMatchFinished = errors.New("match finished")
	ErrMatchFull     = errors.New("match full")
	ErrNoTeams       = errors.New("map has no start positions")
	ErrUnknownPlayer = errors.New("unknown player")
)

// Options tunes a match
type Options struct {
	TickRate      int // 0 disables the internal loop, Tick is then driven by the caller
	Duration      time.Duration
	ScoreInterval time.Duration
	MaxPlayers    int
	Physics       physics.Config
	Seed          int64 // 0 picks a time based seed

	// EventLog receives match events. It is shared between matches and
	// owned by the caller.
	EventLog *EventLog
	// TickObserver is called with the wall time of every loop tick
	TickObserver func(time.Duration)
}

// DefaultOptions returns the standard match rules
func DefaultOptions() Options {
	return OptionsFromConfig(config.AppConfig{
		Match:   config.DefaultMatch(),
		Physics: config.DefaultPhysics(),
		Limits:  config.DefaultLimits(),
	})
}

// OptionsFromConfig maps application config to match options
func OptionsFromConfig(cfg config.AppConfig) Options {
	phys := physics.DefaultConfig()
	phys.Iterations = cfg.Physics.Iterations
	phys.SleepTimeThreshold = cfg.Physics.SleepTimeThreshold
	phys.CollisionSlop = cfg.Physics.CollisionSlop

	return Options{
		TickRate:      cfg.Match.TickRate,
		Duration:      cfg.Match.Duration,
		ScoreInterval: cfg.Match.ScoreInterval,
		MaxPlayers:    cfg.Limits.MaxPlayers,
		Physics:       phys,
	}
}

// Match is one timed game on one map. All methods are safe for concurrent
// use; the world session underneath is only touched with mu held.
type Match struct {
	mu      sync.RWMutex
	id      string
	mapName string
	opts    Options

	session  *world.Session
	teams    []*Team
	players  map[string]*Player
	bombs    []*Bomb // placement order
	splashes []Splash
	score    *Score
	walls    int

	elapsed    time.Duration
	sinceScore time.Duration
	tickCount  uint64
	finished   bool
	done       chan struct{}
	rng        *rand.Rand

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	endListeners []func(scores map[string]int)
	snapshotPool *SnapshotPool
	eventLog     *EventLog
}

// NewMatch builds a match on a map: one team per start position and one
// wall per collision rectangle.
func NewMatch(mapName string, m *tiled.Map, opts Options) (*Match, error) {
	starts := m.StartPositions()
	if len(starts) == 0 {
		return nil, fmt.Errorf("new match on %s: %w", mapName, ErrNoTeams)
	}
	if opts.Duration <= 0 {
		opts.Duration = config.DefaultMatch().Duration
	}
	if opts.ScoreInterval <= 0 {
		opts.ScoreInterval = config.DefaultMatch().ScoreInterval
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = config.DefaultLimits().MaxPlayers
	}
	if opts.EventLog == nil {
		opts.EventLog = NewEventLog()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	match := &Match{
		id:           uuid.NewString(),
		mapName:      mapName,
		opts:         opts,
		session:      world.NewSession(world.WithPhysicsConfig(opts.Physics)),
		teams:        teamsFromStarts(starts),
		players:      make(map[string]*Player),
		done:         make(chan struct{}),
		rng:          rand.New(rand.NewSource(seed)),
		stopChan:     make(chan struct{}),
		snapshotPool: NewSnapshotPool(opts.MaxPlayers),
		eventLog:     opts.EventLog,
	}

	rects := m.CollisionRects()
	for _, r := range rects {
		c := r.Center()
		wall := world.WallDescriptor{
			Pos: world.Vec2{X: float32(c.X), Y: float32(c.Y)},
			W:   float32(r.Width),
			H:   float32(r.Height),
		}
		if err := match.session.AddWall(wall); err != nil {
			log.Printf("⚠️ Skipping wall %+v on %s: %v", r, mapName, err)
			continue
		}
		match.walls++
	}

	for _, t := range match.teams {
		if _, ok := TeamColors[t.Name]; !ok {
			log.Printf("⚠️ Team %q on %s has no paint colour and will never score", t.Name, mapName)
		}
	}

	w, h := m.PixelSize()
	match.score = NewScore(w, h, rects)
	match.refreshScores()
	match.produceSnapshot()
	return match, nil
}

// ID returns the match id
func (m *Match) ID() string { return m.id }

// MapName returns the name of the map being played
func (m *Match) MapName() string { return m.mapName }

// Start begins the match loop at the configured tick rate
func (m *Match) Start() {
	m.mu.Lock()
	if m.running || m.finished || m.opts.TickRate <= 0 {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	dt := time.Second / time.Duration(m.opts.TickRate)
	m.ticker = time.NewTicker(dt)
	ticker, stop := m.ticker, m.stopChan
	m.emit(EventTypeMatchStart, "", MatchStartPayload{
		Map:      m.mapName,
		Teams:    m.teamNames(),
		Walls:    m.walls,
		Duration: m.opts.Duration.Milliseconds(),
	})
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				m.Tick(dt)
				if obs := m.opts.TickObserver; obs != nil {
					obs(time.Since(start))
				}
				if m.Finished() {
					m.Stop()
					return
				}
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Match %s started on %s at %d TPS", m.id, m.mapName, m.opts.TickRate)
}

// Stop stops the match loop. The match keeps its state.
func (m *Match) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.ticker.Stop()
	close(m.stopChan)
	log.Printf("🛑 Match %s stopped", m.id)
}

// Tick advances the match by dt of simulated time: physics, bomb fuses,
// bomb regeneration, score refresh and the match clock.
func (m *Match) Tick(dt time.Duration) {
	scores, ended := m.advance(dt)
	if !ended {
		return
	}

	log.Printf("🏁 Match %s ended, winners %v: %v", m.id, Winners(scores), scores)
	m.mu.RLock()
	listeners := append([]func(map[string]int){}, m.endListeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(scores)
	}
}

func (m *Match) advance(dt time.Duration) (map[string]int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished || dt <= 0 {
		return nil, false
	}

	m.tickCount++
	m.session.Step(float32(dt.Seconds()))
	m.elapsed += dt

	for _, p := range m.players {
		p.regenerate(dt)
	}
	m.burnFuses(dt)

	m.sinceScore += dt
	if m.sinceScore >= m.opts.ScoreInterval {
		m.sinceScore = 0
		m.refreshScores()
	}

	if m.elapsed < m.opts.Duration {
		m.produceSnapshot()
		return nil, false
	}

	m.finished = true
	m.refreshScores()
	close(m.done)
	scores := m.scoresLocked()
	m.emit(EventTypeMatchEnd, "", MatchEndPayload{Scores: scores})
	m.produceSnapshot()
	return scores, true
}

// burnFuses explodes every bomb whose fuse ran out, in placement order
func (m *Match) burnFuses(dt time.Duration) {
	live := m.bombs[:0]
	for _, b := range m.bombs {
		b.fuse -= dt
		if b.fuse > 0 {
			live = append(live, b)
			continue
		}
		m.explode(b)
	}
	for i := len(live); i < len(m.bombs); i++ {
		m.bombs[i] = nil
	}
	m.bombs = live
}

func (m *Match) explode(b *Bomb) {
	delete(b.Team.Bombs, b.ID)

	state, err := m.session.GetBombState(b.ID)
	if err != nil {
		log.Printf("⚠️ Bomb %s vanished before exploding: %v", b.ID, err)
		return
	}
	if err := m.session.RemoveBomb(b.ID); err != nil {
		log.Printf("⚠️ Failed to remove bomb %s: %v", b.ID, err)
	}

	splash := Splash{
		ID:   uuid.NewString(),
		Team: b.Team.Name,
		Pos:  roundVec(state.Pos),
		Rot:  quarterTurn(m.rng.Intn(4)),
		R:    SplashRadius,
	}
	m.splashes = append(m.splashes, splash)
	if err := m.score.AddSplash(splash); err != nil {
		log.Printf("⚠️ Splash not scored: %v", err)
	}
	m.emit(EventTypeBombExploded, b.Owner, BombPayload{BombID: b.ID, Team: b.Team.Name, X: splash.Pos.X, Y: splash.Pos.Y})
}

// refreshScores recounts painted pixels. A team never scores below 1.
func (m *Match) refreshScores() {
	counts := m.score.Count()
	for _, t := range m.teams {
		t.Score = counts[t.Name]
		if t.Score == 0 {
			t.Score = 1
		}
	}
}

// AddPlayer adds a player to the team with the fewest players, at the
// team's start position.
func (m *Match) AddPlayer() (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return nil, ErrMatchFinished
	}
	if len(m.players) >= m.opts.MaxPlayers {
		return nil, ErrMatchFull
	}

	team := smallestTeam(m.teams)
	p := newPlayer(uuid.NewString(), team)
	err := m.session.AddPlayer(world.EntityState{
		ID:   p.ID,
		Team: team.Name,
		Pos:  world.Vec2{X: float32(team.Start.X), Y: float32(team.Start.Y)},
		R:    PlayerRadius,
	})
	if err != nil {
		return nil, fmt.Errorf("add player: %w", err)
	}

	team.Players[p.ID] = p
	m.players[p.ID] = p
	m.emit(EventTypePlayerJoin, p.ID, PlayerJoinPayload{Team: team.Name, SpawnX: team.Start.X, SpawnY: team.Start.Y})
	log.Printf("👤 Player %s joined team %s in match %s", p.ID, team.Name, m.id)
	m.produceSnapshot()
	return p, nil
}

// RemovePlayer removes a player. It reports false when the player is not
// part of this match.
func (m *Match) RemovePlayer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return false
	}
	delete(p.Team.Players, id)
	delete(m.players, id)
	if err := m.session.RemovePlayer(id); err != nil && !errors.Is(err, world.ErrNotFound) {
		log.Printf("⚠️ Failed to remove player %s: %v", id, err)
	}
	m.emit(EventTypePlayerLeave, id, nil)
	log.Printf("👋 Player %s left match %s", id, m.id)
	m.produceSnapshot()
	return true
}

// UpdateInputs applies one frame of controller input to a player
func (m *Match) UpdateInputs(id string, in Inputs) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return ErrMatchFinished
	}
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("update inputs of %s: %w", id, ErrUnknownPlayer)
	}

	if err := m.session.SetPlayerVelocity(id, inputVelocity(in.Vel)); err != nil {
		return err
	}
	if p.pressPlaceBomb(in.Actions.PlaceBomb) {
		return m.placeBomb(p)
	}
	return nil
}

func (m *Match) placeBomb(p *Player) error {
	state, err := m.session.GetPlayerState(p.ID)
	if err != nil {
		return err
	}

	b := &Bomb{ID: uuid.NewString(), Owner: p.ID, Team: p.Team, fuse: BombFuse}
	pos := bombPosition(state.Pos, state.Vel)
	err = m.session.AddBomb(world.EntityState{
		ID:   b.ID,
		Team: p.Team.Name,
		Pos:  pos,
		R:    BombRadius,
	})
	if err != nil {
		return fmt.Errorf("place bomb: %w", err)
	}

	p.Team.Bombs[b.ID] = b
	m.bombs = append(m.bombs, b)
	m.emit(EventTypeBombPlaced, p.ID, BombPayload{BombID: b.ID, Team: p.Team.Name, X: pos.X, Y: pos.Y})
	return nil
}

// Serialize returns the current match state
func (m *Match) Serialize() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st State
	m.fillState(&st)
	return st
}

func (m *Match) fillState(st *State) {
	remaining := m.opts.Duration - m.elapsed
	if remaining < 0 {
		remaining = 0
	}
	ws := m.session.GetWorldState()

	st.RemainingTime = remaining.Milliseconds()
	st.Players = append(st.Players[:0], ws.Players...)
	st.Bombs = append(st.Bombs[:0], ws.Bombs...)
	st.Splashes = append(st.Splashes[:0], m.splashes...)
	st.Scores = m.scoresLocked()
}

func (m *Match) produceSnapshot() {
	snap := m.snapshotPool.AcquireWrite()
	snap.Tick = m.tickCount
	snap.Finished = m.finished
	m.fillState(&snap.State)
	m.snapshotPool.PublishWrite(snap)
}

// GetSnapshot returns the state published at the end of the last tick
// without taking the match lock.
func (m *Match) GetSnapshot() *MatchSnapshot {
	return m.snapshotPool.AcquireRead()
}

// WorldState returns the physics snapshot of every player and bomb
func (m *Match) WorldState() world.WorldState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.GetWorldState()
}

// RestoreWorld replaces the physics state of the match with ws. Every player
// in ws must already be in the match on the same team; players left out are
// removed. Bombs keep their fuse when known, new ones get a full fuse and
// must belong to a team of this match.
func (m *Match) RestoreWorld(ws world.WorldState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return ErrMatchFinished
	}

	keep := make(map[string]bool, len(ws.Players))
	for _, ps := range ws.Players {
		p, ok := m.players[ps.ID]
		if !ok {
			return fmt.Errorf("restore world: player %s: %w", ps.ID, ErrUnknownPlayer)
		}
		if p.Team.Name != ps.Team {
			return fmt.Errorf("restore world: player %s cannot move to team %q: %w", ps.ID, ps.Team, world.ErrInvalidDescriptor)
		}
		keep[ps.ID] = true
	}
	known := make(map[string]*Bomb, len(m.bombs))
	for _, b := range m.bombs {
		known[b.ID] = b
	}
	for _, bs := range ws.Bombs {
		b, ok := known[bs.ID]
		if (ok && b.Team.Name != bs.Team) || (!ok && m.team(bs.Team) == nil) {
			return fmt.Errorf("restore world: bomb %s of team %q: %w", bs.ID, bs.Team, world.ErrInvalidDescriptor)
		}
	}

	if err := m.session.SetWorldState(ws); err != nil {
		return fmt.Errorf("restore world: %w", err)
	}

	for id, p := range m.players {
		if !keep[id] {
			delete(p.Team.Players, id)
			delete(m.players, id)
			m.emit(EventTypePlayerLeave, id, nil)
		}
	}
	for _, b := range m.bombs {
		delete(b.Team.Bombs, b.ID)
	}
	bombs := make([]*Bomb, 0, len(ws.Bombs))
	for _, bs := range ws.Bombs {
		b, ok := known[bs.ID]
		if !ok {
			b = &Bomb{ID: bs.ID, Team: m.team(bs.Team), fuse: BombFuse}
		}
		b.Team.Bombs[b.ID] = b
		bombs = append(bombs, b)
	}
	m.bombs = bombs

	log.Printf("♻️ Match %s restored: %d players, %d bombs", m.id, len(ws.Players), len(ws.Bombs))
	m.produceSnapshot()
	return nil
}

func (m *Match) team(name string) *Team {
	for _, t := range m.teams {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// WriteScorePNG encodes the painted territory as a PNG image
func (m *Match) WriteScorePNG(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return png.Encode(w, m.score.Image())
}

// Scores returns the current score of every team
func (m *Match) Scores() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scoresLocked()
}

func (m *Match) scoresLocked() map[string]int {
	scores := make(map[string]int, len(m.teams))
	for _, t := range m.teams {
		scores[t.Name] = t.Score
	}
	return scores
}

// PlayerState returns the live physics state of a player
func (m *Match) PlayerState(id string) (world.EntityState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.GetPlayerState(id)
}

// BombState returns the live physics state of a bomb
func (m *Match) BombState(id string) (world.EntityState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.GetBombState(id)
}

// Player returns the controller state of a player
func (m *Match) Player(id string) (PlayerInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[id]
	if !ok {
		return PlayerInfo{}, false
	}
	return p.info(), true
}

// OnEnd registers fn to be called once with the final scores. If the match
// already ended fn is called right away.
func (m *Match) OnEnd(fn func(scores map[string]int)) {
	m.mu.Lock()
	if !m.finished {
		m.endListeners = append(m.endListeners, fn)
		m.mu.Unlock()
		return
	}
	scores := m.scoresLocked()
	m.mu.Unlock()
	fn(scores)
}

// Done is closed when the match ends
func (m *Match) Done() <-chan struct{} {
	return m.done
}

// Finished reports whether the match clock ran out
func (m *Match) Finished() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.finished
}

// MatchStats is a monitoring view of a match
type MatchStats struct {
	ID          string        `json:"id"`
	Map         string        `json:"map"`
	Tick        uint64        `json:"tick"`
	ElapsedMs   int64         `json:"elapsedMs"`
	RemainingMs int64         `json:"remainingMs"`
	Finished    bool          `json:"finished"`
	Running     bool          `json:"running"`
	Players     int           `json:"players"`
	Bombs       int           `json:"bombs"`
	Splashes    int           `json:"splashes"`
	Walls       int           `json:"walls"`
	Teams       []TeamInfo    `json:"teams"`
	Standings   []Standing    `json:"standings"`
	World       world.Stats   `json:"world"`
	EventLog    EventLogStats `json:"eventLog"`
}

// Stats returns a monitoring view of the match
func (m *Match) Stats() MatchStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	remaining := m.opts.Duration - m.elapsed
	if remaining < 0 {
		remaining = 0
	}
	teams := make([]TeamInfo, 0, len(m.teams))
	for _, t := range m.teams {
		teams = append(teams, t.info())
	}
	return MatchStats{
		ID:          m.id,
		Map:         m.mapName,
		Tick:        m.tickCount,
		ElapsedMs:   m.elapsed.Milliseconds(),
		RemainingMs: remaining.Milliseconds(),
		Finished:    m.finished,
		Running:     m.running,
		Players:     len(m.players),
		Bombs:       len(m.bombs),
		Splashes:    len(m.splashes),
		Walls:       m.walls,
		Teams:       teams,
		Standings:   Standings(m.scoresLocked()),
		World:       m.session.Stats(),
		EventLog:    m.eventLog.Stats(),
	}
}

func (m *Match) teamNames() []string {
	names := make([]string, len(m.teams))
	for i, t := range m.teams {
		names[i] = t.Name
	}
	return names
}

func (m *Match) emit(t EventType, playerID string, payload interface{}) {
	m.eventLog.Emit(NewEvent(t, m.tickCount, m.id, playerID, payload))
}

// Scene is everything needed to draw one spectator frame of a match
type Scene struct {
	Width, Height int
	Walls         []tiled.Rect
	Territory     *image.RGBA // copy of the painted canvas
	State         State
	Teams         []TeamInfo
}

// Scene captures the current match for rendering
func (m *Match) Scene() Scene {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.score.Image()
	territory := image.NewRGBA(src.Bounds())
	draw.Draw(territory, territory.Bounds(), src, src.Bounds().Min, draw.Src)

	sc := Scene{
		Width:     territory.Bounds().Dx(),
		Height:    territory.Bounds().Dy(),
		Walls:     m.score.Walls(),
		Territory: territory,
		Teams:     make([]TeamInfo, 0, len(m.teams)),
	}
	m.fillState(&sc.State)
	for _, t := range m.teams {
		sc.Teams = append(sc.Teams, t.info())
	}
	return sc
}
