package api

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"bombersplash/internal/config"
	"bombersplash/internal/game"
	"bombersplash/internal/protocol"
	"bombersplash/internal/tiled"
)

const (
	writeWait      = 5 * time.Second
	sendBufferSize = 16
)

// HubConfig configures the WebSocket hub
type HubConfig struct {
	Limits     config.ResourceLimits
	UpdateRate int      // game:update frames per second
	Origins    []string // allowed browser origins, "*" for any
}

// wsClient is one connected player
type wsClient struct {
	conn     *websocket.Conn
	ip       string
	match    *game.Match
	playerID string
	inputs   *rate.Limiter

	send         chan []byte
	lastPacketID atomic.Uint32
	needsState   atomic.Bool // gets the next state even if unchanged

	ending    chan struct{} // flush pending frames, then close normally
	endOnce   sync.Once
	done      chan struct{} // connection is gone
	closeOnce sync.Once
}

// enqueue queues a frame without blocking. Slow clients lose frames.
func (c *wsClient) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *wsClient) end(frame []byte) {
	c.endOnce.Do(func() {
		if frame != nil {
			c.enqueue(frame)
		}
		close(c.ending)
	})
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// WebSocketHub connects players to the lobby and pushes match state to them
type WebSocketHub struct {
	lobby    *game.Lobby
	limits   config.ResourceLimits
	interval time.Duration
	upgrader websocket.Upgrader
	conns    *ConnectionLimiter

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWebSocketHub creates a hub for lobby and registers it for new matches.
// Broadcast loops start with the first match.
func NewWebSocketHub(lobby *game.Lobby, cfg HubConfig) *WebSocketHub {
	updateRate := cfg.UpdateRate
	if updateRate <= 0 {
		updateRate = config.DefaultMatch().UpdateRate
	}
	limits := cfg.Limits
	if limits.MaxConnections <= 0 {
		limits = config.DefaultLimits()
	}
	origins := NewOriginPolicy(cfg.Origins)

	h := &WebSocketHub{
		lobby:    lobby,
		limits:   limits,
		interval: time.Second / time.Duration(updateRate),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if origins.CheckOrigin(r) {
					return true
				}
				log.Printf("⚠️ WebSocket connection rejected from origin: %s", r.Header.Get("Origin"))
				return false
			},
		},
		conns:    NewConnectionLimiter(limits.MaxConnections, limits.MaxConnsPerIP),
		clients:  make(map[*wsClient]struct{}),
		stopChan: make(chan struct{}),
	}
	lobby.OnMatch(h.watchMatch)
	return h
}

// watchMatch runs under the lobby lock, so it only spawns the loop
func (h *WebSocketHub) watchMatch(m *game.Match) {
	RecordMatchStarted()
	h.wg.Add(1)
	go h.broadcastLoop(m)
}

// broadcastLoop pushes the state of m at the update rate until it ends
func (h *WebSocketHub) broadcastLoop(m *game.Match) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-h.stopChan:
			return
		case <-m.Done():
			h.broadcastState(m, &lastSeq)
			h.endMatch(m)
			return
		case <-ticker.C:
			h.broadcastState(m, &lastSeq)
		}
	}
}

// broadcastState encodes the latest snapshot once and queues it for every
// client of m. An unchanged snapshot only goes to clients that have none yet.
func (h *WebSocketHub) broadcastState(m *game.Match, lastSeq *uint64) {
	snap := m.GetSnapshot()
	if snap == nil {
		return
	}
	clients := h.matchClients(m)
	if len(clients) == 0 {
		return
	}

	start := time.Now()
	changed := snap.Sequence != *lastSeq
	*lastSeq = snap.Sequence

	var state []byte
	for _, c := range clients {
		if !changed && !c.needsState.Load() {
			continue
		}
		if state == nil {
			raw, err := protocol.EncodeState(&snap.State)
			if err != nil {
				log.Printf("❌ Failed to encode state of match %s: %v", m.ID(), err)
				return
			}
			state = raw
		}
		frame, err := protocol.EncodeGameUpdate(c.lastPacketID.Load(), state)
		if err != nil {
			log.Printf("❌ Failed to encode game:update: %v", err)
			return
		}
		if c.enqueue(frame) {
			c.needsState.Store(false)
		}
	}

	UpdateMatchGauges(snap)
	RecordBroadcast(time.Since(start))
}

// endMatch sends the final scores to every client of m and closes them
func (h *WebSocketHub) endMatch(m *game.Match) {
	scores := m.Scores()
	frame, err := protocol.EncodeGameEnd(scores)
	if err != nil {
		log.Printf("❌ Failed to encode game:end: %v", err)
	}
	clients := h.matchClients(m)
	for _, c := range clients {
		c.end(frame)
	}
	log.Printf("🏁 Sent game:end for match %s to %d clients", m.ID(), len(clients))
}

func (h *WebSocketHub) matchClients(m *game.Match) []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.match == m {
			out = append(out, c)
		}
	}
	return out
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns connection statistics
func (h *WebSocketHub) Stats() map[string]uint64 {
	return h.conns.GetStats()
}

// HandleWebSocket upgrades the request, joins the lobby and starts the
// client's pumps
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if ok, reason := h.conns.Acquire(ip); !ok {
		log.Printf("⚠️ WebSocket connection rejected from %s: %s", ip, reason)
		RecordConnectionRejected(reason)
		status := http.StatusServiceUnavailable
		if reason == "ws_ip_limit" {
			status = http.StatusTooManyRequests
		}
		http.Error(w, "Too many connections", status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.conns.Release(ip)
		return
	}

	match, player, err := h.lobby.Join()
	if err != nil {
		log.Printf("⚠️ Could not join %s to a match: %v", ip, err)
		RecordConnectionRejected("join")
		code := websocket.CloseInternalServerErr
		if errors.Is(err, game.ErrMatchFull) {
			code = websocket.CloseTryAgainLater
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, "join failed"), time.Now().Add(writeWait))
		conn.Close()
		h.conns.Release(ip)
		return
	}

	c := &wsClient{
		conn:     conn,
		ip:       ip,
		match:    match,
		playerID: player.ID,
		inputs:   rate.NewLimiter(rate.Limit(h.limits.InputsPerSecond), int(h.limits.InputsPerSecond)+1),
		send:     make(chan []byte, sendBufferSize),
		ending:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.needsState.Store(true)

	join, err := protocol.EncodeGameJoin(protocol.GameJoin{
		GameID:   match.ID(),
		PlayerID: player.ID,
		MapURL:   tiled.MapURL(match.MapName()),
	})
	if err != nil {
		log.Printf("❌ Failed to encode game:join: %v", err)
	} else {
		c.enqueue(join)
	}

	h.register(c)

	// the match may have ended before the client was registered
	if match.Finished() {
		if frame, err := protocol.EncodeGameEnd(match.Scores()); err == nil {
			c.end(frame)
		} else {
			c.end(nil)
		}
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *WebSocketHub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("📱 Client %s connected from %s (%d total)", c.playerID, c.ip, count)
	UpdateWSConnections(count)
}

func (h *WebSocketHub) unregister(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	c.conn.Close()
	h.conns.Release(c.ip)
	c.match.RemovePlayer(c.playerID)

	log.Printf("📱 Client %s disconnected (%d remaining)", c.playerID, count)
	UpdateWSConnections(count)
}

// readPump applies player:update frames until the connection fails
func (h *WebSocketHub) readPump(c *wsClient) {
	defer h.unregister(c)

	c.conn.SetReadLimit(h.limits.MaxMessageBytes)
	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("⚠️ WebSocket read error from %s: %v", c.ip, err)
			}
			return
		}
		IncrementWSMessages("in")

		if msgType != websocket.BinaryMessage {
			RecordConnectionRejected("bad_frame")
			continue
		}
		if !c.inputs.Allow() {
			RecordConnectionRejected("input_rate")
			continue
		}
		update, err := protocol.DecodePlayerUpdate(frame)
		if err != nil {
			RecordConnectionRejected("bad_frame")
			continue
		}
		if err := c.match.UpdateInputs(c.playerID, update.Inputs); err != nil {
			if !errors.Is(err, game.ErrMatchFinished) {
				log.Printf("⚠️ Input from %s rejected: %v", c.playerID, err)
			}
			continue
		}
		c.lastPacketID.Store(update.PacketID)
	}
}

// writePump is the only writer of data frames on the connection
func (h *WebSocketHub) writePump(c *wsClient) {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if !h.write(c, frame) {
				return
			}
		case <-c.ending:
			if !h.flush(c) {
				return
			}
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"),
				time.Now().Add(writeWait))
			return
		case <-h.stopChan:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes every queued frame
func (h *WebSocketHub) flush(c *wsClient) bool {
	for {
		select {
		case frame := <-c.send:
			if !h.write(c, frame) {
				return false
			}
		default:
			return true
		}
	}
}

func (h *WebSocketHub) write(c *wsClient, frame []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return false
	}
	IncrementWSMessages("out")
	return true
}

// Stop ends every broadcast loop and closes all connections
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.wg.Wait()
}
