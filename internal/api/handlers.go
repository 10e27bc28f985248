package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bombersplash/internal/game"
	"bombersplash/internal/tiled"
	"bombersplash/internal/world"
)

// maxWorldBody bounds PUT /api/world request bodies
const maxWorldBody = 1 << 20

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

// StateResponse is the body of GET /api/state
type StateResponse struct {
	GameID   string     `json:"gameId"`
	Map      string     `json:"map"`
	Sequence uint64     `json:"sequence"`
	Tick     uint64     `json:"tick"`
	Finished bool       `json:"finished"`
	State    game.State `json:"state"`
}

// PlayerResponse is the body of GET /api/players/{id}
type PlayerResponse struct {
	State world.EntityState `json:"state"`
	Bombs int               `json:"bombs"`
}

// MapInfo lists one playable map
type MapInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// currentMatch writes a 404 and returns nil when nobody has joined yet
func (h *routerHandlers) currentMatch(w http.ResponseWriter) *game.Match {
	m := h.matches.Current()
	if m == nil {
		writeError(w, "No match running", http.StatusNotFound)
	}
	return m
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}
	// lock-free: the snapshot is immutable once published
	snap := m.GetSnapshot()
	if snap == nil {
		writeError(w, "No state yet", http.StatusNotFound)
		return
	}
	writeJSON(w, StateResponse{
		GameID:   m.ID(),
		Map:      m.MapName(),
		Sequence: snap.Sequence,
		Tick:     snap.Tick,
		Finished: snap.Finished,
		State:    snap.State,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"map":       h.matches.MapName(),
		"rateLimit": h.rateLimiter.GetStats(),
	}
	if m := h.matches.Current(); m != nil {
		stats["match"] = m.Stats()
	}
	if h.hub != nil {
		stats["clients"] = h.hub.ClientCount()
		stats["connections"] = h.hub.Stats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}
	writeJSON(w, game.Standings(m.Scores()))
}

func (h *routerHandlers) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}
	id := chi.URLParam(r, "id")
	state, err := m.PlayerState(id)
	if err != nil {
		writeMatchError(w, err)
		return
	}
	resp := PlayerResponse{State: state}
	if info, ok := m.Player(id); ok {
		resp.Bombs = info.Bombs
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetBomb(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}
	state, err := m.BombState(chi.URLParam(r, "id"))
	if err != nil {
		writeMatchError(w, err)
		return
	}
	writeJSON(w, state)
}

func (h *routerHandlers) handleScorePNG(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := m.WriteScorePNG(w); err != nil {
		log.Printf("❌ Score image failed: %v", err)
	}
}

func (h *routerHandlers) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.WritePNG(w, m.Scene()); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
	}
}

func (h *routerHandlers) handleGetMaps(w http.ResponseWriter, r *http.Request) {
	maps := make([]MapInfo, 0)
	if h.catalog != nil {
		for _, name := range h.catalog.Names() {
			maps = append(maps, MapInfo{Name: name, URL: tiled.MapURL(name)})
		}
	}
	writeJSON(w, maps)
}

func (h *routerHandlers) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}
	writeJSON(w, m.WorldState())
}

func (h *routerHandlers) handlePutWorld(w http.ResponseWriter, r *http.Request) {
	m := h.currentMatch(w)
	if m == nil {
		return
	}

	var ws world.WorldState
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWorldBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ws); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := m.RestoreWorld(ws); err != nil {
		log.Printf("⚠️ World restore rejected: %v", err)
		writeMatchError(w, err)
		return
	}
	log.Printf("🛠️ World of match %s restored by %s", m.ID(), GetClientIP(r))
	writeJSON(w, m.WorldState())
}

// writeMatchError maps world and match errors onto HTTP status codes
func writeMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, world.ErrNotFound), errors.Is(err, game.ErrUnknownPlayer):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, world.ErrDuplicateID):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, world.ErrInvalidDescriptor):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, game.ErrMatchFinished):
		writeError(w, err.Error(), http.StatusGone)
	default:
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}

// requestMetrics records latency and status per route pattern
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
