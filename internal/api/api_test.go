package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bombersplash/internal/game"
	"bombersplash/internal/render"
	"bombersplash/internal/tiled"
	"bombersplash/internal/world"
)

const testToken = "s3cret"

// 20x15 map of 16px tiles with a red and a blue start
const arenaJSON = `{
  "width": 20, "height": 15, "tilewidth": 16, "tileheight": 16,
  "layers": [
    {"name": "spawns", "type": "objectgroup", "visible": false, "objects": [
      {"id": 1, "name": "red", "type": "startPosition", "x": 40, "y": 40},
      {"id": 2, "name": "blue", "type": "startPosition", "x": 280, "y": 200}
    ]},
    {"name": "walls", "type": "objectgroup", "visible": true, "objects": [
      {"id": 3, "type": "collisionBox", "x": 144, "y": 0, "width": 32, "height": 64}
    ]}
  ]
}`

func testCatalog(t *testing.T) *tiled.Catalog {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "arena"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "arena", tiled.MapFile), []byte(arenaJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := tiled.LoadCatalog(dir)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	return c
}

// newTestLobby returns a lobby whose matches only advance through Tick
func newTestLobby(t *testing.T, c *tiled.Catalog) *game.Lobby {
	t.Helper()
	m, ok := c.Get("arena")
	if !ok {
		t.Fatal("arena map missing")
	}
	opts := game.DefaultOptions()
	opts.TickRate = 0
	opts.Seed = 1
	return game.NewLobby("arena", m, opts)
}

func newTestServer(t *testing.T) (*httptest.Server, *game.Lobby) {
	t.Helper()
	c := testCatalog(t)
	lobby := newTestLobby(t, c)
	limiter := NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1000,
		Burst:             1000,
		CleanupInterval:   time.Hour,
	})
	t.Cleanup(limiter.Stop)
	renderer, err := render.New(2)
	if err != nil {
		t.Fatalf("render.New failed: %v", err)
	}

	router := NewRouter(RouterConfig{
		Matches:        lobby,
		Catalog:        c,
		Renderer:       renderer,
		AdminAuth:      NewAdminAuth(testToken),
		RateLimiter:    limiter,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, lobby
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

// TestHealth tests the liveness endpoint
func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	if code := getJSON(t, ts.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body)
	}
}

// TestStateBeforeFirstJoin checks match endpoints report 404 without a match
func TestStateBeforeFirstJoin(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/api/state", "/api/standings", "/api/score.png", "/api/players/x"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

// TestGetState tests the snapshot endpoint after players joined
func TestGetState(t *testing.T) {
	ts, lobby := newTestServer(t)

	m, _, err := lobby.Join()
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, _, err := lobby.Join(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	var resp StateResponse
	if code := getJSON(t, ts.URL+"/api/state", &resp); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if resp.GameID != m.ID() || resp.Map != "arena" {
		t.Errorf("Unexpected match %s on %s", resp.GameID, resp.Map)
	}
	if len(resp.State.Players) != 2 {
		t.Errorf("Expected 2 players, got %d", len(resp.State.Players))
	}
	if resp.State.RemainingTime != (2 * time.Minute).Milliseconds() {
		t.Errorf("Expected full match time, got %dms", resp.State.RemainingTime)
	}
}

// TestGetEntities covers player and bomb lookups
func TestGetEntities(t *testing.T) {
	ts, lobby := newTestServer(t)

	_, p, err := lobby.Join()
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	var player PlayerResponse
	if code := getJSON(t, ts.URL+"/api/players/"+p.ID, &player); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if player.State.ID != p.ID || player.State.Team != p.Team.Name {
		t.Errorf("Unexpected player %+v", player.State)
	}
	if player.Bombs != game.MaxBombs {
		t.Errorf("Expected %d bombs, got %d", game.MaxBombs, player.Bombs)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/players/nobody", http.StatusNotFound},
		{"/api/bombs/nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		if code := getJSON(t, ts.URL+tt.path, nil); code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, code)
		}
	}
}

// TestStandings checks every team is ranked
func TestStandings(t *testing.T) {
	ts, lobby := newTestServer(t)
	if _, _, err := lobby.Join(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	var standings []game.Standing
	if code := getJSON(t, ts.URL+"/api/standings", &standings); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(standings) != 2 {
		t.Fatalf("Expected 2 teams, got %+v", standings)
	}
	for _, s := range standings {
		if s.Rank != 1 || s.Score != 1 {
			t.Errorf("Expected both teams tied at 1, got %+v", s)
		}
	}
}

// TestScorePNG checks the territory image has the map's pixel size
func TestScorePNG(t *testing.T) {
	ts, lobby := newTestServer(t)
	if _, _, err := lobby.Join(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/score.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("Expected 320x240, got %v", b)
	}
}

// TestFramePNG renders the spectator frame at twice the map size
func TestFramePNG(t *testing.T) {
	ts, lobby := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 before any match, got %d", resp.StatusCode)
	}

	if _, _, err := lobby.Join(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	resp, err = http.Get(ts.URL + "/api/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("Expected 640x480, got %v", b)
	}
}

// TestMaps lists the catalog and serves its files
func TestMaps(t *testing.T) {
	ts, _ := newTestServer(t)

	var maps []MapInfo
	if code := getJSON(t, ts.URL+"/api/maps", &maps); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(maps) != 1 || maps[0].Name != "arena" || maps[0].URL != "/maps/arena/map.json" {
		t.Fatalf("Unexpected maps %+v", maps)
	}

	resp, err := http.Get(ts.URL + maps[0].URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for map file, got %d", resp.StatusCode)
	}
	if _, err := tiled.Parse(mustRead(t, resp)); err != nil {
		t.Errorf("Served map does not parse: %v", err)
	}
}

func mustRead(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return buf.Bytes()
}

func adminRequest(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatal(err)
			}
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

// TestAdminWorldRequiresToken checks the admin routes reject bad credentials
func TestAdminWorldRequiresToken(t *testing.T) {
	ts, lobby := newTestServer(t)
	if _, _, err := lobby.Join(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong token", "guess", http.StatusUnauthorized},
		{"valid token", testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := adminRequest(t, http.MethodGet, ts.URL+"/api/world", tt.token, nil)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

// TestAdminRestoreWorld moves a player through PUT /api/world
func TestAdminRestoreWorld(t *testing.T) {
	ts, lobby := newTestServer(t)
	m, p, err := lobby.Join()
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	ws := m.WorldState()
	ws.Players[0].Pos = world.Vec2{X: 100, Y: 120}
	resp := adminRequest(t, http.MethodPut, ts.URL+"/api/world", testToken, ws)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	state, err := m.PlayerState(p.ID)
	if err != nil {
		t.Fatalf("PlayerState failed: %v", err)
	}
	if math.Abs(float64(state.Pos.X-100)) > 1e-3 || math.Abs(float64(state.Pos.Y-120)) > 1e-3 {
		t.Errorf("Expected player at (100, 120), got %+v", state.Pos)
	}
}

// TestAdminRestoreWorldErrors maps restore failures onto status codes
func TestAdminRestoreWorldErrors(t *testing.T) {
	ts, lobby := newTestServer(t)
	m, _, err := lobby.Join()
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	stranger := m.WorldState()
	stranger.Players[0].ID = "stranger"

	badRadius := m.WorldState()
	badRadius.Players[0].R = -1

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"invalid json", `{"players": [`, http.StatusBadRequest},
		{"unknown field", `{"walls": []}`, http.StatusBadRequest},
		{"unknown player", stranger, http.StatusNotFound},
		{"bad radius", badRadius, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := adminRequest(t, http.MethodPut, ts.URL+"/api/world", testToken, tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

// TestAuthStatus reports whether the caller holds the admin token
func TestAuthStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, token := range []string{"", testToken} {
		resp := adminRequest(t, http.MethodGet, ts.URL+"/api/auth/status", token, nil)
		var status AuthStatus
		json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()

		if !status.Enabled {
			t.Error("Admin auth should be enabled")
		}
		if status.Authenticated != (token == testToken) {
			t.Errorf("token %q: authenticated=%v", token, status.Authenticated)
		}
	}
}

// TestRateLimitRejects checks the HTTP limiter answers 429 once the burst is spent
func TestRateLimitRejects(t *testing.T) {
	c := testCatalog(t)
	limiter := NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: 0.001,
		Burst:             2,
		CleanupInterval:   time.Hour,
	})
	defer limiter.Stop()

	router := NewRouter(RouterConfig{
		Matches:        newTestLobby(t, c),
		RateLimiter:    limiter,
		DisableLogging: true,
	})

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 200, 200, 429, got %v", codes)
	}
	if got := limiter.GetStats()["rejected"]; got != 1 {
		t.Errorf("Expected 1 rejection, got %d", got)
	}
}
