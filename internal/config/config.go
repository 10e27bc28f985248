// Package config provides centralized configuration management.
// Every tunable of the server lives here; other packages receive these values
// instead of reading the environment themselves.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	DebugAddr      string   // pprof + metrics, keep on localhost
	MapsDir        string   // directory holding <name>/map.json
	AllowedOrigins []string // CORS and websocket origins
	EventLogPath   string   // JSONL match events, empty disables file output
	AdminToken     string   // bearer token for admin routes, empty disables them
	FrameScale     float64  // output pixels per map pixel of /api/frame.png
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:       3333,
		DebugAddr:  "localhost:6060",
		MapsDir:    "public/maps",
		FrameScale: 2,
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:3333",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:3333",
		},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v := os.Getenv("DEBUG_ADDR"); v != "" {
		cfg.DebugAddr = v
	}
	if v := os.Getenv("MAPS_DIR"); v != "" {
		cfg.MapsDir = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	cfg.EventLogPath = os.Getenv("EVENT_LOG")
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if s := getEnvFloat("FRAME_SCALE", 0); s > 0 {
		cfg.FrameScale = s
	}

	return cfg
}

// =============================================================================
// MATCH CONFIGURATION
// =============================================================================

// MatchConfig holds game rules and loop timing.
type MatchConfig struct {
	MapName       string
	TickRate      int           // simulation steps per second
	UpdateRate    int           // game:update messages per second
	Duration      time.Duration // match length
	ScoreInterval time.Duration // how often territory is recounted
}

// DefaultMatch returns the default match configuration.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		MapName:       "default",
		TickRate:      60,
		UpdateRate:    30,
		Duration:      2 * time.Minute,
		ScoreInterval: 200 * time.Millisecond,
	}
}

// MatchFromEnv returns match configuration with environment variable overrides.
func MatchFromEnv() MatchConfig {
	cfg := DefaultMatch()

	if v := os.Getenv("MAP_NAME"); v != "" {
		cfg.MapName = v
	}
	if r := getEnvInt("TICK_RATE", 0); r > 0 {
		cfg.TickRate = r
	}
	if r := getEnvInt("UPDATE_RATE", 0); r > 0 {
		cfg.UpdateRate = r
	}
	if d := getEnvDuration("GAME_DURATION", 0); d > 0 {
		cfg.Duration = d
	}
	if d := getEnvDuration("SCORE_INTERVAL", 0); d > 0 {
		cfg.ScoreInterval = d
	}

	return cfg
}

// =============================================================================
// PHYSICS CONFIGURATION
// =============================================================================

// PhysicsConfig holds solver tuning. Gravity is always zero.
type PhysicsConfig struct {
	Iterations         int
	SleepTimeThreshold float64 // seconds
	CollisionSlop      float64
}

// DefaultPhysics returns the default physics configuration.
func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		Iterations:         10,
		SleepTimeThreshold: 0.5,
		CollisionSlop:      0.01,
	}
}

// PhysicsFromEnv returns physics configuration with environment variable overrides.
func PhysicsFromEnv() PhysicsConfig {
	cfg := DefaultPhysics()

	if i := getEnvInt("PHYSICS_ITERATIONS", 0); i > 0 {
		cfg.Iterations = i
	}
	if v := getEnvFloat("PHYSICS_SLEEP_THRESHOLD", -1); v >= 0 {
		cfg.SleepTimeThreshold = v
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls DoS protection.
type ResourceLimits struct {
	MaxPlayers        int     // players per match
	MaxConnections    int     // concurrent websocket clients
	MaxConnsPerIP     int     // concurrent websocket clients per IP
	RequestsPerSecond float64 // per IP, HTTP API
	RequestBurst      int
	InputsPerSecond   float64 // per connection, player:update frames
	MaxMessageBytes   int64   // websocket read limit
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxPlayers:        64,
		MaxConnections:    256,
		MaxConnsPerIP:     8,
		RequestsPerSecond: 20,
		RequestBurst:      40,
		InputsPerSecond:   120,
		MaxMessageBytes:   4096,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() ResourceLimits {
	cfg := DefaultLimits()

	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	if mc := getEnvInt("MAX_CONNECTIONS", 0); mc > 0 {
		cfg.MaxConnections = mc
	}
	if mc := getEnvInt("MAX_CONNS_PER_IP", 0); mc > 0 {
		cfg.MaxConnsPerIP = mc
	}
	if r := getEnvFloat("RATE_LIMIT_RPS", 0); r > 0 {
		cfg.RequestsPerSecond = r
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server  ServerConfig
	Match   MatchConfig
	Physics PhysicsConfig
	Limits  ResourceLimits
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:  ServerFromEnv(),
		Match:   MatchFromEnv(),
		Physics: PhysicsFromEnv(),
		Limits:  LimitsFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
