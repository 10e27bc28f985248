package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bombersplash/internal/game"
	"bombersplash/internal/render"
	"bombersplash/internal/tiled"
)

// MatchSource hands out the match the API reports on.
// *game.Lobby implements it; tests may pass anything that does.
type MatchSource interface {
	// Current returns the running or last finished match, nil before the first join
	Current() *game.Match
	// MapName returns the map every match is played on
	MapName() string
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Matches: lobby,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Matches is the match source (required)
	Matches MatchSource

	// Catalog lists the maps served under /maps. Optional.
	Catalog *tiled.Catalog

	// Hub serves /ws when set
	Hub *WebSocketHub

	// Renderer serves /api/frame.png when set
	Renderer *render.Renderer

	// AdminAuth guards the admin routes. Nil refuses every admin request.
	AdminAuth *AdminAuth

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, the default limits apply.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only local development origins are allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	matches     MatchSource
	catalog     *tiled.Catalog
	hub         *WebSocketHub
	renderer    *render.Renderer
	rateLimiter *IPRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// Apart from the rate limiter's cleanup goroutine when RateLimiter is nil,
// it has no side effects: no listeners are opened and no match is started.
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimiter = GetRateLimiterFromRouter(cfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		matches:     cfg.Matches,
		catalog:     cfg.Catalog,
		hub:         cfg.Hub,
		renderer:    cfg.Renderer,
		rateLimiter: rateLimiter,
	}
	auth := cfg.AdminAuth
	if auth == nil {
		auth = NewAdminAuth("")
	}

	r.Get("/health", h.handleHealth)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Match state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/standings", h.handleGetStandings)
		r.Get("/score.png", h.handleScorePNG)
		if cfg.Renderer != nil {
			r.Get("/frame.png", h.handleFramePNG)
		}

		// Entities
		r.Get("/players/{id}", h.handleGetPlayer)
		r.Get("/bombs/{id}", h.handleGetBomb)

		// Maps
		r.Get("/maps", h.handleGetMaps)

		r.Get("/auth/status", auth.HandleAuthStatus)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Get("/world", h.handleGetWorld)
			r.Put("/world", h.handlePutWorld)
		})
	})

	// Tiled maps and tilesets for the client
	if cfg.Catalog != nil {
		r.Handle("/maps/*", http.StripPrefix("/maps/", http.FileServer(http.Dir(cfg.Catalog.Dir()))))
	}

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.HandleWebSocket)
	}

	return r
}

// GetRateLimiterFromRouter returns the limiter a router built from cfg uses.
// A new one is created unless cfg carries one.
func GetRateLimiterFromRouter(cfg RouterConfig) *IPRateLimiter {
	if cfg.RateLimiter != nil {
		return cfg.RateLimiter
	}
	rateLimitCfg := DefaultRateLimitConfig()
	if cfg.RateLimitConfig != nil {
		rateLimitCfg = *cfg.RateLimitConfig
	}
	return NewIPRateLimiter(rateLimitCfg)
}
