package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bombersplash/internal/config"
	"bombersplash/internal/game"
	"bombersplash/internal/render"
	"bombersplash/internal/tiled"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time updates.
type Server struct {
	lobby       *game.Lobby
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates the API server for lobby.
//
// IMPORTANT: no listener is opened until Start() is called. Broadcast loops
// only start once a player joins, so tests can construct the server and use
// Router() directly.
func NewServer(lobby *game.Lobby, catalog *tiled.Catalog, cfg config.AppConfig) *Server {
	renderer, err := render.New(cfg.Server.FrameScale)
	if err != nil {
		log.Printf("⚠️ Spectator frames disabled: %v", err)
	}

	s := &Server{
		lobby: lobby,
		wsHub: NewWebSocketHub(lobby, HubConfig{
			Limits:     cfg.Limits,
			UpdateRate: cfg.Match.UpdateRate,
			Origins:    cfg.Server.AllowedOrigins,
		}),
		rateLimiter: NewIPRateLimiter(RateLimitFromLimits(cfg.Limits)),
	}

	s.router = NewRouter(RouterConfig{
		Matches:     lobby,
		Catalog:     catalog,
		Hub:         s.wsHub,
		Renderer:    renderer,
		AdminAuth:   NewAdminAuth(cfg.Server.AdminToken),
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.AllowedOrigins,
	})

	if cfg.Server.AdminToken == "" {
		log.Println("🔐 ADMIN_TOKEN not set, admin routes are disabled")
	}
	return s
}

// Start serves HTTP on addr until Shutdown is called.
// It returns nil after a graceful shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 Join with ws://localhost%s/ws", addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("api server: %w", err)
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, closes every WebSocket connection and
// stops the match loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsHub.Stop()
	s.lobby.Stop()
	s.rateLimiter.Stop()
	return err
}
