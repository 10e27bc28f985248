package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bombersplash/internal/api"
	"bombersplash/internal/config"
	"bombersplash/internal/game"
	"bombersplash/internal/tiled"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("💣 ================================")
	log.Println("💣  BOMBER SPLASH - GO SERVER")
	log.Println("💣 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	serverCfg := appConfig.Server
	matchCfg := appConfig.Match

	catalog, err := tiled.LoadCatalog(serverCfg.MapsDir)
	if err != nil {
		log.Fatalf("❌ Failed to load maps: %v", err)
	}
	tileMap, ok := catalog.Get(matchCfg.MapName)
	if !ok {
		log.Fatalf("❌ Map %q not found in %s (available: %v)", matchCfg.MapName, serverCfg.MapsDir, catalog.Names())
	}
	w, h := tileMap.PixelSize()
	log.Printf("🗺️ Map %s: %dx%d px, %d teams, %d walls",
		matchCfg.MapName, w, h, len(tileMap.StartPositions()), len(tileMap.CollisionRects()))
	log.Printf("🎮 Config: %d TPS, %d updates/s, %v matches, %d players max",
		matchCfg.TickRate, matchCfg.UpdateRate, matchCfg.Duration, appConfig.Limits.MaxPlayers)

	// Event log is shared by every match
	eventLog := game.NewEventLog()
	if err := eventLog.Start(serverCfg.EventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else if serverCfg.EventLogPath != "" {
		log.Printf("📝 Event log: %s", serverCfg.EventLogPath)
	}
	api.RegisterEventLogMetrics(eventLog)

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.ListenAddr = serverCfg.DebugAddr
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	debugCfg.Enabled = os.Getenv("DISABLE_DEBUG_SERVER") != "true"
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	opts := game.OptionsFromConfig(appConfig)
	opts.EventLog = eventLog
	opts.TickObserver = api.RecordTick
	lobby := game.NewLobby(matchCfg.MapName, tileMap, opts)

	server := api.NewServer(lobby, catalog, appConfig)

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Shutdown: %v", err)
	}
	eventLog.Stop()
	log.Println("👋 Goodbye!")
}
