package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/accounts"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/config"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/health"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/httpapi"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/matchmaking"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/middleware"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/persistence"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/ratelimit"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/registry"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/token"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/tracing"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/transport"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	// --- Tracing Initialization (Optional) ---
	// Spans are exported over OTLP/gRPC; a broken collector should not keep
	// players out of their rooms, so failures downgrade to span-less running.
	var tracerProvider *sdktrace.TracerProvider
	if cfg.TracingEnabled {
		tracerProvider, err = tracing.InitTracer(context.Background(), "driftspace-relay", cfg.OTLPCollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracing, spans disabled", "error", err)
			tracerProvider = nil
		} else {
			slog.Info("✅ Tracing initialized", "collector", cfg.OTLPCollectorAddr)
		}
	}

	// --- Core State ---
	// Everything authoritative lives in memory; Redis only checkpoints it.
	accountStore := accounts.NewStore(accounts.NewBcryptHasher())
	tokens := token.NewService([]byte(cfg.JWTSecret), time.Duration(cfg.TokenTTLHours)*time.Hour)
	sessions := token.NewSessions()
	rooms := registry.New()
	queue := matchmaking.New()

	// --- Redis Snapshot Store (Optional) ---
	var snapshots *persistence.Store
	if cfg.RedisEnabled {
		snapshots, err = persistence.NewStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("Failed to connect to Redis, profiles will not survive restarts", "error", err)
			snapshots = nil // Fallback to in-memory only
		} else {
			slog.Info("✅ Redis snapshot store initialized", "addr", cfg.RedisAddr)
			restoreProfiles(snapshots, accountStore)
		}
	} else {
		slog.Info("Running without profile persistence (Redis disabled)")
	}

	// The rate limiter shares the snapshot store's connection; with Redis
	// disabled it falls back to per-instance in-memory counters.
	limiter, err := ratelimit.NewRateLimiter(cfg, snapshots.Client())
	if err != nil {
		slog.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	origins := cfg.Origins()
	gateway := transport.NewGateway(rooms, accountStore, tokens, limiter, origins)

	// --- Background Checkpointing ---
	loopCtx, stopLoops := context.WithCancel(context.Background())
	var loops sync.WaitGroup
	if snapshots != nil {
		interval := time.Duration(cfg.SnapshotIntervalSeconds) * time.Second
		snapshots.StartCheckpointLoop(loopCtx, &loops, interval, accountStore.Snapshot)
		slog.Info("Profile checkpoint loop started", "interval", interval)
	}

	// --- Set up Server ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if tracerProvider != nil {
		router.Use(otelgin.Middleware("driftspace-relay"))
	}

	// Cors
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	// Routing
	api := httpapi.NewHandlers(accountStore, tokens, sessions, rooms, queue, gateway.Voice())
	api.RegisterRoutes(router, limiter)

	wsGroup := router.Group("/ws/v1")
	{
		wsGroup.GET("/rooms/:roomId", gateway.ServeWs)
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	var snapshotPinger health.Pinger
	if snapshots != nil {
		snapshotPinger = snapshots
	}
	healthHandler := health.NewHandler(snapshotPinger)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Start the server.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Relay server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// The context is used to inform the server it has 30 seconds to finish
	// the requests it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close all active WebSocket connections gracefully
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during gateway shutdown", "error", err)
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Stop the checkpoint loop and wait for its final flush so the newest
	// profile mutations reach Redis before the connection closes.
	stopLoops()
	loops.Wait()

	if snapshots != nil {
		if err := snapshots.Close(); err != nil {
			slog.Error("Failed to close Redis connection", "error", err)
		} else {
			slog.Info("Redis connection closed")
		}
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down tracer provider", "error", err)
		}
	}

	slog.Info("Server exiting")
}

// restoreProfiles seeds the account store from the last checkpoint. A failed
// restore is logged and skipped; the relay starts empty rather than not at all.
func restoreProfiles(snapshots *persistence.Store, accountStore *accounts.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	players, err := snapshots.LoadProfiles(ctx)
	if err != nil {
		slog.Error("Failed to restore profile snapshot, starting empty", "error", err)
		return
	}
	if len(players) > 0 {
		accountStore.Restore(ctx, players)
		slog.Info("Restored player profiles from snapshot", "count", len(players))
	}
}
