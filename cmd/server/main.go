package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/botforgehq/botforge/internal/api"
	"github.com/botforgehq/botforge/internal/config"
	"github.com/botforgehq/botforge/internal/domain"
	"github.com/botforgehq/botforge/internal/repository/postgres"
	"github.com/botforgehq/botforge/internal/repository/redis"
	"github.com/botforgehq/botforge/internal/repository/sqlite"
	"github.com/botforgehq/botforge/internal/service"
	"github.com/botforgehq/botforge/internal/tracking"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("engine", cfg.Database.Engine).
		Msg("Starting interaction tracking server")

	// Initialize storage
	var (
		store      domain.TrackingStore
		deps       api.Deps
		closeStore func()
	)

	switch cfg.Database.Engine {
	case "sqlite":
		st, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open sqlite database")
		}
		store = st
		deps.DB = st
		deps.TenantRepo = st.Tenants()
		deps.PrefRepo = st
		deps.SettingsRepo = st.Settings()
		deps.SessionRepo = st
		deps.UsageRepo = st
		closeStore = func() { st.Close() }
	default:
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		store = postgres.NewTrackingRepository(db)
		deps.DB = db
		deps.TenantRepo = postgres.NewTenantRepository(db)
		deps.PrefRepo = postgres.NewPreferenceRepository(db)
		deps.SettingsRepo = postgres.NewSettingsRepository(db)
		deps.SessionRepo = postgres.NewSessionRepository(db)
		deps.UsageRepo = postgres.NewUsageRepository(db)
		closeStore = db.Close
	}
	defer closeStore()

	// Initialize Redis
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	deps.RedisClient = redisClient

	// Start the tracking pipeline
	tracker := tracking.New(store, tracking.Config{
		IdleTimeout:    cfg.Tracking.IdleTimeout,
		ReaperInterval: cfg.Tracking.ReaperInterval,
		QueueSize:      cfg.Tracking.QueueSize,
		ShutdownGrace:  cfg.Tracking.ShutdownGrace,
	})
	tracker.Start()
	deps.Tracker = tracker

	// Announce this instance's startup
	notifier := service.NewStartupNotifier(redis.NewStartupCoordinator(redisClient), log.Logger)
	if err := notifier.Announce(context.Background(), cfg.Instance.Name, cfg.Instance.Version); err != nil {
		log.Warn().Err(err).Msg("Startup announcement failed")
	}

	// Initialize router
	router, err := api.NewRouter(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Finalize active sessions and flush the event queue before the
	// HTTP server stops serving reads.
	tracker.Close(ctx)

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
