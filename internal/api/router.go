package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/botforgehq/botforge/internal/api/handler"
	customMiddleware "github.com/botforgehq/botforge/internal/api/middleware"
	"github.com/botforgehq/botforge/internal/config"
	"github.com/botforgehq/botforge/internal/domain"
	"github.com/botforgehq/botforge/internal/repository/redis"
	"github.com/botforgehq/botforge/internal/security"
	"github.com/botforgehq/botforge/internal/service"
	"github.com/botforgehq/botforge/internal/tracking"
)

// Deps holds the constructed dependencies the router wires together. The
// repository fields are interfaces so either storage engine can back them.
type Deps struct {
	DB           handler.Pinger
	RedisClient  *redis.Client
	Tracker      *tracking.Tracker
	TenantRepo   domain.TenantRepository
	PrefRepo     domain.PreferenceRepository
	SettingsRepo domain.SettingsRepository
	SessionRepo  domain.SessionRepository
	UsageRepo    domain.UsageRepository
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	encryptor, err := security.NewEncryptorFromBase64(cfg.Auth.EncryptionKey)
	if err != nil {
		return nil, err
	}

	// Initialize services
	authService := service.NewAuthService(deps.TenantRepo, jwtManager)
	prefService := service.NewPreferenceService(deps.PrefRepo, deps.SettingsRepo, encryptor)
	statsService := service.NewStatsService(deps.UsageRepo, deps.SessionRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	sessionHandler := handler.NewSessionHandler(deps.Tracker, statsService)
	prefHandler := handler.NewPreferenceHandler(prefService)
	usageHandler := handler.NewUsageHandler(statsService)

	// Auth middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)

	rateLimiter := redis.NewRateLimiter(
		deps.RedisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.DB))

		// Auth routes (public)
		r.Post("/auth/token", authHandler.Token)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.ListRecent)
				r.Get("/active", sessionHandler.ListActive)
				r.Get("/{sessionID}", sessionHandler.Get)
			})

			r.Route("/usage", func(r chi.Router) {
				r.Get("/", usageHandler.TenantUsage)
				r.Get("/users/{userID}", usageHandler.UserUsage)
			})

			r.Route("/preferences/{userID}", func(r chi.Router) {
				r.Get("/persona", prefHandler.GetPersona)
				r.Put("/persona", prefHandler.SetPersona)
			})
		})
	})

	return r, nil
}
