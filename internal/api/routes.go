// Package api provides the HTTP API for the MachineHub server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/machinehub/machinehub/internal/api/handlers"
	"github.com/machinehub/machinehub/internal/api/middleware"
	"github.com/machinehub/machinehub/internal/auth"
	"github.com/machinehub/machinehub/internal/config"
	"github.com/machinehub/machinehub/internal/db"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/machinehub/machinehub/docs/api"
)

// Config holds configuration for the API router.
type Config struct {
	// Environment controls CORS strictness and gin mode.
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m", "1h").
	RateLimitPeriod string
	// RedisURL enables a Redis-backed rate limit store when set. Falls back
	// to the in-memory store when empty.
	RedisURL string
	// WebhookSecret is the shared secret telemetry senders must present.
	WebhookSecret string
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:       config.EnvDevelopment,
		AllowedOrigins:    []string{},
		RateLimitRequests: 100,
		RateLimitPeriod:   "1m",
		Version:           "dev",
		Commit:            "unknown",
		BuildDate:         "unknown",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine   *gin.Engine
	logger   zerolog.Logger
	sessions *auth.SessionStore
	db       *db.DB
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg Config,
	database *db.DB,
	sessions *auth.SessionStore,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine:   gin.New(),
		logger:   logger.With().Str("component", "router").Logger(),
		sessions: sessions,
		db:       database,
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	// Rate limiting
	rateLimiter, err := newRateLimiter(cfg)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health check endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(database, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint (no auth required)
	metricsHandler := handlers.NewMetricsHandler(database, logger)
	metricsHandler.RegisterPublicRoutes(r.Engine)

	// Swagger API documentation (no auth required)
	r.Engine.GET("/api/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/api/docs/doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))

	// Version endpoint (no auth required)
	versionHandler := handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate, logger)
	versionHandler.RegisterPublicRoutes(r.Engine)

	// Telemetry webhook (shared-secret auth, no session required)
	webhookHandler := handlers.NewWebhookHandler(database, cfg.WebhookSecret, logger)
	webhookHandler.RegisterRoutes(&r.Engine.RouterGroup)

	// Auth routes (login itself cannot require a session)
	authGroup := r.Engine.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(sessions, database, logger)
	authHandler.RegisterRoutes(authGroup)

	// API v1 routes (session auth required)
	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(sessions, logger))

	versionHandler.RegisterRoutes(apiV1)

	machinesHandler := handlers.NewMachinesHandler(database, logger)
	machinesHandler.RegisterRoutes(apiV1)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}

func newRateLimiter(cfg Config) (gin.HandlerFunc, error) {
	if cfg.RedisURL != "" {
		return middleware.NewRedisRateLimiter(cfg.RedisURL, cfg.RateLimitRequests, cfg.RateLimitPeriod)
	}
	return middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
}
