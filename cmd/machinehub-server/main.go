// Package main is the entrypoint for the MachineHub server.
//
// @title           MachineHub API
// @version         1.0
// @description     MachineHub - machine fleet dashboard. Collects system telemetry from webhooks and polling, classifies machine liveness, and serves fleet state over a REST API.
//
// @contact.name   MachineHub Support
// @contact.url    https://github.com/machinehub/machinehub
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @host      localhost:8080
// @BasePath  /api/v1
//
// @securityDefinitions.apikey SessionAuth
// @in cookie
// @name machinehub_session
// @description Session cookie authentication (for dashboard clients)
//
// @securityDefinitions.apikey WebhookSecret
// @in header
// @name X-Webhook-Secret
// @description Shared secret for telemetry senders
//
// @tag.name Auth
// @tag.description Session authentication endpoints
// @tag.name Machines
// @tag.description Machine registry and telemetry read paths
// @tag.name Telemetry
// @tag.description Telemetry webhook ingestion
// @tag.name Version
// @tag.description Server version information
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/machinehub/machinehub/internal/api"
	"github.com/machinehub/machinehub/internal/auth"
	"github.com/machinehub/machinehub/internal/config"
	"github.com/machinehub/machinehub/internal/db"
	"github.com/machinehub/machinehub/internal/maintenance"
	"github.com/machinehub/machinehub/internal/models"
	"github.com/machinehub/machinehub/internal/poller"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting MachineHub server")

	// Load configuration
	cfg := config.LoadServerConfig()

	// Connect to database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL environment variable is required")
		return 1
	}

	database, err := db.New(ctx, db.DefaultConfig(databaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	// Initialize session store
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		logger.Fatal().Msg("SESSION_SECRET environment variable is required")
		return 1
	}

	isSecure := cfg.Environment == config.EnvProduction
	sessionCfg := auth.DefaultSessionConfig([]byte(sessionSecret), isSecure)
	if cfg.SessionMaxAge > 0 {
		sessionCfg.MaxAge = cfg.SessionMaxAge
	}
	sessions, err := auth.NewSessionStore(sessionCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize session store")
		return 1
	}

	// Bootstrap the admin account on first start
	if err := bootstrapAdmin(ctx, database, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to bootstrap admin user")
		return 1
	}

	if cfg.WebhookSecret == "" {
		logger.Warn().Msg("WEBHOOK_SECRET not set, telemetry webhook accepts unauthenticated reports")
	}

	// Build API router
	allowedOrigins := strings.Split(os.Getenv("CORS_ORIGINS"), ",")
	if os.Getenv("CORS_ORIGINS") == "" {
		allowedOrigins = []string{}
	}

	rateLimitRequests := int64(100)
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitRequests = n
		}
	}
	rateLimitPeriod := "1m"
	if v := os.Getenv("RATE_LIMIT_PERIOD"); v != "" {
		rateLimitPeriod = v
	}

	routerCfg := api.Config{
		Environment:       cfg.Environment,
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: rateLimitRequests,
		RateLimitPeriod:   rateLimitPeriod,
		RedisURL:          cfg.RedisURL,
		WebhookSecret:     cfg.WebhookSecret,
		Version:           Version,
		Commit:            Commit,
		BuildDate:         BuildDate,
	}

	router, err := api.NewRouter(routerCfg, database, sessions, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize router")
		return 1
	}

	// Start HTTP server
	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		listenAddr = ":" + port
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info().Str("addr", listenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Start the stats API poller unless disabled
	if cfg.PollInterval > 0 {
		pollerCfg := poller.DefaultConfig()
		pollerCfg.Interval = cfg.PollInterval
		pollerCfg.Timeout = cfg.PollTimeout
		if v := os.Getenv("POLL_PORT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				pollerCfg.Port = n
			}
		}

		p := poller.NewPoller(database, pollerCfg, logger)
		p.Start(ctx)
		defer p.Stop()
	} else {
		logger.Info().Msg("telemetry polling disabled")
	}

	// Start retention cleanup scheduler
	retentionCfg := maintenance.RetentionConfig{
		KeepPerMachine: cfg.RetentionKeepPerMachine,
		MaxAgeDays:     cfg.RetentionMaxAgeDays,
	}
	retentionScheduler := maintenance.NewRetentionScheduler(database, retentionCfg, logger)
	if err := retentionScheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start retention scheduler")
	}
	defer retentionScheduler.Stop()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped gracefully")
	return 0
}

// bootstrapAdmin creates the initial admin user from ADMIN_USERNAME and
// ADMIN_PASSWORD when the users table is empty. Does nothing otherwise.
func bootstrapAdmin(ctx context.Context, database *db.DB, logger zerolog.Logger) error {
	count, err := database.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		logger.Warn().Msg("no users exist and ADMIN_USERNAME/ADMIN_PASSWORD not set, login will be impossible")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	user := models.NewUser(username, hash, models.UserRoleAdmin)
	if err := database.CreateUser(ctx, user); err != nil {
		return err
	}

	logger.Info().Str("username", username).Msg("admin user created")
	return nil
}
