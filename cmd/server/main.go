// Package main is the entrypoint for the QuickAI API server.
//
// Startup order: env file → config → logging → tracing → database →
// entitlement store → router → HTTP server with graceful shutdown.
//
// @title        QuickAI API
// @version      1.0
// @description  Authenticated AI generation backend: articles, blog titles, images, background/object removal, and resume review, with a persisted creation history and community gallery.
//
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quickai/go-quickai-backend/internal/clients"
	"github.com/quickai/go-quickai-backend/internal/config"
	"github.com/quickai/go-quickai-backend/internal/entitlement"
	httpapi "github.com/quickai/go-quickai-backend/internal/http"
	"github.com/quickai/go-quickai-backend/internal/observability"
	"github.com/quickai/go-quickai-backend/internal/repo"
	"github.com/quickai/go-quickai-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// shutdownGrace is how long in-flight requests get to finish on SIGTERM.
// Generation calls can run tens of seconds, so this tracks the write
// timeout.
const shutdownGrace = 65 * time.Second

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	initLogging(cfg)
	log.Info().Str("version", version).Msg("starting quickai server")

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	log.Info().Str("db_path", cfg.DBPath).Msg("database ready")

	ents := buildEntitlementStore(cfg)

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, ents, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

// initLogging configures global zerolog output and level.
func initLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// buildEntitlementStore selects the entitlement backend: the external
// management API when configured, otherwise an in-memory store for local
// development where every user starts on the free plan.
func buildEntitlementStore(cfg config.Config) entitlement.Store {
	if cfg.Auth.ProviderURL != "" {
		log.Info().Str("provider", cfg.Auth.ProviderURL).Msg("using external entitlement provider")
		return entitlement.NewProvider(cfg.Auth.ProviderURL, cfg.Auth.ProviderKey,
			clients.NewHTTPClient(10*time.Second))
	}
	log.Warn().Msg("no entitlement provider configured; using in-memory store")
	return entitlement.NewMemoryStore()
}
