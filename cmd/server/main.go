package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/classpoll/classpoll-backend/internal/config"
	"github.com/classpoll/classpoll-backend/internal/handler"
	"github.com/classpoll/classpoll-backend/internal/hub"
	"github.com/classpoll/classpoll-backend/internal/logger"
	"github.com/classpoll/classpoll-backend/internal/router"
	"github.com/classpoll/classpoll-backend/internal/session"
	"github.com/classpoll/classpoll-backend/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ClassPoll Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Session Core ──────────────────────────────────────────────────
	// One process-wide session: state, broadcast hub, single-writer
	// manager. All state is volatile; a restart clears everything.
	state := session.NewState(cfg.DefaultTimeLimitSec, cfg.ChatHistoryLimit)
	bus := hub.New(log)
	manager := session.NewManager(state, bus, log)

	go bus.Run(ctx)
	go manager.Run(ctx)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		WS:    handler.NewWSHandler(manager, bus, log, cfg.AllowedOrigins),
		State: handler.NewStateHandler(manager),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the session manager and hub.
	cancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
