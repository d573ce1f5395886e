package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"usaha/internal/calendar"
	"usaha/internal/cli"
	apphttp "usaha/internal/http"
	"usaha/internal/log"
	"usaha/internal/metrics"
	"usaha/internal/middleware/auth"
	"usaha/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	maxSessions     = 10000
	sessionTTL      = 12 * time.Hour
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	backends := cli.InitBackend(context.Background(), logger, cfg)
	m := metrics.New()
	tokens := calendar.NewTokenCache(maxSessions, sessionTTL)
	cal := calendar.NewClient(calendar.Config{CalendarID: cfg.GoogleCalendarID, Location: loc}, tokens, logger, m)
	stores := store.NewManager(backends.Remote, backends.Local, cal, logger)

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; issued tokens die with the process")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Stores:         stores,
		Auth:           auth.New(secret, logger),
		Profiles:       backends.Remote,
		Tokens:         tokens,
		Metrics:        m,
		Logger:         logger,
		Location:       loc,
		LookaheadDays:  cfg.ReminderLookaheadDays,
		RateLimitRPM:   cfg.RateLimitRPM,
		ReportCacheTTL: cfg.ReportCacheTTL,
		Ready:          backends.Ready,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		stores.Close()
		if err := backends.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err.Error())
		}
	})

	go func() {
		logger.Info("Starting usaha server", "port", cfg.Port, "backend", cfg.DataBackend,
			"guest_mode", backends.Local != nil, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
