// Package main is the entry point for the card risk console.
//
// The console serves portfolio risk KPIs over a customer collection, a
// drill-down panel per browser session, KPI history snapshots and optional
// S3-compatible database backups.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/di"
	"github.com/aristath/cardrisk/internal/server"
	"github.com/aristath/cardrisk/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from the environment (.env honoured)
// 2. Initializes logging
// 3. Wires databases, repositories, services and jobs
// 4. Starts the policy watcher, scheduler and HTTP server
// 5. Waits for a shutdown signal and stops everything in reverse order
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "cardrisk",
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting card risk console")

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	container, err := di.Wire(startupCtx, cfg, log)
	startupCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	if container.PolicyWatcher != nil {
		if err := container.PolicyWatcher.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start risk policy watcher, policy will not hot-reload")
		} else {
			log.Info().Str("path", cfg.RiskPolicyFile).Msg("Risk policy watcher started")
		}
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	// Closing the panels ends their WebSocket streams, which Shutdown does not track
	container.PanelManager.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
