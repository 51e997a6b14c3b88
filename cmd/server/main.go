// Package main is the entry point for the trading simulator server.
//
// Startup sequence:
//  1. Load configuration (.env and environment) and build the logger
//  2. Wire databases, market, portfolio, persistence and jobs via the DI container
//  3. Restore the saved simulation state, or start fresh from the catalog
//  4. Start the price loop (when autostart is on), background jobs and the HTTP server
//  5. On SIGINT/SIGTERM stop ticking, save state and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/di"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/server"
	"github.com/aristath/tradesim/pkg/logger"
)

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
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("state_backend", cfg.State.Backend).
		Str("state_codec", cfg.State.Codec).
		Msg("Starting trading simulator")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// A missing or corrupt snapshot falls back to catalog defaults
	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 30*time.Second)
	restored := di.RestoreState(restoreCtx, container)
	restoreCancel()
	log.Info().
		Bool("restored", restored).
		Uint64("seed", container.Seed).
		Msg("Simulation state ready")

	if cfg.Simulation.Autostart && container.Controller.Start(container.PriceFeed.OnUpdate) {
		container.EventManager.EmitTyped("main", &events.SimulationStateChangedData{
			Action:  "start",
			Running: true,
		})
	}

	container.JobScheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Container: container,
		Jobs:      jobs,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	// Stop ticking first so the final snapshot is consistent
	container.Controller.Stop()
	container.JobScheduler.Stop()

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := container.PersistenceService.Save(saveCtx); err != nil {
		log.Error().Err(err).Msg("Failed to save state on shutdown")
	}
	saveCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
