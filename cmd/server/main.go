/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the scheduling and billing server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML file, environment)
  2. Build the logger
  3. Open the SQLite store
  4. Wire the API handler and router
  5. Start the billing scheduler (if enabled)
  6. Start the server with graceful shutdown

CONFIGURATION:
  Defaults < config.yaml < TAGAYEV_* environment variables.
  See config/config.go for the full surface.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the billing scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the database connection
  5. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run against an explicit config file
  CONFIG_PATH=./config.yaml ./server

  # Override the port
  TAGAYEV_SERVER_PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omadli/tagayev-uz/api"
	"github.com/omadli/tagayev-uz/config"
	"github.com/omadli/tagayev-uz/logging"
	"github.com/omadli/tagayev-uz/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer store.Close()

	handler := api.NewHandler(store, logger)
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	scheduler := api.NewBillingScheduler(handler.Billing, logger)
	scheduler.CheckInterval = cfg.Billing.CheckInterval
	scheduler.Enabled = cfg.Billing.Enabled
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
