/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the finance engine server. Handles
  configuration, dependency injection, scheduler startup, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize SQLite store
  3. Wire lifecycle manager, sweep engine, budget monitor
  4. Start the cron scheduler (unless disabled)
  5. Configure HTTP router and start the server

CONFIGURATION (environment, see config/config.go):
  PORT               HTTP server port (default: 8080)
  DB_PATH            SQLite database path (default: ./data/finance.db)
  RECURRING_CRON     Sweep schedule (default: "0 2 * * *")
  BUDGET_ALERT_CRON  Alert schedule (default: "0 8 * * *")
  CORS_ORIGINS       Allowed browser origin (default: localhost:3000)
  SCHEDULER_ENABLED  Run cron jobs (default: true)
  DEBUG              Debug-level logging (default: false)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler, waiting for in-flight jobs
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - sweep/scheduler.go: Cron wiring
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spendsense/finance-engine/api"
	"github.com/spendsense/finance-engine/config"
	"github.com/spendsense/finance-engine/ledger"
	"github.com/spendsense/finance-engine/logger"
	"github.com/spendsense/finance-engine/store/sqlite"
	"github.com/spendsense/finance-engine/sweep"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Debug)

	// Initialize store
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("failed to create data directory")
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Wire the engine
	manager := ledger.NewManager(store)
	engine := sweep.NewEngine(store, manager, log)
	monitor := sweep.NewBudgetMonitor(store, sweep.LogNotifier{Log: log}, log)

	// Scheduler
	if cfg.SchedulerEnabled {
		scheduler, err := sweep.NewScheduler(engine, monitor, cfg.RecurringCron, cfg.BudgetAlertCron, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure scheduler")
		}
		scheduler.Start()
		defer scheduler.Stop()
	} else {
		log.Info().Msg("scheduler disabled; use the admin endpoints to run jobs")
	}

	// HTTP server
	handler := api.NewHandler(manager, engine, monitor)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
