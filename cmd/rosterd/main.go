// roster-core - records platform storage core
//
// This is the main entry point for the roster-core daemon. It bootstraps the
// storage layer that the record managers (students, recruitment, events)
// build on: a constrained, injection-safe query surface over embedded
// SQLite with cached prepared statements and coordinated shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusware/roster-core/internal/infrastructure/config"
	"github.com/campusware/roster-core/internal/infrastructure/logging"
	"github.com/campusware/roster-core/internal/infrastructure/shutdown"
	"github.com/campusware/roster-core/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthCheckTimeout bounds the startup liveness probe.
const healthCheckTimeout = 5 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting roster-core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// The coordinator owns teardown: every long-lived component registers a
	// close job and the jobs run exactly once after the shutdown signal.
	coord := shutdown.NewCoordinator()
	coord.SetLogger(log)

	// Open the default store; it registers its own close job.
	st, err := store.Open(ctx, store.Config{
		Name:          cfg.Database.Name,
		Dir:           cfg.Database.DataDir,
		WALMode:       cfg.Database.WALMode,
		BusyTimeout:   cfg.Database.BusyTimeout,
		MaxStatements: cfg.Database.MaxStatements,
	}, coord, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	log.Info("store ready", "db", st.Name(), "path", st.Path())

	// Verify the engine answers before declaring the service up
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := st.HealthCheck(healthCtx); err != nil {
		coord.Run()
		return fmt.Errorf("startup health check: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	if !coord.Run() {
		return fmt.Errorf("shutdown completed with failed jobs")
	}
	log.Info("shutdown complete")
	return nil
}

// getConfigPath returns the configuration file path.
// Checks ROSTER_CONFIG environment variable, falls back to default.
func getConfigPath() string {
	if path := os.Getenv("ROSTER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
