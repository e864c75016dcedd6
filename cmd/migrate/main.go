package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/fundopatronos/carreiras-api/config"
	"github.com/fundopatronos/carreiras-api/pkg/db"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	steps := flag.Int("steps", 0, "0 applies all pending migrations, -N rolls back N")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: "carreiras-migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Database.WorkOffline {
		logger.Info("DB_WORK_OFFLINE set, nothing to migrate")
		return
	}

	logger.Info("Starting database migrations",
		zap.String("database", maskDatabaseURL(cfg.Database.URL)),
		zap.String("source", cfg.Database.MigrationsPath),
		zap.Int("steps", *steps))

	state, err := db.RunMigrations(cfg.Database.URL, cfg.Database.CACertPath, cfg.Database.MigrationsPath, *steps)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		os.Exit(1)
	}
	if state.Dirty {
		logger.Error("Schema left dirty, fix it by hand before retrying", zap.Uint("version", state.Version))
		os.Exit(1)
	}

	logger.Info("Database migrations completed",
		zap.Uint("version", state.Version),
		zap.Bool("changed", state.Changed))
}

// maskDatabaseURL hides credentials in the database URL for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
