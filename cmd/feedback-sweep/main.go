// Command feedback-sweep runs one feedback sweep and exits. It is meant for
// cron-style schedulers that cannot call the internal HTTP endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fundopatronos/carreiras-api/config"
	"github.com/fundopatronos/carreiras-api/internal/app"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: "carreiras-feedback-sweep",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, time.Now()); err != nil {
		logger.Error("Feedback sweep failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, now time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer stores.Close()

	notifier, err := app.NewNotifier(cfg, app.NewSender(cfg.Email))
	if err != nil {
		return err
	}
	publisher, err := app.NewPublisher(cfg.Events)
	if err != nil {
		return err
	}
	defer publisher.Close() //nolint:errcheck

	result, err := app.NewFeedbackService(cfg, stores, notifier, publisher).ProcessDue(ctx, now)
	if err != nil {
		return err
	}

	logger.Info("Feedback sweep finished",
		zap.Int("sessions_processed", result.SessionsProcessed),
		zap.Int("emails_sent", result.EmailsSent),
		zap.Strings("errors", result.Errors),
	)
	return nil
}
