// Package retry re-runs outbound calls (email provider, event brokers) with
// capped exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"go.uber.org/zap"
)

// Config controls how often and how patiently an operation is retried
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by up to 25% in either direction
	Jitter bool

	// RetryableErrors decides whether err is worth another attempt
	RetryableErrors func(error) bool
}

// DefaultConfig retries every error three times starting at 100ms
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		Multiplier:      2,
		Jitter:          true,
		RetryableErrors: func(error) bool { return true },
	}
}

// EmailConfig is used for the transactional email provider.
// Only errors accepted by retryable are retried.
func EmailConfig(retryable func(error) bool) Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.InitialDelay = 300 * time.Millisecond
	cfg.MaxDelay = 3 * time.Second
	if retryable != nil {
		cfg.RetryableErrors = retryable
	}
	return cfg
}

// EventsConfig is used for analytics event publication
func EventsConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.InitialDelay = 200 * time.Millisecond
	cfg.MaxDelay = 2 * time.Second
	return cfg
}

// Do runs fn until it succeeds, fails permanently or retries run out
func Do(ctx context.Context, cfg Config, operation string, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, cfg Config, operation string, fn func() (T, error)) (T, error) {
	var zero T
	var err error

	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		var res T
		if res, err = fn(); err == nil {
			if attempt > 0 {
				logger.Info("Outbound call recovered",
					zap.String("operation", operation),
					zap.Int("attempt", attempt+1))
			}
			return res, nil
		}

		if !cfg.RetryableErrors(err) {
			return zero, err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		wait := cfg.delay(attempt)
		metrics.OutboundRetries.WithLabelValues(operation).Inc()
		logger.Warn("Outbound call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	logger.Error("Outbound call gave up",
		zap.String("operation", operation),
		zap.Int("retries", cfg.MaxRetries),
		zap.Error(err))
	return zero, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
}

// delay returns InitialDelay * Multiplier^attempt, capped at MaxDelay
func (cfg Config) delay(attempt int) time.Duration {
	d := float64(cfg.InitialDelay)
	for i := 0; i < attempt && d < float64(cfg.MaxDelay); i++ {
		d *= cfg.Multiplier
	}
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		//nolint:gosec // jitter does not need a cryptographic source
		d += d * 0.25 * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}
