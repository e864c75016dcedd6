package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds circuit breaker configuration
type Config struct {
	Name        string
	MaxRequests uint32        // Max requests allowed in half-open state
	Interval    time.Duration // Interval for resetting failure counts
	Timeout     time.Duration // Duration of open state before trying again
	ReadyToTrip func(counts gobreaker.Counts) bool
	// IsSuccessful decides which errors count against the breaker.
	// Permanent errors (bad request, rejected recipient) should not trip it.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultConfig returns the default configuration for an outbound dependency
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

// NewCircuitBreaker creates a new circuit breaker with the given config
func NewCircuitBreaker(cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		IsSuccessful:  cfg.IsSuccessful,
		OnStateChange: cfg.OnStateChange,
	})
}

// Execute wraps a function call with circuit breaker logic
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T

	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		// gobreaker drops the result on error; callers only need the error
		return zero, FormatError(cb.Name(), err)
	}

	typedResult, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion failed in circuit breaker %q", cb.Name())
	}

	return typedResult, nil
}

// IsCircuitOpen checks if the circuit breaker is in open state
func IsCircuitOpen(cb *gobreaker.CircuitBreaker) bool {
	return cb.State() == gobreaker.StateOpen
}

// IsRejected reports whether err came from the breaker refusing the call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// FormatError wraps the error with circuit breaker information
func FormatError(breakerName string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("circuit breaker '%s' is open: %w", breakerName, err)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("circuit breaker '%s' has too many requests: %w", breakerName, err)
	default:
		return err
	}
}
