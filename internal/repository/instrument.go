package repository

import (
	"errors"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/metrics"
)

// observe records duration and outcome of a database operation
func observe(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotConsumed),
		errors.Is(err, ErrStatusMismatch), errors.Is(err, ErrAlreadySubmitted):
		status = "miss"
	default:
		status = "error"
	}

	metrics.DBClientOperationDuration.WithLabelValues(operation, status).Observe(metrics.MeasureDuration(start))
	metrics.DBClientOperationTotal.WithLabelValues(operation, status).Inc()
}
