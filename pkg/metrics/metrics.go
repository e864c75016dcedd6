package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Histogram buckets for request and provider latencies, from milliseconds to 30+ seconds
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55}

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Database Client Metrics
	DBClientOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_client_operation_duration_seconds",
			Help:    "Database client operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	DBClientOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_client_operation_total",
			Help: "Total number of database client operations",
		},
		[]string{"operation", "status"},
	)

	// Email Delivery Metrics
	EmailDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_client_delivery_duration_seconds",
			Help:    "Email provider call duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"template", "status"},
	)

	EmailDeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_client_delivery_total",
			Help: "Total number of email deliveries attempted",
		},
		[]string{"template", "status"},
	)

	// Event Publication Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of analytics events published",
		},
		[]string{"event", "status"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	// Business Metrics
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_tokens_issued_total",
			Help: "Total number of single-use tokens issued",
		},
		[]string{"purpose"},
	)

	TokenRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_token_redemptions_total",
			Help: "Token redemption attempts by outcome",
		},
		[]string{"purpose", "outcome"}, // outcome: success, not_found, expired, already_used, error
	)

	TokensInvalidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_tokens_invalidated_total",
			Help: "Total number of outstanding tokens invalidated",
		},
		[]string{"purpose"},
	)

	IdentityRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_identity_registrations_total",
			Help: "Identity registrations by initial status",
		},
		[]string{"role", "status"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_status_transitions_total",
			Help: "Identity lifecycle transition attempts",
		},
		[]string{"event", "outcome"},
	)

	AccessDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_access_denials_total",
			Help: "Authenticated requests denied by the status gate",
		},
		[]string{"reason"},
	)

	PasswordResetRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_password_reset_requests_total",
			Help: "Password reset requests by outcome",
		},
		[]string{"outcome"},
	)

	FeedbackRequestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_feedback_requests_created_total",
			Help: "Feedback requests created per recipient role",
		},
		[]string{"role"},
	)

	FeedbackEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_feedback_emails_total",
			Help: "Feedback request emails by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: sweep, admin
	)

	FeedbackSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_feedback_submissions_total",
			Help: "Feedback submissions by outcome",
		},
		[]string{"outcome"},
	)

	FeedbackSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carreiras_feedback_sweep_duration_seconds",
			Help:    "Duration of the scheduled feedback sweep",
			Buckets: CustomAPIBuckets,
		},
	)

	FeedbackSweepSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_feedback_sweep_sessions_total",
			Help: "Sessions handled by the feedback sweep",
		},
		[]string{"result"}, // processed, skipped, failed
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	OutboundRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carreiras_outbound_retries_total",
			Help: "Retried attempts of outbound calls",
		},
		[]string{"operation"},
	)

	// Infrastructure Metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
