// Package app assembles stores, integrations and services from configuration.
// Both the HTTP server and the one-shot sweep binary build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fundopatronos/carreiras-api/config"
	"github.com/fundopatronos/carreiras-api/internal/cache"
	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/notify"
	"github.com/fundopatronos/carreiras-api/internal/repository"
	"github.com/fundopatronos/carreiras-api/internal/repository/memory"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/fundopatronos/carreiras-api/pkg/db"
	"github.com/fundopatronos/carreiras-api/pkg/events"
	"github.com/fundopatronos/carreiras-api/pkg/httpclient"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/mailer"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Stores bundles one repository per entity
type Stores struct {
	Identities  repository.IdentityStore
	Tokens      repository.TokenStore
	Credentials repository.CredentialStore
	Sessions    repository.SessionStore
	Feedback    repository.FeedbackStore

	// Ping reports store health for readiness probes
	Ping func(ctx context.Context) error
	// Close releases the underlying connections
	Close func()
}

// OpenStores connects to Postgres, or returns the in-memory store when the
// database is configured offline
func OpenStores(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	if cfg.WorkOffline {
		logger.Warn("DB_WORK_OFFLINE set: using the in-memory store, data is lost on restart")
		return MemoryStores(memory.NewStore()), nil
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:        cfg.URL,
		MaxConns:   cfg.MaxConns,
		MinConns:   cfg.MinConns,
		CACertPath: cfg.CACertPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}
	return PostgresStores(pool), nil
}

// PostgresStores wires the Postgres repositories on pool
func PostgresStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Identities:  repository.NewIdentityRepository(pool),
		Tokens:      repository.NewTokenRepository(pool),
		Credentials: repository.NewCredentialRepository(pool),
		Sessions:    repository.NewSessionRepository(pool),
		Feedback:    repository.NewFeedbackRepository(pool),
		Ping:        pool.Ping,
		Close:       func() { db.Close(pool) },
	}
}

// MemoryStores wires the in-memory repositories on store
func MemoryStores(store *memory.Store) *Stores {
	return &Stores{
		Identities:  store.Identities(),
		Tokens:      store.Tokens(),
		Credentials: store.Credentials(),
		Sessions:    store.Sessions(),
		Feedback:    store.Feedback(),
		Ping:        func(context.Context) error { return nil },
		Close:       func() {},
	}
}

// NewSender returns the Resend client, or a sender that always fails when
// no API key is configured
func NewSender(cfg config.EmailConfig) mailer.Sender {
	if !cfg.Enabled() {
		logger.Warn("RESEND_API_KEY not set: emails will not be delivered")
		return mailer.DisabledSender{}
	}
	return mailer.NewResendClient(mailer.ResendConfig{
		APIKey:      cfg.ResendAPIKey,
		APIURL:      cfg.ResendAPIURL,
		FromAddress: cfg.FromAddress,
	}, httpclient.NewClientWithTimeout(15*time.Second))
}

// NewNotifier builds the email composer on top of sender
func NewNotifier(cfg *config.Config, sender mailer.Sender) (*notify.Notifier, error) {
	return notify.New(sender, notify.Config{
		FrontendURL:           cfg.Server.FrontendURL,
		ReplyTo:               cfg.Email.ReplyTo,
		VerificationExpiresIn: humanDuration(cfg.Lifecycle.VerificationTokenTTL),
		ResetExpiresIn:        humanDuration(cfg.Lifecycle.ResetTokenTTL),
	})
}

// NewPublisher fans analytics events out to every configured sink
func NewPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	var sinks events.Fanout

	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kafka)
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhookPublisher(cfg.WebhookURL, httpclient.NewClientWithTimeout(10*time.Second)))
	}

	switch len(sinks) {
	case 0:
		logger.Info("No analytics sink configured: events are dropped")
		return events.NoopPublisher{}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// ApprovalPolicy applies the configured domain overrides
func ApprovalPolicy(cfg config.LifecycleConfig) *services.ApprovalPolicy {
	overrides := map[models.Role][]string{}
	if len(cfg.ApprovedDomainsApplicant) > 0 {
		overrides[models.RoleApplicant] = cfg.ApprovedDomainsApplicant
	}
	if len(cfg.ApprovedDomainsMentor) > 0 {
		overrides[models.RoleMentor] = cfg.ApprovedDomainsMentor
	}
	if len(overrides) > 0 {
		logger.Info("Approved domains overridden", zap.Any("domains", overrides))
	}
	return services.NewApprovalPolicy(overrides)
}

// NewLifecycleService wires the identity lifecycle
func NewLifecycleService(cfg *config.Config, stores *Stores, notifier services.Notifier, publisher events.Publisher) *services.LifecycleService {
	return services.NewLifecycleService(services.LifecycleDeps{
		Identities:   stores.Identities,
		Credentials:  stores.Credentials,
		Verification: services.NewTokenLedger(stores.Tokens, models.PurposeVerification, cfg.Lifecycle.VerificationTokenTTL),
		Reset:        services.NewTokenLedger(stores.Tokens, models.PurposeReset, cfg.Lifecycle.ResetTokenTTL),
		Notifier:     notifier,
		Publisher:    publisher,
		Throttle:     cache.NewResetThrottle(cfg.Lifecycle.ResetThrottle),
		Policy:       ApprovalPolicy(cfg.Lifecycle),
	})
}

// NewFeedbackService wires feedback collection
func NewFeedbackService(cfg *config.Config, stores *Stores, notifier services.Notifier, publisher events.Publisher) *services.FeedbackService {
	return services.NewFeedbackService(services.FeedbackDeps{
		Sessions:     stores.Sessions,
		Feedback:     stores.Feedback,
		Notifier:     notifier,
		Publisher:    publisher,
		SweepDaysAgo: cfg.Feedback.SweepDaysAgo,
	})
}

// humanDuration renders a token lifetime for email copy, in Portuguese
func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "dia", "dias")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hora", "horas")
	default:
		return plural(int(d.Round(time.Minute)/time.Minute), "minuto", "minutos")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
