package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	ReCAPTCHA     ReCAPTCHAConfig
	Lifecycle     LifecycleConfig
	Feedback      FeedbackConfig
	Email         EmailConfig
	Events        EventsConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	FrontendURL    string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int32
	MinConns       int32
	CACertPath     string
	MigrationsPath string
	WorkOffline    bool
}

type AuthConfig struct {
	JWTSecret        string
	JWTIssuer        string
	SessionTTLHours  int
	InternalAPIToken string
}

type ReCAPTCHAConfig struct {
	SecretKey string
	VerifyURL string
}

// Enabled reports whether captcha checks guard the public email-sending endpoints
func (c ReCAPTCHAConfig) Enabled() bool {
	return c.SecretKey != ""
}

type LifecycleConfig struct {
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	ResetThrottle        time.Duration
	// Empty lists keep the built-in approved domains for that role
	ApprovedDomainsApplicant []string
	ApprovedDomainsMentor    []string
}

type FeedbackConfig struct {
	SweepDaysAgo int
}

type EmailConfig struct {
	ResendAPIKey string
	ResendAPIURL string
	FromAddress  string
	ReplyTo      string
}

// Enabled reports whether outbound email is configured
func (c EmailConfig) Enabled() bool {
	return c.ResendAPIKey != ""
}

type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	WebhookURL   string
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type ObservabilityConfig struct {
	ExporterEndpoint  string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("PORT", "8081")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("FRONTEND_URL", "https://carreiras.patronos.org")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "https://carreiras.patronos.org")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("JWT_ISSUER", "carreiras-api")
	v.SetDefault("SESSION_TTL_HOURS", 24)
	v.SetDefault("VERIFICATION_TOKEN_TTL_HOURS", 24)
	v.SetDefault("RESET_TOKEN_TTL_MINUTES", 60)
	v.SetDefault("RESET_THROTTLE_MINUTES", 5)
	v.SetDefault("FEEDBACK_SWEEP_DAYS_AGO", 5)
	v.SetDefault("EMAIL_FROM_ADDRESS", "Centro de Carreiras <noreply@patronos.org>")
	v.SetDefault("KAFKA_TOPIC", "carreiras.analytics")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")
	v.SetDefault("O11Y_BE_SERVICE_NAME", "carreiras-api")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "carreiras")
	v.SetDefault("O11Y_BE_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "carreiras-api")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,alloc_objects,goroutines,mutex,block")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	// Automatically read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			FrontendURL:    strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("DATABASE_URL"),
			MaxConns:       v.GetInt32("DB_MAX_CONNS"),
			MinConns:       v.GetInt32("DB_MIN_CONNS"),
			CACertPath:     v.GetString("DB_CA_CERT_PATH"),
			MigrationsPath: v.GetString("MIGRATIONS_PATH"),
			WorkOffline:    v.GetBool("DB_WORK_OFFLINE"),
		},
		Auth: AuthConfig{
			JWTSecret:        v.GetString("JWT_SECRET"),
			JWTIssuer:        v.GetString("JWT_ISSUER"),
			SessionTTLHours:  v.GetInt("SESSION_TTL_HOURS"),
			InternalAPIToken: v.GetString("INTERNAL_API_TOKEN"),
		},
		ReCAPTCHA: ReCAPTCHAConfig{
			SecretKey: v.GetString("RECAPTCHA_SECRET_KEY"),
			VerifyURL: v.GetString("RECAPTCHA_VERIFY_URL"),
		},
		Lifecycle: LifecycleConfig{
			VerificationTokenTTL:     time.Duration(v.GetInt("VERIFICATION_TOKEN_TTL_HOURS")) * time.Hour,
			ResetTokenTTL:            time.Duration(v.GetInt("RESET_TOKEN_TTL_MINUTES")) * time.Minute,
			ResetThrottle:            time.Duration(v.GetInt("RESET_THROTTLE_MINUTES")) * time.Minute,
			ApprovedDomainsApplicant: splitList(v.GetString("APPROVED_DOMAINS_APPLICANT")),
			ApprovedDomainsMentor:    splitList(v.GetString("APPROVED_DOMAINS_MENTOR")),
		},
		Feedback: FeedbackConfig{
			SweepDaysAgo: v.GetInt("FEEDBACK_SWEEP_DAYS_AGO"),
		},
		Email: EmailConfig{
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			ResendAPIURL: v.GetString("RESEND_API_URL"),
			FromAddress:  v.GetString("EMAIL_FROM_ADDRESS"),
			ReplyTo:      v.GetString("EMAIL_REPLY_TO"),
		},
		Events: EventsConfig{
			KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("KAFKA_TOPIC"),
			WebhookURL:   v.GetString("ANALYTICS_WEBHOOK_URL"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   v.GetString("LOG_DIR"),
		},
		Observability: ObservabilityConfig{
			ExporterEndpoint:  v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_BE_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_BE_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList parses a comma-separated value, dropping blanks
func splitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	// Database configuration
	if !c.Database.WorkOffline && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when not in offline mode")
	}

	// Authentication
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.InternalAPIToken == "" {
		return fmt.Errorf("INTERNAL_API_TOKEN is required")
	}

	// Server configuration
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Server.FrontendURL == "" {
		return fmt.Errorf("FRONTEND_URL is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_CORS_ORIGINS is required")
	}

	// Token lifetimes
	if c.Lifecycle.VerificationTokenTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TOKEN_TTL_HOURS must be positive")
	}
	if c.Lifecycle.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL_MINUTES must be positive")
	}
	if c.Feedback.SweepDaysAgo < 0 {
		return fmt.Errorf("FEEDBACK_SWEEP_DAYS_AGO must not be negative")
	}

	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}
