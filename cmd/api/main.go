package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fundopatronos/carreiras-api/config"
	"github.com/fundopatronos/carreiras-api/internal/app"
	"github.com/fundopatronos/carreiras-api/internal/handlers"
	"github.com/fundopatronos/carreiras-api/internal/middleware"
	"github.com/fundopatronos/carreiras-api/pkg/httpclient"
	"github.com/fundopatronos/carreiras-api/pkg/jwt"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"github.com/fundopatronos/carreiras-api/pkg/profiling"
	"github.com/fundopatronos/carreiras-api/pkg/recaptcha"
	"github.com/fundopatronos/carreiras-api/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type routeHandlers struct {
	health   *handlers.HealthHandler
	auth     *handlers.AuthHandler
	admin    *handlers.AdminUsersHandler
	feedback *handlers.FeedbackHandler
	internal *handlers.InternalHandler
}

type routeLimiters struct {
	general *middleware.RateLimiter
	email   *middleware.RateLimiter
	public  *middleware.RateLimiter
}

// registerRoutes wires every endpoint with its guards
func registerRoutes(
	router *gin.Engine,
	cfg *config.Config,
	h routeHandlers,
	limits routeLimiters,
	tokenManager *jwt.TokenManager,
	authz middleware.IdentityAuthorizer,
	captcha middleware.CaptchaVerifier,
) {
	// Utility endpoints (not versioned - operational endpoints)
	api := router.Group("/api")
	api.GET("/healthcheck", limits.general.Middleware(), h.health.Healthcheck)
	api.GET("/readiness", limits.general.Middleware(), h.health.Readiness)
	api.GET("/metrics", limits.general.Middleware(), gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.BodySizeLimitMiddleware(64 * 1024))

	// Self-service identity endpoints. Registration needs a valid bearer
	// token but not an active status.
	auth := v1.Group("/auth")
	bearer := middleware.BearerAuthMiddleware(tokenManager)
	auth.POST("/register", limits.general.Middleware(), bearer, h.auth.Register)
	auth.POST("/send-verification-email", limits.email.Middleware(), bearer, h.auth.SendVerificationEmail)
	auth.GET("/me", limits.general.Middleware(), bearer, middleware.RequireActiveIdentity(authz), h.auth.Me)
	auth.POST("/verify-email-token", limits.public.Middleware(), h.auth.VerifyEmailToken)
	auth.POST("/request-password-reset", limits.email.Middleware(), middleware.CaptchaMiddleware(captcha), h.auth.RequestPasswordReset)
	auth.POST("/reset-password", limits.public.Middleware(), h.auth.ResetPassword)

	// Public feedback form, authorised by the token alone
	feedback := v1.Group("/feedback")
	feedback.Use(limits.public.Middleware())
	feedback.GET("/request/:token", h.feedback.GetRequest)
	feedback.POST("/submit", h.feedback.Submit)

	admin := v1.Group("/admin")
	admin.Use(limits.general.Middleware(), bearer, middleware.RequireAdmin(authz))
	admin.GET("/users/pending", h.admin.ListPending)
	admin.PATCH("/users/:uid/approve", h.admin.Approve)
	admin.PATCH("/users/:uid/reject", h.admin.Reject)
	admin.POST("/users/:uid/resend-verification", h.admin.ResendVerification)
	admin.POST("/feedback/send", h.feedback.SendNow)
	admin.GET("/feedback/:sessionId", h.feedback.GetSessionSummary)

	// Scheduler and booking subsystem
	internal := v1.Group("/internal")
	internal.Use(limits.general.Middleware(), middleware.InternalAPIAuthMiddleware(cfg.Auth.InternalAPIToken))
	internal.POST("/feedback/process-pending", h.internal.ProcessPending)
	internal.POST("/feedback/sessions/:id", h.internal.EnsureSession)
}

func main() {
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
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Carreiras API",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	// Initialize distributed tracing
	tracerShutdown, err := tracing.InitTracer(tracing.Config{
		ServiceName:       cfg.Observability.ServiceName,
		ServiceNamespace:  cfg.Observability.ServiceNamespace,
		ServiceVersion:    cfg.Observability.ServiceVersion,
		ServiceInstanceID: cfg.Observability.ServiceInstanceID,
		Environment:       cfg.Server.AppEnv,
		Endpoint:          cfg.Observability.ExporterEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	// Continuous profiling
	stopProfiler, err := profiling.InitProfiler(profiling.Config{
		Enabled:        cfg.Profiling.Enabled,
		Endpoint:       cfg.Profiling.Endpoint,
		AppName:        cfg.Profiling.AppName,
		SampleTypes:    cfg.Profiling.SampleTypes,
		UploadInterval: time.Duration(cfg.Profiling.UploadIntervalSeconds) * time.Second,
	}, profiling.Labels{
		Service:     cfg.Observability.ServiceName,
		Namespace:   cfg.Observability.ServiceNamespace,
		Environment: cfg.Server.AppEnv,
		Version:     cfg.Observability.ServiceVersion,
		Instance:    cfg.Observability.ServiceInstanceID,
	})
	if err != nil {
		logger.Error("Failed to start profiler, continuing without it", zap.Error(err))
		stopProfiler = func() {}
	}
	defer stopProfiler()

	// Start infrastructure metrics collection
	metrics.RecordInfrastructureMetrics()

	// Stores. Migrations run separately via cmd/migrate.
	stores, err := app.OpenStores(context.Background(), cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize stores", zap.Error(err))
	}
	defer stores.Close()

	// Integrations
	notifier, err := app.NewNotifier(cfg, app.NewSender(cfg.Email))
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err))
	}
	publisher, err := app.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal("Failed to initialize event publisher", zap.Error(err))
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error("Failed to close event publisher", zap.Error(closeErr))
		}
	}()

	var captcha middleware.CaptchaVerifier
	if cfg.ReCAPTCHA.Enabled() {
		captcha = recaptcha.NewVerifier(cfg.ReCAPTCHA.SecretKey, cfg.ReCAPTCHA.VerifyURL, httpclient.NewClientWithTimeout(5*time.Second))
	}

	// Services
	lifecycleService := app.NewLifecycleService(cfg, stores, notifier, publisher)
	feedbackService := app.NewFeedbackService(cfg, stores, notifier, publisher)
	tokenManager := jwt.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTLHours)

	// Handlers
	h := routeHandlers{
		health:   handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{"database": stores.Ping}),
		auth:     handlers.NewAuthHandler(lifecycleService),
		admin:    handlers.NewAdminUsersHandler(lifecycleService),
		feedback: handlers.NewFeedbackHandler(feedbackService),
		internal: handlers.NewInternalHandler(feedbackService),
	}

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName)) // OpenTelemetry tracing
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// CORS configuration - SECURITY: Only allow specific origins
	allowedOrigins := cfg.Server.AllowedOrigins
	// Allow localhost in development
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.CaptchaTokenHeader, "traceparent", "tracestate"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// SECURITY: Rate limiters to prevent abuse and DoS attacks
	limits := routeLimiters{
		general: middleware.NewRateLimiter("general", 100, 200),
		email:   middleware.NewRateLimiter("email", 0.2, 3),  // endpoints that send email
		public:  middleware.NewRateLimiter("public", 5, 10), // token redemption, slows guessing
	}
	defer limits.general.Stop()
	defer limits.email.Stop()
	defer limits.public.Stop()

	registerRoutes(router, cfg, h, limits, tokenManager, lifecycleService, captcha)

	// Create HTTP server
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // SECURITY: 1 MB max header size
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
