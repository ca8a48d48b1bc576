package handler

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/middleware"
	"github.com/utrscan/utrscan/internal/ratelimit"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	Logger        *slog.Logger
	Version       string
	IsDevelopment bool
	CORSOrigins   []string
	MaxUploadSize int64

	// Authentication
	Users           middleware.UserFinder
	AuthCache       middleware.AuthCache // optional
	AuthMinDuration time.Duration        // zero keeps the middleware default

	// Rate limiting
	Limiter          ratelimit.Limiter
	RateLimitEnabled bool

	// Observability
	Metrics     metrics.Recorder
	Snapshotter metrics.Snapshotter
	DB          HealthChecker
	Cache       HealthChecker // optional

	// Services
	Processor Processor
	Accounts  UserManager
	Logs      LogLister
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger

	h := New(cfg.Version)
	healthHandler := NewHealthHandler(cfg.DB, cfg.Cache, logger)
	submissionHandler := NewSubmissionHandler(cfg.Processor, cfg.MaxUploadSize, logger)
	adminHandler := NewAdminHandler(cfg.Accounts, logger)
	logHandler := NewLogHandler(cfg.Logs, logger)
	metricsHandler := NewMetricsHandler(cfg.Snapshotter)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment))

	r.Use(middleware.SecurityHeaders(cfg.IsDevelopment))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Healthz)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	authMW := middleware.Auth(middleware.AuthConfig{
		Logger:      logger,
		Users:       cfg.Users,
		Cache:       cfg.AuthCache,
		Metrics:     cfg.Metrics,
		MinDuration: cfg.AuthMinDuration,
	})
	rateLimitMW := middleware.RateLimit(middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: cfg.Limiter,
		Enabled: cfg.RateLimitEnabled,
		Metrics: cfg.Metrics,
	})
	adminMW := middleware.RequireAdmin(cfg.Users, logger)

	r.With(authMW).Get("/", h.Index)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMW)
		r.Use(rateLimitMW)

		r.Post("/process-image", submissionHandler.ProcessImage)
		r.Get("/logs", logHandler.List)

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminMW)
			r.Post("/users", adminHandler.CreateUser)
			r.Get("/users", adminHandler.ListUsers)
		})
	})

	r.With(authMW, adminMW).Get("/metrics", metricsHandler.Metrics)

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
