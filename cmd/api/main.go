// Package main is the entrypoint for the utrscan API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/utrscan/utrscan/internal/cache"
	"github.com/utrscan/utrscan/internal/config"
	"github.com/utrscan/utrscan/internal/extractor"
	"github.com/utrscan/utrscan/internal/handler"
	"github.com/utrscan/utrscan/internal/mailer"
	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/ratelimit"
	"github.com/utrscan/utrscan/internal/repository"
	"github.com/utrscan/utrscan/internal/server"
	"github.com/utrscan/utrscan/internal/service"
	"github.com/utrscan/utrscan/internal/worker"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if err := repo.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", slog.String("error", err.Error()))
		repo.Close()
		os.Exit(1)
	}

	// Initialize cache (optional)
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cache.WithPoolSize(cfg.RedisPoolSize))
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			repo.Close()
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	}

	metricsRecorder := metrics.NewInMemory()

	// Extraction pipeline
	var geminiOpts []extractor.GeminiOption
	if cfg.GeminiBaseURL != "" {
		geminiOpts = append(geminiOpts, extractor.WithBaseURL(cfg.GeminiBaseURL))
	}
	gemini, err := extractor.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ModelTimeout, geminiOpts...)
	if err != nil {
		logger.Error("failed to create model client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	reader, err := newTextReader(cfg, gemini)
	if err != nil {
		logger.Error("failed to create text reader", slog.String("error", err.Error()), slog.String("backend", cfg.OCRBackend))
		os.Exit(1)
	}
	ex := extractor.New(reader, gemini,
		extractor.WithAmountThreshold(cfg.AmountThreshold),
		extractor.WithLogger(logger),
	)

	sender, err := newSender(cfg)
	if err != nil {
		logger.Error("failed to configure mailer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize services
	submissionService := service.NewSubmissionService(ex, repo, cfg.LogRetention, metricsRecorder, logger)
	userService := service.NewUserService(repo, sender, metricsRecorder, logger)
	logService := service.NewLogService(repo)

	bootstrapAdmin(ctx, cfg, userService, logger)

	routerCfg := handler.RouterConfig{
		Logger:           logger,
		Version:          version,
		IsDevelopment:    cfg.IsDevelopment(),
		CORSOrigins:      cfg.GetCORSAllowedOrigins(),
		MaxUploadSize:    cfg.MaxUploadSize,
		Users:            repo,
		Limiter:          newLimiter(cfg, cacheClient, logger),
		RateLimitEnabled: cfg.RateLimitEnabled,
		Metrics:          metricsRecorder,
		Snapshotter:      metricsRecorder,
		DB:               repo,
		Processor:        submissionService,
		Accounts:         userService,
		Logs:             logService,
	}
	if cacheClient != nil {
		routerCfg.AuthCache = cacheClient
		routerCfg.Cache = cacheClient
	}

	srv := server.New(handler.NewRouter(routerCfg), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	purger := worker.NewLogPurger(repo, cfg.LogPurgeInterval, logger, metricsRecorder)
	srv.Go("log-purger", purger.Run)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"ocr_backend", cfg.OCRBackend,
		"redis", cacheClient != nil,
		"mail", cfg.MailEnabled(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newTextReader picks the OCR backend.
func newTextReader(cfg *config.Config, gemini *extractor.Gemini) (extractor.TextReader, error) {
	switch cfg.OCRBackend {
	case config.OCRBackendTesseract:
		if !extractor.TesseractAvailable {
			return nil, fmt.Errorf("OCR_BACKEND=%s: %w", cfg.OCRBackend, extractor.ErrTesseractUnavailable)
		}
		t, err := extractor.NewTesseract()
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return gemini, nil
	}
}

// newSender returns an SMTP sender with retries, or a disabled sender when
// no relay is configured.
func newSender(cfg *config.Config) (mailer.Sender, error) {
	if !cfg.MailEnabled() {
		return mailer.Disabled{}, nil
	}
	smtp, err := mailer.NewSMTP(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, err
	}
	return mailer.WithRetry(smtp), nil
}

// newLimiter shares counters through Redis when available.
func newLimiter(cfg *config.Config, cacheClient *cache.Cache, logger *slog.Logger) ratelimit.Limiter {
	if cacheClient != nil {
		return cache.NewRateLimiter(cacheClient, cfg.RateLimitRequests, cfg.RateLimitWindow, logger)
	}
	return ratelimit.NewFixedWindow(cfg.RateLimitRequests, cfg.RateLimitWindow)
}

// bootstrapAdmin creates the first admin on an empty store. A generated key
// is printed once to stderr and never logged.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, users *service.UserService, logger *slog.Logger) {
	res, err := users.BootstrapAdmin(ctx, service.BootstrapInput{
		Name:   cfg.AdminName,
		Email:  cfg.AdminEmail,
		APIKey: cfg.AdminAPIKey,
	})
	if err != nil {
		logger.Error("failed to bootstrap admin", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !res.Created {
		return
	}

	logger.Info("bootstrap admin created",
		slog.String("user_id", res.User.ID),
		slog.String("email", res.User.Email),
		slog.String("key_prefix", res.User.KeyPrefix),
	)
	if res.GeneratedKey != "" {
		fmt.Fprintf(os.Stderr, "\nAdmin API key (shown once, store it now):\n  %s\n\n", res.GeneratedKey)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "utrscan")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
