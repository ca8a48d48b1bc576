// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles;
// an optional .env file is read first for local development.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/utrscan/utrscan/internal/auth"
)

// OCR backends.
const (
	OCRBackendGemini    = "gemini"
	OCRBackendTesseract = "tesseract"
)

// DefaultAdminName matches the ADMIN_NAME default below.
const DefaultAdminName = "Administrator"

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis). Optional: when empty, auth caching is disabled and
	// rate limiting falls back to the in-process limiter.
	RedisURL      string `env:"REDIS_URL"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. Model calls are slow, so the write timeout is generous.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (per user, admins exempt)
	RateLimitEnabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Upload size limit in bytes (default 5MB)
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"5242880"`

	// Generative model
	GeminiAPIKey    string        `env:"GEMINI_API_KEY,required"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiBaseURL   string        `env:"GEMINI_BASE_URL"`
	ModelTimeout    time.Duration `env:"MODEL_TIMEOUT" envDefault:"45s"`
	OCRBackend      string        `env:"OCR_BACKEND" envDefault:"gemini"`
	AmountThreshold float64       `env:"EXTRACT_AMOUNT_THRESHOLD" envDefault:"100000"`

	// Log retention
	LogRetention     time.Duration `env:"LOG_RETENTION" envDefault:"240h"`
	LogPurgeInterval time.Duration `env:"LOG_PURGE_INTERVAL" envDefault:"1h"`

	// Bootstrap admin, created only when the user store is empty
	AdminName   string `env:"ADMIN_NAME" envDefault:"Administrator"`
	AdminEmail  string `env:"ADMIN_EMAIL" envDefault:"admin@localhost"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// SMTP relay for API key delivery. Delivery is disabled when SMTPHost is empty.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.OCRBackend != OCRBackendGemini && c.OCRBackend != OCRBackendTesseract {
		errs = append(errs, fmt.Errorf("OCR_BACKEND must be %q or %q", OCRBackendGemini, OCRBackendTesseract))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE must be positive"))
	}
	if c.AmountThreshold <= 0 {
		errs = append(errs, errors.New("EXTRACT_AMOUNT_THRESHOLD must be positive"))
	}
	if c.LogRetention <= 0 {
		errs = append(errs, errors.New("LOG_RETENTION must be positive"))
	}
	if _, err := mail.ParseAddress(c.AdminEmail); err != nil {
		errs = append(errs, fmt.Errorf("ADMIN_EMAIL is invalid: %w", err))
	}
	if c.AdminAPIKey != "" && !auth.ValidateKeyFormat(c.AdminAPIKey) {
		errs = append(errs, errors.New("ADMIN_API_KEY must look like utr_<6 hex>_<32 hex>"))
	}
	if c.IsProduction() {
		for _, origin := range c.GetCORSAllowedOrigins() {
			if origin == "*" {
				errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must not contain * in production"))
				break
			}
		}
	}
	if c.MailEnabled() {
		if _, err := mail.ParseAddress(c.SMTPFrom); err != nil {
			errs = append(errs, fmt.Errorf("SMTP_FROM is invalid: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Load reads an optional .env file, parses environment variables and
// returns a validated Config.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
