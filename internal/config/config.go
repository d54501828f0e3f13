// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppName    string `env:"APP_NAME" envDefault:"userhub"`
	AppVersion string `env:"APP_VERSION" envDefault:"1.0.0"`
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	AppPort    int    `env:"APP_PORT" envDefault:"8080"`
	// Debug exposes internal error messages in 500 responses.
	AppDebug bool `env:"APP_DEBUG" envDefault:"false"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and queue (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	SentryDSN string `env:"SENTRY_DSN" envDefault:""`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting, per client signature
	RateLimitEnabled   bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerMinute int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	// Pagination
	PaginationDefault int `env:"PAGINATION_DEFAULT" envDefault:"15"`
	PaginationMax     int `env:"PAGINATION_MAX" envDefault:"100"`

	// Strip tags and whitespace from JSON string fields
	SanitizeInput bool `env:"SANITIZE_INPUT" envDefault:"true"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Mail
	MailFrom     string `env:"MAIL_FROM" envDefault:"Userhub <hello@example.com>"`
	ResendAPIKey string `env:"RESEND_API_KEY" envDefault:""`

	// Welcome mail queue
	WelcomeMinDelay    time.Duration `env:"WELCOME_MIN_DELAY" envDefault:"2s"`
	WelcomeMaxDelay    time.Duration `env:"WELCOME_MAX_DELAY" envDefault:"15s"`
	WelcomeMaxAttempts int           `env:"WELCOME_MAX_ATTEMPTS" envDefault:"3"`
	WelcomeJobTimeout  time.Duration `env:"WELCOME_JOB_TIMEOUT" envDefault:"60s"`
	WelcomeWorker      bool          `env:"WELCOME_WORKER_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
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

// Validate checks relations between fields that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.PaginationDefault < 1 {
		errs = append(errs, errors.New("PAGINATION_DEFAULT must be at least 1"))
	}
	if c.PaginationMax < c.PaginationDefault {
		errs = append(errs, errors.New("PAGINATION_MAX must not be below PAGINATION_DEFAULT"))
	}
	if c.WelcomeMinDelay < 0 || c.WelcomeMaxDelay < c.WelcomeMinDelay {
		errs = append(errs, errors.New("WELCOME_MAX_DELAY must not be below WELCOME_MIN_DELAY"))
	}
	if c.WelcomeMaxAttempts < 1 {
		errs = append(errs, errors.New("WELCOME_MAX_ATTEMPTS must be at least 1"))
	}
	if c.IsProduction() && c.AppDebug {
		errs = append(errs, errors.New("APP_DEBUG must be off in production"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads variables from .env files into the environment. Files
// that do not exist are skipped; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
