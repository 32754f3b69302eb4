// Package config provides application configuration loading from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/mishasvintus/access_mirror/internal/apperr"
)

// ErrMissingToken is returned when GITHUB_TOKEN is not set.
var ErrMissingToken = errors.New("GITHUB_TOKEN is not set")

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	GitHub   GitHubConfig
	Sync     SyncConfig
	Log      LogConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string `validate:"required"`
}

// GitHubConfig contains remote API settings.
type GitHubConfig struct {
	Token  string `validate:"required"`
	APIURL string `validate:"required,url"`

	// RequestInterval spaces consecutive requests; zero disables pacing.
	RequestInterval time.Duration `validate:"gte=0"`
}

// SyncConfig contains retry, throttle and batching settings.
type SyncConfig struct {
	MaxRetries    int           `validate:"gte=1,lte=20"`
	DefaultDelay  time.Duration `validate:"gte=0"`
	WarningDelay  time.Duration `validate:"gte=0"`
	CriticalDelay time.Duration `validate:"gte=0"`
	BatchSize     int           `validate:"gte=1,lte=50"`

	// Job runner settings (cmd/sync).
	Groups         []string
	Repository     string
	SearchTerms    string
	ExclusionTerms string
	Concurrency    int `validate:"gte=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string
	Format string `validate:"omitempty,oneof=json console"`
}

// Load reads configuration from environment variables (and .env when present).
// A missing token is reported as a configuration error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		GitHub: GitHubConfig{
			Token:  strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
			APIURL: getEnv("GITHUB_API_URL", "https://api.github.com"),
		},
		Sync: SyncConfig{
			Groups:         splitList(os.Getenv("SYNC_GROUPS")),
			Repository:     os.Getenv("SYNC_REPOSITORY"),
			SearchTerms:    os.Getenv("SYNC_SEARCH_TERMS"),
			ExclusionTerms: os.Getenv("SYNC_EXCLUSION_TERMS"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	var err error
	if cfg.GitHub.RequestInterval, err = getDuration("SYNC_REQUEST_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Sync.MaxRetries, err = getInt("SYNC_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Sync.DefaultDelay, err = getDuration("RATE_LIMIT_DEFAULT_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.Sync.WarningDelay, err = getDuration("RATE_LIMIT_WARNING_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.Sync.CriticalDelay, err = getDuration("RATE_LIMIT_CRITICAL_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.Sync.BatchSize, err = getInt("SYNC_BATCH_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.Sync.Concurrency, err = getInt("SYNC_CONCURRENCY", 1); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration. The token is checked first so that its
// absence is always reported as ErrMissingToken.
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return apperr.New(apperr.KindConfiguration, "load config", ErrMissingToken)
	}
	if err := validator.New().Struct(c); err != nil {
		return apperr.New(apperr.KindConfiguration, "load config", fmt.Errorf("invalid configuration: %w", err))
	}
	return nil
}

// DSN returns PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.New(apperr.KindConfiguration, "load config", fmt.Errorf("environment variable %s must be an integer: %w", key, err))
	}
	return n, nil
}

// getDuration accepts Go durations ("1500ms") or whole seconds ("2").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, apperr.New(apperr.KindConfiguration, "load config", fmt.Errorf("environment variable %s must be a duration: %w", key, err))
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
