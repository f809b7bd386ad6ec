// Package config loads anchorsense settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderProxy  = "proxy"
	ProviderONNX   = "onnx"
)

// Config holds all anchorsense configuration.
type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	Port      string `env:"PORT" default:"8080"`

	Embedding EmbeddingConfig

	AnchorsFile     string        `env:"ANCHORS_FILE"`
	RequestAnchors  bool          `env:"REQUEST_ANCHORS" default:"true"`
	AnchorCacheSize int           `env:"ANCHOR_CACHE_SIZE" default:"64"`
	RedisURL        string        `env:"REDIS_URL"`
	AnchorCacheTTL  time.Duration `env:"ANCHOR_CACHE_TTL" default:"168h"`

	BatchSize    int    `env:"BATCH_SIZE" default:"64"`
	WebhookURL   string `env:"WEBHOOK_URL"`
	WebhookToken string `env:"WEBHOOK_TOKEN"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider        string        `env:"EMBEDDING_PROVIDER" default:"openai"`
	URL             string        `env:"EMBEDDING_URL" default:"https://api.openai.com/v1"`
	APIKey          string        `env:"OPENAI_API_KEY"`
	Model           string        `env:"EMBEDDING_MODEL" default:"text-embedding-3-large"`
	Timeout         time.Duration `env:"EMBEDDING_TIMEOUT" default:"30s"`
	RateLimit       float64       `env:"EMBEDDING_RATE_LIMIT" default:"0"`
	BreakerFailures uint32        `env:"EMBEDDING_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `env:"EMBEDDING_BREAKER_COOLDOWN" default:"30s"`
	ModelDir        string        `env:"ONNX_MODEL_DIR" default:"models"`
}

// Load reads a .env file if present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	cfg.Embedding.Provider = strings.ToLower(cfg.Embedding.Provider)
	return &cfg, nil
}

// Validate checks the configuration for invalid values. It returns all
// problems at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderProxy:
		if c.Embedding.URL == "" {
			errs = append(errs, errors.New("EMBEDDING_URL is required for the proxy provider"))
		}
	case ProviderONNX:
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q (want openai, proxy or onnx)", c.Embedding.Provider))
	}

	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.AnchorCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("ANCHOR_CACHE_SIZE must be positive, got %d", c.AnchorCacheSize))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_TIMEOUT must be positive, got %s", c.Embedding.Timeout))
	}
	if c.Embedding.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_RATE_LIMIT must not be negative, got %g", c.Embedding.RateLimit))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
