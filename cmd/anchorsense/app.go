package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/crimson-sun/anchorsense/internal/config"
	"github.com/crimson-sun/anchorsense/internal/engine"
	"github.com/crimson-sun/anchorsense/internal/engine/anchors"
	"github.com/crimson-sun/anchorsense/internal/engine/classifier"
	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/engine/embedder/local"
	"github.com/crimson-sun/anchorsense/internal/httpclient"
	"github.com/crimson-sun/anchorsense/internal/logging"
	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/model"
	"github.com/crimson-sun/anchorsense/internal/store/redis"
)

const redisPingTimeout = 5 * time.Second

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	engine   *engine.Engine
	embedder embedder.Embedder
	anchors  model.AnchorSet
	redis    *goredis.Client
}

// loadConfig reads and validates the configuration, then installs the
// default logger.
func loadConfig(outputIsStdout bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Init(outputIsStdout, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*app, error) {
	set := anchors.Default()
	if cfg.AnchorsFile != "" {
		var err error
		if set, err = anchors.LoadFile(cfg.AnchorsFile); err != nil {
			return nil, err
		}
		slog.Info("loaded anchor set", "path", cfg.AnchorsFile, "phrases", set.Len())
	}

	emb, err := newEmbedder(cfg, m)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, embedder: emb, anchors: set}
	cacheOpts := []anchors.Option{anchors.WithMetrics(m), anchors.WithMaxEntries(cfg.AnchorCacheSize)}
	if cfg.RedisURL != "" {
		if a.redis, err = connectRedis(ctx, cfg.RedisURL); err != nil {
			emb.Close()
			return nil, err
		}
		cacheOpts = append(cacheOpts, anchors.WithStore(redis.New(a.redis, cfg.AnchorCacheTTL)))
	}

	a.engine = engine.New(emb, anchors.New(emb, cacheOpts...), classifier.New(), m)
	return a, nil
}

// newEmbedder builds the configured provider wrapped in rate limiting, a
// circuit breaker and instrumentation.
func newEmbedder(cfg *config.Config, m *metrics.Metrics) (embedder.Embedder, error) {
	ec := cfg.Embedding
	var base embedder.Embedder
	switch ec.Provider {
	case config.ProviderOpenAI:
		base = embedder.NewOpenAI(ec.URL, ec.APIKey, ec.Model, httpclient.WithTimeout(ec.Timeout))
	case config.ProviderProxy:
		base = embedder.NewProxy(ec.URL, ec.APIKey, ec.Model, httpclient.WithTimeout(ec.Timeout))
	case config.ProviderONNX:
		p, err := local.New(ec.ModelDir)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded local embedding model", "dir", ec.ModelDir, "dim", p.Dim())
		base = p
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}

	emb := embedder.WithRateLimit(base, ec.RateLimit)
	emb = embedder.WithBreaker(emb, embedder.BreakerSettings{
		Failures: ec.BreakerFailures,
		Cooldown: ec.BreakerCooldown,
		Metrics:  m,
	})
	return embedder.Instrumented(emb, m), nil
}

// modelName is the model advertised by the embeddings endpoint.
func modelName(cfg *config.Config) string {
	if cfg.Embedding.Provider == config.ProviderONNX {
		return filepath.Base(cfg.Embedding.ModelDir)
	}
	return cfg.Embedding.Model
}

// connectRedis returns a client even when the first ping fails; the anchor
// cache treats Redis errors as misses.
func connectRedis(ctx context.Context, url string) (*goredis.Client, error) {
	rdb, err := redis.Connect(url)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, anchor embeddings will not be shared", "error", err)
	} else {
		slog.Info("connected to redis")
	}
	return rdb, nil
}

func (a *app) close() {
	if err := a.engine.Close(); err != nil {
		slog.Error("failed to close embedder", "error", err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}
}
