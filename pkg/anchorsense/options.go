package anchorsense

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

// Embedder turns texts into vectors, one per text and in input order.
// Every vector it returns must have the same length.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

type options struct {
	embedder Embedder
	modelDir string
	anchors  *Anchors
	registry prometheus.Registerer
	redis    goredis.Cmdable
	redisTTL time.Duration
}

// Option configures an Analyzer.
type Option func(*options)

// WithEmbedder sets the embedding provider. Without it the Analyzer loads a
// local ONNX model from the model directory.
func WithEmbedder(e Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithModelDir sets the directory of the local ONNX model.
// Expects: model_quantized.onnx, vocab.txt, optionally 2_Dense/model.safetensors.
// Default: "models".
func WithModelDir(dir string) Option {
	return func(o *options) { o.modelDir = dir }
}

// WithAnchors replaces the built-in review anchors.
func WithAnchors(a Anchors) Option {
	return func(o *options) { o.anchors = &a }
}

// WithMetrics registers Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithStore shares anchor embeddings through Redis so other processes skip
// re-embedding them. A ttl <= 0 uses one week.
func WithStore(rdb goredis.Cmdable, ttl time.Duration) Option {
	return func(o *options) {
		o.redis = rdb
		o.redisTTL = ttl
	}
}

func defaultOptions() options {
	return options{modelDir: "models"}
}
