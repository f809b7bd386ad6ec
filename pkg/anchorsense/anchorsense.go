package anchorsense

import (
	"context"
	"fmt"

	"github.com/crimson-sun/anchorsense/internal/engine"
	"github.com/crimson-sun/anchorsense/internal/engine/anchors"
	"github.com/crimson-sun/anchorsense/internal/engine/classifier"
	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/engine/embedder/local"
	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/model"
	"github.com/crimson-sun/anchorsense/internal/store/redis"
)

// ProviderError reports a failed call to the embedding provider.
type ProviderError = embedder.ProviderError

// AnchorEmbeddings holds one vector per anchor phrase, per class. Treat as
// read-only; it is shared with the Analyzer's cache.
type AnchorEmbeddings = model.AnchorEmbeddings

// Errors returned by the classifier.
var (
	ErrEmptyAnchors      = anchors.ErrEmptySet
	ErrNotInitialized    = classifier.ErrNotInitialized
	ErrDimensionMismatch = classifier.ErrDimensionMismatch
	ErrNonFinite         = classifier.ErrNonFinite
)

var defaultClassifier = classifier.New()

// Analyzer classifies text sentiment. Safe for concurrent use.
type Analyzer struct {
	engine  *engine.Engine
	anchors model.AnchorSet
}

// New creates an Analyzer. Anchor phrases are embedded lazily on the first
// classification; call Warm to embed them up front.
func New(opts ...Option) (*Analyzer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var m *metrics.Metrics
	if o.registry != nil {
		m = metrics.New(o.registry)
	}

	var emb embedder.Embedder
	if o.embedder != nil {
		emb = adapt(o.embedder)
	} else {
		p, err := local.New(o.modelDir)
		if err != nil {
			return nil, fmt.Errorf("anchorsense: %w", err)
		}
		emb = p
	}
	emb = embedder.Instrumented(emb, m)

	cacheOpts := []anchors.Option{anchors.WithMetrics(m)}
	if o.redis != nil {
		cacheOpts = append(cacheOpts, anchors.WithStore(redis.New(o.redis, o.redisTTL)))
	}

	set := anchors.Default()
	if o.anchors != nil {
		set = o.anchors.toModel()
	}
	if set.Len() == 0 {
		emb.Close()
		return nil, fmt.Errorf("anchorsense: %w", ErrEmptyAnchors)
	}

	eng := engine.New(emb, anchors.New(emb, cacheOpts...), classifier.New(), m)
	return &Analyzer{engine: eng, anchors: set}, nil
}

// Warm embeds the configured anchors so the first classification does not
// pay for it.
func (a *Analyzer) Warm(ctx context.Context) error {
	_, err := a.engine.Anchors(ctx, a.anchors)
	return err
}

// Anchors returns the embeddings of set, embedding it on first use.
func (a *Analyzer) Anchors(ctx context.Context, set Anchors) (*AnchorEmbeddings, error) {
	return a.engine.Anchors(ctx, set.toModel())
}

// ClassifyEmbedding classifies vec against anchor embeddings the caller
// already holds. It performs no I/O.
func ClassifyEmbedding(vec []float32, emb *AnchorEmbeddings) (Result, error) {
	res, err := defaultClassifier.Classify(vec, emb)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Sentiment:  res.Label.String(),
		Confidence: res.Confidence,
		Method:     model.MethodEmbedding,
	}, nil
}

// Classify classifies one text against the configured anchors.
func (a *Analyzer) Classify(ctx context.Context, text string) (Result, error) {
	r, err := a.engine.Classify(ctx, text, a.anchors)
	if err != nil {
		return Result{}, err
	}
	return resultFromReview(r), nil
}

// ClassifyAll classifies texts with a single embedding call. Results are in
// input order.
func (a *Analyzer) ClassifyAll(ctx context.Context, texts []string) ([]Result, error) {
	return a.ClassifyWith(ctx, texts, Anchors{
		Positive: a.anchors.Positive,
		Negative: a.anchors.Negative,
		Neutral:  a.anchors.Neutral,
	})
}

// ClassifyWith classifies texts against a caller-supplied anchor set. Each
// distinct set is embedded once and cached.
func (a *Analyzer) ClassifyWith(ctx context.Context, texts []string, set Anchors) ([]Result, error) {
	reviews, err := a.engine.ClassifyAll(ctx, texts, set.toModel())
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(reviews))
	for i, r := range reviews {
		results[i] = resultFromReview(r)
	}
	return results, nil
}

// ClassifyVector classifies an embedding produced by the same provider as
// the anchors. The returned Result carries no text.
func (a *Analyzer) ClassifyVector(ctx context.Context, vec []float32) (Result, error) {
	res, err := a.engine.ClassifyVector(ctx, vec, a.anchors)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Sentiment:  res.Label.String(),
		Confidence: res.Confidence,
		Method:     model.MethodEmbedding,
	}, nil
}

// Close releases the embedding provider.
func (a *Analyzer) Close() error {
	return a.engine.Close()
}

// adapt wraps a public Embedder as an internal one.
func adapt(e Embedder) embedder.BatchFunc {
	return func(ctx context.Context, texts []string) ([]model.Vector, error) {
		raw, err := e.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		vecs := make([]model.Vector, len(raw))
		for i, v := range raw {
			vecs[i] = v
		}
		return vecs, nil
	}
}
