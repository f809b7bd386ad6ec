// Package engine wires the embedding provider, anchor cache and classifier
// into batch sentiment classification.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/anchorsense/internal/engine/anchors"
	"github.com/crimson-sun/anchorsense/internal/engine/classifier"
	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// Engine orchestrates the anchors → embed → classify pipeline.
type Engine struct {
	embedder   embedder.Embedder
	anchors    *anchors.Cache
	classifier *classifier.Classifier
	metrics    *metrics.Metrics
}

// New creates an Engine with the provided components. m may be nil.
func New(emb embedder.Embedder, cache *anchors.Cache, cls *classifier.Classifier, m *metrics.Metrics) *Engine {
	return &Engine{
		embedder:   emb,
		anchors:    cache,
		classifier: cls,
		metrics:    m,
	}
}

// Anchors returns the embeddings for set, embedding them on first use.
func (e *Engine) Anchors(ctx context.Context, set model.AnchorSet) (*model.AnchorEmbeddings, error) {
	return e.anchors.Embeddings(ctx, set)
}

// Classify classifies a single text against set.
func (e *Engine) Classify(ctx context.Context, text string, set model.AnchorSet) (model.Review, error) {
	reviews, err := e.ClassifyAll(ctx, []string{text}, set)
	if err != nil {
		return model.Review{}, err
	}
	return reviews[0], nil
}

// ClassifyVector classifies an embedding the caller already holds. It must
// come from the same model as the anchor embeddings.
func (e *Engine) ClassifyVector(ctx context.Context, vec model.Vector, set model.AnchorSet) (model.Result, error) {
	anchorEmb, err := e.anchors.Embeddings(ctx, set)
	if err != nil {
		return model.Result{}, fmt.Errorf("engine: %w", err)
	}
	res, err := e.classifier.Classify(vec, anchorEmb)
	if err != nil {
		return model.Result{}, fmt.Errorf("engine: %w", err)
	}
	e.metrics.RecordClassification(res.Label.String(), res.Confidence)
	return res, nil
}

// ClassifyAll resolves the anchor embeddings once, embeds every text in one
// provider call and classifies each independently. Reviews are returned in
// input order.
func (e *Engine) ClassifyAll(ctx context.Context, texts []string, set model.AnchorSet) ([]model.Review, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	anchorEmb, err := e.anchors.Embeddings(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("engine: embed texts: %w", embedder.AsProviderError(embedder.NameOf(e.embedder), err))
	}
	if err := embedder.CheckCount(embedder.NameOf(e.embedder), len(texts), vecs); err != nil {
		return nil, fmt.Errorf("engine: embed texts: %w", err)
	}

	reviews := make([]model.Review, len(texts))
	for i, vec := range vecs {
		res, err := e.classifier.Classify(vec, anchorEmb)
		if err != nil {
			return nil, fmt.Errorf("engine: classify text %d: %w", i, err)
		}
		e.metrics.RecordClassification(res.Label.String(), res.Confidence)
		reviews[i] = model.Review{
			Text:       texts[i],
			Index:      i,
			Sentiment:  res.Label,
			Confidence: res.Confidence,
			Method:     model.MethodEmbedding,
		}
	}
	slog.Debug("classified batch", "texts", len(texts))
	return reviews, nil
}

// Close releases the embedding provider.
func (e *Engine) Close() error {
	return e.embedder.Close()
}
