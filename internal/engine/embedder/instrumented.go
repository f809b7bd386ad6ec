package embedder

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/model"
)

type instrumentedEmbedder struct {
	next Embedder
	name string
	m    *metrics.Metrics
}

// Instrumented records call counts and latency for next. A nil m returns
// next unchanged.
func Instrumented(next Embedder, m *metrics.Metrics) Embedder {
	if m == nil {
		return next
	}
	return &instrumentedEmbedder{next: next, name: NameOf(next), m: m}
}

func (i *instrumentedEmbedder) Name() string { return i.name }

func (i *instrumentedEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	start := time.Now()
	v, err := i.next.Embed(ctx, text)
	i.m.RecordEmbedding(i.name, outcome(err), time.Since(start))
	return v, err
}

func (i *instrumentedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	start := time.Now()
	vecs, err := i.next.EmbedBatch(ctx, texts)
	i.m.RecordEmbedding(i.name, outcome(err), time.Since(start))
	return vecs, err
}

func (i *instrumentedEmbedder) Close() error { return i.next.Close() }

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
