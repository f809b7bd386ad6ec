package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/crimson-sun/anchorsense/internal/model"
)

type limitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// WithRateLimit allows at most perSecond provider calls per second, with a
// burst of one. Callers wait for a token until ctx is done. A non-positive
// rate returns next unchanged.
func WithRateLimit(next Embedder, perSecond float64) Embedder {
	if perSecond <= 0 {
		return next
	}
	return &limitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (l *limitedEmbedder) Name() string { return NameOf(l.next) }

func (l *limitedEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedder: rate limit: %w", err)
	}
	return l.next.Embed(ctx, text)
}

func (l *limitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedder: rate limit: %w", err)
	}
	return l.next.EmbedBatch(ctx, texts)
}

func (l *limitedEmbedder) Close() error { return l.next.Close() }
