package embedder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// BreakerSettings configures WithBreaker.
type BreakerSettings struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before a trial call.
	Cooldown time.Duration
	// Metrics receives state changes. May be nil.
	Metrics *metrics.Metrics
}

type breakerEmbedder struct {
	next Embedder
	name string
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next in a circuit breaker. While the breaker is open,
// calls fail fast with a *ProviderError wrapping gobreaker.ErrOpenState.
// Context cancellation does not count as a failure.
func WithBreaker(next Embedder, s BreakerSettings) Embedder {
	if s.Failures == 0 {
		s.Failures = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	name := NameOf(next)
	s.Metrics.SetBreakerState(name, 0)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("embedding circuit breaker state changed",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
			s.Metrics.SetBreakerState(name, breakerStateValue(to))
		},
	})
	return &breakerEmbedder{next: next, name: name, cb: cb}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (b *breakerEmbedder) Name() string { return b.name }

func (b *breakerEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *breakerEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.EmbedBatch(ctx, texts)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ProviderError{Provider: b.name, Message: "circuit breaker open", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.([]model.Vector), nil
}

func (b *breakerEmbedder) Close() error { return b.next.Close() }
