// Package webhook POSTs classified reviews to an HTTP endpoint in batches.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/anchorsense/internal/httpclient"
	"github.com/crimson-sun/anchorsense/internal/model"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	maxRetries           = 3
)

// Option configures a webhook Output.
type Option func(*Output)

// WithBatchSize sets the number of reviews accumulated before a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets the maximum time a review waits before a flush. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithToken sends "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(o *Output) { o.token = token }
}

// WithRetryBackoff sets the first retry delay for 429 and 5xx responses. Default: 1s.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output buffers reviews and POSTs them as a JSON array when batchSize is
// reached, flushInterval elapses, or the output is closed.
type Output struct {
	client        *httpclient.Client
	token         string
	backoff       time.Duration
	batchSize     int
	flushInterval time.Duration
	errFunc       func(error)

	mu      sync.Mutex
	pending []model.Review
	timer   *time.Timer
}

// New creates a webhook output targeting url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		backoff:       time.Second,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.client = httpclient.New(url, o.token,
		httpclient.WithTimeout(defaultTimeout),
		httpclient.WithRetries(maxRetries, o.backoff),
	)
	return o
}

// Write appends a review to the batch, flushing when the batch is full.
func (o *Output) Write(ctx context.Context, review model.Review) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, review)
	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}
	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining reviews.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushLocked(context.Background())
}

// flushLocked posts the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if len(o.pending) == 0 {
		return nil
	}
	batch := o.pending
	o.pending = nil

	if err := o.client.PostJSON(ctx, "", batch, nil); err != nil {
		return fmt.Errorf("webhook: deliver %d reviews: %w", len(batch), err)
	}
	return nil
}
