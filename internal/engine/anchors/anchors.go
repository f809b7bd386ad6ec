// Package anchors embeds anchor phrase sets once and caches the result by
// content, so repeated classifications against the same anchors cost no
// provider calls.
package anchors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// ErrEmptySet is returned for an anchor set with no phrases at all.
var ErrEmptySet = errors.New("anchors: anchor set has no phrases")

// Store is an optional second cache tier shared between processes.
// Get reports found=false with a nil error on a miss.
type Store interface {
	Get(ctx context.Context, key string) (emb *model.AnchorEmbeddings, found bool, err error)
	Set(ctx context.Context, key string, emb *model.AnchorEmbeddings) error
}

// Cache maps anchor sets to their embeddings. It is safe for concurrent use;
// concurrent misses for the same set share one provider call.
//
// Returned embeddings are shared between callers and must not be modified.
type Cache struct {
	emb     embedder.Embedder
	store   Store
	metrics *metrics.Metrics

	maxEntries int

	mu      sync.RWMutex
	entries map[string]*model.AnchorEmbeddings
	order   []string // insertion order, oldest first
	flight  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a second cache tier consulted before the provider.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithMetrics records hits and misses per layer.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithMaxEntries bounds the number of anchor sets held in memory. When full,
// the oldest set is evicted. n <= 0 means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// New creates an empty Cache that embeds through emb.
func New(emb embedder.Embedder, opts ...Option) *Cache {
	c := &Cache{emb: emb, entries: make(map[string]*model.AnchorEmbeddings)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embeddings returns the embeddings for set, embedding all of its phrases in
// a single provider call on a miss. Provider failures are returned as
// *embedder.ProviderError and are not cached.
func (c *Cache) Embeddings(ctx context.Context, set model.AnchorSet) (*model.AnchorEmbeddings, error) {
	if set.Len() == 0 {
		return nil, ErrEmptySet
	}
	key := Key(set)

	if emb, ok := c.lookup(key); ok {
		c.metrics.CacheHit(metrics.LayerMemory)
		return emb, nil
	}
	c.metrics.CacheMiss(metrics.LayerMemory)

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// A flight that finished just before this one started may have filled it.
		if emb, ok := c.lookup(key); ok {
			return emb, nil
		}
		emb, err := c.load(ctx, key, set)
		if err != nil {
			return nil, err
		}
		c.insert(key, emb)
		return emb, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.AnchorEmbeddings), nil
}

// Len returns the number of anchor sets held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (*model.AnchorEmbeddings, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	emb, ok := c.entries[key]
	return emb, ok
}

func (c *Cache) insert(key string, emb *model.AnchorEmbeddings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	if c.maxEntries > 0 {
		for len(c.entries) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
			slog.Debug("evicted anchor set", "key", oldest)
		}
	}
	c.entries[key] = emb
	c.order = append(c.order, key)
}

func (c *Cache) load(ctx context.Context, key string, set model.AnchorSet) (*model.AnchorEmbeddings, error) {
	if c.store != nil {
		emb, found, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("anchor store lookup failed, embedding anchors", "key", key, "error", err)
		case found && emb.Matches(set):
			c.metrics.CacheHit(metrics.LayerStore)
			warnDegenerate(emb)
			return emb, nil
		default:
			c.metrics.CacheMiss(metrics.LayerStore)
		}
	}

	emb, err := c.embed(ctx, set)
	if err != nil {
		return nil, err
	}

	warnDegenerate(emb)

	if c.store != nil {
		if err := c.store.Set(ctx, key, emb); err != nil {
			slog.Warn("anchor store write failed", "key", key, "error", err)
		}
	}
	return emb, nil
}

// embed sends positive ++ negative ++ neutral as one batch and splits the
// result back by category, preserving order.
func (c *Cache) embed(ctx context.Context, set model.AnchorSet) (*model.AnchorEmbeddings, error) {
	var all []string
	for _, s := range model.Sentiments {
		all = append(all, set.Phrases(s)...)
	}

	vecs, err := c.emb.EmbedBatch(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("anchors: %w", embedder.AsProviderError(embedder.NameOf(c.emb), err))
	}
	if err := embedder.CheckCount(embedder.NameOf(c.emb), len(all), vecs); err != nil {
		return nil, fmt.Errorf("anchors: %w", err)
	}

	np, nn := len(set.Positive), len(set.Negative)
	emb := &model.AnchorEmbeddings{
		Positive: vecs[:np:np],
		Negative: vecs[np : np+nn : np+nn],
		Neutral:  vecs[np+nn:],
	}
	slog.Debug("embedded anchor set",
		"positive", len(emb.Positive),
		"negative", len(emb.Negative),
		"neutral", len(emb.Neutral),
	)
	return emb, nil
}

// warnDegenerate logs each class without anchors. Its similarity is 0 for
// every classification against this set.
func warnDegenerate(emb *model.AnchorEmbeddings) {
	for _, s := range model.Sentiments {
		if len(emb.Vectors(s)) == 0 {
			slog.Warn("degenerate anchor set, class similarity forced to 0", "class", s.String())
		}
	}
}
