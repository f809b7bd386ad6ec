package anchors

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// counting embeds each text as [len(text), call number] and records every batch.
type counting struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	gate    chan struct{} // when set, EmbedBatch blocks until closed
	started chan struct{}
}

func (c *counting) fn() embedder.BatchFunc {
	return func(ctx context.Context, texts []string) ([]model.Vector, error) {
		c.mu.Lock()
		c.batches = append(c.batches, texts)
		n := len(c.batches)
		err := c.err
		c.mu.Unlock()

		if c.started != nil {
			c.started <- struct{}{}
		}
		if c.gate != nil {
			<-c.gate
		}
		if err != nil {
			return nil, err
		}
		out := make([]model.Vector, len(texts))
		for i, s := range texts {
			out[i] = model.Vector{float32(len(s)), float32(n)}
		}
		return out, nil
	}
}

func (c *counting) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func smallSet() model.AnchorSet {
	return model.AnchorSet{
		Positive: []string{"great"},
		Negative: []string{"awful"},
		Neutral:  []string{"fine"},
	}
}

func TestEmbeddingsHitAndMiss(t *testing.T) {
	emb := &counting{}
	m := metrics.New(prometheus.NewRegistry())
	c := New(emb.fn(), WithMetrics(m))
	ctx := context.Background()

	first, err := c.Embeddings(ctx, smallSet())
	require.NoError(t, err)
	second, err := c.Embeddings(ctx, smallSet())
	require.NoError(t, err)

	assert.Equal(t, 1, emb.calls())
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues(metrics.LayerMemory)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues(metrics.LayerMemory)))

	changed := smallSet()
	changed.Neutral[0] = "fine, I guess"
	_, err = c.Embeddings(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls())
	assert.Equal(t, 2, c.Len())
}

func TestEmbeddingsPartitionsOneBatch(t *testing.T) {
	emb := &counting{}
	c := New(emb.fn())

	set := model.AnchorSet{
		Positive: []string{"p1", "p22", "p333"},
		Negative: []string{"n1", "n22"},
		Neutral:  []string{"u1", "u22", "u333", "u4444"},
	}
	got, err := c.Embeddings(context.Background(), set)
	require.NoError(t, err)

	require.Equal(t, 1, emb.calls())
	assert.Equal(t, []string{"p1", "p22", "p333", "n1", "n22", "u1", "u22", "u333", "u4444"}, emb.batches[0])

	require.Len(t, got.Positive, 3)
	require.Len(t, got.Negative, 2)
	require.Len(t, got.Neutral, 4)
	for i, p := range set.Positive {
		assert.Equal(t, float32(len(p)), got.Positive[i][0])
	}
	for i, p := range set.Negative {
		assert.Equal(t, float32(len(p)), got.Negative[i][0])
	}
	for i, p := range set.Neutral {
		assert.Equal(t, float32(len(p)), got.Neutral[i][0])
	}

	// Appending to one category must not clobber the next.
	got.Positive = append(got.Positive, model.Vector{9, 9})
	assert.Equal(t, float32(2), got.Negative[0][0])
}

func TestEmbeddingsErrorNotCached(t *testing.T) {
	emb := &counting{err: errors.New("invalid api key")}
	c := New(emb.fn())
	ctx := context.Background()

	_, err := c.Embeddings(ctx, smallSet())
	var pe *embedder.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invalid api key", pe.Message)
	assert.Equal(t, 0, c.Len())

	emb.mu.Lock()
	emb.err = nil
	emb.mu.Unlock()

	_, err = c.Embeddings(ctx, smallSet())
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls())
}

func TestEmbeddingsWrongCount(t *testing.T) {
	short := embedder.BatchFunc(func(context.Context, []string) ([]model.Vector, error) {
		return []model.Vector{{1}}, nil
	})
	_, err := New(short).Embeddings(context.Background(), smallSet())
	var pe *embedder.ProviderError
	require.ErrorAs(t, err, &pe)
}

func TestEmbeddingsEmptySet(t *testing.T) {
	emb := &counting{}
	_, err := New(emb.fn()).Embeddings(context.Background(), model.AnchorSet{})
	require.ErrorIs(t, err, ErrEmptySet)
	assert.Equal(t, 0, emb.calls())
}

func TestEmbeddingsSingleFlight(t *testing.T) {
	emb := &counting{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := New(emb.fn())

	const n = 16
	var wg sync.WaitGroup
	results := make([]*model.AnchorEmbeddings, n)
	var failures atomic.Int32
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.Embeddings(context.Background(), smallSet())
			if err != nil {
				failures.Add(1)
			}
			results[i] = r
		}()
	}

	<-emb.started
	time.Sleep(50 * time.Millisecond)
	close(emb.gate)
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, emb.calls())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestKeySeparatesCategories(t *testing.T) {
	a := model.AnchorSet{Positive: []string{"a", "b"}, Negative: []string{"c"}}
	b := model.AnchorSet{Positive: []string{"a"}, Negative: []string{"b", "c"}}
	c := model.AnchorSet{Positive: []string{"a|b"}, Negative: []string{"c"}}

	assert.NotEqual(t, Key(a), Key(b))
	assert.NotEqual(t, Key(a), Key(c))
	assert.Equal(t, Key(a), Key(model.AnchorSet{Positive: []string{"a", "b"}, Negative: []string{"c"}}))
	assert.Len(t, Key(a), 64)
}

func TestKeySeparatorInsidePhrase(t *testing.T) {
	a := model.AnchorSet{Positive: []string{"a\x1eb", ""}}
	b := model.AnchorSet{Positive: []string{"a", "b\x1e"}}
	assert.NotEqual(t, Key(a), Key(b))

	c := model.AnchorSet{Positive: []string{"x\x1d"}, Negative: []string{"y"}}
	d := model.AnchorSet{Positive: []string{"x"}, Negative: []string{"\x1dy"}}
	assert.NotEqual(t, Key(c), Key(d))
}

func TestDistinctDistributionsEmbedSeparately(t *testing.T) {
	emb := &counting{}
	c := New(emb.fn())
	ctx := context.Background()

	first, err := c.Embeddings(ctx, model.AnchorSet{Positive: []string{"a", "b"}, Negative: []string{"c"}})
	require.NoError(t, err)
	second, err := c.Embeddings(ctx, model.AnchorSet{Positive: []string{"a"}, Negative: []string{"b", "c"}})
	require.NoError(t, err)

	assert.Equal(t, 2, emb.calls())
	assert.Len(t, first.Positive, 2)
	assert.Len(t, second.Positive, 1)
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	emb := &counting{}
	c := New(emb.fn(), WithMaxEntries(2))
	ctx := context.Background()

	sets := []model.AnchorSet{
		{Positive: []string{"one"}},
		{Positive: []string{"two"}},
		{Positive: []string{"three"}},
	}
	for _, set := range sets {
		_, err := c.Embeddings(ctx, set)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, emb.calls())

	// The newest two are still held.
	_, err := c.Embeddings(ctx, sets[2])
	require.NoError(t, err)
	_, err = c.Embeddings(ctx, sets[1])
	require.NoError(t, err)
	assert.Equal(t, 3, emb.calls())

	// The oldest was evicted and is embedded again.
	_, err = c.Embeddings(ctx, sets[0])
	require.NoError(t, err)
	assert.Equal(t, 4, emb.calls())
	assert.Equal(t, 2, c.Len())
}

func TestManyDistinctSetsStayBounded(t *testing.T) {
	emb := &counting{}
	c := New(emb.fn(), WithMaxEntries(8))
	ctx := context.Background()

	for i := range 100 {
		set := model.AnchorSet{Positive: []string{strings.Repeat("x", i+1)}}
		_, err := c.Embeddings(ctx, set)
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Len(), 8)
	}
}

func TestDegenerateSetWarnsOnEmbed(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	emb := &counting{}
	c := New(emb.fn())
	ctx := context.Background()
	set := model.AnchorSet{Positive: []string{"great"}, Negative: []string{"awful"}}

	for range 5 {
		_, err := c.Embeddings(ctx, set)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "degenerate anchor set"))
	assert.Contains(t, buf.String(), "class=neutral")

	buf.Reset()
	_, err := c.Embeddings(ctx, smallSet())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "degenerate anchor set")
}

// memStore is an in-memory Store.
type memStore struct {
	mu     sync.Mutex
	data   map[string]*model.AnchorEmbeddings
	getErr error
	setErr error
	sets   int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]*model.AnchorEmbeddings)}
}

func (s *memStore) Get(_ context.Context, key string) (*model.AnchorEmbeddings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	emb, ok := s.data[key]
	return emb, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, emb *model.AnchorEmbeddings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = emb
	return nil
}

func TestStoreWriteThroughAndHit(t *testing.T) {
	store := newMemStore()
	emb := &counting{}
	m := metrics.New(prometheus.NewRegistry())
	ctx := context.Background()

	_, err := New(emb.fn(), WithStore(store), WithMetrics(m)).Embeddings(ctx, smallSet())
	require.NoError(t, err)
	assert.Equal(t, 1, store.sets)
	assert.Contains(t, store.data, Key(smallSet()))

	// A second process sharing the store does not call the provider.
	other := New(emb.fn(), WithStore(store), WithMetrics(m))
	got, err := other.Embeddings(ctx, smallSet())
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls())
	assert.True(t, got.Matches(smallSet()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues(metrics.LayerStore)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues(metrics.LayerStore)))
}

func TestStoreFailuresDoNotFailCall(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	emb := &counting{}

	got, err := New(emb.fn(), WithStore(store)).Embeddings(context.Background(), smallSet())
	require.NoError(t, err)
	assert.True(t, got.Matches(smallSet()))
	assert.Equal(t, 1, emb.calls())
	assert.Equal(t, 1, store.sets)
}

func TestStoreShapeMismatchIgnored(t *testing.T) {
	store := newMemStore()
	store.data[Key(smallSet())] = &model.AnchorEmbeddings{Positive: []model.Vector{{1}}}
	emb := &counting{}

	got, err := New(emb.fn(), WithStore(store)).Embeddings(context.Background(), smallSet())
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls())
	assert.True(t, got.Matches(smallSet()))
}

func TestDefault(t *testing.T) {
	set := Default()
	assert.Len(t, set.Positive, 15)
	assert.Len(t, set.Negative, 15)
	assert.Len(t, set.Neutral, 20)

	set.Positive[0] = "mutated"
	assert.NotEqual(t, "mutated", Default().Positive[0])
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anchors.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"positive":["yay"],"negative":["boo"],"neutral":["meh","ok"]}`), 0o644))

	set, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"meh", "ok"}, set.Neutral)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = LoadFile(empty)
	assert.ErrorIs(t, err, ErrEmptySet)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[`), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
