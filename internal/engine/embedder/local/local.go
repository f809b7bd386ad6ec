// Package local embeds text in-process with a BERT-style ONNX encoder,
// mean pooling and an optional dense projection.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// File names expected inside the model directory.
const (
	ModelFile   = "model_quantized.onnx"
	VocabFile   = "vocab.txt"
	DenseFile   = "2_Dense/model.safetensors"
	RuntimeFile = "libonnxruntime.so"
)

// Provider implements embedder.Embedder with local inference.
type Provider struct {
	sess *session
	tok  *wordpiece
	proj *dense // nil when the model directory has no dense layer

	mu sync.Mutex // serializes inference
}

type options struct {
	maxSeqLen int
	threads   int
	tensor    string
}

// Option configures a Provider.
type Option func(*options)

// WithMaxSeqLen caps tokenized sequence length.
func WithMaxSeqLen(n int) Option {
	return func(o *options) { o.maxSeqLen = n }
}

// WithThreads sets the intra-op thread count.
func WithThreads(n int) Option {
	return func(o *options) { o.threads = n }
}

// WithDenseTensor names the projection tensor in the safetensors file.
func WithDenseTensor(name string) Option {
	return func(o *options) { o.tensor = name }
}

// New loads the model, vocabulary and optional projection from dir.
func New(dir string, opts ...Option) (*Provider, error) {
	o := options{maxSeqLen: DefaultMaxSeqLen, threads: 4, tensor: DefaultDenseTensor}
	for _, fn := range opts {
		fn(&o)
	}

	tok, err := loadWordpiece(filepath.Join(dir, VocabFile), o.maxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("local embedder: %w", err)
	}

	var proj *dense
	densePath := filepath.Join(dir, DenseFile)
	if _, err := os.Stat(densePath); err == nil {
		if proj, err = loadDense(densePath, o.tensor); err != nil {
			return nil, fmt.Errorf("local embedder: %w", err)
		}
	}

	sess, err := openSession(filepath.Join(dir, ModelFile), filepath.Join(dir, RuntimeFile), o.threads)
	if err != nil {
		return nil, fmt.Errorf("local embedder: %w", err)
	}
	if proj != nil && int64(proj.in) != sess.dim {
		sess.close()
		return nil, fmt.Errorf("local embedder: encoder dim %d != projection input dim %d", sess.dim, proj.in)
	}

	return &Provider{sess: sess, tok: tok, proj: proj}, nil
}

// Name implements embedder.Named.
func (p *Provider) Name() string { return "onnx" }

// Dim returns the output embedding size.
func (p *Provider) Dim() int {
	if p.proj != nil {
		return p.proj.out
	}
	return int(p.sess.dim)
}

func (p *Provider) Embed(ctx context.Context, text string) (model.Vector, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := p.tok.encodeBatch(texts)

	p.mu.Lock()
	hidden, err := p.sess.run(b)
	p.mu.Unlock()
	if err != nil {
		return nil, &embedder.ProviderError{Provider: p.Name(), Message: err.Error(), Err: err}
	}

	pooled := meanPool(hidden, b, p.sess.dim)
	out := make([]model.Vector, len(pooled))
	for i, v := range pooled {
		if p.proj != nil {
			v = p.proj.apply(v)
		}
		out[i] = v
	}
	return out, nil
}

func (p *Provider) Close() error {
	if p.sess == nil {
		return nil
	}
	return p.sess.close()
}
