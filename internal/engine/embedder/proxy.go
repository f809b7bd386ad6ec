package embedder

import (
	"context"

	"github.com/crimson-sun/anchorsense/internal/httpclient"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// Proxy calls another anchorsense instance's POST /api/embeddings endpoint.
type Proxy struct {
	client *httpclient.Client
	model  string
}

// NewProxy creates a Proxy embedder for the server at baseURL. An empty model
// lets the server choose.
func NewProxy(baseURL, token, model string, opts ...httpclient.Option) *Proxy {
	return &Proxy{client: httpclient.New(baseURL, token, opts...), model: model}
}

// EmbeddingsRequest is the body of POST /api/embeddings.
type EmbeddingsRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

// EmbeddingsResponse is the success body of POST /api/embeddings.
type EmbeddingsResponse struct {
	Embeddings []model.Vector `json:"embeddings"`
}

func (p *Proxy) Name() string { return "proxy" }

func (p *Proxy) Embed(ctx context.Context, text string) (model.Vector, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *Proxy) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp EmbeddingsResponse
	if err := p.client.PostJSON(ctx, "/api/embeddings", EmbeddingsRequest{Texts: texts, Model: p.model}, &resp); err != nil {
		return nil, providerError(p.Name(), err)
	}
	if err := CheckCount(p.Name(), len(texts), resp.Embeddings); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (p *Proxy) Close() error { return nil }
