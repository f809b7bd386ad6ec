package embedder

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/crimson-sun/anchorsense/internal/httpclient"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// DefaultModel is the embedding model requested when none is configured.
const DefaultModel = "text-embedding-3-large"

// DefaultOpenAIURL is the base URL of the OpenAI API.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAI calls an OpenAI-compatible POST {base}/embeddings endpoint.
type OpenAI struct {
	client *httpclient.Client
	model  string
}

// NewOpenAI creates an OpenAI embedder. An empty model uses DefaultModel.
func NewOpenAI(baseURL, apiKey, model string, opts ...httpclient.Option) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: httpclient.New(baseURL, apiKey, opts...), model: model}
}

type openAIRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedding struct {
	Index     int          `json:"index"`
	Embedding model.Vector `json:"embedding"`
}

type openAIResponse struct {
	Data []openAIEmbedding `json:"data"`
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Embed(ctx context.Context, text string) (model.Vector, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp openAIResponse
	if err := o.client.PostJSON(ctx, "/embeddings", openAIRequest{Input: texts, Model: o.model}, &resp); err != nil {
		return nil, providerError(o.Name(), err)
	}

	slices.SortFunc(resp.Data, func(a, b openAIEmbedding) int {
		return cmp.Compare(a.Index, b.Index)
	})
	vecs := make([]model.Vector, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	if err := CheckCount(o.Name(), len(texts), vecs); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (o *OpenAI) Close() error { return nil }

// providerError converts a transport failure into a *ProviderError, keeping
// the provider's own error message when the body carries one.
func providerError(provider string, err error) error {
	var apiErr *httpclient.APIError
	if !errors.As(err, &apiErr) {
		return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: apiErr.StatusCode,
		Message:    errorMessage(apiErr.Body),
		Err:        err,
	}
}

// errorMessage extracts "error.message" or "error" from a JSON error body,
// falling back to the raw body.
func errorMessage(body string) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(body), &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	if body = strings.TrimSpace(body); body == "" {
		return "empty error response"
	}
	return body
}
