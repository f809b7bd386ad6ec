package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/anchorsense/internal/model"
)

func TestOpenAIEmbedBatch(t *testing.T) {
	var req openAIRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Out of order on purpose; results are matched by index.
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL+"/v1", "sk-test", "")
	vecs, err := o.EmbedBatch(context.Background(), []string{"great", "okay"})
	require.NoError(t, err)

	assert.Equal(t, []model.Vector{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, []string{"great", "okay"}, req.Input)
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "openai", o.Name())
}

func TestOpenAIProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "bad", "m").Embed(context.Background(), "x")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "Incorrect API key provided", pe.Message)
}

func TestOpenAIWrongCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "k", "m").EmbedBatch(context.Background(), []string{"a", "b"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "expected 2 embeddings, got 1")
}

func TestProxyEmbedBatch(t *testing.T) {
	var req EmbeddingsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(EmbeddingsResponse{Embeddings: []model.Vector{{0.5, 0.5}}})
	}))
	defer srv.Close()

	p := NewProxy(srv.URL, "", "custom-model")
	v, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, model.Vector{0.5, 0.5}, v)
	assert.Equal(t, []string{"hello"}, req.Texts)
	assert.Equal(t, "custom-model", req.Model)
}

func TestProxyErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"texts array is required and must not be empty"}`))
	}))
	defer srv.Close()

	_, err := NewProxy(srv.URL, "", "").EmbedBatch(context.Background(), []string{"x"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "texts array is required and must not be empty", pe.Message)
}

func TestProviderTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewProxy(url, "", "").EmbedBatch(context.Background(), []string{"x"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, pe.StatusCode)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body, want string
	}{
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"error":"flat"}`, "flat"},
		{`upstream exploded`, "upstream exploded"},
		{"  ", "empty error response"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorMessage(tt.body), tt.body)
	}
}
