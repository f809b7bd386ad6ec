package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/anchorsense/internal/model"
)

// Embedder produces vector embeddings from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error)
	Close() error
}

// Named is implemented by embedders that report a provider name for logs
// and metrics.
type Named interface {
	Name() string
}

// NameOf returns e's provider name, or "custom" when it does not report one.
func NameOf(e Embedder) string {
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return "custom"
}

// ProviderError reports a failed call to an embedding provider. The provider's
// own message is kept verbatim.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when the failure happened before a response
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding provider %s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embedding provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError returns err unchanged when it already carries a
// *ProviderError, and wraps it in one otherwise.
func AsProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}

// CheckCount verifies that a provider returned exactly one vector per input.
func CheckCount(provider string, want int, got []model.Vector) error {
	if len(got) != want {
		return &ProviderError{
			Provider: provider,
			Message:  fmt.Sprintf("expected %d embeddings, got %d", want, len(got)),
		}
	}
	return nil
}

// BatchFunc adapts a plain batch embedding function to the Embedder interface.
type BatchFunc func(ctx context.Context, texts []string) ([]model.Vector, error)

func (f BatchFunc) Embed(ctx context.Context, text string) (model.Vector, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f BatchFunc) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := f(ctx, texts)
	if err != nil {
		return nil, AsProviderError("func", err)
	}
	if err := CheckCount("func", len(texts), vecs); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (f BatchFunc) Close() error { return nil }

func (f BatchFunc) Name() string { return "func" }
