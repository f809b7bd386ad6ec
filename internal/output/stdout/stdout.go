package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/anchorsense/internal/model"
)

// Output writes one JSON review per line (NDJSON), or indented JSON when
// pretty is set.
type Output struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// New creates an Output on os.Stdout.
func New(pretty bool) *Output {
	return NewWriter(os.Stdout, pretty)
}

// NewWriter creates an Output on w.
func NewWriter(w io.Writer, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{enc: enc}
}

func (o *Output) Write(_ context.Context, review model.Review) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(review); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
