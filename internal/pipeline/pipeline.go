// Package pipeline reads reviews line by line, classifies them in batches and
// writes the results to an output.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/crimson-sun/anchorsense/internal/engine"
	"github.com/crimson-sun/anchorsense/internal/model"
	"github.com/crimson-sun/anchorsense/internal/output"
)

// DefaultBatchSize is the number of texts classified per provider call.
const DefaultBatchSize = 64

// maxLineSize bounds a single review line.
const maxLineSize = 1 << 20

// Pipeline connects a line reader, the engine and an output.
type Pipeline struct {
	engine    *engine.Engine
	output    output.Output
	anchors   model.AnchorSet
	batchSize int
}

// Stats summarizes a Run.
type Stats struct {
	Lines      int // lines read
	Skipped    int // blank lines
	Classified int
	Batches    int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many texts are classified together.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a Pipeline classifying against anchors.
func New(eng *engine.Engine, out output.Output, anchors model.AnchorSet, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:    eng,
		output:    out,
		anchors:   anchors,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run classifies every non-blank line of r. Review indexes count classified
// texts from zero across the whole input. Run stops at the first failed batch
// or when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var st Stats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	batch := make([]string, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.process(ctx, batch, st.Classified); err != nil {
			return err
		}
		st.Classified += len(batch)
		st.Batches++
		batch = batch[:0]
		return nil
	}

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Lines++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			st.Skipped++
			continue
		}
		batch = append(batch, text)
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return st, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("pipeline read: %w", err)
	}
	if err := flush(); err != nil {
		return st, err
	}

	slog.Info("classification complete",
		"lines", st.Lines,
		"classified", st.Classified,
		"skipped", st.Skipped,
		"batches", st.Batches,
	)
	return st, nil
}

func (p *Pipeline) process(ctx context.Context, texts []string, offset int) error {
	reviews, err := p.engine.ClassifyAll(ctx, texts, p.anchors)
	if err != nil {
		return fmt.Errorf("pipeline classify: %w", err)
	}
	for _, rv := range reviews {
		rv.Index += offset
		if err := p.output.Write(ctx, rv); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
	}
	return nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
