// Package output delivers classified reviews to their destinations.
package output

import (
	"context"
	"errors"

	"github.com/crimson-sun/anchorsense/internal/model"
)

// Output defines the interface for classified review destinations.
type Output interface {
	Write(ctx context.Context, review model.Review) error
	Close() error
}

// Fanout delivers each review to several outputs. A failing output does not
// stop delivery to the others; all errors are joined.
type Fanout []Output

// Tee returns a Fanout over the non-nil outputs, or the output itself when
// only one remains.
func Tee(outputs ...Output) Output {
	var f Fanout
	for _, o := range outputs {
		if o != nil {
			f = append(f, o)
		}
	}
	if len(f) == 1 {
		return f[0]
	}
	return f
}

func (f Fanout) Write(ctx context.Context, review model.Review) error {
	var errs []error
	for _, o := range f {
		if err := o.Write(ctx, review); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, o := range f {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
