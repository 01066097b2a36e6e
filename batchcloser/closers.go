// Package batchcloser provides an io.Closer that owns and closes other
// io.Closers.
package batchcloser

import (
	"context"
	"fmt"
	"io"

	"github.com/reddit/secureconfig.go/errorsbp"
)

// CloseError wraps an error returned by one of the closers in a BatchCloser.
type CloseError struct {
	Cause  error
	Closer io.Closer
}

func (err CloseError) Error() string {
	return fmt.Sprintf("batchcloser: closing %T: %v", err.Closer, err.Cause)
}

// Unwrap returns the cause.
func (err CloseError) Unwrap() error {
	return err.Cause
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// Wrap wraps a close function into an io.Closer.
func Wrap(close func() error) io.Closer {
	return closerFunc(close)
}

// WrapCancel wraps a context.CancelFunc into an io.Closer.
func WrapCancel(cancel context.CancelFunc) io.Closer {
	return Wrap(func() error {
		cancel()
		return nil
	})
}

// BatchCloser closes all the io.Closers added to it.
//
// Closers are closed in the reverse order they were added,
// so resources depending on earlier ones are released first.
type BatchCloser struct {
	closers []io.Closer
}

// New returns a BatchCloser initialized with the given closers.
func New(closers ...io.Closer) *BatchCloser {
	bc := &BatchCloser{}
	bc.Add(closers...)
	return bc
}

// Add adds closers. Nil closers are ignored.
//
// It's not safe to be called concurrently.
func (bc *BatchCloser) Add(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			bc.closers = append(bc.closers, c)
		}
	}
}

// Close closes every closer, even when some of them fail,
// and returns the failures as an errorsbp.Batch of CloseError.
func (bc *BatchCloser) Close() error {
	var batch errorsbp.Batch
	for i := len(bc.closers) - 1; i >= 0; i-- {
		c := bc.closers[i]
		if err := c.Close(); err != nil {
			batch.Add(CloseError{Cause: err, Closer: c})
		}
	}
	bc.closers = nil
	return batch.Compile()
}

var (
	_ error     = CloseError{}
	_ io.Closer = closerFunc(nil)
	_ io.Closer = (*BatchCloser)(nil)
)
