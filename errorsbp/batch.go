// Package errorsbp provides Batch, which compiles multiple errors into a
// single one.
//
// It's mostly used at teardown, where every resource should be released even
// when some of them fail, and in validation code that wants to report every
// problem found in one pass.
//
// A Batch is not thread-safe.
package errorsbp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	_ error = Batch{}
	_ error = (*Batch)(nil)
)

// Batch is an error that can contain multiple errors.
//
// The zero value is ready to use.
type Batch struct {
	errors []error
}

func (b Batch) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "errorsbp.Batch: %d error(s)", len(b.errors))
	for i, err := range b.errors {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Len returns the number of errors in the batch.
func (b Batch) Len() int {
	return len(b.errors)
}

// Add adds non-nil errors into the batch.
//
// When an error is itself a Batch its underlying errors are added instead,
// so a Batch never contains another Batch.
func (b *Batch) Add(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		var inner Batch
		if errors.As(err, &inner) {
			b.errors = append(b.errors, inner.errors...)
			continue
		}
		b.errors = append(b.errors, err)
	}
}

// AddPrefix is Add with every added error message prefixed by "prefix: ".
//
// The original errors are still reachable through errors.Is and errors.As.
func (b *Batch) AddPrefix(prefix string, errs ...error) {
	if prefix == "" {
		b.Add(errs...)
		return
	}
	var tmp Batch
	tmp.Add(errs...)
	for _, err := range tmp.errors {
		b.errors = append(b.errors, &prefixedError{
			msg: prefix + ": " + err.Error(),
			err: err,
		})
	}
}

// Compile returns nil for an empty batch, the only error for a batch of one,
// and the batch itself otherwise.
func (b Batch) Compile() error {
	switch len(b.errors) {
	case 0:
		return nil
	case 1:
		return b.errors[0]
	default:
		return b
	}
}

// GetErrors returns a copy of the underlying errors.
func (b Batch) GetErrors() []error {
	errs := make([]error, len(b.errors))
	copy(errs, b.errors)
	return errs
}

// Is reports whether any error in the batch matches target.
func (b Batch) Is(target error) bool {
	for _, err := range b.errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As sets v to the batch itself when v is a *Batch,
// otherwise to the first error in the batch that matches.
func (b Batch) As(v interface{}) bool {
	if target, ok := v.(*Batch); ok {
		*target = b
		return true
	}
	for _, err := range b.errors {
		if errors.As(err, v) {
			return true
		}
	}
	return false
}

// We don't use fmt.Errorf(prefix+": %w") because prefix could contain verbs.
type prefixedError struct {
	msg string
	err error
}

func (e *prefixedError) Error() string {
	return e.msg
}

func (e *prefixedError) Unwrap() error {
	return e.err
}

// BatchSize returns the number of errors carried by err:
// Len for a Batch, 1 for any other non-nil error and 0 for nil.
func BatchSize(err error) int {
	if err == nil {
		return 0
	}
	var b Batch
	if errors.As(err, &b) {
		return b.Len()
	}
	return 1
}
