package retrybp

import (
	"context"
	"errors"
	"net"

	retry "github.com/avast/retry-go"
	"github.com/sony/gobreaker"
)

// DefaultFilterDecision is the decision returned when no Filter in the chain
// made one.
const DefaultFilterDecision = false

func fallback(error) bool {
	return DefaultFilterDecision
}

func chain(current Filter, next retry.RetryIfFunc) retry.RetryIfFunc {
	return func(err error) bool {
		return current(err, next)
	}
}

// Filters returns a retry.RetryIf option running err through filters in
// order.
//
// Don't combine it with other retry.RetryIf options, the last one wins.
func Filters(filters ...Filter) retry.Option {
	retryIf := retry.RetryIfFunc(fallback)
	for i := len(filters) - 1; i >= 0; i-- {
		retryIf = chain(filters[i], retryIf)
	}
	return retry.RetryIf(retryIf)
}

// Filter decides whether err should be retried, or defers to next.
type Filter func(err error, next retry.RetryIfFunc) bool

// ContextErrorFilter never retries context.Canceled and
// context.DeadlineExceeded.
func ContextErrorFilter(err error, next retry.RetryIfFunc) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return next(err)
}

// NetworkErrorFilter retries every net.Error that is not a deadline.
//
// Only use it for idempotent calls.
func NetworkErrorFilter(err error, next retry.RetryIfFunc) bool {
	if !errors.Is(err, context.DeadlineExceeded) && errors.As(err, new(net.Error)) {
		return true
	}
	return next(err)
}

// BreakerErrorFilter retries the errors of an open or half-open breakerbp
// breaker. Only use it together with a backoff.
func BreakerErrorFilter(err error, next retry.RetryIfFunc) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	return next(err)
}

// RetryableError is an error knowing whether it's worth retrying.
type RetryableError interface {
	error

	// Retryable returns >0 for retryable errors, <0 for errors that are not,
	// and 0 to leave the decision to the next filter.
	Retryable() int
}

// RetryableErrorFilter uses RetryableError when err implements it, and also
// honors retry.Unrecoverable.
//
// Put it first in the chain so that Unrecoverable overrides other filters.
func RetryableErrorFilter(err error, next retry.RetryIfFunc) bool {
	var re RetryableError
	if errors.As(err, &re) {
		if v := re.Retryable(); v != 0 {
			return v > 0
		}
	} else if !retry.IsRecoverable(err) {
		return false
	}
	return next(err)
}

type unrecoverable struct {
	error
}

func (e unrecoverable) Unwrap() error {
	return e.error
}

func (unrecoverable) Retryable() int {
	return -1
}

// Unrecoverable marks err as not retryable while keeping it unwrappable.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return unrecoverable{err}
}

var (
	_ Filter = ContextErrorFilter
	_ Filter = NetworkErrorFilter
	_ Filter = RetryableErrorFilter
	_ Filter = BreakerErrorFilter

	_ RetryableError = unrecoverable{}
)
