// Package retrybp wraps github.com/avast/retry-go with defaults and error
// filters suited to connecting to backing services at startup.
package retrybp

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go"

	"github.com/reddit/secureconfig.go/errorsbp"
)

func init() {
	retry.DefaultAttempts = 1
	retry.DefaultDelay = 1 * time.Millisecond
	retry.DefaultMaxJitter = 5 * time.Millisecond
	retry.DefaultDelayType = cappedExponentialBackoffFunc(CappedExponentialBackoffArgs{
		InitialDelay: retry.DefaultDelay,
		MaxJitter:    retry.DefaultMaxJitter,
	})
	retry.DefaultLastErrorOnly = false
}

// Config is the yaml friendly retry policy.
//
// The zero value makes a single attempt.
type Config struct {
	// Total number of attempts, including the first one.
	Attempts uint `yaml:"attempts"`

	// Delay before the first retry, doubled on every later retry.
	InitialDelay time.Duration `yaml:"initialDelay"`

	// Cap of the delay, jitter excluded. Optional.
	MaxDelay time.Duration `yaml:"maxDelay"`

	// Optional random jitter added to every delay.
	MaxJitter time.Duration `yaml:"maxJitter"`
}

// Options returns the retry.Options implementing c.
//
// Context errors are never retried.
func (c Config) Options() []retry.Option {
	attempts := c.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return []retry.Option{
		retry.Attempts(attempts),
		CappedExponentialBackoff(CappedExponentialBackoffArgs{
			InitialDelay: c.InitialDelay,
			MaxDelay:     c.MaxDelay,
			MaxJitter:    c.MaxJitter,
		}),
		Filters(ContextErrorFilter, RetryableErrorFilter, retryAll),
	}
}

func retryAll(error, retry.RetryIfFunc) bool {
	return true
}

type contextKeyType struct{}

var contextKey contextKeyType

// WithOptions sets the given retry.Options on the given context.
func WithOptions(ctx context.Context, options ...retry.Option) context.Context {
	return context.WithValue(ctx, contextKey, options)
}

// GetOptions returns the list of retry.Options set on the context.
func GetOptions(ctx context.Context) (options []retry.Option, ok bool) {
	options, ok = ctx.Value(contextKey).([]retry.Option)
	return
}

// Do calls fn with retry.Do.
//
// The options are applied in this order, later ones winning:
// retry.Context(ctx), defaults, then the options attached to ctx with
// WithOptions.
//
// When more than one attempt failed, the returned error is an errorsbp.Batch
// of every attempt's error instead of a retry.Error.
func Do(ctx context.Context, fn func() error, defaults ...retry.Option) error {
	options, _ := GetOptions(ctx)
	mergedOptions := make([]retry.Option, 1, 1+len(defaults)+len(options))
	mergedOptions[0] = retry.Context(ctx)
	mergedOptions = append(mergedOptions, defaults...)
	mergedOptions = append(mergedOptions, options...)
	err := retry.Do(fn, mergedOptions...)

	var retryErr retry.Error
	if errors.As(err, &retryErr) {
		var batchErr errorsbp.Batch
		batchErr.Add(retryErr.WrappedErrors()...)
		return batchErr.Compile()
	}

	return err
}
