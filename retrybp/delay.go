package retrybp

import (
	"math"
	"math/rand"
	"time"

	retry "github.com/avast/retry-go"
)

// CappedExponentialBackoffArgs defines the args used in
// CappedExponentialBackoff retry option.
//
// All args are optional.
type CappedExponentialBackoffArgs struct {
	// The initial delay.
	// If <=0, retry.DefaultDelay will be used.
	// If retry.DefaultDelay <= 0, 1 nanosecond will be used.
	InitialDelay time.Duration

	// The cap of InitialDelay<<n, jitter excluded.
	// If <=0, only the exponent is capped.
	MaxDelay time.Duration

	// Max random jitter to be added to each retry delay.
	// If <=0, no random jitter will be added.
	MaxJitter time.Duration
}

// CappedExponentialBackoff is an exponentially backoff delay implementation
// that makes sure the delays are properly capped.
func CappedExponentialBackoff(args CappedExponentialBackoffArgs) retry.Option {
	return retry.DelayType(cappedExponentialBackoffFunc(args))
}

func cappedExponentialBackoffFunc(args CappedExponentialBackoffArgs) retry.DelayTypeFunc {
	base := args.InitialDelay
	if base <= 0 {
		base = retry.DefaultDelay
	}
	if base <= 0 {
		base = 1
	}
	// 1 << 63 would overflow signed int64, thus 62.
	maxExponent := uint(62 - int(math.Floor(math.Log2(float64(base)))))

	return func(n uint, _ error, _ *retry.Config) time.Duration {
		if n > maxExponent {
			n = maxExponent
		}
		delay := base << n
		if args.MaxDelay > 0 && delay > args.MaxDelay {
			delay = args.MaxDelay
		}
		if args.MaxJitter > 0 {
			jitter := time.Duration(rand.Int63n(int64(args.MaxJitter)))
			if delay > math.MaxInt64-jitter {
				return math.MaxInt64
			}
			delay += jitter
		}
		return delay
	}
}

// FixedDelay is a delay option to use fixed delay between retries.
func FixedDelay(delay time.Duration) retry.Option {
	return retry.DelayType(func(uint, error, *retry.Config) time.Duration {
		return delay
	})
}
