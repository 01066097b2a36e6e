package breakerbp

// CircuitBreaker guards the cache reads of redisbp.Cache.
//
// A nil CircuitBreaker means cache reads go straight to redis.
// FailureRatioBreaker is the implementation secureconfig.New wires from the
// breaker config.
type CircuitBreaker interface {
	// Execute runs fn unless the breaker is open, in which case it returns
	// the breaker error without calling fn.
	Execute(fn func() (interface{}, error)) (interface{}, error)
}
