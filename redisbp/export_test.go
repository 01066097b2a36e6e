package redisbp

import "github.com/prometheus/client_golang/prometheus"

// RequestsTotal is exported for tests.
var RequestsTotal *prometheus.CounterVec = requestsTotal

// TrackedPool reports whether a client named name reports pool metrics.
func TrackedPool(name string) bool {
	pools.mu.Lock()
	defer pools.mu.Unlock()
	_, ok := pools.clients[name]
	return ok
}
