package cacherefresh

import "github.com/prometheus/client_golang/prometheus"

// Metrics exported for tests.
var (
	PassesCounter    prometheus.Counter = passesCounter
	KeyErrorsCounter prometheus.Counter = keyErrorsCounter
	KeyMissesCounter prometheus.Counter = keyMissesCounter
)
