package breakerbp

import "github.com/prometheus/client_golang/prometheus"

// BreakerClosed is exported for tests.
var BreakerClosed *prometheus.GaugeVec = breakerClosed
