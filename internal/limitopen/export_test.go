package limitopen

import (
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

func SizeGauge(path string) prometheus.Gauge {
	return sizeGauge.With(prometheus.Labels{pathLabel: filepath.Base(path)})
}
