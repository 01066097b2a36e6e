package promtest

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/reddit/secureconfig.go/errorsbp"
)

var (
	errPrefix         = errors.New("the prefix is not at the beginning of the metric name")
	errLength         = errors.New("metric name should have a minimum of 3 parts, like prefix_name_suffix")
	errCount          = errors.New("wrong metric count for prefix")
	errPrometheusLint = errors.New("problem with Prometheus GatherAndLint")
)

// ValidateSpec validates the naming of every metric in the default registry
// starting with metricPrefix, and that there are wantMetricCount of them.
//
// Vector metrics are only gathered once they have at least one child.
func ValidateSpec(t *testing.T, metricPrefix string, wantMetricCount int) {
	t.Helper()
	if err := validateSpec(prometheus.DefaultGatherer, metricPrefix, wantMetricCount); err != nil {
		t.Error(err)
	}
}

func validateSpec(gatherer prometheus.Gatherer, metricPrefix string, wantMetricCount int) error {
	var batch errorsbp.Batch

	families, err := gatherer.Gather()
	if err != nil {
		return err
	}

	var count int
	for _, m := range families {
		name := m.GetName()
		if !strings.HasPrefix(name, metricPrefix) {
			continue
		}
		count++
		batch.Add(validateName(name, metricPrefix))
		batch.Add(validatePromLint(gatherer, name))
	}
	if count != wantMetricCount {
		batch.Add(fmt.Errorf("%w: got %d, want %d", errCount, count, wantMetricCount))
	}
	return batch.Compile()
}

// validateName checks that the metric name has the prefix and at least 3
// parts, <namespace>_<metric>_<suffix>.
// Ref: https://prometheus.io/docs/practices/naming
func validateName(name, prefix string) error {
	const metricPartSeparator = "_"
	var batch errorsbp.Batch
	if parts := strings.Split(name, metricPartSeparator); len(parts) < 3 {
		batch.Add(fmt.Errorf("%w: got %d", errLength, len(parts)))
	}
	if !strings.HasPrefix(name, prefix+metricPartSeparator) {
		batch.Add(fmt.Errorf("%w: got %s, want prefix %s", errPrefix, name, prefix+metricPartSeparator))
	}
	return batch.Compile()
}

func validatePromLint(gatherer prometheus.Gatherer, metricName string) error {
	var batch errorsbp.Batch
	problems, err := testutil.GatherAndLint(gatherer, metricName)
	if err != nil {
		batch.Add(err)
	}
	for _, p := range problems {
		batch.Add(fmt.Errorf("%w: metric %s, problem %s", errPrometheusLint, metricName, p.Text))
	}
	return batch.Compile()
}
