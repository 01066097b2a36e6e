// Package promtest provides helpers for testing prometheus metrics.
package promtest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// PrometheusMetricTest stores information about a metric to use for testing.
type PrometheusMetricTest struct {
	tb        testing.TB
	metric    prometheus.Collector
	name      string
	initValue float64
	labels    prometheus.Labels
}

// CheckDelta checks that the metric value changes exactly delta from when
// NewPrometheusMetricTest was called.
func (p *PrometheusMetricTest) CheckDelta(delta float64) {
	p.tb.Helper()
	got := p.getValue() - p.initValue
	if got != delta {
		p.tb.Errorf("%s metric delta: wanted %v, got %v", p.name, delta, got)
	}
}

// CheckExists confirms that exactly one metric is collected.
func (p *PrometheusMetricTest) CheckExists() {
	p.tb.Helper()
	if got := testutil.CollectAndCount(p.metric); got != 1 {
		p.tb.Errorf("%s metric count: wanted %v, got %v", p.name, 1, got)
	}
}

// NewPrometheusMetricTest creates a new test object for a Prometheus metric,
// storing its current value.
//
// labels selects the child of vector metrics, and is ignored otherwise.
func NewPrometheusMetricTest(tb testing.TB, name string, metric prometheus.Collector, labels prometheus.Labels) *PrometheusMetricTest {
	tb.Helper()
	p := &PrometheusMetricTest{
		tb:     tb,
		metric: metric,
		name:   name,
		labels: labels,
	}
	p.initValue = p.getValue()
	return p
}

func (p *PrometheusMetricTest) getValue() float64 {
	p.tb.Helper()
	switch m := p.metric.(type) {
	case *prometheus.GaugeVec:
		gauge, err := m.GetMetricWith(p.labels)
		if err != nil {
			p.tb.Fatalf("get %s metric err %v", p.name, err)
		}
		return testutil.ToFloat64(gauge)
	case *prometheus.CounterVec:
		counter, err := m.GetMetricWith(p.labels)
		if err != nil {
			p.tb.Fatalf("get %s metric err %v", p.name, err)
		}
		return testutil.ToFloat64(counter)
	case prometheus.Counter, prometheus.Gauge:
		return testutil.ToFloat64(m)
	default:
		p.tb.Fatalf("not supported type %T", m)
		return 0
	}
}
