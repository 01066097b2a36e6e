package redisbp

import (
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	promNamespace = "redisbp"
	subsystemPool = "pool"

	poolLabel = "pool"
)

// PoolStatser is implemented by redis clients reporting pool stats.
type PoolStatser interface {
	PoolStats() *redis.PoolStats
}

var (
	poolHitsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(promNamespace, subsystemPool, "hits_total"),
		"Number of times free connection was found in the pool",
		[]string{poolLabel},
		nil,
	)
	poolMissesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(promNamespace, subsystemPool, "misses_total"),
		"Number of times free connection was NOT found in the pool",
		[]string{poolLabel},
		nil,
	)
	poolTimeoutsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(promNamespace, subsystemPool, "timeouts_total"),
		"Number of times a wait timeout occurred",
		[]string{poolLabel},
		nil,
	)
	totalConnectionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(promNamespace, subsystemPool, "connections"),
		"Number of connections in the pool",
		[]string{poolLabel},
		nil,
	)
	idleConnectionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(promNamespace, subsystemPool, "idle_connections"),
		"Number of idle connections in the pool",
		[]string{poolLabel},
		nil,
	)
)

// poolCollector is an unchecked prometheus.Collector of the pool stats of
// every monitored client.
//
// Clients are tracked by name, a client registered under a name already in
// use replaces the previous one.
type poolCollector struct {
	mu      sync.Mutex
	clients map[string]PoolStatser
}

var pools = &poolCollector{clients: make(map[string]PoolStatser)}

func init() {
	prometheus.MustRegister(pools)
}

func (c *poolCollector) add(name string, client PoolStatser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[name] = client
}

// remove stops tracking name, unless it was replaced by another client.
func (c *poolCollector) remove(name string, client PoolStatser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients[name] == client {
		delete(c.clients, name)
	}
}

// Describe implements prometheus.Collector.
func (*poolCollector) Describe(chan<- *prometheus.Desc) {
	// All metrics are described dynamically.
}

// Collect implements prometheus.Collector.
func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, client := range c.clients {
		stats := client.PoolStats()
		ch <- prometheus.MustNewConstMetric(poolHitsDesc, prometheus.CounterValue, float64(stats.Hits), name)
		ch <- prometheus.MustNewConstMetric(poolMissesDesc, prometheus.CounterValue, float64(stats.Misses), name)
		ch <- prometheus.MustNewConstMetric(poolTimeoutsDesc, prometheus.CounterValue, float64(stats.Timeouts), name)
		ch <- prometheus.MustNewConstMetric(totalConnectionsDesc, prometheus.GaugeValue, float64(stats.TotalConns), name)
		ch <- prometheus.MustNewConstMetric(idleConnectionsDesc, prometheus.GaugeValue, float64(stats.IdleConns), name)
	}
}
