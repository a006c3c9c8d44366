package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DBPoolStatFunc returns database pool statistics without importing
// pgxpool. acquireWait is the cumulative time callers spent waiting for a
// connection; a climbing rate means the pool is undersized for the
// roster/role query load.
type DBPoolStatFunc func() (total, idle, acquired int32, acquireWait time.Duration)

// dbPoolCollector implements prometheus.Collector for DB pool stats.
type dbPoolCollector struct {
	statFunc DBPoolStatFunc

	totalDesc       *prometheus.Desc
	idleDesc        *prometheus.Desc
	acquiredDesc    *prometheus.Desc
	acquireWaitDesc *prometheus.Desc
}

// NewDBPoolCollector creates a new collector that exposes DB pool gauges.
func NewDBPoolCollector(statFunc DBPoolStatFunc) prometheus.Collector {
	return &dbPoolCollector{
		statFunc: statFunc,
		totalDesc: prometheus.NewDesc(
			"courtside_db_pool_total_conns",
			"Total number of connections in the DB pool.",
			nil, nil,
		),
		idleDesc: prometheus.NewDesc(
			"courtside_db_pool_idle_conns",
			"Number of idle connections in the DB pool.",
			nil, nil,
		),
		acquiredDesc: prometheus.NewDesc(
			"courtside_db_pool_acquired_conns",
			"Number of acquired connections in the DB pool.",
			nil, nil,
		),
		acquireWaitDesc: prometheus.NewDesc(
			"courtside_db_pool_acquire_wait_seconds_total",
			"Cumulative time spent waiting to acquire a DB pool connection.",
			nil, nil,
		),
	}
}

// Describe sends the descriptors of each metric to the channel.
func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalDesc
	ch <- c.idleDesc
	ch <- c.acquiredDesc
	ch <- c.acquireWaitDesc
}

// Collect fetches pool stats and sends them as metrics.
func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	total, idle, acquired, acquireWait := c.statFunc()
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(total))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(idle))
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(acquired))
	ch <- prometheus.MustNewConstMetric(c.acquireWaitDesc, prometheus.CounterValue, acquireWait.Seconds())
}
