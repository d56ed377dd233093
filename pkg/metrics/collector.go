// Package metrics records blob read latency and size on a Prometheus registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadReporter receives the elapsed time and byte count of a completed read.
type ReadReporter interface {
	ReportReadLatency(elapsed time.Duration, bytes int64)
}

// Nop discards every report.
type Nop struct{}

func (Nop) ReportReadLatency(time.Duration, int64) {}

// Collector owns the read metrics of every mount served by the process.
type Collector struct {
	registry *prometheus.Registry

	readDuration *prometheus.HistogramVec
	readBytes    *prometheus.HistogramVec
	readCounter  *prometheus.CounterVec
}

// NewCollector creates a collector registered on its own registry.
func NewCollector(namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = "blobreader"
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		readDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "read_duration_seconds",
			Help:      "Time spent downloading a blob into memory",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"mount"}),
		readBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "read_bytes",
			Help:      "Size of downloaded blobs",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"mount"}),
		readCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Number of completed blob downloads",
		}, []string{"mount"}),
	}
	for _, m := range []prometheus.Collector{c.readDuration, c.readBytes, c.readCounter} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ForMount returns a reporter labelling every observation with mount.
func (c *Collector) ForMount(mount string) ReadReporter {
	return &mountReporter{
		duration: c.readDuration.WithLabelValues(mount),
		bytes:    c.readBytes.WithLabelValues(mount),
		count:    c.readCounter.WithLabelValues(mount),
	}
}

type mountReporter struct {
	duration prometheus.Observer
	bytes    prometheus.Observer
	count    prometheus.Counter
}

func (r *mountReporter) ReportReadLatency(elapsed time.Duration, n int64) {
	r.duration.Observe(elapsed.Seconds())
	r.bytes.Observe(float64(n))
	r.count.Inc()
}
