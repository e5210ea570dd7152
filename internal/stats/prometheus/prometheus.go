// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

// Collector implements stats.Collector using Prometheus metrics. Metrics are
// created and registered on first use.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

var _ stats.Collector = (*Collector)(nil)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	counter := lookup(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: stats.Help(name)})
	})
	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	gauge := lookup(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: stats.Help(name)})
	})
	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := lookup(c, c.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    stats.Help(name),
			Buckets: buckets(name),
		})
	})
	histogram.Observe(value)
}

// buckets picks histogram buckets from the metric's unit suffix.
func buckets(name string) []float64 {
	switch {
	case strings.HasSuffix(name, "_bytes"):
		// 256 B .. 4 MiB
		return prometheus.ExponentialBuckets(256, 4, 8)
	case strings.HasSuffix(name, "_seconds"):
		// 100 µs .. ~1.6 s
		return prometheus.ExponentialBuckets(0.0001, 4, 8)
	default:
		return prometheus.DefBuckets
	}
}

// lookup returns the metric registered under name, creating and registering
// it with newMetric if needed. When the registry already holds a metric of
// the same name and type, that one is reused.
func lookup[M prometheus.Collector](c *Collector, m map[string]M, name string, newMetric func() M) M {
	c.mu.RLock()
	metric, ok := m[name]
	c.mu.RUnlock()
	if ok {
		return metric
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if metric, ok = m[name]; ok {
		return metric
	}

	metric = newMetric()
	if err := c.registry.Register(metric); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				metric = existing
			}
		}
		// Otherwise the metric still works, it is just not exported.
	}
	m[name] = metric
	return metric
}
