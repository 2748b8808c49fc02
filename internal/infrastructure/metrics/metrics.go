// Package metrics exposes repository operations to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-specstore/internal/device"
)

const metricPrefix = "specstore_"

// Metrics holds the store's collectors. It implements device.Observer.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	storeUp    prometheus.Gauge
}

var _ device.Observer = (*Metrics)(nil)

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Total repository operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_duration_seconds",
				Help:    "Repository operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "store_up",
				Help: "1 when the last store health check succeeded",
			},
		),
	}

	m.registry.MustRegister(
		m.operations,
		m.latency,
		m.storeUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation counts the operation and records its latency.
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, device.Outcome(err)).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetStoreUp records the result of a store health check.
func (m *Metrics) SetStoreUp(up bool) {
	if up {
		m.storeUp.Set(1)
		return
	}
	m.storeUp.Set(0)
}

// StoreStat is a storage engine value sampled at scrape time. It is exported
// as specstore_store_<Name>.
type StoreStat struct {
	Name    string
	Help    string
	Counter bool
	Value   func() float64
}

// RegisterStoreStats adds engine stats to the registry.
func (m *Metrics) RegisterStoreStats(stats ...StoreStat) error {
	for _, st := range stats {
		name := metricPrefix + "store_" + st.Name
		var c prometheus.Collector
		if st.Counter {
			c = prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: st.Help}, st.Value)
		} else {
			c = prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: st.Help}, st.Value)
		}
		if err := m.registry.Register(c); err != nil {
			return fmt.Errorf("registering %s: %w", name, err)
		}
	}
	return nil
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
