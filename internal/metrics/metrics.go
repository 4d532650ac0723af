// Package metrics exposes delivery counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maintenance_push"

// Metrics implements service.Observer on top of Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry
	sends    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	removed  *prometheus.CounterVec
	purged   prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_sends_total",
			Help:      "Push provider calls by recipient type and result code.",
		}, []string{"user_type", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_send_duration_seconds",
			Help:      "Latency of a single push provider call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"user_type"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_tokens_removed_total",
			Help:      "Tokens deleted after a permanent provider failure.",
		}, []string{"user_type"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_tokens_purged_total",
			Help:      "Malformed tokens deleted by the cleanup sweep.",
		}),
	}
	reg.MustRegister(
		m.sends,
		m.latency,
		m.removed,
		m.purged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSend records one provider call. An empty code means success.
func (m *Metrics) ObserveSend(userType model.UserType, code string, elapsed time.Duration) {
	result := code
	if result == "" {
		result = "success"
	}
	m.sends.WithLabelValues(string(userType), result).Inc()
	m.latency.WithLabelValues(string(userType)).Observe(elapsed.Seconds())
}

// ObserveRemoved records tokens dropped after permanent failures.
func (m *Metrics) ObserveRemoved(userType model.UserType, n int) {
	m.removed.WithLabelValues(string(userType)).Add(float64(n))
}

// ObservePurged records tokens deleted by a cleanup sweep.
func (m *Metrics) ObservePurged(n int) {
	m.purged.Add(float64(n))
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
