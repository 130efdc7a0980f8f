// Package metrics owns the Prometheus collectors of the order service.
//
// Every method is nil-safe so components can be built without metrics in
// tests and small tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orders"

type Metrics struct {
	registry *prometheus.Registry

	SagaTotal       *prometheus.CounterVec
	SagaDuration    prometheus.Histogram
	BreakerState    *prometheus.GaugeVec
	BreakerTransits *prometheus.CounterVec
	Attempts        *prometheus.CounterVec
	Retries         *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		SagaTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_total",
			Help:      "Order registrations by outcome.",
		}, []string{"outcome"}),
		SagaDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "Order registration latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit state per dependency: 0 closed, 1 half-open, 2 open.",
		}, []string{"dependency"}),
		BreakerTransits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"dependency", "from", "to"}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_attempts_total",
			Help:      "Network attempts against external dependencies by result.",
		}, []string{"dependency", "result"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_retries_total",
			Help:      "Retries scheduled against external dependencies.",
		}, []string{"dependency"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SagaTotal, m.SagaDuration, m.BreakerState, m.BreakerTransits, m.Attempts, m.Retries,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveSaga(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SagaTotal.WithLabelValues(outcome).Inc()
	m.SagaDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) BreakerTransition(dependency, from, to string, state float64) {
	if m == nil {
		return
	}
	m.BreakerTransits.WithLabelValues(dependency, from, to).Inc()
	m.BreakerState.WithLabelValues(dependency).Set(state)
}

func (m *Metrics) Attempt(dependency, result string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(dependency, result).Inc()
}

func (m *Metrics) Retry(dependency string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(dependency).Inc()
}
