package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for policy evaluation.
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with
// prometheus.DefaultRegisterer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a new Metrics instance with a custom registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "funcauthz"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"engine", "result"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "evaluation_duration_seconds",
				Help:      "Policy evaluation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"engine"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	for _, c := range []prometheus.Collector{m.evaluationsTotal, m.evaluationDuration, m.breakerState} {
		_ = registerer.Register(c)
	}

	return m
}

// RecordEvaluation records an evaluation; result is satisfied, denied or error.
func (m *Metrics) RecordEvaluation(engine, result string, duration time.Duration) {
	m.evaluationsTotal.WithLabelValues(engine, result).Inc()
	m.evaluationDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// SetBreakerState records a circuit breaker state.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}
