package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for authorization decisions.
type Metrics struct {
	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
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
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decisions_total",
				Help:      "Total number of authorization decisions",
			},
			[]string{"outcome", "reason"},
		),
		decisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decision_duration_seconds",
				Help:      "Authorization decision duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"outcome"},
		),
	}

	_ = registerer.Register(m.decisionsTotal)
	_ = registerer.Register(m.decisionDuration)

	return m
}

// RecordDecision records a decision.
func (m *Metrics) RecordDecision(d *Decision, duration time.Duration) {
	outcome := d.Outcome.String()
	m.decisionsTotal.WithLabelValues(outcome, d.Reason).Inc()
	m.decisionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
