package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for token validation.
type Metrics struct {
	validationsTotal   *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	registerer         prometheus.Registerer
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

	m := &Metrics{registerer: registerer}

	m.validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_validations_total",
			Help:      "Total number of bearer token validations",
		},
		[]string{"result", "reason"},
	)

	m.validationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_validation_duration_seconds",
			Help:      "Bearer token validation duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"result"},
	)

	for _, c := range []prometheus.Collector{m.validationsTotal, m.validationDuration} {
		// Duplicate registration is ignored; descriptors are identical.
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordSuccess records a successful validation.
func (m *Metrics) RecordSuccess(duration time.Duration) {
	m.validationsTotal.WithLabelValues("valid", "").Inc()
	m.validationDuration.WithLabelValues("valid").Observe(duration.Seconds())
}

// RecordFailure records a rejected token with the failure reason.
func (m *Metrics) RecordFailure(reason string, duration time.Duration) {
	m.validationsTotal.WithLabelValues("rejected", reason).Inc()
	m.validationDuration.WithLabelValues("rejected").Observe(duration.Seconds())
}
