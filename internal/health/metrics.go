package health

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for readiness checks.
type Metrics struct {
	checksTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

// NewMetrics creates health metrics registered with registerer. A nil
// registerer leaves the collectors unregistered.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of dependency checks performed",
			},
			[]string{"check", "result"},
		),
		checkStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Current dependency check status (1=healthy, 0=unhealthy)",
			},
			[]string{"check"},
		),
	}

	if registerer != nil {
		_ = registerer.Register(m.checksTotal)
		_ = registerer.Register(m.checkStatus)
	}
	return m
}

func (m *Metrics) record(check string, healthy bool) {
	result := "success"
	status := 1.0
	if !healthy {
		result = "failure"
		status = 0
	}
	m.checksTotal.WithLabelValues(check, result).Inc()
	m.checkStatus.WithLabelValues(check).Set(status)
}
