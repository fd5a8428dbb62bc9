package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedFunction labels requests that reached no registered function.
const unmatchedFunction = "unmatched"

// Metrics holds the HTTP metrics of the function host.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	panicsTotal     prometheus.Counter
	registry        *prometheus.Registry
}

// NewMetrics creates host metrics on a private registry that also carries the
// Go and process collectors.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(namespace, registry)
}

func newMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "funcauthz"
	}

	m := &Metrics{registry: registry}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of function invocations over HTTP",
		},
		[]string{"function", "method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Function invocation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"function", "method"},
	)

	m.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of function invocations in flight",
		},
	)

	m.panicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "panics_recovered_total",
			Help:      "Total number of panics recovered by the host",
		},
	)

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.inFlight, m.panicsTotal)
	return m
}

// Registry returns the registry the host metrics live on. Component metrics
// register here as well so a single endpoint exposes everything.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordPanic counts a recovered panic.
func (m *Metrics) RecordPanic() {
	m.panicsTotal.Inc()
}

// Middleware records request metrics. function resolves the metric label for
// the request once the handler has run.
func (m *Metrics) Middleware(function func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			rw := NewStatusRecorder(w)
			next.ServeHTTP(rw, r)

			name := function(r)
			if name == "" {
				name = unmatchedFunction
			}
			m.requestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(rw.Status())).Inc()
			m.requestDuration.WithLabelValues(name, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// StatusRecorder wraps http.ResponseWriter to capture the status and size.
type StatusRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

// NewStatusRecorder wraps w. The status defaults to 200.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if sr, ok := w.(*StatusRecorder); ok {
		return sr
	}
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code.
func (rw *StatusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *StatusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher.
func (rw *StatusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Status returns the recorded status code.
func (rw *StatusRecorder) Status() int { return rw.status }

// Size returns the number of body bytes written.
func (rw *StatusRecorder) Size() int { return rw.size }

// Written reports whether a header or body has been written.
func (rw *StatusRecorder) Written() bool { return rw.wroteHeader }
