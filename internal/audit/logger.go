package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// Logger writes audit events.
type Logger interface {
	LogEvent(ctx context.Context, event *Event)
	Close() error
}

// Metrics contains audit metrics.
type Metrics struct {
	eventsTotal *prometheus.CounterVec
}

// NewMetrics creates audit metrics registered with registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "funcauthz"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events",
			},
			[]string{"type", "action", "outcome"},
		),
	}
	_ = registerer.Register(m.eventsTotal)
	return m
}

func (m *Metrics) record(event *Event) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(event.Type), string(event.Action), string(event.Outcome)).Inc()
}

// LoggerOption is a functional option for the audit logger.
type LoggerOption func(*logger)

// WithLoggerLogger sets the logger used to report write failures.
func WithLoggerLogger(l observability.Logger) LoggerOption {
	return func(al *logger) {
		al.logger = l
	}
}

// WithLoggerMetrics sets the audit metrics.
func WithLoggerMetrics(metrics *Metrics) LoggerOption {
	return func(al *logger) {
		al.metrics = metrics
	}
}

// WithWriter replaces the configured output.
func WithWriter(w io.Writer) LoggerOption {
	return func(al *logger) {
		al.writer = w
	}
}

type logger struct {
	mu      sync.Mutex
	writer  io.Writer
	closer  io.Closer
	logger  observability.Logger
	metrics *Metrics
}

// NewLogger creates a JSON lines audit logger. A nil or disabled config
// yields a no-op logger.
func NewLogger(cfg *Config, opts ...LoggerOption) (Logger, error) {
	if cfg == nil || !cfg.Enabled {
		return NewNoopLogger(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &logger{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(l)
	}

	if l.writer == nil {
		w, closer, err := createWriter(cfg.GetEffectiveOutput())
		if err != nil {
			return nil, err
		}
		l.writer = w
		l.closer = closer
	}
	return l, nil
}

func createWriter(output string) (io.Writer, io.Closer, error) {
	switch output {
	case OutputStdout:
		return os.Stdout, nil, nil
	case OutputStderr:
		return os.Stderr, nil, nil
	default:
		//nolint:gosec // G304: path from config is trusted
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		return file, file, nil
	}
}

// LogEvent writes event as one JSON line. Trace ids are taken from the
// span in ctx when the event carries none.
func (l *logger) LogEvent(ctx context.Context, event *Event) {
	sc := trace.SpanContextFromContext(ctx)
	if event.TraceID == "" && sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}
	if event.SpanID == "" && sc.HasSpanID() {
		event.SpanID = sc.SpanID().String()
	}

	data, err := json.Marshal(event)
	if err != nil {
		l.logger.Error("failed to marshal audit event", observability.Error(err))
		return
	}
	data = append(data, '\n')

	l.metrics.record(event)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(data); err != nil {
		l.logger.Error("failed to write audit event", observability.Error(err))
	}
}

func (l *logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

type noopLogger struct{}

// NewNoopLogger creates a logger that drops every event.
func NewNoopLogger() Logger {
	return noopLogger{}
}

func (noopLogger) LogEvent(context.Context, *Event) {}

func (noopLogger) Close() error { return nil }

var (
	_ Logger = (*logger)(nil)
	_ Logger = noopLogger{}
)
