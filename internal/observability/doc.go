// Package observability provides logging, metrics, and tracing for the
// function host.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.WithContext(ctx).Info("function invoked",
//	    observability.String("function", "reports-get"),
//	)
//
// Request ids, trace ids and the invoked function name travel in the
// context and are added to log lines by WithContext.
//
// # Metrics
//
// NewMetrics creates a private Prometheus registry. Component metrics
// (auth, authz, policy) register on Registry() and everything is served by
// Handler().
//
// # Tracing
//
// NewTracer installs an OpenTelemetry tracer provider with an OTLP gRPC
// exporter when enabled; Tracer.Middleware opens one server span per request.
package observability
