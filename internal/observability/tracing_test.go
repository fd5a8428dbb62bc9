package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(context.Background(), TracerConfig{Enabled: false})

	require.NoError(t, err)
	assert.Nil(t, tracer.provider)
	assert.Equal(t, "funcauthz", tracer.config.ServiceName)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.5).Description(), createSampler(0.5).Description())
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	assert.Len(t, exporterOptions(TracerConfig{OTLPEndpoint: "collector:4317", Insecure: true}), 4)
	assert.Len(t, exporterOptions(TracerConfig{OTLPEndpoint: "collector:4317"}), 4)
}

func TestTracer_Middleware(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := &Tracer{provider: provider, tracer: provider.Tracer("test")}

	var traceID string
	handler := tracer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusUnauthorized)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/whoami", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /whoami", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
}
