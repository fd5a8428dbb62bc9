package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{name: "default config", config: DefaultLogConfig()},
		{name: "console format", config: LogConfig{Level: "debug", Format: "console"}},
		{name: "stderr output", config: LogConfig{Level: "warn", Format: "json", Output: "stderr"}},
		{name: "invalid level", config: LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerFromZap(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTraceID(ctx, "trace-1")
	ctx = ContextWithFunction(ctx, "reports-get")

	logger.WithContext(ctx).Info("invoked")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "reports-get", fields["function"])
	assert.NotContains(t, fields, "span_id")
}

func TestLogger_WithContext_Empty(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, SpanIDFromContext(ctx))

	ctx = ContextWithSpanID(ctx, "span-1")
	ctx = ContextWithRequestID(ctx, "req-2")

	assert.Equal(t, "span-1", SpanIDFromContext(ctx))
	assert.Equal(t, "req-2", RequestIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.Empty(t, FunctionFromContext(ctx))
}
