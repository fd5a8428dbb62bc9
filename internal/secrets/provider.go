package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderType represents the type of secrets provider.
type ProviderType string

const (
	// ProviderTypeVault reads secrets from a HashiCorp Vault KV v2 engine.
	ProviderTypeVault ProviderType = "vault"
	// ProviderTypeEnv reads secrets from environment variables.
	ProviderTypeEnv ProviderType = "env"
)

// Common errors for secrets providers.
var (
	// ErrSecretNotFound is returned when a secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrProviderNotConfigured is returned when a provider is misconfigured.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrInvalidPath is returned for an empty or malformed secret path.
	ErrInvalidPath = errors.New("invalid secret path")
	// ErrInvalidProviderType is returned for an unknown provider type.
	ErrInvalidProviderType = errors.New("invalid provider type")
)

// Secret is a named set of key-value pairs.
type Secret struct {
	Name    string
	Data    map[string][]byte
	Version string
}

// GetString returns a string value from the secret data.
func (s *Secret) GetString(key string) (string, bool) {
	if s == nil || s.Data == nil {
		return "", false
	}
	v, ok := s.Data[key]
	if !ok {
		return "", false
	}
	return string(v), true
}

// Provider reads secrets from a backend.
type Provider interface {
	// Type returns the provider type.
	Type() ProviderType

	// GetSecret retrieves a secret by path. For vault the path is relative
	// to the configured mount; for env it maps to a prefixed variable name.
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// Close releases provider resources.
	Close() error
}

// ValidateProviderType validates that providerType names a known provider.
func ValidateProviderType(providerType string) (ProviderType, error) {
	switch ProviderType(providerType) {
	case ProviderTypeVault, ProviderTypeEnv:
		return ProviderType(providerType), nil
	default:
		return "", fmt.Errorf("%w: %s, must be one of: vault, env", ErrInvalidProviderType, providerType)
	}
}

// Metrics holds Prometheus metrics for secrets provider operations.
type Metrics struct {
	operationDuration *prometheus.HistogramVec
	operationTotal    *prometheus.CounterVec
}

// NewMetrics creates metrics registered with registerer. A nil registerer
// uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "funcauthz"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "secrets",
				Name:      "operation_duration_seconds",
				Help:      "Duration of secrets provider operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "operation", "result"},
		),
		operationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "secrets",
				Name:      "operation_total",
				Help:      "Total number of secrets provider operations",
			},
			[]string{"provider", "operation", "result"},
		),
	}

	_ = registerer.Register(m.operationDuration)
	_ = registerer.Register(m.operationTotal)

	return m
}

// RecordOperation records metrics for a provider operation.
func (m *Metrics) RecordOperation(provider ProviderType, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operationDuration.WithLabelValues(string(provider), operation, result).Observe(duration.Seconds())
	m.operationTotal.WithLabelValues(string(provider), operation, result).Inc()
}
