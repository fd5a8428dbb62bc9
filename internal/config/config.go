package config

import (
	"time"

	"github.com/vyrodovalexey/funcauthz/internal/audit"
	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/auth/jwt"
	"github.com/vyrodovalexey/funcauthz/internal/auth/revocation"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
	"github.com/vyrodovalexey/funcauthz/internal/policy"
	"github.com/vyrodovalexey/funcauthz/internal/secrets"
)

// Default values.
const (
	DefaultServerAddress   = ":8080"
	DefaultMetricsAddress  = ":9090"
	DefaultMetricsPath     = "/metrics"
	DefaultNamespace       = "funcauthz"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
)

// Config is the root configuration of the function host. It is loaded once
// and never changes for the lifetime of the process.
type Config struct {
	Server    ServerConfig               `yaml:"server" json:"server"`
	Metrics   MetricsConfig              `yaml:"metrics" json:"metrics"`
	Logging   observability.LogConfig    `yaml:"logging" json:"logging"`
	Tracing   observability.TracerConfig `yaml:"tracing" json:"tracing"`
	Auth      AuthConfig                 `yaml:"auth" json:"auth"`
	Secrets   *SecretsConfig             `yaml:"secrets,omitempty" json:"secrets,omitempty"`
	Policies  PoliciesConfig             `yaml:"policies" json:"policies"`
	RateLimit *RateLimitConfig           `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	Audit     *audit.Config              `yaml:"audit,omitempty" json:"audit,omitempty"`
}

// ServerConfig configures the function listener.
type ServerConfig struct {
	Address         string   `yaml:"address" json:"address"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`

	// TrustForwardedHeaders takes the client address from X-Forwarded-For
	// and X-Real-IP. Enable only behind a trusted proxy.
	TrustForwardedHeaders bool `yaml:"trustForwardedHeaders,omitempty" json:"trustForwardedHeaders,omitempty"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
	Path      string `yaml:"path,omitempty" json:"path,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// AuthConfig configures token validation.
type AuthConfig struct {
	// Scheme is the Authorization header scheme. Defaults to Bearer.
	Scheme string `yaml:"scheme,omitempty" json:"scheme,omitempty"`

	JWT jwt.Config `yaml:"jwt" json:"jwt"`

	// Revocation enables the Redis jti deny list.
	Revocation *revocation.Config `yaml:"revocation,omitempty" json:"revocation,omitempty"`
}

// SecretsConfig configures the secret provider and the signing keys read
// from it at startup.
type SecretsConfig struct {
	secrets.Config `yaml:",inline"`

	SigningKeys []secrets.KeyRef `yaml:"signingKeys,omitempty" json:"signingKeys,omitempty"`
}

// PoliciesConfig declares the policy table and the external engines.
type PoliciesConfig struct {
	Definitions []policy.Definition   `yaml:"definitions,omitempty" json:"definitions,omitempty"`
	OPA         *policy.OPAConfig     `yaml:"opa,omitempty" json:"opa,omitempty"`
	OpenFGA     *policy.OpenFGAConfig `yaml:"openfga,omitempty" json:"openfga,omitempty"`
}

// RateLimitConfig configures host rate limiting.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int      `yaml:"burst" json:"burst"`
	PerClient         bool     `yaml:"perClient,omitempty" json:"perClient,omitempty"`
	ClientTTL         Duration `yaml:"clientTTL,omitempty" json:"clientTTL,omitempty"`
}

// DefaultConfig returns a configuration with every default applied. Token
// keys are left unset.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         DefaultServerAddress,
			ReadTimeout:     Duration(DefaultReadTimeout),
			WriteTimeout:    Duration(DefaultWriteTimeout),
			IdleTimeout:     Duration(DefaultIdleTimeout),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Address:   DefaultMetricsAddress,
			Path:      DefaultMetricsPath,
			Namespace: DefaultNamespace,
		},
		Logging: observability.DefaultLogConfig(),
		Tracing: observability.TracerConfig{
			ServiceName:  DefaultNamespace,
			SamplingRate: 1.0,
		},
		Auth: AuthConfig{
			Scheme: auth.DefaultScheme,
		},
	}
}

// GetEffectiveScheme returns the configured scheme or Bearer.
func (c *AuthConfig) GetEffectiveScheme() string {
	if c.Scheme == "" {
		return auth.DefaultScheme
	}
	return c.Scheme
}

// SigningKeyRefs returns the signing keys to read from the secret provider.
func (c *Config) SigningKeyRefs() []secrets.KeyRef {
	if c.Secrets == nil {
		return nil
	}
	return c.Secrets.SigningKeys
}
