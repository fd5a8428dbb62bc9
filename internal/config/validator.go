package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/funcauthz/internal/policy"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validator validates configuration and collects every error it finds.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// ValidateConfig validates cfg.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateMetrics(&cfg.Metrics)
	v.validateLogging(cfg)
	v.validateTracing(cfg)
	v.validateAuth(cfg)
	v.validateSecrets(cfg.Secrets)
	v.validatePolicies(&cfg.Policies)
	v.validateRateLimit(cfg.RateLimit)
	if err := cfg.Audit.Validate(); err != nil {
		v.addError("audit.decisions", err.Error())
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.Address == "" {
		v.addError("server.address", "address is required")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 || s.ShutdownTimeout < 0 {
		v.addError("server", "timeouts must not be negative")
	}
}

func (v *Validator) validateMetrics(m *MetricsConfig) {
	if !m.Enabled {
		return
	}
	if m.Address == "" {
		v.addError("metrics.address", "address is required when metrics are enabled")
	}
	if m.Path != "" && !strings.HasPrefix(m.Path, "/") {
		v.addError("metrics.path", "path must start with '/'")
	}
}

func (v *Validator) validateLogging(cfg *Config) {
	if !validLogLevels[cfg.Logging.Level] {
		v.addError("logging.level", fmt.Sprintf("invalid level %q", cfg.Logging.Level))
	}
	if !validLogFormats[cfg.Logging.Format] {
		v.addError("logging.format", fmt.Sprintf("invalid format %q", cfg.Logging.Format))
	}
}

func (v *Validator) validateTracing(cfg *Config) {
	t := &cfg.Tracing
	if !t.Enabled {
		return
	}
	if t.OTLPEndpoint == "" {
		v.addError("tracing.otlpEndpoint", "endpoint is required when tracing is enabled")
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "must be between 0 and 1")
	}
}

func (v *Validator) validateAuth(cfg *Config) {
	if strings.ContainsAny(cfg.Auth.Scheme, " \t") {
		v.addError("auth.scheme", "scheme must not contain whitespace")
	}

	j := &cfg.Auth.JWT
	hasLocalKeys := len(j.StaticKeys) > 0 || j.JWKSUrl != ""
	if !hasLocalKeys && len(cfg.SigningKeyRefs()) == 0 {
		v.addError("auth.jwt", "staticKeys, jwksUrl or secrets.signingKeys is required")
	}
	// Keys from the secret provider are validated once resolved.
	if hasLocalKeys {
		if err := j.Validate(); err != nil {
			v.addError("auth.jwt", err.Error())
		}
	}

	if r := cfg.Auth.Revocation; r != nil && r.URL == "" {
		v.addError("auth.revocation.url", "url is required")
	}
}

func (v *Validator) validateSecrets(s *SecretsConfig) {
	if s == nil {
		return
	}
	if err := s.Config.Validate(); err != nil {
		v.addError("secrets", err.Error())
	}
	for i, ref := range s.SigningKeys {
		if ref.Path == "" {
			v.addError(fmt.Sprintf("secrets.signingKeys[%d].path", i), "path is required")
		}
	}
}

func (v *Validator) validatePolicies(p *PoliciesConfig) {
	names := make(map[string]bool, len(p.Definitions))
	for i := range p.Definitions {
		def := &p.Definitions[i]
		path := fmt.Sprintf("policies.definitions[%d]", i)

		if err := def.Validate(); err != nil {
			v.addError(path, err.Error())
			continue
		}
		if names[def.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate policy %q", def.Name))
		}
		names[def.Name] = true

		switch def.EffectiveEngine() {
		case policy.EngineOPA:
			if p.OPA == nil || p.OPA.URL == "" {
				v.addError(path, "policies.opa.url is required for opa policies")
			}
		case policy.EngineOpenFGA:
			if p.OpenFGA == nil || p.OpenFGA.APIURL == "" || p.OpenFGA.StoreID == "" {
				v.addError(path, "policies.openfga.apiUrl and storeId are required for openfga policies")
			}
		}
	}
}

func (v *Validator) validateRateLimit(r *RateLimitConfig) {
	if r == nil || !r.Enabled {
		return
	}
	if r.RequestsPerSecond <= 0 {
		v.addError("rateLimit.requestsPerSecond", "must be positive")
	}
	if r.Burst <= 0 {
		v.addError("rateLimit.burst", "must be positive")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
