package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults applied by NewValidator.
const (
	DefaultClockSkew           = 5 * time.Minute
	DefaultJWKSRefreshInterval = 15 * time.Minute
	DefaultRolesClaim          = "roles"
)

// Config holds the token validation parameters.
type Config struct {
	// Issuers lists the accepted iss values. Empty disables the issuer check.
	Issuers []string `yaml:"issuers,omitempty" json:"issuers,omitempty"`

	// Audience lists the accepted aud values. A token passes when any of its
	// audiences is listed. Empty disables the audience check.
	Audience []string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// ClockSkew is the tolerance applied to exp, nbf and iat.
	ClockSkew *time.Duration `yaml:"clockSkew,omitempty" json:"clockSkew,omitempty"`

	// RequireExpiration rejects tokens without an exp claim.
	RequireExpiration *bool `yaml:"requireExpiration,omitempty" json:"requireExpiration,omitempty"`

	// Algorithms restricts the accepted signing algorithms.
	Algorithms []string `yaml:"algorithms,omitempty" json:"algorithms,omitempty"`

	// StaticKeys configures static signing keys.
	StaticKeys []StaticKey `yaml:"staticKeys,omitempty" json:"staticKeys,omitempty"`

	// JWKSUrl is the URL of a remote key set.
	JWKSUrl string `yaml:"jwksUrl,omitempty" json:"jwksUrl,omitempty"`

	// JWKSRefreshInterval is the minimum interval between key set refreshes.
	JWKSRefreshInterval time.Duration `yaml:"jwksRefreshInterval,omitempty" json:"jwksRefreshInterval,omitempty"`

	// ClaimMapping maps token claims to identity fields.
	ClaimMapping ClaimMapping `yaml:"claimMapping,omitempty" json:"claimMapping,omitempty"`
}

// ClaimMapping configures how claims are mapped to identity fields. Paths may
// be dotted to address nested objects.
type ClaimMapping struct {
	Roles string `yaml:"roles,omitempty" json:"roles,omitempty"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
}

// StaticKey represents a static verification key.
type StaticKey struct {
	// KeyID is the key identifier matched against the kid header.
	KeyID string `yaml:"keyId,omitempty" json:"keyId,omitempty"`

	// Algorithm is the signing algorithm.
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// Key is the key value: base64 for HMAC, PEM for asymmetric keys.
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// KeyFile is a path to a file holding the key value.
	KeyFile string `yaml:"keyFile,omitempty" json:"keyFile,omitempty"`
}

var supportedAlgorithms = map[string]bool{
	"HS256": true, "HS384": true, "HS512": true,
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
	"ES256": true, "ES384": true, "ES512": true,
	"EdDSA": true,
}

func isHMAC(alg string) bool {
	return strings.HasPrefix(alg, "HS")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("jwt: config is required")
	}
	if len(c.StaticKeys) == 0 && c.JWKSUrl == "" {
		return errors.New("jwt: either staticKeys or jwksUrl is required")
	}
	for _, alg := range c.Algorithms {
		if !supportedAlgorithms[alg] {
			return fmt.Errorf("jwt: unsupported algorithm %q", alg)
		}
	}
	for i, key := range c.StaticKeys {
		if !supportedAlgorithms[key.Algorithm] {
			return fmt.Errorf("jwt: staticKeys[%d]: unsupported algorithm %q", i, key.Algorithm)
		}
		if key.Key == "" && key.KeyFile == "" {
			return fmt.Errorf("jwt: staticKeys[%d]: key or keyFile is required", i)
		}
	}
	if c.ClockSkew != nil && *c.ClockSkew < 0 {
		return errors.New("jwt: clockSkew must not be negative")
	}
	return nil
}

// GetEffectiveClockSkew returns the configured skew or the default.
func (c *Config) GetEffectiveClockSkew() time.Duration {
	if c.ClockSkew == nil {
		return DefaultClockSkew
	}
	return *c.ClockSkew
}

// GetEffectiveRequireExpiration defaults to true.
func (c *Config) GetEffectiveRequireExpiration() bool {
	return c.RequireExpiration == nil || *c.RequireExpiration
}

// GetEffectiveJWKSRefreshInterval returns the configured interval or the default.
func (c *Config) GetEffectiveJWKSRefreshInterval() time.Duration {
	if c.JWKSRefreshInterval <= 0 {
		return DefaultJWKSRefreshInterval
	}
	return c.JWKSRefreshInterval
}
