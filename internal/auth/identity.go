package auth

import (
	"context"
	"strings"
	"time"
)

// Identity represents a caller whose bearer token has been validated.
type Identity struct {
	// Subject is the unique identifier for the identity (e.g., user ID).
	Subject string `json:"sub"`

	// Issuer is the issuer of the token.
	Issuer string `json:"iss,omitempty"`

	// Audience is the intended audience of the token.
	Audience []string `json:"aud,omitempty"`

	// TokenID is the jti claim, used for revocation checks.
	TokenID string `json:"jti,omitempty"`

	// Scheme is the authentication scheme that produced the identity.
	Scheme string `json:"scheme,omitempty"`

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time `json:"exp,omitempty"`

	// Roles contains the roles assigned to the identity.
	Roles []string `json:"roles,omitempty"`

	// Name is the display name of the identity.
	Name string `json:"name,omitempty"`

	// Email is the email address of the identity.
	Email string `json:"email,omitempty"`

	// Claims contains every claim of the validated token.
	Claims map[string]interface{} `json:"claims,omitempty"`
}

// IsAuthenticated reports whether the identity came from a validated token.
// The empty principal placed in the item bag before validation is not
// authenticated.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.Scheme != ""
}

// IsInRole checks if the identity holds role. The comparison is exact.
func (i *Identity) IsInRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsInAnyRole checks if the identity holds at least one of roles.
func (i *Identity) IsInAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.IsInRole(role) {
			return true
		}
	}
	return false
}

// Claim returns a claim value by name. Dotted names address nested objects.
func (i *Identity) Claim(name string) (interface{}, bool) {
	if i == nil || i.Claims == nil {
		return nil, false
	}
	return LookupClaim(i.Claims, name)
}

// ClaimString returns a claim value as a string.
func (i *Identity) ClaimString(name string) string {
	v, ok := i.Claim(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ClaimStrings returns a claim value as a string slice. A single string value
// is returned as a one-element slice.
func (i *Identity) ClaimStrings(name string) []string {
	v, ok := i.Claim(name)
	if !ok {
		return nil
	}
	return toStrings(v)
}

// LookupClaim resolves a possibly dotted claim path inside claims.
func LookupClaim(claims map[string]interface{}, path string) (interface{}, bool) {
	if v, ok := claims[path]; ok {
		return v, true
	}

	parts := strings.Split(path, ".")
	var current interface{} = claims
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func toStrings(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

// AnonymousIdentity returns the unauthenticated principal.
func AnonymousIdentity() *Identity {
	return &Identity{}
}

type identityContextKey struct{}

// ContextWithIdentity adds an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}
