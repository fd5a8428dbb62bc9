package policy

import (
	"context"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

// RequirementsEngine evaluates role and claim requirements locally.
type RequirementsEngine struct{}

// NewRequirementsEngine creates a requirements engine.
func NewRequirementsEngine() *RequirementsEngine {
	return &RequirementsEngine{}
}

// Evaluate reports whether identity satisfies every requirement in def.
func (e *RequirementsEngine) Evaluate(_ context.Context, identity *auth.Identity, def *Definition) (bool, error) {
	if identity == nil {
		return false, nil
	}
	if def.RequireAuthenticated && !identity.IsAuthenticated() {
		return false, nil
	}
	if len(def.Roles) > 0 && !identity.IsInAnyRole(def.Roles...) {
		return false, nil
	}
	for claim, allowed := range def.Claims {
		if !claimSatisfied(identity, claim, allowed) {
			return false, nil
		}
	}
	return true, nil
}

func claimSatisfied(identity *auth.Identity, claim string, allowed []string) bool {
	values := identity.ClaimStrings(claim)
	if len(allowed) == 0 {
		return len(values) > 0
	}
	for _, v := range values {
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
	}
	return false
}
