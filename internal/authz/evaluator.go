package authz

import (
	"context"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
	"github.com/vyrodovalexey/funcauthz/internal/policy"
)

// PolicyProvider looks up named policies.
type PolicyProvider interface {
	Lookup(name string) (*policy.Definition, bool)
}

// PolicyEvaluator evaluates a policy against an identity.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, identity *auth.Identity, def *policy.Definition) (bool, error)
}

// RequirementEvaluator checks roles and policies.
type RequirementEvaluator struct {
	provider  PolicyProvider
	evaluator PolicyEvaluator
	logger    observability.Logger
}

// EvaluatorOption is a functional option for the requirement evaluator.
type EvaluatorOption func(*RequirementEvaluator)

// WithEvaluatorLogger sets the logger.
func WithEvaluatorLogger(logger observability.Logger) EvaluatorOption {
	return func(e *RequirementEvaluator) {
		e.logger = logger
	}
}

// NewRequirementEvaluator creates an evaluator. With a nil provider or
// evaluator every policy check fails.
func NewRequirementEvaluator(provider PolicyProvider, evaluator PolicyEvaluator, opts ...EvaluatorOption) *RequirementEvaluator {
	e := &RequirementEvaluator{
		provider:  provider,
		evaluator: evaluator,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckRoles reports whether identity holds any of roles. An empty list passes.
func (e *RequirementEvaluator) CheckRoles(identity *auth.Identity, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	return identity.IsInAnyRole(roles...)
}

// CheckPolicies reports whether identity satisfies any of policies. An empty
// list passes. Unknown names and evaluation errors count as not satisfied.
func (e *RequirementEvaluator) CheckPolicies(ctx context.Context, identity *auth.Identity, policies []string) bool {
	if len(policies) == 0 {
		return true
	}
	if e == nil || e.provider == nil || e.evaluator == nil {
		return false
	}

	for _, name := range policies {
		def, ok := e.provider.Lookup(name)
		if !ok {
			e.logger.Debug("unknown policy", observability.String("policy", name))
			continue
		}
		allowed, err := e.evaluator.Evaluate(ctx, identity, def)
		if err != nil {
			e.logger.WithContext(ctx).Warn("policy evaluation failed",
				observability.String("policy", name),
				observability.Error(err),
			)
			continue
		}
		if allowed {
			return true
		}
	}
	return false
}
