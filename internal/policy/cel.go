package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

// CELEngine evaluates policies written as CEL expressions. Expressions see
// two variables: identity (a map with subject, issuer, audience, roles, name,
// email, scheme, authenticated and claims) and now (a timestamp).
//
//	"admin" in identity.roles || identity.claims.tenant == "acme"
type CELEngine struct {
	env      *cel.Env
	programs map[string]cel.Program
	now      func() time.Time
}

// NewCELEngine compiles the expression of every CEL definition in defs.
// Compilation errors are returned at construction.
func NewCELEngine(defs []*Definition) (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("identity", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &CELEngine{
		env:      env,
		programs: make(map[string]cel.Program, len(defs)),
		now:      time.Now,
	}

	for _, def := range defs {
		if def.EffectiveEngine() != EngineCEL {
			continue
		}
		program, err := e.compile(def.Expression)
		if err != nil {
			return nil, fmt.Errorf("%w: policy %q: %v", ErrInvalidDefinition, def.Name, err)
		}
		e.programs[def.Name] = program
	}

	return e, nil
}

func (e *CELEngine) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	return e.env.Program(ast)
}

// Evaluate runs the compiled program for def.
func (e *CELEngine) Evaluate(_ context.Context, identity *auth.Identity, def *Definition) (bool, error) {
	program, ok := e.programs[def.Name]
	if !ok {
		return false, fmt.Errorf("%w: no compiled expression for %q", ErrEngineNotConfigured, def.Name)
	}

	out, _, err := program.Eval(map[string]interface{}{
		"identity": identityAttributes(identity),
		"now":      e.now(),
	})
	if err != nil {
		return false, err
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %T", ErrUnexpectedResult, out.Value())
	}
	return allowed, nil
}

// identityAttributes flattens identity into the map exposed to CEL and OPA.
func identityAttributes(identity *auth.Identity) map[string]interface{} {
	if identity == nil {
		identity = auth.AnonymousIdentity()
	}
	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}
	audience := identity.Audience
	if audience == nil {
		audience = []string{}
	}
	claims := identity.Claims
	if claims == nil {
		claims = map[string]interface{}{}
	}
	return map[string]interface{}{
		"subject":       identity.Subject,
		"issuer":        identity.Issuer,
		"audience":      audience,
		"roles":         roles,
		"name":          identity.Name,
		"email":         identity.Email,
		"scheme":        identity.Scheme,
		"authenticated": identity.IsAuthenticated(),
		"claims":        claims,
	}
}
