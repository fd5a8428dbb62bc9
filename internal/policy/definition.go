package policy

import (
	"fmt"
	"strings"
)

// Engine names.
const (
	EngineRequirements = "requirements"
	EngineCEL          = "cel"
	EngineOPA          = "opa"
	EngineOpenFGA      = "openfga"
)

// SubjectPlaceholder in an OpenFGA object is replaced with the identity subject.
const SubjectPlaceholder = "{subject}"

// Definition is a named policy evaluated by one engine.
type Definition struct {
	// Name is the policy name referenced by authorization declarations.
	Name string `yaml:"name" json:"name"`

	// Engine selects the evaluator. Empty means requirements.
	Engine string `yaml:"engine,omitempty" json:"engine,omitempty"`

	// RequireAuthenticated fails the policy for anonymous identities.
	RequireAuthenticated bool `yaml:"requireAuthenticated,omitempty" json:"requireAuthenticated,omitempty"`

	// Roles passes when the identity holds any of them.
	Roles []string `yaml:"roles,omitempty" json:"roles,omitempty"`

	// Claims requires every listed claim. The claim must hold one of the
	// values; an empty value list only requires presence.
	Claims map[string][]string `yaml:"claims,omitempty" json:"claims,omitempty"`

	// Expression is a CEL expression over identity and now.
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`

	// OPA configures a remote OPA query.
	OPA *OPAQuery `yaml:"opa,omitempty" json:"opa,omitempty"`

	// OpenFGA configures a relationship check.
	OpenFGA *RelationCheck `yaml:"openfga,omitempty" json:"openfga,omitempty"`
}

// OPAQuery names the OPA document to query, e.g. "funcs/allow".
type OPAQuery struct {
	Path string `yaml:"path" json:"path"`
}

// RelationCheck is an OpenFGA check of relation on object.
type RelationCheck struct {
	Relation string `yaml:"relation" json:"relation"`
	Object   string `yaml:"object" json:"object"`
}

// EffectiveEngine returns the engine name, defaulting to requirements.
func (d *Definition) EffectiveEngine() string {
	if d.Engine == "" {
		return EngineRequirements
	}
	return d.Engine
}

// Validate checks that the definition carries what its engine needs.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}

	switch d.EffectiveEngine() {
	case EngineRequirements:
		if !d.RequireAuthenticated && len(d.Roles) == 0 && len(d.Claims) == 0 {
			return fmt.Errorf("%w: policy %q declares no requirements", ErrInvalidDefinition, d.Name)
		}
	case EngineCEL:
		if d.Expression == "" {
			return fmt.Errorf("%w: policy %q requires an expression", ErrInvalidDefinition, d.Name)
		}
	case EngineOPA:
		if d.OPA == nil || d.OPA.Path == "" {
			return fmt.Errorf("%w: policy %q requires opa.path", ErrInvalidDefinition, d.Name)
		}
	case EngineOpenFGA:
		if d.OpenFGA == nil || d.OpenFGA.Relation == "" || d.OpenFGA.Object == "" {
			return fmt.Errorf("%w: policy %q requires openfga.relation and openfga.object",
				ErrInvalidDefinition, d.Name)
		}
	default:
		return fmt.Errorf("%w: policy %q has unknown engine %q", ErrInvalidDefinition, d.Name, d.Engine)
	}
	return nil
}
