package authz

import (
	"net/http"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

// Outcome is the terminal result of an invocation.
type Outcome int

const (
	// OutcomeProceed forwards the invocation to the handler.
	OutcomeProceed Outcome = iota
	// OutcomeUnauthorized rejects with 401.
	OutcomeUnauthorized
	// OutcomeForbidden rejects with 403.
	OutcomeForbidden
	// OutcomeCustom responds with a filter-supplied status and body.
	OutcomeCustom
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Decision reasons. They label logs and metrics only and never reach the
// response.
const (
	ReasonNotRequired = "not_required"
	ReasonAuthorized  = "authorized"
	ReasonNoIdentity  = "no_identity"
	ReasonRoles       = "roles"
	ReasonPolicy      = "policy"
	ReasonFilter      = "filter"
)

// Decision is the single terminal decision for one invocation.
type Decision struct {
	Outcome Outcome

	// Identity is the validated caller; nil on the anonymous path without
	// a valid token and on Unauthorized.
	Identity *auth.Identity

	// StatusCode is the response status for every outcome but Proceed.
	StatusCode int

	// Body is the custom response payload.
	Body interface{}

	Reason string
}

func proceed(identity *auth.Identity, reason string) *Decision {
	return &Decision{Outcome: OutcomeProceed, Identity: identity, Reason: reason}
}

func unauthorized() *Decision {
	return &Decision{Outcome: OutcomeUnauthorized, StatusCode: http.StatusUnauthorized, Reason: ReasonNoIdentity}
}

func forbidden(identity *auth.Identity, reason string) *Decision {
	return &Decision{Outcome: OutcomeForbidden, Identity: identity, StatusCode: http.StatusForbidden, Reason: reason}
}
