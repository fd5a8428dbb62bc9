package authz

import (
	"context"
	"net/http"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

// Filter is an imperative authorization check carried by an Authorize
// declaration. It sets fc.Result to short-circuit the invocation and leaves
// it nil to let the invocation proceed.
type Filter interface {
	OnAuthorization(fc *FilterContext)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(fc *FilterContext)

// OnAuthorization calls f.
func (f FilterFunc) OnAuthorization(fc *FilterContext) {
	f(fc)
}

// FilterContext is the evaluation context handed to a Filter.
type FilterContext struct {
	ctx context.Context

	// Request is the inbound request. It may be nil outside HTTP.
	Request *http.Request

	// Identity is the validated caller.
	Identity *auth.Identity

	// RouteValues are the route parameters of the matched function.
	RouteValues map[string]string

	// Handler is the invoked handler.
	Handler HandlerRef

	// Items is the request-scoped item bag.
	Items *Items

	// Result is set by the filter.
	Result Result
}

// Context returns the invocation context.
func (fc *FilterContext) Context() context.Context {
	if fc.ctx == nil {
		return context.Background()
	}
	return fc.ctx
}

// Result is a filter outcome.
type Result interface {
	StatusCode() int
}

// ForbidResult rejects the caller with 403.
type ForbidResult struct{}

// StatusCode returns 403.
func (ForbidResult) StatusCode() int { return http.StatusForbidden }

// StatusCodeResult responds with a bare status code.
type StatusCodeResult struct {
	Code int
}

// StatusCode returns the code.
func (r StatusCodeResult) StatusCode() int { return r.Code }

// ObjectResult responds with a payload and an optional status code.
type ObjectResult struct {
	Code  int
	Value interface{}
}

// StatusCode returns the code, or 0 when unset.
func (r ObjectResult) StatusCode() int { return r.Code }

// runFilter invokes filter and maps its result to a decision. A nil
// decision means continue, and so does a nil result pointer. Panics are not
// recovered.
func runFilter(filter Filter, fc *FilterContext) *Decision {
	filter.OnAuthorization(fc)

	switch result := fc.Result.(type) {
	case nil:
		return nil
	case ForbidResult:
		return forbiddenByFilter(fc.Identity)
	case *ForbidResult:
		if result == nil {
			return nil
		}
		return forbiddenByFilter(fc.Identity)
	case ObjectResult:
		return customDecision(fc.Identity, result.Code, result.Value)
	case *ObjectResult:
		if result == nil {
			return nil
		}
		return customDecision(fc.Identity, result.Code, result.Value)
	case *StatusCodeResult:
		if result == nil {
			return nil
		}
		return customDecision(fc.Identity, result.Code, nil)
	default:
		return customDecision(fc.Identity, result.StatusCode(), nil)
	}
}

func forbiddenByFilter(identity *auth.Identity) *Decision {
	return &Decision{Outcome: OutcomeForbidden, Identity: identity, StatusCode: http.StatusForbidden, Reason: ReasonFilter}
}

// customDecision applies the response defaults: no status and no body is
// 204, no status with a body is 200.
func customDecision(identity *auth.Identity, code int, body interface{}) *Decision {
	if code == 0 {
		code = http.StatusOK
		if body == nil {
			code = http.StatusNoContent
		}
	}
	return &Decision{
		Outcome:    OutcomeCustom,
		Identity:   identity,
		StatusCode: code,
		Body:       body,
		Reason:     ReasonFilter,
	}
}
