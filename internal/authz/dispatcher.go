package authz

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

var authzTracer = otel.Tracer("funcauthz/authz")

// TokenValidator turns a raw token into an identity. Every failure, including
// a missing token, yields nil.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) *auth.Identity
	Scheme() string
}

// RequirementChecker checks the role and policy requirements of a handler.
type RequirementChecker interface {
	CheckRoles(identity *auth.Identity, roles []string) bool
	CheckPolicies(ctx context.Context, identity *auth.Identity, policies []string) bool
}

// DecisionAuditor records terminal decisions.
type DecisionAuditor interface {
	AuditDecision(ctx context.Context, inv *Invocation, decision *Decision)
}

// Invocation is one triggered handler call.
type Invocation struct {
	// Request is the inbound request. It may be nil outside HTTP.
	Request *http.Request

	// Token is the raw credential with the scheme prefix already removed.
	Token string

	Requirements *Requirements
	RouteValues  map[string]string

	// Items is the request-scoped bag. A bag holding an empty principal is
	// created when nil.
	Items *Items
}

// Dispatcher produces exactly one decision per invocation.
type Dispatcher struct {
	validator TokenValidator
	checker   RequirementChecker
	logger    observability.Logger
	metrics   *Metrics
	auditor   DecisionAuditor
}

// DispatcherOption is a functional option for the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger observability.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithDispatcherMetrics sets the metrics.
func WithDispatcherMetrics(metrics *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// WithDispatcherAuditor sets the decision auditor.
func WithDispatcherAuditor(auditor DecisionAuditor) DispatcherOption {
	return func(d *Dispatcher) {
		d.auditor = auditor
	}
}

// NewDispatcher creates a dispatcher. A nil validator never produces an
// identity; a nil checker fails every declared policy.
func NewDispatcher(validator TokenValidator, checker RequirementChecker, opts ...DispatcherOption) *Dispatcher {
	if checker == nil {
		checker = NewRequirementEvaluator(nil, nil)
	}
	d := &Dispatcher{
		validator: validator,
		checker:   checker,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewRequestItems creates an item bag holding the empty principal.
func NewRequestItems() *Items {
	items := NewItems()
	items.Set(UserItemKey, auth.AnonymousIdentity())
	return items
}

// Scheme returns the authentication scheme of the validator.
func (d *Dispatcher) Scheme() string {
	if d.validator == nil {
		return auth.DefaultScheme
	}
	return d.validator.Scheme()
}

// Decide validates the token and walks the requirements of the invocation.
// The token is always validated first, even for handlers that require no
// authorization. A panic raised by a custom filter is not recovered.
func (d *Dispatcher) Decide(ctx context.Context, inv *Invocation) *Decision {
	start := time.Now()
	if inv.Items == nil {
		inv.Items = NewRequestItems()
	}

	ctx, span := authzTracer.Start(ctx, "authz.decide",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("authz.handler", inv.handler().String())),
	)
	defer span.End()

	decision := d.decide(ctx, inv)

	span.SetAttributes(
		attribute.String("authz.outcome", decision.Outcome.String()),
		attribute.String("authz.reason", decision.Reason),
	)
	d.logger.WithContext(ctx).Debug("authorization decision",
		observability.String("handler", inv.handler().String()),
		observability.String("outcome", decision.Outcome.String()),
		observability.String("reason", decision.Reason),
		observability.Int("status", decision.StatusCode),
	)
	if d.metrics != nil {
		d.metrics.RecordDecision(decision, time.Since(start))
	}
	if d.auditor != nil {
		d.auditor.AuditDecision(ctx, inv, decision)
	}
	return decision
}

func (d *Dispatcher) decide(ctx context.Context, inv *Invocation) *Decision {
	var identity *auth.Identity
	if d.validator != nil {
		identity = d.validator.ValidateToken(ctx, inv.Token)
	}

	req := inv.Requirements
	if req == nil || !req.Required {
		inv.Items.Set(UserItemKey, identity)
		return proceed(identity, ReasonNotRequired)
	}

	if identity == nil {
		return unauthorized()
	}
	inv.Items.Set(UserItemKey, identity)

	if !d.checker.CheckRoles(identity, req.Roles) {
		return forbidden(identity, ReasonRoles)
	}
	if !d.checker.CheckPolicies(ctx, identity, req.Policies) {
		return forbidden(identity, ReasonPolicy)
	}

	if req.Filter != nil {
		fc := &FilterContext{
			ctx:         auth.ContextWithIdentity(ctx, identity),
			Request:     inv.Request,
			Identity:    identity,
			RouteValues: inv.RouteValues,
			Handler:     req.Handler,
			Items:       inv.Items,
		}
		if decision := runFilter(req.Filter, fc); decision != nil {
			return decision
		}
	}

	return proceed(identity, ReasonAuthorized)
}

func (inv *Invocation) handler() HandlerRef {
	if inv.Requirements == nil {
		return HandlerRef{}
	}
	return inv.Requirements.Handler
}
