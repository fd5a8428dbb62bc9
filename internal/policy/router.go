package policy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

var policyTracer = otel.Tracer("funcauthz/policy")

// Evaluator decides whether an identity satisfies a policy.
type Evaluator interface {
	Evaluate(ctx context.Context, identity *auth.Identity, def *Definition) (bool, error)
}

// Router dispatches each policy to the evaluator registered for its engine.
type Router struct {
	engines map[string]Evaluator
	logger  observability.Logger
	metrics *Metrics
}

// RouterOption is a functional option for the router.
type RouterOption func(*Router)

// WithEngine registers evaluator for engine.
func WithEngine(engine string, evaluator Evaluator) RouterOption {
	return func(r *Router) {
		r.engines[engine] = evaluator
	}
}

// WithRouterLogger sets the logger.
func WithRouterLogger(logger observability.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithRouterMetrics sets the metrics.
func WithRouterMetrics(metrics *Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = metrics
	}
}

// NewRouter creates a router. The requirements engine is always registered.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		engines: map[string]Evaluator{EngineRequirements: NewRequirementsEngine()},
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics("funcauthz")
	}
	return r
}

// Evaluate evaluates def. Errors are wrapped in EvaluationError; callers
// treat them as not satisfied.
func (r *Router) Evaluate(ctx context.Context, identity *auth.Identity, def *Definition) (bool, error) {
	engine := def.EffectiveEngine()

	ctx, span := policyTracer.Start(ctx, "policy.evaluate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("policy.name", def.Name),
			attribute.String("policy.engine", engine),
		),
	)
	defer span.End()

	start := time.Now()

	evaluator, ok := r.engines[engine]
	if !ok {
		err := &EvaluationError{Policy: def.Name, Engine: engine, Err: ErrEngineNotConfigured}
		r.metrics.RecordEvaluation(engine, "error", time.Since(start))
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	allowed, err := evaluator.Evaluate(ctx, identity, def)
	if err != nil {
		r.metrics.RecordEvaluation(engine, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("policy evaluation failed",
			observability.String("policy", def.Name),
			observability.String("engine", engine),
			observability.Error(err),
		)
		return false, &EvaluationError{Policy: def.Name, Engine: engine, Err: err}
	}

	result := "denied"
	if allowed {
		result = "satisfied"
	}
	r.metrics.RecordEvaluation(engine, result, time.Since(start))
	span.SetAttributes(attribute.Bool("policy.satisfied", allowed))

	r.logger.Debug("policy evaluated",
		observability.String("policy", def.Name),
		observability.String("engine", engine),
		observability.Bool("satisfied", allowed),
	)

	return allowed, nil
}
