package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

var authTracer = otel.Tracer("funcauthz/auth")

// Validator verifies a raw token and builds an identity from its claims.
type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, token string) (*Identity, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// TokenService turns raw bearer tokens into identities. It never returns an
// error: every failure, including a panicking validator, yields nil.
type TokenService struct {
	validator Validator
	scheme    string
	logger    observability.Logger
	metrics   *Metrics
}

// TokenServiceOption is a functional option for the token service.
type TokenServiceOption func(*TokenService)

// WithTokenServiceLogger sets the logger.
func WithTokenServiceLogger(logger observability.Logger) TokenServiceOption {
	return func(s *TokenService) {
		s.logger = logger
	}
}

// WithTokenServiceMetrics sets the metrics.
func WithTokenServiceMetrics(metrics *Metrics) TokenServiceOption {
	return func(s *TokenService) {
		s.metrics = metrics
	}
}

// WithScheme sets the authentication scheme stamped on produced identities.
func WithScheme(scheme string) TokenServiceOption {
	return func(s *TokenService) {
		if scheme != "" {
			s.scheme = scheme
		}
	}
}

// NewTokenService creates a token service over validator. A nil validator
// rejects every token.
func NewTokenService(validator Validator, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		validator: validator,
		scheme:    DefaultScheme,
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = NewMetrics("funcauthz")
	}

	return s
}

// Scheme returns the authentication scheme identifier.
func (s *TokenService) Scheme() string {
	return s.scheme
}

// ValidateToken validates token and returns the identity, or nil when the
// token is missing or fails validation for any reason.
func (s *TokenService) ValidateToken(ctx context.Context, token string) *Identity {
	start := time.Now()

	ctx, span := authTracer.Start(ctx, "auth.validate_token",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("auth.scheme", s.scheme)),
	)
	defer span.End()

	identity, reason := s.validate(ctx, token)
	if identity == nil {
		span.SetAttributes(attribute.String("auth.result", reason))
		s.metrics.RecordFailure(reason, time.Since(start))
		return nil
	}

	if identity.Scheme == "" {
		identity.Scheme = s.scheme
	}

	span.SetAttributes(attribute.String("auth.result", "valid"))
	s.metrics.RecordSuccess(time.Since(start))
	return identity
}

func (s *TokenService) validate(ctx context.Context, token string) (identity *Identity, reason string) {
	if token == "" || s.validator == nil {
		return nil, reasonMissing
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithContext(ctx).Warn("token validator panicked",
				observability.Any("panic", r),
			)
			identity, reason = nil, reasonPanic
		}
	}()

	identity, err := s.validator.Validate(ctx, token)
	if err != nil {
		s.logger.WithContext(ctx).Debug("token rejected", observability.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, reasonCanceled
		}
		return nil, reasonInvalid
	}
	if identity == nil {
		s.logger.WithContext(ctx).Debug("token rejected",
			observability.Error(fmt.Errorf("%w: validator returned no identity", ErrInvalidToken)),
		)
		return nil, reasonInvalid
	}
	return identity, ""
}
