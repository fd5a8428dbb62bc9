package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Validator verifies signed JWTs against the configured parameters.
type Validator struct {
	config      *Config
	keySets     []jwk.Set
	algorithms  map[string]bool
	revocations RevocationChecker
	httpClient  *http.Client
	logger      observability.Logger
	now         func() time.Time
}

// Option is a functional option for the validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithRevocationChecker enables jti revocation checks.
func WithRevocationChecker(checker RevocationChecker) Option {
	return func(v *Validator) {
		v.revocations = checker
	}
}

// WithHTTPClient sets the client used to fetch the remote key set.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) {
		v.httpClient = client
	}
}

// WithClock overrides the time source used for exp and nbf checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a validator. Key material is loaded eagerly.
func NewValidator(ctx context.Context, config *Config, opts ...Option) (*Validator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	v := &Validator{
		config: config,
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	if len(config.Algorithms) > 0 {
		v.algorithms = make(map[string]bool, len(config.Algorithms))
		for _, alg := range config.Algorithms {
			v.algorithms[alg] = true
		}
	}

	if len(config.StaticKeys) > 0 {
		set, err := buildStaticKeySet(config.StaticKeys)
		if err != nil {
			return nil, fmt.Errorf("jwt: %w", err)
		}
		v.keySets = append(v.keySets, set)
	}

	if config.JWKSUrl != "" {
		set, err := newRemoteKeySet(ctx, config.JWKSUrl, config, v.httpClient)
		if err != nil {
			return nil, fmt.Errorf("jwt: %w", err)
		}
		v.keySets = append(v.keySets, set)
	}

	v.logger.Info("jwt validator initialized",
		observability.Int("static_keys", len(config.StaticKeys)),
		observability.Bool("jwks", config.JWKSUrl != ""),
		observability.Strings("issuers", config.Issuers),
	)

	return v, nil
}

// Validate verifies token and maps its claims to an identity.
func (v *Validator) Validate(ctx context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, auth.ErrNoCredentials
	}

	if err := v.checkAlgorithm(token); err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseString(token, v.parseOptions()...)
	if err != nil {
		return nil, classify(err)
	}

	if err := v.checkRevocation(ctx, parsed.JwtID()); err != nil {
		return nil, err
	}

	return v.toIdentity(ctx, parsed)
}

func (v *Validator) parseOptions() []jwt.ParseOption {
	opts := make([]jwt.ParseOption, 0, len(v.keySets)+6)
	for _, set := range v.keySets {
		opts = append(opts, jwt.WithKeySet(set,
			jws.WithInferAlgorithmFromKey(true),
			jws.WithRequireKid(false),
		))
	}

	opts = append(opts,
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithAcceptableSkew(v.config.GetEffectiveClockSkew()),
	)

	if v.config.GetEffectiveRequireExpiration() {
		opts = append(opts, jwt.WithRequiredClaim(jwt.ExpirationKey))
	}
	if len(v.config.Issuers) > 0 {
		opts = append(opts, jwt.WithValidator(jwt.ValidatorFunc(v.validateIssuer)))
	}
	if len(v.config.Audience) > 0 {
		opts = append(opts, jwt.WithValidator(jwt.ValidatorFunc(v.validateAudience)))
	}
	return opts
}

func (v *Validator) validateIssuer(_ context.Context, t jwt.Token) jwt.ValidationError {
	for _, iss := range v.config.Issuers {
		if t.Issuer() == iss {
			return nil
		}
	}
	return jwt.NewValidationError(auth.ErrInvalidIssuer)
}

func (v *Validator) validateAudience(_ context.Context, t jwt.Token) jwt.ValidationError {
	for _, got := range t.Audience() {
		for _, want := range v.config.Audience {
			if got == want {
				return nil
			}
		}
	}
	return jwt.NewValidationError(auth.ErrInvalidAudience)
}

// checkAlgorithm rejects tokens signed with an algorithm outside the allow list.
func (v *Validator) checkAlgorithm(token string) error {
	if v.algorithms == nil {
		return nil
	}
	msg, err := jws.ParseString(token)
	if err != nil {
		return auth.NewValidationError("parse", fmt.Errorf("%w: %v", auth.ErrInvalidToken, err))
	}
	for _, sig := range msg.Signatures() {
		alg := sig.ProtectedHeaders().Algorithm().String()
		if !v.algorithms[alg] {
			return auth.NewValidationError("algorithm",
				fmt.Errorf("%w: algorithm %s not allowed", auth.ErrInvalidToken, alg))
		}
	}
	return nil
}

func (v *Validator) checkRevocation(ctx context.Context, tokenID string) error {
	if v.revocations == nil || tokenID == "" {
		return nil
	}
	revoked, err := v.revocations.IsRevoked(ctx, tokenID)
	if err != nil {
		return auth.NewValidationError("revocation", err)
	}
	if revoked {
		return auth.NewValidationError("revocation", auth.ErrTokenRevoked)
	}
	return nil
}

func (v *Validator) toIdentity(ctx context.Context, t jwt.Token) (*auth.Identity, error) {
	claims, err := t.AsMap(ctx)
	if err != nil {
		return nil, auth.NewValidationError("claims", err)
	}

	identity := &auth.Identity{
		Subject:   t.Subject(),
		Issuer:    t.Issuer(),
		Audience:  t.Audience(),
		TokenID:   t.JwtID(),
		ExpiresAt: t.Expiration(),
		Claims:    claims,
	}

	mapping := v.config.ClaimMapping
	identity.Roles = identity.ClaimStrings(valueOr(mapping.Roles, DefaultRolesClaim))
	if mapping.Roles == "" && len(identity.Roles) == 0 {
		identity.Roles = identity.ClaimStrings("role")
	}
	identity.Name = identity.ClaimString(valueOr(mapping.Name, "name"))
	identity.Email = identity.ClaimString(valueOr(mapping.Email, "email"))

	return identity, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// classify maps jwx errors onto the auth sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired()):
		return auth.NewValidationError("lifetime", auth.ErrTokenExpired)
	case errors.Is(err, auth.ErrInvalidIssuer):
		return auth.NewValidationError("issuer", auth.ErrInvalidIssuer)
	case errors.Is(err, auth.ErrInvalidAudience):
		return auth.NewValidationError("audience", auth.ErrInvalidAudience)
	default:
		return auth.NewValidationError("verify", fmt.Errorf("%w: %v", auth.ErrInvalidToken, err))
	}
}
