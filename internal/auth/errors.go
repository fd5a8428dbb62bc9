package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by token validators. TokenService collapses all of
// them into "no identity"; they only surface in logs and metrics.
var (
	// ErrNoCredentials indicates that no token was provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidToken indicates that the token could not be parsed or verified.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer indicates that the token issuer is not accepted.
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience indicates that the token audience is not accepted.
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrTokenRevoked indicates that the token has been revoked.
	ErrTokenRevoked = errors.New("token revoked")
)

// ValidationError wraps a validator failure with the stage that failed.
type ValidationError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("token validation failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError.
func NewValidationError(stage string, err error) *ValidationError {
	return &ValidationError{Stage: stage, Err: err}
}
