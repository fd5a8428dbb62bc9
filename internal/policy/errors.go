package policy

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInvalidDefinition is returned for a malformed policy definition.
	ErrInvalidDefinition = errors.New("invalid policy definition")

	// ErrDuplicatePolicy is returned when two definitions share a name.
	ErrDuplicatePolicy = errors.New("duplicate policy")

	// ErrEngineNotConfigured is returned when a policy names an engine that
	// has no evaluator registered.
	ErrEngineNotConfigured = errors.New("policy engine not configured")

	// ErrUnexpectedResult is returned when an engine produces a non-boolean result.
	ErrUnexpectedResult = errors.New("unexpected policy result")
)

// EvaluationError wraps a failure raised while evaluating a policy.
type EvaluationError struct {
	Policy string
	Engine string
	Err    error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("policy %q (%s): %v", e.Policy, e.Engine, e.Err)
}

// Unwrap returns the underlying error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}
