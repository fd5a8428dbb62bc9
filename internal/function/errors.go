package function

import "errors"

var (
	// ErrInvalidFunction indicates a function registration with missing fields.
	ErrInvalidFunction = errors.New("invalid function")

	// ErrDuplicateFunction indicates a function name registered twice.
	ErrDuplicateFunction = errors.New("duplicate function")

	// ErrUnsupportedMethod indicates an HTTP method the host cannot route.
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")
)
