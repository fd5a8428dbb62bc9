package authz

import (
	"errors"
	"fmt"
)

// Catalog errors. Authorization outcomes are Decisions, never errors.
var (
	// ErrUnknownType indicates a type that was never added to the catalog.
	ErrUnknownType = errors.New("unknown type")

	// ErrDuplicateType indicates a type added twice.
	ErrDuplicateType = errors.New("duplicate type")

	// ErrDuplicateMethod indicates a method with the same signature added twice.
	ErrDuplicateMethod = errors.New("duplicate method")

	// ErrHandlerNotFound indicates a handler reference with no matching method.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrInheritanceCycle indicates a type that is its own ancestor.
	ErrInheritanceCycle = errors.New("inheritance cycle")
)

// CatalogError describes a catalog failure.
type CatalogError struct {
	Op     string
	Type   string
	Method string
	Err    error
}

// Error returns the error message.
func (e *CatalogError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("authz: %s %s.%s: %v", e.Op, e.Type, e.Method, e.Err)
	}
	return fmt.Sprintf("authz: %s %s: %v", e.Op, e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *CatalogError) Unwrap() error {
	return e.Err
}
