package fetcher

import (
	"errors"
	"fmt"
)

// Common errors returned or reported by the fetcher.
var (
	// ErrInvalidConfig is returned by New when pool sizes are negative.
	ErrInvalidConfig = errors.New("invalid fetcher config")

	// ErrNilProvider is returned by New when no provider is given.
	ErrNilProvider = errors.New("provider is required")

	// ErrMethodNotFound is returned by a provider when nothing is registered.
	ErrMethodNotFound = errors.New("method not registered")

	// ErrSnapshot is reported when an item's payload cannot be deep-copied.
	ErrSnapshot = errors.New("cannot snapshot payload")

	// ErrRequeueLimit is reported when a throttled item is dropped after
	// reaching Config.MaxRequeues.
	ErrRequeueLimit = errors.New("requeue limit reached")
)

// SetupError is returned synchronously when the pipeline cannot be created.
type SetupError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("fetcher setup: %s: %v", e.Reason, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// MethodResolutionError is reported when a provider has no callable for a
// kind. The kind's listing (or the item's parse) is abandoned.
type MethodResolutionError struct {
	Kind   string
	Method string
	Err    error
}

// Error implements the error interface.
func (e *MethodResolutionError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("resolve parser for %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %s for %s: %v", e.Method, e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MethodResolutionError) Unwrap() error {
	return e.Err
}

// ListError is reported when a list operation fails.
type ListError struct {
	Kind   string
	Method string
	Err    error
}

// Error implements the error interface.
func (e *ListError) Error() string {
	return fmt.Sprintf("list %s (%s): %v", e.Kind, e.Method, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ListError) Unwrap() error {
	return e.Err
}

// ParseError is reported when a parse operation fails for a reason other
// than throttling. The item is dropped.
type ParseError struct {
	Kind string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic recovered at a worker boundary.
type PanicError struct {
	Stage string
	Kind  string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s worker (%s): %v", e.Stage, e.Kind, e.Value)
}
