package markup

import (
	"errors"
	"fmt"
)

var (
	// ErrComponentNotFound is returned when a tag has no registered component.
	ErrComponentNotFound = errors.New("component not found")

	// ErrAlreadyRegistered is returned when a tag or a native element is registered twice.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrNoSecurityService is returned by the permission gate when component security is enabled
	// without a security service.
	ErrNoSecurityService = errors.New("component security is enabled but no security service is configured")
)

// AttributeError reports an attribute value that looks like JSON but does not parse.
type AttributeError struct {
	Name string
	Err  error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("failed to parse value for attribute %q as JSON: %v", e.Name, e.Err)
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}

// WrappingError adds context to an underlying error and keeps it as the cause.
type WrappingError struct {
	Message string
	Cause   error
}

func (e *WrappingError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *WrappingError) Unwrap() error {
	return e.Cause
}

// RenderError is recorded by the error boundary when a component instance fails.
type RenderError struct {
	// Component is the name of the failing class.
	Component string

	// Phase is the lifecycle method that failed, e.g. "render" or "mount".
	Phase string

	// Panic is true when the failure was a recovered panic rather than a returned error.
	Panic bool

	Err error
}

func (e *RenderError) Error() string {
	kind := "error"
	if e.Panic {
		kind = "panic"
	}
	return fmt.Sprintf("component %s: %s in %s: %v", e.Component, kind, e.Phase, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Causes returns err followed by the chain of errors it wraps. Joined errors are flattened in
// order.
func Causes(err error) []error {
	var out []error
	var walk func(error)
	walk = func(err error) {
		for err != nil {
			out = append(out, err)
			if multi, ok := err.(interface{ Unwrap() []error }); ok {
				for _, e := range multi.Unwrap() {
					walk(e)
				}
				return
			}
			err = errors.Unwrap(err)
		}
	}
	walk(err)
	return out
}
