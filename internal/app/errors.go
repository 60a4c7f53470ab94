package app

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Application errors.
var (
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("application closed")

	// ErrInvalidOverride reports a --set value that is not key=value.
	ErrInvalidOverride = errors.New("invalid override")
)

// InitError reports a failed startup step.
type InitError struct {
	Component string // Component being initialized (e.g., "config", "plugins")
	Err       error  // Underlying error
}

func (e *InitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("init %s", e.Component)
	}
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PanicError is a panic recovered inside the request pipeline.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// recovered converts a recovered panic value into an error carrying the
// stack of the panic.
func recovered(v any) error {
	return errors.WithStackDepth(&PanicError{Value: v}, 1)
}

// fault wraps an error returned by the pipeline so that the diagnostic
// page can print where it crossed into the application.
func fault(err error, uri string) error {
	var pe *PanicError
	if errors.As(err, &pe) {
		return err
	}
	return errors.Wrapf(err, "dispatch %q", uri)
}
