package dispatcher

import (
	"errors"
	"fmt"
)

// Dispatcher errors.
var (
	// ErrActionNotFound indicates neither a handler nor a view exists for
	// an action.
	ErrActionNotFound = errors.New("dispatcher: action not found")

	// ErrViewNotFound indicates no view file matched in the view dirs.
	ErrViewNotFound = errors.New("dispatcher: view not found")

	// ErrNotDirectory indicates a pluggable application directory is missing.
	ErrNotDirectory = errors.New("dispatcher: not a directory")

	// ErrHelperNotFound indicates no helper of that name exists.
	ErrHelperNotFound = errors.New("dispatcher: helper not found")
)

// OperationError wraps a failure with the operation and its target.
type OperationError struct {
	Op     string
	Target string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Target, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
