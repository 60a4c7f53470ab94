package config

import (
	"errors"
	"fmt"
)

// Errors returned by store operations.
var (
	// ErrKeyNotFound indicates a delete on a path that does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidArgument indicates a malformed call, such as an empty path.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSelectorExists indicates a namespace already has a selector.
	ErrSelectorExists = errors.New("selector already registered")
)

// KeyError describes a failed operation on a specific path.
type KeyError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	if errors.Is(e.Err, ErrKeyNotFound) {
		return fmt.Sprintf("%s: key %q does not exist", e.Op, e.Path)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyError) Unwrap() error {
	return e.Err
}
