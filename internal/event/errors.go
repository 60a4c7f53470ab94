package event

import "errors"

var (
	// ErrInvalidEvent rejects empty or malformed event names.
	ErrInvalidEvent = errors.New("event: invalid name")

	// ErrNotInvocable rejects nil listeners and scripted values that are
	// not functions.
	ErrNotInvocable = errors.New("event: listener cannot be called")
)
