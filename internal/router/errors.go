package router

import "errors"

var (
	// ErrExtensionRequired signals a route miss: the configuration demands
	// an extension and the URI has none.
	ErrExtensionRequired = errors.New("uri extension required")

	// ErrInvalidRoute is returned by ParseTable for malformed entries.
	ErrInvalidRoute = errors.New("invalid route")
)
