package plugin

import "errors"

var (
	ErrPluginNotFound = errors.New("plugin not found")
	ErrNoEntryPoint   = errors.New("plugin directory has no Plugin.lua")
	ErrInvalidPlugin  = errors.New("invalid plugin")

	// ErrMethodNotFound and ErrNotInvocable come from the method registry.
	ErrMethodNotFound = errors.New("plugin method not found")
	ErrNotInvocable   = errors.New("plugin method is not callable")
)
