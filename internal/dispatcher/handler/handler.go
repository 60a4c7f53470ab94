// Package handler provides the interface for actions implemented in Go.
package handler

import (
	"context"
	"errors"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/dispatcher/execctx"
	"github.com/dshills/atomik/internal/logging"
)

// ErrNilHandler is returned by a HandlerFunc without a function.
var ErrNilHandler = errors.New("handler function is nil")

// Context is the input of one action run.
type Context struct {
	// Action is the action name, without method suffix.
	Action string

	// Method is the part after the last dot of the executed name, or "".
	Method string

	// Params are the request parameters.
	Params map[string]any

	// Vars are the view variables produced so far. A method handler sees
	// those of the general handler.
	Vars map[string]any

	// Store is the request store.
	Store *config.Store

	// Frame controls the view of the running action.
	Frame *execctx.Frame

	Log *logging.Logger
}

// Param returns a request parameter, or def when it is absent.
func (c *Context) Param(name string, def any) any {
	if v, ok := c.Params[name]; ok && v != nil {
		return v
	}
	return def
}

// Handler implements an action. The returned map becomes the view
// variables; nil keeps the current ones.
type Handler interface {
	Handle(ctx context.Context, hc *Context) (map[string]any, error)

	// Priority returns the handler priority (higher = preferred).
	Priority() int
}

// HandlerFunc is a function adapter for the Handler interface.
type HandlerFunc struct {
	fn   func(ctx context.Context, hc *Context) (map[string]any, error)
	prio int
}

// NewHandlerFunc creates a HandlerFunc from a function.
func NewHandlerFunc(fn func(ctx context.Context, hc *Context) (map[string]any, error)) *HandlerFunc {
	return &HandlerFunc{fn: fn}
}

// NewHandlerFuncWithPriority creates a HandlerFunc with a specified priority.
func NewHandlerFuncWithPriority(fn func(ctx context.Context, hc *Context) (map[string]any, error), priority int) *HandlerFunc {
	return &HandlerFunc{fn: fn, prio: priority}
}

// Handle implements Handler.
func (f *HandlerFunc) Handle(ctx context.Context, hc *Context) (map[string]any, error) {
	if f.fn == nil {
		return nil, ErrNilHandler
	}
	return f.fn(ctx, hc)
}

// Priority implements Handler.
func (f *HandlerFunc) Priority() int {
	return f.prio
}

// Vars is a handler that always returns the same variables.
type Vars map[string]any

// Handle implements Handler. The result is merged over the current vars.
func (v Vars) Handle(_ context.Context, hc *Context) (map[string]any, error) {
	out := make(map[string]any, len(hc.Vars)+len(v))
	for k, val := range hc.Vars {
		out[k] = val
	}
	for k, val := range v {
		out[k] = val
	}
	return out, nil
}

// Priority implements Handler.
func (v Vars) Priority() int { return 0 }
