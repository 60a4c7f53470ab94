package api

import (
	"context"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/logging"
)

// MethodProvider calls methods registered by plugins.
type MethodProvider interface {
	Call(ctx context.Context, name string, args ...any) (any, error)
}

// ApplicationRegistrar registers pluggable applications.
type ApplicationRegistrar interface {
	RegisterApplicationMap(plugin string, opts map[string]any) error
}

// ControlProvider is implemented by the dispatcher handling the current
// request.
type ControlProvider interface {
	NoRender()
	SetView(name string)
	DisableLayout(disable bool)
	Execute(ctx context.Context, action string, render bool) (string, map[string]any, error)
	Helper(ctx context.Context, name string, args ...any) (any, error)
}

// Context binds the module to the application.
type Context struct {
	// Store is used when the running call carries no request store.
	Store *config.Store

	Bus     *event.Bus
	Methods MethodProvider
	Apps    ApplicationRegistrar
	Log     *logging.Logger
}

type storeKey struct{}
type controlsKey struct{}

// WithStore attaches a request store to ctx.
func WithStore(ctx context.Context, s *config.Store) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, storeKey{}, s)
}

// StoreFrom returns the request store carried by ctx.
func StoreFrom(ctx context.Context) (*config.Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(storeKey{}).(*config.Store)
	return s, ok
}

// WithControls attaches the dispatcher controls to ctx.
func WithControls(ctx context.Context, c ControlProvider) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, controlsKey{}, c)
}

// ControlsFrom returns the dispatcher controls carried by ctx.
func ControlsFrom(ctx context.Context) (ControlProvider, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(controlsKey{}).(ControlProvider)
	return c, ok
}
