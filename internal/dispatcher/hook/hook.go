package hook

import (
	"context"

	"github.com/dshills/atomik/internal/config"
)

// Hook is implemented by every dispatch hook.
type Hook interface {
	// Name identifies the hook; registering a second hook with the same
	// name replaces the first.
	Name() string

	// Priority orders the hooks: 1000 and up for framework hooks, 500 to
	// 999 for application files, below 500 for user hooks.
	Priority() int
}

// Context is what a hook sees of the request being dispatched.
type Context struct {
	// URI is the resolved request URI.
	URI string

	// Action is the action about to run, or the one that ran.
	Action string

	// Store is the request store.
	Store *config.Store

	// Output is the response body. Only set for post-hooks.
	Output string
}

// PreDispatchHook runs after Dispatch::Before and before the action.
type PreDispatchHook interface {
	Hook

	// PreDispatch returns false to stop the dispatch.
	PreDispatch(ctx context.Context, hc *Context) (bool, error)
}

// PostDispatchHook runs after the output has been written.
type PostDispatchHook interface {
	Hook

	PostDispatch(ctx context.Context, hc *Context) error
}

type named struct {
	name     string
	priority int
}

func (n named) Name() string  { return n.name }
func (n named) Priority() int { return n.priority }

type preFunc struct {
	named
	fn func(ctx context.Context, hc *Context) (bool, error)
}

func (f preFunc) PreDispatch(ctx context.Context, hc *Context) (bool, error) {
	if f.fn == nil {
		return true, nil
	}
	return f.fn(ctx, hc)
}

type postFunc struct {
	named
	fn func(ctx context.Context, hc *Context) error
}

func (f postFunc) PostDispatch(ctx context.Context, hc *Context) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, hc)
}

// PreFunc returns fn as a pre-dispatch hook. A nil fn lets every
// dispatch through.
func PreFunc(name string, priority int, fn func(ctx context.Context, hc *Context) (bool, error)) PreDispatchHook {
	return preFunc{named{name, priority}, fn}
}

// PostFunc returns fn as a post-dispatch hook.
func PostFunc(name string, priority int, fn func(ctx context.Context, hc *Context) error) PostDispatchHook {
	return postFunc{named{name, priority}, fn}
}
