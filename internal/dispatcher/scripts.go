package dispatcher

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/plugin/api"
	plua "github.com/dshills/atomik/internal/plugin/lua"
	"github.com/dshills/atomik/internal/render"
)

// Scripts runs the Lua files of an application: actions, helpers and hook
// files. One Scripts is shared by every request; the request store and
// dispatcher controls reach the atomik module through the call context.
type Scripts struct {
	state *plua.State
}

// NewScripts creates a script runner over fsys with the atomik module
// bound to c.
func NewScripts(fsys loader.FileSystem, c *api.Context, opts ...plua.StateOption) (*Scripts, error) {
	opts = append([]plua.StateOption{plua.WithFS(fsys)}, opts...)
	state, err := plua.NewState(opts...)
	if err != nil {
		return nil, err
	}
	api.Open(state, c)
	return &Scripts{state: state}, nil
}

// RunFile runs the script at path and returns its first return value.
// An isolated run gets a private global scope; otherwise globals the
// script defines stay visible to later scripts.
func (s *Scripts) RunFile(ctx context.Context, path string, isolated bool) (any, error) {
	var out any
	err := s.state.Do(ctx, func(ctx context.Context) error {
		var (
			ret []lua.LValue
			err error
		)
		if isolated {
			ret, err = s.state.RunInScope(ctx, path, s.state.NewScope(nil))
		} else {
			ret, err = s.state.DoFile(ctx, path)
		}
		if err != nil {
			return err
		}
		if len(ret) > 0 {
			out = s.state.Bridge().FromLua(ret[0])
		}
		return nil
	})
	return out, err
}

// RunAction runs an action script in a scope seeded with vars and returns
// the resulting view variables.
//
// Globals the script assigns become variables. A script may instead
// return a table, merged over them, or a function called with vars and
// params whose returned table is used the same way.
func (s *Scripts) RunAction(ctx context.Context, path string, vars, params map[string]any) (map[string]any, error) {
	var out map[string]any
	err := s.state.Do(ctx, func(ctx context.Context) error {
		b := s.state.Bridge()
		sc := s.state.NewScope(vars)
		ret, err := s.state.RunInScope(ctx, path, sc)
		if err != nil {
			return err
		}

		var result lua.LValue = lua.LNil
		if len(ret) > 0 {
			result = ret[0]
		}
		if fn, ok := result.(*lua.LFunction); ok {
			ret, err = s.state.Call(ctx, fn, b.ToLua(vars), b.ToLua(params))
			if err != nil {
				return &plua.ScriptError{Script: path, Err: err}
			}
			result = lua.LNil
			if len(ret) > 0 {
				result = ret[0]
			}
		}

		out = s.state.Vars(sc)
		if tbl, ok := result.(*lua.LTable); ok {
			for k, v := range b.TableToMap(tbl) {
				out[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}
	return out, nil
}

// LoadHelper runs a helper file and returns its function name, either
// defined as a global of the file or returned by it.
func (s *Scripts) LoadHelper(ctx context.Context, path, name string) (render.HelperFunc, error) {
	var fn *lua.LFunction
	err := s.state.Do(ctx, func(ctx context.Context) error {
		sc := s.state.NewScope(nil)
		ret, err := s.state.RunInScope(ctx, path, sc)
		if err != nil {
			return err
		}
		if f, ok := sc.Env.RawGetString(name).(*lua.LFunction); ok {
			fn = f
			return nil
		}
		if len(ret) > 0 {
			if f, ok := ret[0].(*lua.LFunction); ok {
				fn = f
				return nil
			}
		}
		return fmt.Errorf("%w: %s defines no function %s", ErrHelperNotFound, path, name)
	})
	if err != nil {
		return nil, err
	}

	call := s.state.Func(fn)
	return func(ctx context.Context, _ string, args ...any) (any, error) {
		out, err := call(ctx, args...)
		if err != nil || len(out) == 0 {
			return nil, err
		}
		return out[0], nil
	}, nil
}

// Close releases the Lua state.
func (s *Scripts) Close() error {
	return s.state.Close()
}
