package lua

import (
	"context"

	lua "github.com/yuin/gopher-lua"
)

// Scope is a private global environment for one script run. Reads fall
// through to the shared globals; writes stay in the scope.
type Scope struct {
	Env *lua.LTable
}

// NewScope creates a scope seeded with vars.
func (s *State) NewScope(vars map[string]any) *Scope {
	env := s.L.NewTable()
	mt := s.L.NewTable()
	s.L.SetField(mt, "__index", s.L.Get(lua.GlobalsIndex))
	s.L.SetMetatable(env, mt)
	for k, v := range vars {
		env.RawSetString(k, s.bridge.ToLua(v))
	}
	return &Scope{Env: env}
}

// Vars returns the variables bound in the scope itself.
func (s *State) Vars(sc *Scope) map[string]any {
	return s.bridge.TableToMap(sc.Env)
}

// RunInScope runs the script at path with sc as its global environment.
// Functions the script defines keep that environment.
func (s *State) RunInScope(ctx context.Context, path string, sc *Scope) ([]lua.LValue, error) {
	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	fn, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	if sc != nil {
		s.L.SetFEnv(fn, sc.Env)
	}
	ret, err := s.pcall(ctx, fn)
	if err != nil {
		return nil, &ScriptError{Script: path, Err: err}
	}
	return ret, nil
}
