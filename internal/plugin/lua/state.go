package lua

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/atomik/internal/config/loader"
)

// DefaultExecutionTimeout bounds one outermost call into a state.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe. State serializes callers with a
// mutex that is taken once per outermost call; Go functions invoked from Lua
// receive the owning context through L.Context() and may call back into the
// same State with it without deadlocking.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	fs      loader.FileSystem
	timeout time.Duration
	sandbox *Sandbox
	bridge  *Bridge
	closed  bool
}

// StateOption configures a State.
type StateOption func(*stateConfig)

type stateConfig struct {
	fs      loader.FileSystem
	timeout time.Duration
	libDirs []string
	caps    []Capability
}

// WithFS sets the file system scripts and libraries are read from.
func WithFS(fsys loader.FileSystem) StateOption {
	return func(c *stateConfig) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// WithExecutionTimeout sets the timeout for each outermost call. Zero
// disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(c *stateConfig) {
		c.timeout = d
	}
}

// WithLibraryDirs adds directories searched by require.
func WithLibraryDirs(dirs ...string) StateOption {
	return func(c *stateConfig) {
		c.libDirs = append(c.libDirs, dirs...)
	}
}

// WithCapabilities grants sandbox capabilities up front.
func WithCapabilities(caps ...Capability) StateOption {
	return func(c *stateConfig) {
		c.caps = append(c.caps, caps...)
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	cfg := stateConfig{
		fs:      loader.DefaultFS(),
		timeout: DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	s := &State{
		L:       L,
		fs:      cfg.fs,
		timeout: cfg.timeout,
		bridge:  NewBridge(L),
	}
	s.sandbox = NewSandbox(L, cfg.fs)
	for _, dir := range cfg.libDirs {
		s.sandbox.AddLibraryDir(dir)
	}
	s.sandbox.Install()
	for _, c := range cfg.caps {
		s.sandbox.Grant(c)
	}
	return s, nil
}

// openSafeLibraries opens the Lua standard libraries without io, os and debug.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

type ownerKey struct{ s *State }

// acquire locks the state unless ctx already owns it. The returned context
// marks ownership and carries the timeout of an outermost call.
func (s *State) acquire(ctx context.Context) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(ownerKey{s}) != nil {
		if s.closed {
			return nil, nil, ErrStateClosed
		}
		prev := s.L.Context()
		s.L.SetContext(ctx)
		return ctx, func() { s.restoreContext(prev) }, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrStateClosed
	}

	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	ctx = context.WithValue(ctx, ownerKey{s}, true)
	prev := s.L.Context()
	s.L.SetContext(ctx)
	return ctx, func() {
		s.restoreContext(prev)
		cancel()
		s.mu.Unlock()
	}, nil
}

func (s *State) restoreContext(prev context.Context) {
	if prev != nil {
		s.L.SetContext(prev)
		return
	}
	s.L.RemoveContext()
}

// Do runs fn while holding the state. Calls made through the context fn
// receives do not lock again.
func (s *State) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Load compiles the script at path without running it.
func (s *State) Load(path string) (*lua.LFunction, error) {
	src, err := loader.ReadFile(s.fs, path)
	if err != nil {
		return nil, &ScriptError{Script: path, Err: err}
	}
	fn, err := s.L.Load(bytes.NewReader(src), path)
	if err != nil {
		return nil, &ScriptError{Script: path, Err: err}
	}
	return fn, nil
}

// DoFile runs the script at path in the global environment and returns its
// return values.
func (s *State) DoFile(ctx context.Context, path string) ([]lua.LValue, error) {
	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	fn, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	ret, err := s.pcall(ctx, fn)
	if err != nil {
		return nil, &ScriptError{Script: path, Err: err}
	}
	return ret, nil
}

// DoString runs a chunk of Lua source and returns its return values.
func (s *State) DoString(ctx context.Context, code string) ([]lua.LValue, error) {
	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	fn, err := s.L.LoadString(code)
	if err != nil {
		return nil, err
	}
	return s.pcall(ctx, fn)
}

// Call calls a Lua function value.
func (s *State) Call(ctx context.Context, fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.pcall(ctx, fn, args...)
}

// CallGlobal calls the global function name.
func (s *State) CallGlobal(ctx context.Context, name string, args ...lua.LValue) ([]lua.LValue, error) {
	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	fn := s.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: global %q is %s", ErrNotFunction, name, fn.Type())
	}
	return s.pcall(ctx, fn, args...)
}

// pcall runs fn on the locked state and collects its return values.
func (s *State) pcall(ctx context.Context, fn lua.LValue, args ...lua.LValue) (ret []lua.LValue, err error) {
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: got %s", ErrNotFunction, fn.Type())
	}

	top := s.L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			s.L.SetTop(top)
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}
	if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
		s.L.SetTop(top)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		}
		return nil, err
	}

	n := s.L.GetTop() - top
	ret = make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		ret[i] = s.L.Get(top + i + 1)
	}
	s.L.Pop(n)
	return ret, nil
}

// GoFunc is a Lua function exposed to Go with converted values.
type GoFunc func(ctx context.Context, args ...any) ([]any, error)

// Func wraps a Lua function so Go code can call it with Go values.
func (s *State) Func(fn *lua.LFunction) GoFunc {
	return func(ctx context.Context, args ...any) ([]any, error) {
		ctx, release, err := s.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = s.bridge.ToLua(a)
		}
		ret, err := s.pcall(ctx, fn, largs...)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(ret))
		for i, v := range ret {
			out[i] = s.bridge.FromLua(v)
		}
		return out, nil
	}
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable from a Go value.
func (s *State) SetGlobal(name string, v any) {
	s.L.SetGlobal(name, s.bridge.ToLua(v))
}

// PreloadModule makes a Go module available to require.
func (s *State) PreloadModule(name string, fn lua.LGFunction) {
	s.L.PreloadModule(name, fn)
}

// Bridge returns the value converter bound to this state.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// Sandbox returns the sandbox for capability and library management.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
