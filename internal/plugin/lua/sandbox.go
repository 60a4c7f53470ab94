package lua

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/atomik/internal/config/loader"
)

// Sandbox restricts what scripts can reach. Only string, table and math,
// preloaded Go modules and scripts inside the library directories can be
// required.
type Sandbox struct {
	L *lua.LState

	fs      loader.FileSystem
	libDirs []string

	capabilities map[Capability]bool
}

// Capability represents a permission that can be granted to scripts.
type Capability string

// Available capabilities.
const (
	// CapabilityEnv exposes a read-only os table (getenv, time, date, clock).
	CapabilityEnv Capability = "env"

	// CapabilityUnsafe opens the full io, os and debug libraries.
	CapabilityUnsafe Capability = "unsafe"
)

var builtinModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// NewSandbox creates a sandbox for L reading libraries from fsys.
func NewSandbox(L *lua.LState, fsys loader.FileSystem) *Sandbox {
	if fsys == nil {
		fsys = loader.DefaultFS()
	}
	return &Sandbox{
		L:            L,
		fs:           fsys,
		capabilities: make(map[Capability]bool),
	}
}

// Install removes the loaders that read arbitrary files and replaces require.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "cpath", lua.LString(""))
		s.L.SetField(pkg, "path", lua.LString(s.packagePath()))
	}
	s.L.SetGlobal("require", s.L.NewFunction(s.require))
}

// AddLibraryDir appends dir to the require search path.
func (s *Sandbox) AddLibraryDir(dir string) {
	for _, d := range s.libDirs {
		if d == dir {
			return
		}
	}
	s.libDirs = append(s.libDirs, dir)
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(s.packagePath()))
	}
}

// LibraryDirs returns the require search directories in order.
func (s *Sandbox) LibraryDirs() []string {
	return append([]string(nil), s.libDirs...)
}

func (s *Sandbox) packagePath() string {
	parts := make([]string, 0, len(s.libDirs))
	for _, d := range s.libDirs {
		parts = append(parts, filepath.Join(d, "?.lua"))
	}
	return strings.Join(parts, ";")
}

func (s *Sandbox) require(L *lua.LState) int {
	name := L.CheckString(1)

	pkg, _ := L.GetGlobal("package").(*lua.LTable)
	var loaded, preload *lua.LTable
	if pkg != nil {
		loaded, _ = L.GetField(pkg, "loaded").(*lua.LTable)
		preload, _ = L.GetField(pkg, "preload").(*lua.LTable)
	}

	if loaded != nil {
		if v := loaded.RawGetString(name); v != lua.LNil {
			L.Push(v)
			return 1
		}
	}
	if builtinModules[name] {
		L.Push(L.GetGlobal(name))
		return 1
	}

	var fn lua.LValue = lua.LNil
	if preload != nil {
		fn = preload.RawGetString(name)
	}
	if fn == lua.LNil {
		path, ok := s.findLibrary(name)
		if !ok {
			L.RaiseError("%s: %q", ErrModuleNotFound, name)
			return 0
		}
		src, err := loader.ReadFile(s.fs, path)
		if err != nil {
			L.RaiseError("require %q: %v", name, err)
			return 0
		}
		chunk, err := L.Load(bytes.NewReader(src), path)
		if err != nil {
			L.RaiseError("require %q: %v", name, err)
			return 0
		}
		fn = chunk
	}

	L.Push(fn)
	L.Push(lua.LString(name))
	L.Call(1, 1)
	mod := L.Get(-1)
	L.Pop(1)
	if mod == lua.LNil {
		mod = lua.LTrue
	}
	if loaded != nil {
		loaded.RawSetString(name, mod)
	}
	L.Push(mod)
	return 1
}

func (s *Sandbox) findLibrary(name string) (string, bool) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	if strings.Contains(rel, "..") {
		return "", false
	}
	for _, dir := range s.libDirs {
		for _, candidate := range []string{
			filepath.Join(dir, rel+".lua"),
			filepath.Join(dir, rel, "init.lua"),
		} {
			if loader.IsFile(s.fs, candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

// Grant enables a capability.
func (s *Sandbox) Grant(c Capability) {
	if s.capabilities[c] {
		return
	}
	s.capabilities[c] = true

	switch c {
	case CapabilityEnv:
		s.injectEnvAPI()
	case CapabilityUnsafe:
		lua.OpenIo(s.L)
		lua.OpenOs(s.L)
		lua.OpenDebug(s.L)
	}
}

// HasCapability returns true if the capability is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	return s.capabilities[c]
}

// CheckCapability returns an error if the capability is not granted.
func (s *Sandbox) CheckCapability(c Capability) error {
	if !s.capabilities[c] {
		return &CapabilityError{Capability: c}
	}
	return nil
}

func (s *Sandbox) injectEnvAPI() {
	mod := s.L.NewTable()
	s.L.SetField(mod, "getenv", s.L.NewFunction(func(L *lua.LState) int {
		v, ok := os.LookupEnv(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(v))
		return 1
	}))
	s.L.SetField(mod, "time", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	s.L.SetField(mod, "date", s.L.NewFunction(func(L *lua.LState) int {
		layout := L.OptString(1, time.RFC3339)
		L.Push(lua.LString(time.Now().Format(layout)))
		return 1
	}))
	start := time.Now()
	s.L.SetField(mod, "clock", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Since(start).Seconds()))
		return 1
	}))
	s.L.SetGlobal("os", mod)
}

// CapabilityError is returned when a capability is not granted.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return "capability not granted: " + string(e.Capability)
}
