package api

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/logging"
	plua "github.com/dshills/atomik/internal/plugin/lua"
)

// ModuleName is the name scripts require.
const ModuleName = "atomik"

// ErrUnavailable is raised when a function needs a collaborator the
// module was not given, such as execute outside a request.
var ErrUnavailable = errors.New("not available in this context")

// Module implements the atomik Lua module for one State.
type Module struct {
	ctx    *Context
	state  *plua.State
	bridge *plua.Bridge
	log    *logging.Logger
}

// Open installs the atomik module into state, both as a global and for
// require.
func Open(state *plua.State, c *Context) *Module {
	if c == nil {
		c = &Context{}
	}
	log := c.Log
	if log == nil {
		log = logging.Nop()
	}
	m := &Module{
		ctx:    c,
		state:  state,
		bridge: state.Bridge(),
		log:    log.WithComponent("lua"),
	}

	mod := m.table(state.L)
	state.PreloadModule(ModuleName, func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})
	state.L.SetGlobal(ModuleName, mod)
	return m
}

func (m *Module) table(L *lua.LState) *lua.LTable {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":                  m.get,
		"set":                  m.set,
		"add":                  m.add,
		"has":                  m.has,
		"delete":               m.delete,
		"listen":               m.listen,
		"fire":                 m.fire,
		"call":                 m.call,
		"flash":                m.flash,
		"register_application": m.registerApplication,
		"no_render":            m.noRender,
		"set_view":             m.setView,
		"disable_layout":       m.disableLayout,
		"execute":              m.execute,
		"helper":               m.helper,
		"log":                  m.logMessage,
	})
}

func callContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (m *Module) store(L *lua.LState) *config.Store {
	if s, ok := StoreFrom(callContext(L)); ok {
		return s
	}
	if m.ctx.Store == nil {
		L.RaiseError("atomik: store %s", ErrUnavailable)
	}
	return m.ctx.Store
}

func (m *Module) controls(L *lua.LState) ControlProvider {
	c, ok := ControlsFrom(callContext(L))
	if !ok {
		L.RaiseError("atomik: dispatcher %s", ErrUnavailable)
	}
	return c
}

// atomik.get(path [, default])
func (m *Module) get(L *lua.LState) int {
	path := L.OptString(1, "")
	def := m.bridge.FromLua(L.Get(2))
	L.Push(m.bridge.ToLua(m.store(L).Get(path, def)))
	return 1
}

// atomik.set(path, value) or atomik.set(table)
func (m *Module) set(L *lua.LState) int {
	s := m.store(L)
	var err error
	if tbl, ok := L.Get(1).(*lua.LTable); ok {
		err = s.Merge(m.bridge.TableToMap(tbl))
	} else {
		err = s.Set(L.CheckString(1), m.bridge.FromLua(L.Get(2)))
	}
	if err != nil {
		L.RaiseError("atomik.set: %v", err)
	}
	return 0
}

// atomik.add(path, value) or atomik.add(table)
func (m *Module) add(L *lua.LState) int {
	s := m.store(L)
	var err error
	if tbl, ok := L.Get(1).(*lua.LTable); ok {
		err = s.AddMap(m.bridge.TableToMap(tbl))
	} else {
		err = s.Add(L.CheckString(1), m.bridge.FromLua(L.Get(2)))
	}
	if err != nil {
		L.RaiseError("atomik.add: %v", err)
	}
	return 0
}

func (m *Module) has(L *lua.LState) int {
	L.Push(lua.LBool(m.store(L).Has(L.CheckString(1))))
	return 1
}

func (m *Module) delete(L *lua.LState) int {
	v, err := m.store(L).Delete(L.CheckString(1))
	if err != nil {
		L.RaiseError("atomik.delete: %v", err)
		return 0
	}
	L.Push(m.bridge.ToLua(v))
	return 1
}

// atomik.listen(event, fn [, priority [, before]]) returns the slot.
func (m *Module) listen(L *lua.LState) int {
	if m.ctx.Bus == nil {
		L.RaiseError("atomik.listen: event bus %s", ErrUnavailable)
	}
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	opts := []event.ListenOption{event.WithPriority(L.OptInt(3, event.DefaultPriority))}
	if L.OptBool(4, false) {
		opts = append(opts, event.Before())
	}

	slot, err := m.ctx.Bus.Listen(event.Name(name), NewListener(m.state, listenerName(fn), fn, m.log), opts...)
	if err != nil {
		L.RaiseError("atomik.listen: %v", err)
	}
	L.Push(lua.LNumber(slot))
	return 1
}

func listenerName(fn *lua.LFunction) string {
	if fn.Proto != nil {
		return fmt.Sprintf("lua:%s:%d", fn.Proto.SourceName, fn.Proto.LineDefined)
	}
	return "lua:function"
}

// atomik.fire(event [, extra]) returns the joined listener results.
func (m *Module) fire(L *lua.LState) int {
	if m.ctx.Bus == nil {
		L.RaiseError("atomik.fire: event bus %s", ErrUnavailable)
	}
	name := L.CheckString(1)
	p := event.NewPayload(m.store(L))
	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		p.Extra = m.bridge.TableToMap(tbl)
	}
	out := m.ctx.Bus.FireString(callContext(L), event.Name(name), p)
	if p.Err != nil {
		L.RaiseError("atomik.fire: %v", p.Err)
	}
	L.Push(lua.LString(out))
	return 1
}

// atomik.call(method, ...)
func (m *Module) call(L *lua.LState) int {
	if m.ctx.Methods == nil {
		L.RaiseError("atomik.call: methods %s", ErrUnavailable)
	}
	name := L.CheckString(1)
	out, err := m.ctx.Methods.Call(callContext(L), name, m.bridge.Args(L, 2)...)
	if err != nil {
		L.RaiseError("atomik.call: %v", err)
	}
	L.Push(m.bridge.ToLua(out))
	return 1
}

// atomik.flash(message [, label])
func (m *Module) flash(L *lua.LState) int {
	msg := m.bridge.FromLua(L.CheckAny(1))
	if err := config.Flash(m.store(L), msg, L.OptString(2, "")); err != nil {
		L.RaiseError("atomik.flash: %v", err)
	}
	return 0
}

// atomik.register_application(plugin [, options])
func (m *Module) registerApplication(L *lua.LState) int {
	if m.ctx.Apps == nil {
		L.RaiseError("atomik.register_application: registrar %s", ErrUnavailable)
	}
	plugin := L.CheckString(1)
	var opts map[string]any
	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		opts = m.bridge.TableToMap(tbl)
	}
	if err := m.ctx.Apps.RegisterApplicationMap(plugin, opts); err != nil {
		L.RaiseError("atomik.register_application: %v", err)
	}
	return 0
}

func (m *Module) noRender(L *lua.LState) int {
	m.controls(L).NoRender()
	return 0
}

func (m *Module) setView(L *lua.LState) int {
	m.controls(L).SetView(L.CheckString(1))
	return 0
}

func (m *Module) disableLayout(L *lua.LState) int {
	m.controls(L).DisableLayout(L.OptBool(1, true))
	return 0
}

// atomik.execute(action [, render]) returns output and variables.
func (m *Module) execute(L *lua.LState) int {
	out, vars, err := m.controls(L).Execute(callContext(L), L.CheckString(1), L.OptBool(2, true))
	if err != nil {
		L.RaiseError("atomik.execute: %v", err)
	}
	L.Push(lua.LString(out))
	L.Push(m.bridge.ToLua(vars))
	return 2
}

// atomik.helper(name, ...)
func (m *Module) helper(L *lua.LState) int {
	out, err := m.controls(L).Helper(callContext(L), L.CheckString(1), m.bridge.Args(L, 2)...)
	if err != nil {
		L.RaiseError("atomik.helper: %v", err)
	}
	L.Push(m.bridge.ToLua(out))
	return 1
}

// atomik.log(level, message)
func (m *Module) logMessage(L *lua.LState) int {
	msg := L.CheckString(2)
	switch logging.ParseLevel(L.CheckString(1)) {
	case logging.LevelDebug:
		m.log.Debug("%s", msg)
	case logging.LevelInfo:
		m.log.Info("%s", msg)
	case logging.LevelWarn:
		m.log.Warn("%s", msg)
	default:
		m.log.Error("%s", msg)
	}
	return 0
}
