package plugin

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/plugin/api"
	plua "github.com/dshills/atomik/internal/plugin/lua"
)

// autoListener matches table functions named after the event they handle,
// e.g. onAtomikDispatchStart for Atomik::Dispatch::Start.
var autoListener = regexp.MustCompile(`^on[A-Z]`)

// eventFromMethod converts "onAtomikDispatchStart" to "Atomik::Dispatch::Start".
func eventFromMethod(method string) event.Name {
	name := strings.TrimPrefix(method, "on")
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteString("::")
		}
		b.WriteRune(r)
	}
	return event.Name(b.String())
}

// luaEntry describes where a file plugin was found.
type luaEntry struct {
	entry   string
	libDirs []string
}

// loadLua runs a plugin entry script in a fresh state. The state is kept
// for the plugin's listeners and methods.
func (l *Loader) loadLua(ctx context.Context, name string, cfg map[string]any, e luaEntry, undo *undoList) (*plua.State, map[string]any, error) {
	opts := []plua.StateOption{
		plua.WithFS(l.fs),
		plua.WithExecutionTimeout(l.timeout),
		plua.WithCapabilities(l.caps...),
		plua.WithLibraryDirs(e.libDirs...),
	}
	state, err := plua.NewState(opts...)
	if err != nil {
		return nil, nil, err
	}
	api.Open(state, &api.Context{
		Store:   l.store,
		Bus:     l.bus,
		Methods: l.methods,
		Apps:    l.apps,
		Log:     l.log,
	})

	var regs []event.Registration
	err = state.Do(api.WithStore(ctx, l.store), func(ctx context.Context) error {
		state.SetGlobal("config", cfg)
		ret, err := state.DoFile(ctx, e.entry)
		if err != nil {
			return err
		}

		tbl := pluginTable(state, name, ret)
		if tbl == nil {
			return nil
		}
		b := state.Bridge()

		if d, ok := plua.Field[*lua.LTable](tbl, "defaults"); ok {
			merged, err := mergeDefaults(b.TableToMap(d), cfg)
			if err != nil {
				return err
			}
			cfg = merged
			state.SetGlobal("config", cfg)
		}

		if err := l.registerLuaMethods(state, name, tbl, undo); err != nil {
			return err
		}

		if fn, ok := plua.Field[*lua.LFunction](tbl, "start"); ok {
			out, err := state.Call(ctx, fn, b.ToLua(cfg))
			if err != nil {
				return err
			}
			if len(out) > 0 && out[0] == lua.LFalse {
				return nil
			}
		}

		regs, err = l.luaListeners(state, name, tbl)
		return err
	})
	if err != nil {
		state.Close()
		return nil, nil, &plua.ScriptError{Script: e.entry, Err: err}
	}

	if err := l.bus.ListenAll(regs); err != nil {
		state.Close()
		return nil, nil, err
	}
	return state, cfg, nil
}

// pluginTable returns the table returned by the entry script, or the
// global <Name>Plugin table.
func pluginTable(state *plua.State, name string, ret []lua.LValue) *lua.LTable {
	if len(ret) > 0 {
		if t, ok := ret[0].(*lua.LTable); ok {
			return t
		}
	}
	if t, ok := state.GetGlobal(name + "Plugin").(*lua.LTable); ok {
		return t
	}
	return nil
}

func (l *Loader) registerLuaMethods(state *plua.State, name string, tbl *lua.LTable, undo *undoList) error {
	methods, ok := plua.Field[*lua.LTable](tbl, "methods")
	if !ok {
		return nil
	}

	var err error
	methods.ForEach(func(k, v lua.LValue) {
		fn, isFn := v.(*lua.LFunction)
		if err != nil || !isFn {
			return
		}
		call := state.Func(fn)
		method := k.String()
		undo.add(func() { l.methods.Unregister(method) })
		err = l.methods.Register(method, func(ctx context.Context, args ...any) (any, error) {
			out, err := call(ctx, args...)
			if err != nil || len(out) == 0 {
				return nil, err
			}
			return out[0], nil
		})
	})
	if err != nil {
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	return nil
}

// luaListeners collects the plugin's event listeners: on<Event> functions
// of the plugin table, then the entries of its listeners table, which is
// either a list of {event, fn, priority, before} or a map of event to fn.
func (l *Loader) luaListeners(state *plua.State, name string, tbl *lua.LTable) ([]event.Registration, error) {
	owner := name + "Plugin"

	var regs []event.Registration
	for _, key := range sortedKeys(tbl) {
		fn, ok := plua.Field[*lua.LFunction](tbl, key)
		if !ok || !autoListener.MatchString(key) {
			continue
		}
		regs = append(regs, event.Registration{
			Event:    eventFromMethod(key),
			Listener: api.NewListener(state, owner+"::"+key, fn, l.log),
			Priority: event.DefaultPriority,
		})
	}

	list, ok := plua.Field[*lua.LTable](tbl, "listeners")
	if !ok {
		return regs, nil
	}

	for i := 1; i <= list.Len(); i++ {
		entry, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%w: %s listener %d is %s", ErrInvalidPlugin, name, i, plua.Describe(list.RawGetInt(i)))
		}
		reg, err := l.listenerEntry(state, owner, i, entry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		regs = append(regs, reg)
	}

	for _, key := range sortedKeys(list) {
		fn, ok := plua.Field[*lua.LFunction](list, key)
		if !ok {
			return nil, fmt.Errorf("%w: %s listener %s is %s", ErrInvalidPlugin, name, key, plua.Describe(list.RawGetString(key)))
		}
		regs = append(regs, event.Registration{
			Event:    event.Name(key),
			Listener: api.NewListener(state, owner+"::"+key, fn, l.log),
			Priority: event.DefaultPriority,
		})
	}
	return regs, nil
}

func (l *Loader) listenerEntry(state *plua.State, owner string, i int, entry *lua.LTable) (event.Registration, error) {
	ev, ok := entry.RawGetInt(1).(lua.LString)
	if !ok {
		ev, ok = entry.RawGetString("event").(lua.LString)
	}
	if !ok || ev == "" {
		return event.Registration{}, fmt.Errorf("%w: listener %d has no event", ErrInvalidPlugin, i)
	}

	fn, ok := entry.RawGetInt(2).(*lua.LFunction)
	if !ok {
		fn, ok = plua.Field[*lua.LFunction](entry, "fn")
	}
	if !ok {
		return event.Registration{}, fmt.Errorf("%w: listener %d for %s is not a function", ErrInvalidPlugin, i, ev)
	}

	reg := event.Registration{
		Event:    event.Name(ev),
		Listener: api.NewListener(state, fmt.Sprintf("%s::listener%d", owner, i), fn, l.log),
		Priority: event.DefaultPriority,
	}
	if p, ok := entry.RawGetInt(3).(lua.LNumber); ok {
		reg.Priority = int(p)
	} else if p, ok := plua.Field[lua.LNumber](entry, "priority"); ok {
		reg.Priority = int(p)
	}
	if entry.RawGetInt(4) == lua.LTrue || entry.RawGetString("before") == lua.LTrue {
		reg.Before = true
	}
	return reg, nil
}

// sortedKeys returns the string keys of t in order.
func sortedKeys(t *lua.LTable) []string {
	var keys []string
	t.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			keys = append(keys, string(s))
		}
	})
	sort.Strings(keys)
	return keys
}
