// Package lua runs atomik scripts on gopher-lua.
//
// Actions, helpers, hook files and plugins are Lua scripts. Each State is a
// sandboxed interpreter: io, os and debug are not opened, the file loading
// globals are removed and require only resolves string, table and math,
// modules preloaded from Go (such as "atomik") and scripts found in the
// configured library directories.
//
//	state, err := lua.NewState(lua.WithFS(fsys), lua.WithLibraryDirs("app/libraries"))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	scope := state.NewScope(map[string]any{"title": "Home"})
//	ret, err := state.RunInScope(ctx, "app/actions/index.lua", scope)
//
// A Scope gives one script run its own globals, so one action cannot see
// the assignments of another. Values cross the boundary through Bridge:
// sequences become []any, other tables map[string]any.
package lua
