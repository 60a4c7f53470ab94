package api

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/atomik/internal/event"
	plua "github.com/dshills/atomik/internal/plugin/lua"
)

// PayloadTable converts p to the table handed to Lua listeners.
func PayloadTable(b *plua.Bridge, p *event.Payload) *lua.LTable {
	t := b.L.NewTable()
	t.RawSetString("cancel", lua.LBool(p.Cancel))
	t.RawSetString("uri", lua.LString(p.URI))
	t.RawSetString("params", b.ToLua(nonNil(p.Params)))
	t.RawSetString("allow_pluggable", lua.LBool(p.AllowPluggable))
	t.RawSetString("action", lua.LString(p.Action))
	t.RawSetString("view", lua.LString(p.View))
	t.RawSetString("render", lua.LBool(p.Render))
	t.RawSetString("content", lua.LString(p.Content))
	t.RawSetString("filename", lua.LString(p.Filename))
	t.RawSetString("vars", b.ToLua(nonNil(p.Vars)))
	t.RawSetString("plugin", lua.LString(p.Plugin))
	t.RawSetString("config", b.ToLua(nonNil(p.Config)))
	t.RawSetString("success", lua.LBool(p.Success))
	t.RawSetString("extra", b.ToLua(nonNil(p.Extra)))
	if p.Err != nil {
		t.RawSetString("error", lua.LString(p.Err.Error()))
	}
	return t
}

// ReadPayloadTable copies the mutable fields of t back into p.
func ReadPayloadTable(b *plua.Bridge, t *lua.LTable, p *event.Payload) {
	p.Cancel = lua.LVAsBool(t.RawGetString("cancel"))
	p.URI = tableString(t, "uri")
	p.AllowPluggable = lua.LVAsBool(t.RawGetString("allow_pluggable"))
	p.Action = tableString(t, "action")
	p.View = tableString(t, "view")
	p.Render = lua.LVAsBool(t.RawGetString("render"))
	p.Content = tableString(t, "content")
	p.Filename = tableString(t, "filename")
	p.Plugin = tableString(t, "plugin")

	if sub, ok := t.RawGetString("params").(*lua.LTable); ok {
		p.Params = b.TableToMap(sub)
	}
	if sub, ok := t.RawGetString("vars").(*lua.LTable); ok {
		p.Vars = b.TableToMap(sub)
	}
	if sub, ok := t.RawGetString("config").(*lua.LTable); ok {
		p.Config = b.TableToMap(sub)
	}
	if sub, ok := t.RawGetString("extra").(*lua.LTable); ok {
		p.Extra = b.TableToMap(sub)
	}
	if msg := tableString(t, "error"); msg != "" && p.Err == nil {
		p.Err = errors.New(msg)
	}
}

func tableString(t *lua.LTable, key string) string {
	switch v := t.RawGetString(key).(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	default:
		return ""
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
