package lua

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	lua "github.com/yuin/gopher-lua"
)

// Bridge converts values between Go and Lua for one interpreter.
//
// Lua to Go: sequences (keys exactly 1..n) become []any, other tables
// map[string]any with numeric keys in decimal, whole numbers int64 and
// userdata its Go value. Functions and cycles become nil.
//
// Go to Lua: scalars map to their Lua type, slices to sequences, maps and
// structs to tables, anything else to userdata.
type Bridge struct {
	L *lua.LState
}

// NewBridge binds a Bridge to L.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// FromLua converts lv to a Go value.
func (b *Bridge) FromLua(lv lua.LValue) any {
	return goValue(lv, nil)
}

// TableToMap converts t to a map whatever its shape; nil stays nil.
func (b *Bridge) TableToMap(t *lua.LTable) map[string]any {
	if t == nil {
		return nil
	}
	return goMap(t, []*lua.LTable{t})
}

// seen is the chain of tables being converted, used to cut cycles.
func goValue(lv lua.LValue, seen []*lua.LTable) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		if i := int64(v); lua.LNumber(i) == v {
			return i
		}
		return float64(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if slices.Contains(seen, v) {
			return nil
		}
		seen = append(seen, v)
		if n := seqLen(v); n > 0 {
			list := make([]any, n)
			for i := range list {
				list[i] = goValue(v.RawGetInt(i+1), seen)
			}
			return list
		}
		return goMap(v, seen)
	}
	return nil
}

func goMap(t *lua.LTable, seen []*lua.LTable) map[string]any {
	out := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		key := k.String()
		if n, ok := k.(lua.LNumber); ok {
			key = strconv.FormatFloat(float64(n), 'f', -1, 64)
		}
		out[key] = goValue(v, seen)
	})
	return out
}

// seqLen is n when t's keys are exactly the integers 1..n, else 0.
func seqLen(t *lua.LTable) int {
	n, ints := 0, true
	t.ForEach(func(k, _ lua.LValue) {
		n++
		i, ok := k.(lua.LNumber)
		if !ok || i < 1 || i != lua.LNumber(int(i)) {
			ints = false
		}
	})
	if !ints {
		return 0
	}
	for i := 1; i <= n; i++ {
		if t.RawGetInt(i) == lua.LNil {
			return 0
		}
	}
	return n
}

// ToLua converts a Go value for use in this interpreter.
func (b *Bridge) ToLua(v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case string:
		return lua.LString(v)
	case []byte:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	case error:
		return lua.LString(v.Error())
	case []any:
		return b.list(len(v), func(i int) any { return v[i] })
	case map[string]any:
		return b.MapToTable(v)
	}
	return b.reflected(reflect.ValueOf(v))
}

// MapToTable builds a table from m, setting keys in sorted order so the
// table iterates the same way on every run.
func (b *Bridge) MapToTable(m map[string]any) *lua.LTable {
	t := b.L.CreateTable(0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		t.RawSetString(k, b.ToLua(m[k]))
	}
	return t
}

func (b *Bridge) list(n int, at func(int) any) *lua.LTable {
	t := b.L.CreateTable(n, 0)
	for i := 0; i < n; i++ {
		t.RawSetInt(i+1, b.ToLua(at(i)))
	}
	return t
}

func (b *Bridge) reflected(rv reflect.Value) lua.LValue {
	switch rv.Kind() {
	case reflect.Invalid:
		return lua.LNil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return b.structTable(rv.Elem().Interface())
		}
		return b.reflected(rv.Elem())
	case reflect.Slice, reflect.Array:
		return b.list(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		t := b.L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(b.ToLua(iter.Key().Interface()), b.ToLua(iter.Value().Interface()))
		}
		return t
	case reflect.Struct:
		return b.structTable(rv.Interface())
	}
	ud := b.L.NewUserData()
	ud.Value = rv.Interface()
	return ud
}

// structTable flattens a struct through its mapstructure tags; structs
// that cannot be flattened travel as userdata.
func (b *Bridge) structTable(v any) lua.LValue {
	var m map[string]any
	if err := mapstructure.Decode(v, &m); err != nil {
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}
	return b.MapToTable(m)
}

// Field returns t[key] when it holds a T, e.g. Field[*lua.LFunction].
func Field[T lua.LValue](t *lua.LTable, key string) (T, bool) {
	v, ok := t.RawGetString(key).(T)
	return v, ok
}

// Args converts the arguments of the running Go function from index
// from onward.
func (b *Bridge) Args(L *lua.LState, from int) []any {
	var args []any
	for i := from; i <= L.GetTop(); i++ {
		args = append(args, b.FromLua(L.Get(i)))
	}
	return args
}

// GoFunc exposes fn to Lua. A returned error is raised in the script and
// a nil result returns nothing.
func (b *Bridge) GoFunc(fn func(ctx context.Context, args []any) (any, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out, err := fn(ctx, b.Args(L, 1))
		switch {
		case err != nil:
			L.RaiseError("%s", err.Error())
			return 0
		case out == nil:
			return 0
		}
		L.Push(b.ToLua(out))
		return 1
	}
}

// Describe names lv for error messages.
func Describe(lv lua.LValue) string {
	if s, ok := lv.(lua.LString); ok {
		return strconv.Quote(string(s))
	}
	return fmt.Sprint(lv.Type())
}
