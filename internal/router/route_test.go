package router

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTable(t *testing.T) {
	raw := []any{
		":action",
		map[string]any{"pattern": "users/:id", "defaults": map[string]any{"action": "users/show"}},
		map[string]any{"feed.:format": map[string]any{"action": "feed"}},
		map[string]any{"about": nil},
	}

	table, err := ParseTable(raw)
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}

	want := Table{
		{Pattern: ":action"},
		{Pattern: "users/:id", Defaults: map[string]any{"action": "users/show"}},
		{Pattern: "feed.:format", Defaults: map[string]any{"action": "feed"}},
		{Pattern: "about"},
	}
	if !reflect.DeepEqual(table, want) {
		t.Errorf("ParseTable() = %#v, want %#v", table, want)
	}
}

func TestParseTable_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"unordered map", map[string]any{"a": map[string]any{"action": "a"}}},
		{"number entry", []any{42}},
		{"multi-key map without pattern", []any{map[string]any{"a": nil, "b": nil}}},
		{"true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTable(tt.in); !errors.Is(err, ErrInvalidRoute) {
				t.Errorf("ParseTable() error = %v, want ErrInvalidRoute", err)
			}
		})
	}
}

func TestParseTable_Empty(t *testing.T) {
	for _, in := range []any{nil, false, []any{}} {
		table, err := ParseTable(in)
		if err != nil || len(table) != 0 {
			t.Errorf("ParseTable(%v) = %v, %v", in, table, err)
		}
	}
}
