package layer

import (
	"reflect"
	"testing"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name     string
		dst      map[string]any
		src      map[string]any
		expected map[string]any
	}{
		{
			name:     "nil dst",
			dst:      nil,
			src:      map[string]any{"a": 1},
			expected: map[string]any{"a": 1},
		},
		{
			name:     "nil src",
			dst:      map[string]any{"a": 1},
			src:      nil,
			expected: map[string]any{"a": 1},
		},
		{
			name:     "disjoint keys",
			dst:      map[string]any{"a": 1},
			src:      map[string]any{"b": 2},
			expected: map[string]any{"a": 1, "b": 2},
		},
		{
			name:     "later scalar wins",
			dst:      map[string]any{"a": 1},
			src:      map[string]any{"a": 2},
			expected: map[string]any{"a": 2},
		},
		{
			name:     "nested merge",
			dst:      map[string]any{"views": map[string]any{"file_extension": ".tmpl"}},
			src:      map[string]any{"views": map[string]any{"default_context": "html"}},
			expected: map[string]any{"views": map[string]any{"file_extension": ".tmpl", "default_context": "html"}},
		},
		{
			name:     "scalar promoted to map",
			dst:      map[string]any{"layout": false},
			src:      map[string]any{"layout": map[string]any{"name": "main"}},
			expected: map[string]any{"layout": map[string]any{"name": "main"}},
		},
		{
			name:     "map replaced by scalar",
			dst:      map[string]any{"layout": map[string]any{"name": "main"}},
			src:      map[string]any{"layout": "main"},
			expected: map[string]any{"layout": "main"},
		},
		{
			name:     "lists are replaced",
			dst:      map[string]any{"plugins": []any{"Db"}},
			src:      map[string]any{"plugins": []any{"Auth"}},
			expected: map[string]any{"plugins": []any{"Auth"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DeepMerge(tt.dst, tt.src)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("DeepMerge() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDeepMerge_ClonesSource(t *testing.T) {
	src := map[string]any{"dirs": map[string]any{"actions": []any{"a"}}}
	dst := DeepMerge(nil, src)

	dst["dirs"].(map[string]any)["actions"].([]any)[0] = "changed"
	if src["dirs"].(map[string]any)["actions"].([]any)[0] != "a" {
		t.Error("DeepMerge should not alias source values")
	}
}

func TestAppendMerge(t *testing.T) {
	tests := []struct {
		name     string
		dst      map[string]any
		src      map[string]any
		expected map[string]any
		ok       bool
	}{
		{
			name:     "absent key stored as is",
			dst:      map[string]any{},
			src:      map[string]any{"a": 1},
			expected: map[string]any{"a": 1},
			ok:       true,
		},
		{
			name:     "scalar becomes list",
			dst:      map[string]any{"a": 1},
			src:      map[string]any{"a": 2},
			expected: map[string]any{"a": []any{1, 2}},
			ok:       true,
		},
		{
			name:     "list appended",
			dst:      map[string]any{"a": []any{1}},
			src:      map[string]any{"a": []any{2, 3}},
			expected: map[string]any{"a": []any{1, 2, 3}},
			ok:       true,
		},
		{
			name:     "nested",
			dst:      map[string]any{"session": map[string]any{"info": []any{"x"}}},
			src:      map[string]any{"session": map[string]any{"info": "y", "error": "z"}},
			expected: map[string]any{"session": map[string]any{"info": []any{"x", "y"}, "error": "z"}},
			ok:       true,
		},
		{
			name: "map absorbing scalar fails",
			dst:  map[string]any{"a": map[string]any{"b": 1}},
			src:  map[string]any{"a": 2},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := AppendMerge(tt.dst, tt.src)
			if ok != tt.ok {
				t.Fatalf("AppendMerge() ok = %v, want %v", ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("AppendMerge() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCloneValue(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
	src := map[string]any{"dirs": map[string]any{"layouts": []any{"a", "b"}}}
	clone := CloneValue(src).(map[string]any)
	clone["dirs"].(map[string]any)["layouts"].([]any)[0] = "x"
	if src["dirs"].(map[string]any)["layouts"].([]any)[0] != "a" {
		t.Error("CloneValue should deep copy lists inside maps")
	}
	if got := CloneValue("main"); got != "main" {
		t.Errorf("CloneValue(scalar) = %v", got)
	}
}

func TestToList(t *testing.T) {
	tests := []struct {
		in   any
		want []any
		ok   bool
	}{
		{[]any{1}, []any{1}, true},
		{[]string{"a", "b"}, []any{"a", "b"}, true},
		{[]map[string]any{{"pattern": "x"}}, []any{map[string]any{"pattern": "x"}}, true},
		{"a", nil, false},
	}
	for _, tt := range tests {
		got, ok := ToList(tt.in)
		if ok != tt.ok || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ToList(%v) = %v, %v", tt.in, got, ok)
		}
	}
}
