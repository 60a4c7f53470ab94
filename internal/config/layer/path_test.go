package layer

import (
	"reflect"
	"testing"
)

func TestDimensionize(t *testing.T) {
	in := map[string]any{
		"a/b/c": 1,
		"a/d":   2,
		"e":     map[string]any{"f/g": 3},
		"h":     4,
	}
	expected := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}, "d": 2},
		"e": map[string]any{"f": map[string]any{"g": 3}},
		"h": 4,
	}

	if got := Dimensionize(in); !reflect.DeepEqual(got, expected) {
		t.Errorf("Dimensionize() = %v, want %v", got, expected)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"a/b/c", []string{"a", "b", "c"}},
		{"/a//b/", []string{"a", "b"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		got := SplitPath(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		}
	}
}

func TestGetByPath(t *testing.T) {
	data := map[string]any{
		"views": map[string]any{
			"contexts": map[string]any{
				"json": map[string]any{"prefix": "json"},
			},
		},
		"layout": false,
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"views/contexts/json/prefix", "json", true},
		{"layout", false, true},
		{"layout/name", nil, false},
		{"views/missing", nil, false},
	}

	for _, tt := range tests {
		got, found := GetByPath(data, tt.path)
		if found != tt.found {
			t.Errorf("GetByPath(%q) found = %v, want %v", tt.path, found, tt.found)
			continue
		}
		if found && got != tt.want {
			t.Errorf("GetByPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	if _, found := GetByPath(nil, "a"); found {
		t.Error("GetByPath on nil data should not find anything")
	}
}

func TestSetByPath(t *testing.T) {
	data := map[string]any{"a": "scalar"}

	if !SetByPath(data, "a/b/c", 42) {
		t.Fatal("SetByPath returned false")
	}

	expected := map[string]any{"a": map[string]any{"b": map[string]any{"c": 42}}}
	if !reflect.DeepEqual(data, expected) {
		t.Errorf("data = %v, want %v", data, expected)
	}

	if SetByPath(data, "", 1) {
		t.Error("SetByPath with empty path should fail")
	}
}

func TestDeleteByPath(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 1, "c": 2}}

	val, ok := DeleteByPath(data, "a/b")
	if !ok || val != 1 {
		t.Fatalf("DeleteByPath() = %v, %v; want 1, true", val, ok)
	}
	if _, exists := data["a"].(map[string]any)["b"]; exists {
		t.Error("key should have been deleted")
	}

	if _, ok := DeleteByPath(data, "a/missing"); ok {
		t.Error("deleting a missing key should report false")
	}
	if _, ok := DeleteByPath(data, "a/c/d"); ok {
		t.Error("descending through a scalar should report false")
	}
}
