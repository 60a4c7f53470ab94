package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestStore_SetAndGet(t *testing.T) {
	s := New()

	if err := s.Set("a/b/c", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got := s.Get("a/b/c", nil); got != "v" {
		t.Errorf("Get(a/b/c) = %v, want v", got)
	}
	want := map[string]any{"b": map[string]any{"c": "v"}}
	if got := s.Get("a", nil); !reflect.DeepEqual(got, want) {
		t.Errorf("Get(a) = %v, want %v", got, want)
	}
}

func TestStore_GetIsIdempotent(t *testing.T) {
	s := NewWithBaseline(Defaults())

	first := s.Get("views", nil)
	second := s.Get("views", nil)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two reads differ: %v vs %v", first, second)
	}

	// Mutating a returned value must not change the store.
	first.(map[string]any)["file_extension"] = ".html"
	if got := s.String(KeyFileExtension, ""); got != ".tmpl" {
		t.Errorf("file_extension = %q after mutating a copy", got)
	}
}

func TestStore_GetDefault(t *testing.T) {
	s := New()
	_ = s.Set("empty", nil)
	_ = s.Set("off", false)

	tests := []struct {
		path string
		def  any
		want any
	}{
		{"missing", "def", "def"},
		{"empty", "def", "def"},
		{"off", true, false},
	}
	for _, tt := range tests {
		if got := s.Get(tt.path, tt.def); got != tt.want {
			t.Errorf("Get(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestStore_SetEmptyPath(t *testing.T) {
	s := New()
	if err := s.Set("", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Set(\"\") error = %v, want ErrInvalidArgument", err)
	}
	if err := s.Merge(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Merge(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestStore_SetPromotesScalar(t *testing.T) {
	s := New()
	_ = s.Set("layout", false)
	_ = s.Set("layout/name", "main")

	if got := s.Get("layout/name", nil); got != "main" {
		t.Errorf("layout/name = %v, want main", got)
	}
}

func TestStore_MergeDisjointEqualsUnion(t *testing.T) {
	a := map[string]any{"views": map[string]any{"file_extension": ".tmpl"}, "x": 1}
	b := map[string]any{"views": map[string]any{"default_context": "html"}, "y": 2}

	sequential := New()
	_ = sequential.Merge(a)
	_ = sequential.Merge(b)

	union := New()
	_ = union.Merge(map[string]any{
		"views": map[string]any{"file_extension": ".tmpl", "default_context": "html"},
		"x":     1,
		"y":     2,
	})

	if !reflect.DeepEqual(sequential.All(), union.All()) {
		t.Errorf("sequential = %v, union = %v", sequential.All(), union.All())
	}
}

func TestStore_MergeLaterScalarWins(t *testing.T) {
	s := New()
	_ = s.Merge(map[string]any{"a": map[string]any{"b": 1, "c": 1}})
	_ = s.Merge(map[string]any{"a": map[string]any{"b": 2}})

	want := map[string]any{"a": map[string]any{"b": 2, "c": 1}}
	if !reflect.DeepEqual(s.All(), want) {
		t.Errorf("All() = %v, want %v", s.All(), want)
	}
}

func TestStore_MergeDimensionizes(t *testing.T) {
	s := New()
	_ = s.Merge(map[string]any{"views/contexts/rss/prefix": "rss"})
	if got := s.Get("views/contexts/rss/prefix", nil); got != "rss" {
		t.Errorf("views/contexts/rss/prefix = %v", got)
	}

	_ = s.Merge(map[string]any{"raw/key": 1}, WithoutDimensionize())
	if all := s.All(); all["raw/key"] != 1 {
		t.Errorf("literal key missing: %v", all)
	}
}

func TestStore_Add(t *testing.T) {
	s := New()

	_ = s.Add("plugins", "Db")
	if got := s.Get("plugins", nil); got != "Db" {
		t.Errorf("first Add stores the value as is, got %v", got)
	}

	_ = s.Add("plugins", "Auth")
	_ = s.Add("plugins", []any{"Cache", "Blog"})
	want := []any{"Db", "Auth", "Cache", "Blog"}
	if got := s.Get("plugins", nil); !reflect.DeepEqual(got, want) {
		t.Errorf("plugins = %v, want %v", got, want)
	}

	_ = s.AddMap(map[string]any{"session/__FLASH/info": "saved"})
	_ = s.AddMap(map[string]any{"session/__FLASH/info": "done"})
	if got := s.Get("session/__FLASH/info", nil); !reflect.DeepEqual(got, []any{"saved", "done"}) {
		t.Errorf("flash info = %v", got)
	}

	_ = s.Set("node", map[string]any{"k": 1})
	if err := s.Add("node", "scalar"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Add scalar to node error = %v, want ErrInvalidArgument", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := New()
	_ = s.Set("a/b", 1)

	val, err := s.Delete("a/b")
	if err != nil || val != 1 {
		t.Fatalf("Delete() = %v, %v", val, err)
	}
	if s.Has("a/b") {
		t.Error("a/b should be gone")
	}

	_, err = s.Delete("a/b")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Delete(missing) error = %v, want ErrKeyNotFound", err)
	}
	if !strings.Contains(err.Error(), `"a/b" does not exist`) {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestStore_Reset(t *testing.T) {
	s := New()
	_ = s.Merge(map[string]any{"layout": "main", "dirs": map[string]any{"actions": "./app/actions"}}, WithBaseline())

	_ = s.Set("layout", "admin")
	_ = s.Set("dirs/actions", "./plugin/actions")
	_ = s.Set("request_uri", "blog/index")

	s.Reset()

	if got := s.Get("layout", nil); got != "main" {
		t.Errorf("layout = %v, want main", got)
	}
	if got := s.Get("dirs/actions", nil); got != "./app/actions" {
		t.Errorf("dirs/actions = %v", got)
	}
	if got := s.Get("request_uri", nil); got != "blog/index" {
		t.Errorf("keys outside the baseline should survive, request_uri = %v", got)
	}
}

func TestStore_SetWithBaseline(t *testing.T) {
	s := New()
	_ = s.Set("default_action", "home", WithBaseline())
	_ = s.Set("default_action", "other")

	if got := s.Baseline()["default_action"]; got != "home" {
		t.Errorf("baseline default_action = %v", got)
	}
	s.Reset()
	if got := s.String("default_action", ""); got != "home" {
		t.Errorf("default_action after reset = %q", got)
	}
}

func TestStore_Selectors(t *testing.T) {
	s := New()
	var gotRest string
	err := s.RegisterSelector("flash", func(rest string, def any) any {
		gotRest = rest
		return []any{"hello"}
	})
	if err != nil {
		t.Fatalf("RegisterSelector() error = %v", err)
	}

	_ = s.Set("flash:error", "shadowed")
	if got := s.Get("flash:error", nil); !reflect.DeepEqual(got, []any{"hello"}) {
		t.Errorf("Get(flash:error) = %v", got)
	}
	if gotRest != "error" {
		t.Errorf("selector rest = %q, want error", gotRest)
	}

	if err := s.RegisterSelector("flash", func(string, any) any { return nil }); !errors.Is(err, ErrSelectorExists) {
		t.Errorf("duplicate selector error = %v", err)
	}
	if err := s.RegisterSelector("Bad1", func(string, any) any { return nil }); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("invalid selector name error = %v", err)
	}

	// Unregistered namespaces fall through to the tree.
	_ = s.Set("db:main", "x")
	if got := s.Get("db:main", nil); got != "x" {
		t.Errorf("Get(db:main) = %v, want x", got)
	}
}

func TestStore_Clone(t *testing.T) {
	s := NewWithBaseline(Defaults())
	c := s.Clone()

	_ = c.Set("layout", "main")
	if s.Bool(KeyLayout, true) {
		t.Error("clone writes should not reach the original")
	}
	c.Reset()
	if c.Bool(KeyLayout, true) {
		t.Error("clone should carry the baseline")
	}
}

func TestStore_TypedAccessors(t *testing.T) {
	s := NewWithBaseline(Defaults())
	_ = s.Set("count", int64(3))

	if got := s.String(KeyDefaultAction, ""); got != "index" {
		t.Errorf("String(default_action) = %q", got)
	}
	if got := s.String("count", ""); got != "3" {
		t.Errorf("String(count) = %q", got)
	}
	if got := s.String(KeyLayout, "none"); got != "none" {
		t.Errorf("String(layout=false) = %q, want default", got)
	}
	if got := s.Strings(DirLayouts); !reflect.DeepEqual(got, []string{"./app/layouts", "./app/views"}) {
		t.Errorf("Strings(dirs/layouts) = %v", got)
	}
	if got := s.Strings(DirActions); !reflect.DeepEqual(got, []string{"./app/actions"}) {
		t.Errorf("Strings(dirs/actions) = %v", got)
	}
	if s.Strings(KeyLayout) != nil {
		t.Error("Strings(false) should be nil")
	}
	if !s.Bool(KeyCatchErrors, false) || s.Bool(KeyDebug, true) {
		t.Error("Bool accessors disagree with defaults")
	}
}

func TestStore_LookupViewContext(t *testing.T) {
	s := NewWithBaseline(Defaults())

	vc, ok, err := s.LookupViewContext("json")
	if err != nil || !ok {
		t.Fatalf("LookupViewContext(json) = %v, %v", ok, err)
	}
	if vc.Prefix != "json" || vc.Layout || vc.ContentType != "application/json" {
		t.Errorf("json context = %+v", vc)
	}

	vc, _, _ = s.LookupViewContext("ajax")
	if vc.ContentType != "text/html" {
		t.Errorf("ajax content type = %q, want text/html default", vc.ContentType)
	}

	if _, ok, _ := s.LookupViewContext("rss"); ok {
		t.Error("unconfigured context should not be found")
	}

	if got := s.ContextPrefix("html"); got != "" {
		t.Errorf("ContextPrefix(html) = %q, want empty", got)
	}
	if got := s.ContextPrefix("rss"); got != "rss" {
		t.Errorf("ContextPrefix(rss) = %q, want rss", got)
	}
}
