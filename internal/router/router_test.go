package router

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolve_Precedence(t *testing.T) {
	table := Table{
		{Pattern: "/users/:id.json", Defaults: map[string]any{"action": "showJson"}},
		{Pattern: "/users/:id", Defaults: map[string]any{"action": "show"}},
	}

	tests := []struct {
		uri  string
		want map[string]any
	}{
		{"/users/42.json", map[string]any{"action": "showJson", "id": "42"}},
		{"/users/42", map[string]any{"action": "show", "id": "42"}},
		{"users/42/", map[string]any{"action": "show", "id": "42"}},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := Resolve(tt.uri, nil, table, Options{})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestResolve_Fallback(t *testing.T) {
	got, err := Resolve("/a/b/c", nil, nil, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := map[string]any{"action": "a/b/c", "format": "html"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}

	got, _ = Resolve("posts/list.xml", nil, nil, Options{ContextParam: "ctx", DefaultContext: "json"})
	want = map[string]any{"action": "posts/list", "ctx": "xml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() with extension = %v, want %v", got, want)
	}
}

func TestResolve_ParameterizedExtension(t *testing.T) {
	table := Table{
		{Pattern: "feed.:format", Defaults: map[string]any{"action": "feed"}},
		{Pattern: "archive.:format", Defaults: map[string]any{"action": "archive", "format": "rss"}},
	}

	got, _ := Resolve("feed.atom", nil, table, Options{})
	if got["action"] != "feed" || got["format"] != "atom" {
		t.Errorf("feed.atom = %v", got)
	}

	// No extension and no default: the entry is skipped, fallback applies.
	got, _ = Resolve("feed", nil, table, Options{})
	if got["action"] != "feed" || got["format"] != "html" {
		t.Errorf("feed = %v, want fallback", got)
	}

	// No extension but a default exists.
	got, _ = Resolve("archive", nil, table, Options{})
	if got["action"] != "archive" || got["format"] != "rss" {
		t.Errorf("archive = %v", got)
	}
}

func TestResolve_LiteralExtension(t *testing.T) {
	table := Table{{Pattern: "sitemap.xml", Defaults: map[string]any{"action": "sitemap"}}}

	got, _ := Resolve("sitemap.xml", nil, table, Options{})
	if got["action"] != "sitemap" {
		t.Errorf("sitemap.xml = %v", got)
	}
	got, _ = Resolve("sitemap.txt", nil, table, Options{})
	if got["action"] != "sitemap" || got["format"] != "txt" {
		t.Errorf("sitemap.txt should fall back, got %v", got)
	}
}

func TestResolve_ParameterDefaults(t *testing.T) {
	table := Table{{Pattern: "blog/:page", Defaults: map[string]any{"action": "blog", "page": "1"}}}

	got, _ := Resolve("blog", nil, table, Options{})
	if got["action"] != "blog" || got["page"] != "1" {
		t.Errorf("blog = %v", got)
	}
	got, _ = Resolve("blog/3", nil, table, Options{})
	if got["page"] != "3" {
		t.Errorf("blog/3 = %v", got)
	}
}

func TestResolve_RequiresAction(t *testing.T) {
	table := Table{
		{Pattern: "users/:id"},
		{Pattern: ":action/:id"},
	}

	got, _ := Resolve("users/7", nil, table, Options{})
	want := map[string]any{"action": "users", "id": "7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolve_RemainderPairs(t *testing.T) {
	table := Table{{Pattern: "search", Defaults: map[string]any{"action": "search"}}}

	got, _ := Resolve("search/q/go/page/2/orphan", nil, table, Options{})
	want := map[string]any{"action": "search", "q": "go", "page": "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolve_ForceExtension(t *testing.T) {
	_, err := Resolve("users/1", nil, nil, Options{ForceExtension: true})
	if !errors.Is(err, ErrExtensionRequired) {
		t.Errorf("error = %v, want ErrExtensionRequired", err)
	}
	if _, err := Resolve("users/1.html", nil, nil, Options{ForceExtension: true}); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
}

func TestResolve_ResolvedOverridesExtras(t *testing.T) {
	table := Table{{Pattern: "users/:id", Defaults: map[string]any{"action": "show"}}}

	got, _ := Resolve("users/42?id=1&sort=asc", map[string]any{"action": "hack", "page": "2", "sort": "desc"}, table, Options{})
	want := map[string]any{"action": "show", "id": "42", "page": "2", "sort": "desc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}

	// The fallback applies the same precedence.
	got, _ = Resolve("a/b", map[string]any{"action": "other", "format": "json"}, nil, Options{})
	if got["action"] != "a/b" || got["format"] != "html" {
		t.Errorf("fallback = %v", got)
	}
}

func TestResolve_DefaultsNotShared(t *testing.T) {
	table := Table{{Pattern: "p/:id", Defaults: map[string]any{"action": "p"}}}

	_, _ = Resolve("p/1", nil, table, Options{})
	if _, ok := table[0].Defaults["id"]; ok {
		t.Error("Resolve should not write into route defaults")
	}
}

func TestParseQuery(t *testing.T) {
	got := ParseQuery("a=1&b[]=x&b[]=y&c=1&c=2&d")
	want := map[string]any{
		"a": "1",
		"b": []any{"x", "y"},
		"c": []any{"1", "2"},
		"d": "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseQuery() = %v, want %v", got, want)
	}
	if len(ParseQuery("")) != 0 {
		t.Error("empty query should give empty params")
	}
}

func TestMatchMount(t *testing.T) {
	tests := []struct {
		pattern string
		uri     string
		want    bool
	}{
		{"blog/*", "blog", true},
		{"blog/*", "/blog/posts/1", true},
		{"blog/*", "blogger/x", false},
		{"blog", "blog", true},
		{"blog", "blog/posts", false},
		{"*", "anything/at/all", true},
		{"admin/users/*", "admin/users/edit", true},
		{"admin/users/*", "admin", false},
	}

	for _, tt := range tests {
		if got := MatchMount(tt.pattern, tt.uri); got != tt.want {
			t.Errorf("MatchMount(%q, %q) = %v, want %v", tt.pattern, tt.uri, got, tt.want)
		}
	}
}

func TestStripMount(t *testing.T) {
	tests := []struct {
		pattern, uri, want string
	}{
		{"blog/*", "blog/posts/1", "posts/1"},
		{"blog/*", "/blog/", ""},
		{"/admin/users/*", "admin/users/edit", "edit"},
	}
	for _, tt := range tests {
		if got := StripMount(tt.pattern, tt.uri); got != tt.want {
			t.Errorf("StripMount(%q, %q) = %q, want %q", tt.pattern, tt.uri, got, tt.want)
		}
	}
	if got := MountBase("/blog/*"); got != "blog" {
		t.Errorf("MountBase() = %q", got)
	}
}
