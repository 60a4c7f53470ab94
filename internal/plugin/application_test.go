package plugin

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"blog":  "Blog",
		"Blog":  "Blog",
		" db ":  "Db",
		"":      "",
		"élan":  "Élan",
		"my_db": "My_db",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplications_RegisterMap(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]any
		want Application
	}{
		{
			name: "defaults",
			want: Application{Plugin: "Blog", Route: "blog/*", OverwriteDirs: true, CheckLoaded: true},
		},
		{
			name: "overrides",
			opts: map[string]any{
				"route":          "/news/*/",
				"root_dir":       "app",
				"overwrite_dirs": false,
				"check_loaded":   "0",
			},
			want: Application{Plugin: "Blog", Route: "news/*", RootDir: "app"},
		},
		{
			name: "plugin key is ignored",
			opts: map[string]any{"plugin": "Other", "plugin_dir": "vendor/blog"},
			want: Application{Plugin: "Blog", Route: "blog/*", PluginDir: "vendor/blog", OverwriteDirs: true, CheckLoaded: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apps := NewApplications()
			if err := apps.RegisterApplicationMap("blog", tt.opts); err != nil {
				t.Fatal(err)
			}
			got, ok := apps.Get("Blog")
			if !ok || got != tt.want {
				t.Errorf("Get = %+v, %v; want %+v", got, ok, tt.want)
			}
		})
	}
}

func TestApplications_OrderAndMatch(t *testing.T) {
	apps := NewApplications()
	for _, app := range []Application{
		{Plugin: "admin", Route: "admin/*"},
		{Plugin: "blog"},
		{Plugin: "shop", Route: "store"},
	} {
		if err := apps.Register(app); err != nil {
			t.Fatal(err)
		}
	}
	if err := apps.Register(Application{Plugin: "Admin", Route: "backend/*"}); err != nil {
		t.Fatal(err)
	}
	if err := apps.Register(Application{}); err == nil {
		t.Error("empty plugin accepted")
	}

	list := apps.List()
	if len(list) != 3 || list[0].Plugin != "Admin" || list[0].Route != "backend/*" {
		t.Fatalf("List = %+v", list)
	}

	tests := []struct {
		uri    string
		plugin string
		ok     bool
	}{
		{"backend", "Admin", true},
		{"backend/users/edit", "Admin", true},
		{"admin/users", "", false},
		{"blog/post/1", "Blog", true},
		{"blogger", "", false},
		{"store", "Shop", true},
		{"store/item", "", false},
	}
	for _, tt := range tests {
		app, ok := apps.Match(tt.uri)
		if ok != tt.ok || app.Plugin != tt.plugin {
			t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.uri, app.Plugin, ok, tt.plugin, tt.ok)
		}
	}
}
