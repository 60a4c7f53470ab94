package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const testConfig = `default_action = "home"
plugins = ["Shop"]
routes = [
  { pattern = "users/:id", defaults = { action = "user" } },
]

[pluggable_applications]
Shop = true
`

// writeApp lays out a small application in a temporary directory and
// makes it the working directory.
func writeApp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"atomik.toml":                       testConfig,
		"app/actions/home.lua":              `title = "Home"`,
		"app/views/home.tmpl":               `<h1>{{.title}}</h1>`,
		"app/actions/user.lua":              `id = atomik.get("request/id")`,
		"app/views/user.tmpl":               `user {{.id}}`,
		"app/actions/echo.lua":              `name = atomik.get("request/name") or "nobody"`,
		"app/views/echo.tmpl":               `hello {{.name}}`,
		"app/actions/boom.lua":              `error("kaboom")`,
		"app/plugins/Shop/Plugin.lua":       `return {}`,
		"app/plugins/Shop/views/index.tmpl": `shop`,
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{
		"views/default_context=json",
		"debug=true",
		"limit=3",
		"layouts=[main, outer]",
		"title=",
		" base_url =/site/",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"views/default_context": "json",
		"debug":                 true,
		"limit":                 3,
		"layouts":               []any{"main", "outer"},
		"title":                 "",
		"base_url":              "/site/",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseAssignments() = %#v, want %#v", got, want)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Errorf("parseAssignments(%q) should fail", bad)
		}
	}
}

func TestDispatchCommand(t *testing.T) {
	writeApp(t)

	tests := []struct {
		name     string
		args     []string
		want     string
		contains []string
		code     int
	}{
		{
			name: "default action",
			args: []string{"dispatch", ""},
			want: "<h1>Home</h1>",
		},
		{
			name: "route parameter",
			args: []string{"dispatch", "users/42"},
			want: "user 42",
		},
		{
			name: "request parameter",
			args: []string{"dispatch", "echo", "-X", "post", "--param", "name=Ada"},
			want: "hello Ada",
		},
		{
			name: "query string",
			args: []string{"dispatch", "echo?name=Bob"},
			want: "hello Bob",
		},
		{
			name: "override",
			args: []string{"dispatch", "", "--set", "default_action=echo"},
			want: "hello nobody",
		},
		{
			name: "mounted application",
			args: []string{"dispatch", "shop"},
			want: "shop",
		},
		{
			name:     "include head",
			args:     []string{"dispatch", "home", "--include"},
			contains: []string{"HTTP/1.1 200 OK\n", "<h1>Home</h1>"},
		},
		{
			name:     "not found",
			args:     []string{"dispatch", "missing"},
			contains: []string{"404 - File not found"},
			code:     1,
		},
		{
			name:     "script error",
			args:     []string{"dispatch", "boom"},
			contains: []string{"An error has occurred!"},
			code:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			if code := exitCode(err); code != tt.code {
				t.Fatalf("exit code = %d (%v), want %d", code, err, tt.code)
			}
			if tt.want != "" && out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("output %q does not contain %q", out, s)
				}
			}
		})
	}
}

func TestDispatchCommand_Stats(t *testing.T) {
	writeApp(t)

	_, stderr, err := execute(t, "dispatch", "home", "--stats")
	if err != nil {
		t.Fatal(err)
	}

	var report struct {
		Status   int `yaml:"status"`
		Dispatch struct {
			Total uint64 `yaml:"total"`
		} `yaml:"dispatch"`
		Slowest []struct {
			Action string `yaml:"action"`
			Count  uint64 `yaml:"count"`
		} `yaml:"slowest"`
	}
	if err := yaml.Unmarshal([]byte(stderr), &report); err != nil {
		t.Fatalf("stats are not YAML: %v\n%s", err, stderr)
	}
	if report.Status != 200 || report.Dispatch.Total != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Slowest) != 1 || report.Slowest[0].Action != "home" || report.Slowest[0].Count != 1 {
		t.Errorf("slowest = %+v", report.Slowest)
	}
}

func TestRouteCommand(t *testing.T) {
	writeApp(t)

	tests := []struct {
		uri  string
		want map[string]any
	}{
		{
			uri: "users/7",
			want: map[string]any{
				"uri":     "users/7",
				"request": map[string]any{"action": "user", "id": "7"},
			},
		},
		{
			uri: "shop/cart",
			want: map[string]any{
				"uri":             "shop/cart",
				"application":     "Shop",
				"application_uri": "cart",
				"request":         map[string]any{"action": "cart", "format": "html"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			out, _, err := execute(t, "route", tt.uri)
			if err != nil {
				t.Fatal(err)
			}
			var got map[string]any
			if err := yaml.Unmarshal([]byte(out), &got); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("route %s = %v, want %v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestPluginsCommand(t *testing.T) {
	writeApp(t)

	out, _, err := execute(t, "plugins")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"Shop", "lua", "shop/*"} {
		if !strings.Contains(out, s) {
			t.Errorf("plugins output does not contain %q:\n%s", s, out)
		}
	}

	out, _, err = execute(t, "plugins", "--discover")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Shop") || !strings.Contains(out, "loaded") {
		t.Errorf("discover output:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	writeApp(t)

	out, _, err := execute(t, "config", "default_action", "--origin")
	if err != nil {
		t.Fatal(err)
	}
	if out != "# from atomik.toml\nhome\n" {
		t.Errorf("output = %q", out)
	}

	out, _, err = execute(t, "config", "views/contexts/json/prefix", "--set", "views/contexts/json/prefix=api")
	if err != nil {
		t.Fatal(err)
	}
	if out != "api\n" {
		t.Errorf("override output = %q", out)
	}

	if _, _, err := execute(t, "config", "no/such/key"); exitCode(err) != 1 {
		t.Errorf("missing key: err = %v", err)
	}

	out, _, err = execute(t, "config")
	if err != nil {
		t.Fatal(err)
	}
	var all map[string]any
	if err := yaml.Unmarshal([]byte(out), &all); err != nil {
		t.Fatal(err)
	}
	if all["default_action"] != "home" || all["trigger"] != "action" {
		t.Errorf("config = %v", all)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "atomik dev (commit unknown") {
		t.Errorf("version = %q", out)
	}
}

func TestReportFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, ""},
		{"already reported", &exitError{code: 1}, ""},
		{"dispatch error", &exitError{code: 1, err: errors.New("kaboom")}, "Error: kaboom\n"},
		{"build error", errors.New("init config"), "Error: init config\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cmd := newRootCmd()
			cmd.SetErr(&buf)
			reportFailure(cmd, tt.err)
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
