package loader

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/atomik/internal/config/layer"
)

// EnvPrefix marks the environment variables read at startup.
const EnvPrefix = "ATOMIK_"

// Env reads configuration from environment variables.
//
// ATOMIK_VIEWS__DEFAULT_CONTEXT=json sets views/default_context to "json":
// a double underscore separates path segments and names are lower-cased.
// Aliases bind variables outside the prefix to explicit paths.
type Env struct {
	Prefix  string
	Aliases map[string]string
}

// Load builds a configuration map from environ, given in os.Environ
// form. Later duplicates win.
func (e Env) Load(environ []string) map[string]any {
	out := make(map[string]any)
	for _, kv := range environ {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		path, ok := e.path(name)
		if !ok {
			continue
		}
		layer.SetByPath(out, path, envValue(raw))
	}
	return out
}

func (e Env) path(name string) (string, bool) {
	if p, ok := e.Aliases[name]; ok {
		return p, p != ""
	}
	rest, ok := strings.CutPrefix(name, e.Prefix)
	if !ok {
		return "", false
	}
	parts := layer.SplitPath(strings.ReplaceAll(strings.ToLower(rest), "__", layer.Separator))
	return strings.Join(parts, layer.Separator), len(parts) > 0
}

// envValue types a raw variable. Booleans accept yes/no and on/off,
// numbers and flow collections ([a, b], {k: v}) decode as YAML, and
// everything else stays a string.
func envValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	var v any
	if err := yaml.Unmarshal([]byte(trimmed), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, int64, uint64, float64:
		return v
	case []any, map[string]any:
		if trimmed[0] == '[' || trimmed[0] == '{' {
			return v
		}
	}
	return raw
}
