package router

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Route is one entry of the route table.
type Route struct {
	Pattern  string         `mapstructure:"pattern" yaml:"pattern"`
	Defaults map[string]any `mapstructure:"defaults" yaml:"defaults,omitempty"`
}

// Table is an ordered route table. Order is significant.
type Table []Route

// ParseTable builds a table from a decoded configuration value.
//
// Accepted entries are bare pattern strings, {pattern, defaults} maps and
// single-key {pattern: defaults} maps. A plain map of patterns is rejected
// because it has no order.
func ParseTable(v any) (Table, error) {
	if v == nil {
		return nil, nil
	}

	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case []string:
		for _, s := range val {
			items = append(items, s)
		}
	case []map[string]any:
		for _, m := range val {
			items = append(items, m)
		}
	case bool:
		if !val {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: routes must be a list, got %v", ErrInvalidRoute, val)
	default:
		return nil, fmt.Errorf("%w: routes must be a list, got %T", ErrInvalidRoute, v)
	}

	table := make(Table, 0, len(items))
	for i, item := range items {
		r, err := parseEntry(item)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		table = append(table, r)
	}
	return table, nil
}

func parseEntry(item any) (Route, error) {
	switch e := item.(type) {
	case string:
		return Route{Pattern: e}, nil
	case Route:
		return e, nil
	case map[string]any:
		if _, ok := e["pattern"]; ok {
			var r Route
			if err := mapstructure.WeakDecode(e, &r); err != nil {
				return Route{}, fmt.Errorf("%w: %v", ErrInvalidRoute, err)
			}
			return r, nil
		}
		if len(e) == 1 {
			for pattern, defaults := range e {
				r := Route{Pattern: pattern}
				if defaults != nil {
					if err := mapstructure.WeakDecode(defaults, &r.Defaults); err != nil {
						return Route{}, fmt.Errorf("%w: defaults of %q: %v", ErrInvalidRoute, pattern, err)
					}
				}
				return r, nil
			}
		}
	}
	return Route{}, fmt.Errorf("%w: unsupported entry %T", ErrInvalidRoute, item)
}

// match tries the route against split URI segments. ext is the URI
// extension and hasExt whether there was one.
func (r Route) match(uriSegments []string, ext string, hasExt bool) (map[string]any, bool) {
	req := make(map[string]any, len(r.Defaults)+2)
	for k, v := range r.Defaults {
		req[k] = v
	}

	segments, patExt, patHasExt := splitExtension(strings.Split(strings.Trim(r.Pattern, "/"), "/"))

	if patHasExt {
		if name, isParam := strings.CutPrefix(patExt, ":"); isParam {
			if hasExt {
				req[name] = ext
			} else if _, ok := req[name]; !ok {
				return nil, false
			}
		} else if !hasExt || patExt != ext {
			return nil, false
		}
	}

	for i, seg := range segments {
		if name, isParam := strings.CutPrefix(seg, ":"); isParam {
			if i < len(uriSegments) {
				req[name] = uriSegments[i]
			} else if _, ok := r.Defaults[name]; !ok {
				return nil, false
			}
			continue
		}
		if i >= len(uriSegments) || uriSegments[i] != seg {
			return nil, false
		}
	}

	if action, ok := req["action"]; !ok || action == nil {
		return nil, false
	}

	for i := len(segments); i+1 < len(uriSegments); i += 2 {
		req[uriSegments[i]] = uriSegments[i+1]
	}
	return req, true
}

// splitExtension strips the extension of the last segment.
func splitExtension(segments []string) ([]string, string, bool) {
	last := segments[len(segments)-1]
	dot := strings.LastIndex(last, ".")
	if dot < 0 {
		return segments, "", false
	}

	out := append([]string(nil), segments...)
	out[len(out)-1] = last[:dot]
	return out, last[dot+1:], true
}
