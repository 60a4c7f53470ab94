package layer

import "strings"

// Separator delimits path segments.
const Separator = "/"

// SplitPath splits a slash path into its segments.
// Leading, trailing and repeated separators are ignored.
func SplitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// parent returns the map holding the last segment of parts. With create,
// missing or scalar intermediates are replaced by maps.
func parent(data map[string]any, parts []string, create bool) (map[string]any, bool) {
	for _, part := range parts[:len(parts)-1] {
		next, ok := data[part].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = make(map[string]any)
			data[part] = next
		}
		data = next
	}
	return data, true
}

// GetByPath returns the value at path. The empty path is data itself.
func GetByPath(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}
	parts := SplitPath(path)
	if len(parts) == 0 {
		return data, true
	}
	m, ok := parent(data, parts, false)
	if !ok {
		return nil, false
	}
	v, ok := m[parts[len(parts)-1]]
	return v, ok
}

// SetByPath stores value at path, creating intermediate maps as needed.
// An intermediate scalar is replaced by a map. Returns false for an empty
// path or nil data.
func SetByPath(data map[string]any, path string, value any) bool {
	parts := SplitPath(path)
	if data == nil || len(parts) == 0 {
		return false
	}
	m, _ := parent(data, parts, true)
	m[parts[len(parts)-1]] = value
	return true
}

// DeleteByPath removes the value at path and returns it.
func DeleteByPath(data map[string]any, path string) (any, bool) {
	parts := SplitPath(path)
	if data == nil || len(parts) == 0 {
		return nil, false
	}
	m, ok := parent(data, parts, false)
	if !ok {
		return nil, false
	}
	key := parts[len(parts)-1]
	v, ok := m[key]
	if ok {
		delete(m, key)
	}
	return v, ok
}

// Dimensionize expands every key containing a separator into nested
// single-key maps, recursively. Keys that collide after expansion are merged.
func Dimensionize(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	out := make(map[string]any, len(src))
	for key, val := range src {
		parts := SplitPath(key)
		if len(parts) == 0 {
			continue
		}
		if m, ok := val.(map[string]any); ok {
			val = Dimensionize(m)
		}
		for i := len(parts) - 1; i > 0; i-- {
			val = map[string]any{parts[i]: val}
		}
		DeepMerge(out, map[string]any{parts[0]: val})
	}
	return out
}
