package layer

// DeepMerge merges src into dst and returns dst, allocating it when nil.
// Maps met on both sides merge recursively; any other src value replaces
// the dst value, so lists are replaced rather than concatenated. Values
// taken from src are deep copies.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, v := range src {
		sm, srcIsMap := v.(map[string]any)
		dm, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dm, sm)
			continue
		}
		dst[key] = CloneValue(v)
	}
	return dst
}

// AppendMerge merges src into dst with append semantics.
// Lists are concatenated, a scalar already in dst becomes the first element
// of a list, and maps merge recursively with the same rule.
// Returns false when a map would have to absorb a scalar.
func AppendMerge(dst, src map[string]any) (map[string]any, bool) {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, v := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = CloneValue(v)
			continue
		}
		merged, ok := AppendValue(existing, v)
		if !ok {
			return dst, false
		}
		dst[key] = merged
	}
	return dst, true
}

// AppendValue appends src to an existing value dst.
func AppendValue(dst, src any) (any, bool) {
	dm, dstIsMap := dst.(map[string]any)
	sm, srcIsMap := src.(map[string]any)
	if dstIsMap || srcIsMap {
		if dstIsMap && srcIsMap {
			return AppendMerge(dm, sm)
		}
		return dst, false
	}

	list, ok := ToList(dst)
	if !ok {
		list = []any{dst}
	}
	items, ok := ToList(src)
	if !ok {
		return append(list, src), true
	}
	for _, item := range items {
		list = append(list, CloneValue(item))
	}
	return list, true
}

// ToList converts the list shapes found in decoded configuration to []any.
func ToList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		return toAny(l), true
	case []map[string]any:
		return toAny(l), true
	}
	return nil, false
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// CloneValue returns a deep copy of maps and lists; other values are
// returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	}
	return v
}

// Clone returns a deep copy of a configuration map.
func Clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = CloneValue(v)
	}
	return out
}
