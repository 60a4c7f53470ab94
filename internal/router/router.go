package router

import (
	"net/url"
	"strings"
)

// Options carries the configuration consulted while resolving.
type Options struct {
	// ForceExtension makes a URI without extension a route miss.
	ForceExtension bool
	// ContextParam names the parameter that selects the view context.
	ContextParam string
	// DefaultContext is used by the fallback when the URI has no extension.
	DefaultContext string
}

func (o Options) withDefaults() Options {
	if o.ContextParam == "" {
		o.ContextParam = "format"
	}
	if o.DefaultContext == "" {
		o.DefaultContext = "html"
	}
	return o
}

// Resolve maps uri to request parameters using table.
//
// extra holds caller-supplied parameters, typically the query string. A
// query string in uri is merged below extra. Parameters bound by the
// matching route, or by the fallback, override both. The only error is
// ErrExtensionRequired.
func Resolve(uri string, extra map[string]any, table Table, opts Options) (map[string]any, error) {
	opts = opts.withDefaults()

	path, rawQuery, _ := strings.Cut(uri, "?")
	params := ParseQuery(rawQuery)
	for k, v := range extra {
		params[k] = v
	}

	segments, ext, hasExt := splitExtension(strings.Split(strings.Trim(path, "/"), "/"))
	if opts.ForceExtension && !hasExt {
		return nil, ErrExtensionRequired
	}

	var resolved map[string]any
	for _, r := range table {
		if req, ok := r.match(segments, ext, hasExt); ok {
			resolved = req
			break
		}
	}

	if resolved == nil {
		ctx := opts.DefaultContext
		if hasExt {
			ctx = ext
		}
		resolved = map[string]any{
			"action":          strings.Join(segments, "/"),
			opts.ContextParam: ctx,
		}
	}

	for k, v := range resolved {
		params[k] = v
	}
	return params, nil
}

// ParseQuery decodes a query string. Keys ending in "[]" and repeated keys
// produce lists; other keys map to a single string.
func ParseQuery(raw string) map[string]any {
	params := make(map[string]any)
	if raw == "" {
		return params
	}

	values, err := url.ParseQuery(raw)
	if err != nil && len(values) == 0 {
		return params
	}

	for key, vals := range values {
		if name, isList := strings.CutSuffix(key, "[]"); isList {
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			params[name] = list
			continue
		}
		if len(vals) == 1 {
			params[key] = vals[0]
			continue
		}
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		params[key] = list
	}
	return params
}

// MatchMount reports whether uri falls under a mount pattern. A pattern
// ending in "*" matches its prefix segment by segment; other patterns must
// match exactly.
func MatchMount(pattern, uri string) bool {
	uri = strings.Trim(uri, "/")
	pattern = strings.Trim(pattern, "/")

	if !strings.HasSuffix(pattern, "*") {
		return uri == pattern
	}

	prefix := strings.TrimRight(pattern, "/*")
	if prefix == "" {
		return true
	}
	return uri == prefix || strings.HasPrefix(uri, prefix+"/")
}

// MountBase returns the prefix a mount pattern consumes.
func MountBase(pattern string) string {
	return strings.Trim(pattern, "/*")
}

// StripMount removes the mount base from uri.
func StripMount(pattern, uri string) string {
	base := MountBase(pattern)
	uri = strings.Trim(uri, "/")
	return strings.Trim(strings.TrimPrefix(uri, base), "/")
}
