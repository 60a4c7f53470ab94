package config

// Well-known configuration and request state paths.
const (
	KeyRoutes             = "routes"
	KeyDefaultAction      = "default_action"
	KeyForceURIExtension  = "force_uri_extension"
	KeyHTTPMethodParam    = "http_method_param"
	KeyAllowedHTTPMethods = "allowed_http_methods"
	KeyLayout             = "layout"
	KeyDisableLayout      = "disable_layout"
	KeyFileExtension      = "views/file_extension"
	KeyDefaultContext     = "views/default_context"
	KeyContextParam       = "views/context_param"
	KeyContexts           = "views/contexts"
	KeyDirs               = "dirs"
	KeyFiles              = "files"
	KeyPlugins            = "plugins"
	KeyTrigger            = "trigger"
	KeyBaseURL            = "base_url"
	KeyCatchErrors        = "catch_errors"
	KeyDisplayErrors      = "display_errors"
	KeyDebug              = "debug"

	KeyRequestURI     = "request_uri"
	KeyRequest        = "request"
	KeyFullRequestURI = "full_request_uri"
	KeyHTTPMethod     = "http_method"
	KeyViewContext    = "view_context"
	KeyBaseAction     = "base_action"
	KeyRunningPlugin  = "running_plugin"
	KeySession        = "session"
)

// Directory categories under dirs/.
const (
	DirApp       = "dirs/app"
	DirPlugins   = "dirs/plugins"
	DirActions   = "dirs/actions"
	DirViews     = "dirs/views"
	DirLayouts   = "dirs/layouts"
	DirHelpers   = "dirs/helpers"
	DirOverrides = "dirs/overrides"
)

// Hook and page files under files/.
const (
	FileBootstrap    = "files/bootstrap"
	FilePreDispatch  = "files/pre_dispatch"
	FilePostDispatch = "files/post_dispatch"
	File404          = "files/404"
	FileError        = "files/error"
)

// Defaults returns the builtin configuration.
func Defaults() map[string]any {
	return map[string]any{
		KeyDefaultAction:     "index",
		KeyLayout:            false,
		KeyDisableLayout:     false,
		KeyRoutes:            []any{},
		KeyForceURIExtension: false,
		KeyHTTPMethodParam:   "_method",
		KeyAllowedHTTPMethods: []any{
			"GET", "POST", "PUT", "DELETE", "TRACE", "HEAD", "OPTIONS", "CONNECT",
		},
		"views": map[string]any{
			"file_extension":  ".tmpl",
			"default_context": "html",
			"context_param":   "format",
			"contexts": map[string]any{
				"html": map[string]any{"prefix": "", "layout": true, "content-type": "text/html"},
				"ajax": map[string]any{"prefix": "ajax", "layout": false},
				"xml":  map[string]any{"prefix": "xml", "layout": false, "content-type": "text/xml"},
				"json": map[string]any{"prefix": "json", "layout": false, "content-type": "application/json"},
			},
		},
		"dirs": map[string]any{
			"app":       "./app",
			"plugins":   "./app/plugins",
			"actions":   "./app/actions",
			"views":     "./app/views",
			"layouts":   []any{"./app/layouts", "./app/views"},
			"helpers":   "./app/helpers",
			"overrides": "./app/overrides",
		},
		"files": map[string]any{
			"bootstrap":     "./app/bootstrap.lua",
			"pre_dispatch":  "./app/pre_dispatch.lua",
			"post_dispatch": "./app/post_dispatch.lua",
			"404":           "./app/404.tmpl",
			"error":         "./app/error.tmpl",
		},
		KeyPlugins:       []any{},
		KeyCatchErrors:   true,
		KeyDisplayErrors: false,
		KeyDebug:         false,
		KeyTrigger:       "action",
	}
}
