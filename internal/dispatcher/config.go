package dispatcher

import (
	"io"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/dispatcher/hook"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/logging"
	"github.com/dshills/atomik/internal/plugin"
	"github.com/dshills/atomik/internal/render"
)

// Request is the transport request being dispatched.
type Request interface {
	// Method is the transport method, e.g. GET.
	Method() string

	// Query holds the query string parameters.
	Query() map[string]any

	// ScriptPath is the path of the front controller, used for base_url.
	ScriptPath() string
}

// Response receives the output.
type Response interface {
	io.Writer
	SetHeader(key, value string)
}

// Options holds the collaborators of a Dispatcher. Everything but Store
// and Request is usually shared by the dispatchers of one application.
type Options struct {
	// Store is the request store. Defaults to the builtin configuration.
	Store *config.Store

	Bus     *event.Bus
	Plugins *plugin.Loader

	// Actions holds the Go action handlers.
	Actions *Registry

	// Hooks runs around each dispatched action. When nil, the file hooks
	// are registered on a new manager.
	Hooks *hook.Manager

	Renderer render.Renderer

	// Scripts runs Lua actions, helpers and hook files. A dispatcher
	// creates and owns one when nil.
	Scripts *Scripts

	// Helpers are Go view helpers, consulted before helper scripts.
	Helpers map[string]render.HelperFunc

	FS       loader.FileSystem
	Request  Request
	Response Response
	Logger   *logging.Logger

	// Metrics records each Dispatch when set.
	Metrics *Metrics
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = config.NewWithBaseline(config.Defaults())
	}
	if o.Bus == nil {
		o.Bus = event.NewBus()
	}
	if o.FS == nil {
		o.FS = loader.DefaultFS()
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Plugins == nil {
		o.Plugins = plugin.NewLoader(
			plugin.WithFS(o.FS),
			plugin.WithBus(o.Bus),
			plugin.WithStore(o.Store),
			plugin.WithLogger(o.Logger),
		)
	}
	if o.Actions == nil {
		o.Actions = NewRegistry()
	}
	if o.Renderer == nil {
		o.Renderer = render.NewTemplateRenderer(render.WithFS(o.FS))
	}
	if o.Request == nil {
		o.Request = nopRequest{}
	}
	if o.Response == nil {
		o.Response = discardResponse{}
	}
	return o
}

type nopRequest struct{}

func (nopRequest) Method() string         { return "GET" }
func (nopRequest) Query() map[string]any  { return nil }
func (nopRequest) ScriptPath() string     { return "" }

type discardResponse struct{}

func (discardResponse) Write(p []byte) (int, error) { return len(p), nil }
func (discardResponse) SetHeader(string, string)    {}
