package dispatcher

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/layer"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/dispatcher/execctx"
	"github.com/dshills/atomik/internal/dispatcher/hook"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/event/events"
	"github.com/dshills/atomik/internal/logging"
	"github.com/dshills/atomik/internal/plugin"
	"github.com/dshills/atomik/internal/plugin/api"
	"github.com/dshills/atomik/internal/render"
	"github.com/dshills/atomik/internal/router"
)

// Dispatcher handles one request. It is not safe for concurrent
// dispatches; create one per request over a cloned store.
type Dispatcher struct {
	store    *config.Store
	bus      *event.Bus
	plugins  *plugin.Loader
	actions  *Registry
	hooks    *hook.Manager
	renderer render.Renderer
	helpers  map[string]render.HelperFunc
	fs       loader.FileSystem
	req      Request
	resp     Response
	log      *logging.Logger
	metrics  *Metrics

	scriptsOnce sync.Once
	scripts     *Scripts
	scriptsErr  error
	ownScripts  bool

	stack *execctx.Stack

	mu          sync.Mutex
	helperCache map[string]render.HelperFunc

	outcome outcome
}

// outcome is what Dispatch reports to the metrics.
type outcome struct {
	action    string
	cancelled bool
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		store:       opts.Store,
		bus:         opts.Bus,
		plugins:     opts.Plugins,
		actions:     opts.Actions,
		hooks:       opts.Hooks,
		renderer:    opts.Renderer,
		helpers:     opts.Helpers,
		fs:          opts.FS,
		req:         opts.Request,
		resp:        opts.Response,
		log:         opts.Logger.WithComponent("dispatcher"),
		metrics:     opts.Metrics,
		scripts:     opts.Scripts,
		stack:       execctx.NewStack(),
		helperCache: make(map[string]render.HelperFunc),
	}
	if d.hooks == nil {
		d.hooks = hook.NewManager()
		hook.RegisterFileHooks(d.hooks, d.fs, scriptRunner{d})
	}
	return d
}

// Store returns the request store.
func (d *Dispatcher) Store() *config.Store {
	return d.store
}

// Bus returns the event bus.
func (d *Dispatcher) Bus() *event.Bus {
	return d.bus
}

// Registry returns the Go action handlers.
func (d *Dispatcher) Registry() *Registry {
	return d.actions
}

// Plugins returns the plugin loader.
func (d *Dispatcher) Plugins() *plugin.Loader {
	return d.plugins
}

// Metrics returns the metrics collector (may be nil).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Scripts returns the script runner, creating one when none was given.
func (d *Dispatcher) Scripts() (*Scripts, error) {
	d.scriptsOnce.Do(func() {
		if d.scripts != nil {
			return
		}
		d.scripts, d.scriptsErr = NewScripts(d.fs, &api.Context{
			Store:   d.store,
			Bus:     d.bus,
			Methods: d.plugins.Methods(),
			Apps:    d.plugins.Applications(),
			Log:     d.log,
		})
		d.ownScripts = d.scriptsErr == nil
	})
	return d.scripts, d.scriptsErr
}

// Close releases the script runner if the dispatcher created it.
func (d *Dispatcher) Close() error {
	if d.ownScripts {
		return d.scripts.Close()
	}
	return nil
}

// scriptRunner defers creating the scripts until a hook file exists.
type scriptRunner struct{ d *Dispatcher }

func (r scriptRunner) RunFile(ctx context.Context, path string, isolated bool) (any, error) {
	s, err := r.d.Scripts()
	if err != nil {
		return nil, err
	}
	return s.RunFile(ctx, path, isolated)
}

// bind attaches the request store, the controls and the view helpers to
// ctx for listeners, scripts and templates.
func (d *Dispatcher) bind(ctx context.Context) context.Context {
	ctx = api.WithStore(ctx, d.store)
	ctx = api.WithControls(ctx, controls{d})
	return render.WithHelpers(ctx, d.Helper)
}

func (d *Dispatcher) payload() *event.Payload {
	return event.NewPayload(d.store)
}

// fire fires name and returns the first listener failure.
func (d *Dispatcher) fire(ctx context.Context, name event.Name, p *event.Payload) error {
	d.bus.Fire(ctx, name, p)
	return p.Err
}

func (d *Dispatcher) set(key string, v any) {
	if err := d.store.Set(key, v); err != nil {
		d.log.Warn("set %s: %v", key, err)
	}
}

// Dispatch runs uri through the dispatch phases and writes the output to
// the response. An empty uri is read from the trigger query parameter,
// then defaults to default_action. The result is false when nothing
// matched, which callers report as a 404. A cancelled dispatch counts as
// handled.
func (d *Dispatcher) Dispatch(ctx context.Context, uri string, allowPluggable bool) (bool, error) {
	start := time.Now()
	d.outcome = outcome{}

	handled, err := d.dispatch(ctx, uri, allowPluggable, true)

	if d.metrics != nil {
		status := StatusHandled
		switch {
		case err != nil:
			status = StatusError
		case !handled:
			status = StatusNotFound
		case d.outcome.cancelled:
			status = StatusCancelled
		}
		d.metrics.Record(d.outcome.action, time.Since(start), status)
	}
	return handled, err
}

func (d *Dispatcher) cancelled() (bool, error) {
	d.outcome.cancelled = true
	return true, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, uri string, allowPluggable, discover bool) (bool, error) {
	ctx = d.bind(ctx)

	sp := d.payload()
	sp.URI = uri
	sp.AllowPluggable = allowPluggable
	if err := d.fire(ctx, events.DispatchStart, sp); err != nil {
		return false, err
	}
	if sp.Cancel {
		return d.cancelled()
	}
	uri, allowPluggable = sp.URI, sp.AllowPluggable

	trigger := d.store.String(config.KeyTrigger, "action")
	extras := make(map[string]any)
	for k, v := range d.req.Query() {
		extras[k] = v
	}
	if uri == "" && discover {
		uri = config.ToString(extras[trigger], "")
	}
	delete(extras, trigger)

	if d.store.String(config.KeyBaseURL, "") == "" {
		d.set(config.KeyBaseURL, strings.TrimRight(path.Dir(d.req.ScriptPath()), "./")+"/")
	}

	uri = strings.Trim(uri, "/")
	if uri == "" {
		uri = d.store.String(config.KeyDefaultAction, "index")
	}

	request, err := d.route(ctx, uri, extras)
	if errors.Is(err, router.ErrExtensionRequired) {
		d.log.Debug("route miss for %s: %v", uri, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	uriPath, rawQuery, _ := strings.Cut(uri, "?")
	uriPath = strings.Trim(uriPath, "/")
	d.set(config.KeyRequestURI, uriPath)
	d.set(config.KeyRequest, request)
	if !d.store.Has(config.KeyFullRequestURI) {
		d.set(config.KeyFullRequestURI, uriPath)
	}

	if allowPluggable {
		if app, ok := d.plugins.Applications().Match(uriPath); ok {
			d.set(config.KeyBaseAction, router.MountBase(app.Route))
			d.set(config.KeyRunningPlugin, app.Plugin)
			sub := router.StripMount(app.Route, uriPath)
			if rawQuery != "" {
				sub += "?" + rawQuery
			}
			return d.DispatchPluggableApplication(ctx, app, sub)
		}
	}

	up := d.payload()
	up.URI = uriPath
	up.Params = request
	if err := d.fire(ctx, events.DispatchURI, up); err != nil {
		return false, err
	}
	if up.Cancel {
		return d.cancelled()
	}
	if up.Params != nil {
		request = up.Params
		d.set(config.KeyRequest, request)
	}

	action := strings.Trim(config.ToString(request["action"], ""), "/")
	if !safeAction(action) {
		d.log.Debug("rejected action %q", action)
		return false, nil
	}

	d.set(config.KeyHTTPMethod, d.httpMethod(request))

	if err := d.applyViewContext(request); err != nil {
		return false, err
	}

	bp := d.payload()
	bp.URI = uriPath
	bp.Params = request
	bp.Action = action
	if err := d.fire(ctx, events.DispatchBefore, bp); err != nil {
		return false, err
	}
	if bp.Cancel {
		return d.cancelled()
	}
	action = bp.Action

	hc := &hook.Context{URI: uriPath, Action: action, Store: d.store}
	ok, err := d.hooks.RunPreDispatch(ctx, hc)
	if err != nil {
		return false, err
	}
	if !ok {
		return d.cancelled()
	}

	d.outcome.action = action
	res, err := d.Execute(ctx, action, Probe())
	if err != nil {
		return false, err
	}
	if !res.Found {
		return false, nil
	}

	content := res.Output
	if !d.store.Bool(config.KeyDisableLayout, false) {
		for _, layout := range lo.Reverse(d.store.Strings(config.KeyLayout)) {
			if content, err = d.RenderLayout(ctx, layout, content); err != nil {
				return false, err
			}
		}
	}

	if content, err = d.output(ctx, content); err != nil {
		return false, err
	}

	ap := d.payload()
	ap.URI = uriPath
	ap.Action = action
	ap.Content = content
	if err := d.fire(ctx, events.DispatchAfter, ap); err != nil {
		return false, err
	}

	hc.Output = content
	if err := d.hooks.RunPostDispatch(ctx, hc); err != nil {
		return false, err
	}
	return true, nil
}

// route resolves uri against the configured routes, letting the
// Router::Start listeners rewrite the input and Router::End ones the
// result.
func (d *Dispatcher) route(ctx context.Context, uri string, extras map[string]any) (map[string]any, error) {
	rp := d.payload()
	rp.URI = uri
	rp.Params = extras
	rp.Extra = map[string]any{"routes": d.store.Get(config.KeyRoutes, nil)}
	if err := d.fire(ctx, events.RouterStart, rp); err != nil {
		return nil, err
	}

	table, err := router.ParseTable(rp.Extra["routes"])
	if err != nil {
		return nil, &OperationError{Op: "route", Target: rp.URI, Err: err}
	}
	request, err := router.Resolve(rp.URI, rp.Params, table, router.Options{
		ForceExtension: d.store.Bool(config.KeyForceURIExtension, false),
		ContextParam:   d.store.String(config.KeyContextParam, "format"),
		DefaultContext: d.store.String(config.KeyDefaultContext, "html"),
	})
	if err != nil {
		return nil, err
	}

	ep := d.payload()
	ep.URI = rp.URI
	ep.Params = request
	if err := d.fire(ctx, events.RouterEnd, ep); err != nil {
		return nil, err
	}
	if ep.Params != nil {
		request = ep.Params
	}
	return request, nil
}

// safeAction rejects parent-path traversal and private segments.
func safeAction(action string) bool {
	if strings.Contains(action, "..") {
		return false
	}
	for _, seg := range strings.Split(action, "/") {
		if strings.HasPrefix(seg, "_") {
			return false
		}
	}
	return true
}

// httpMethod returns the request method, honoring the override parameter.
// Values outside allowed_http_methods give GET.
func (d *Dispatcher) httpMethod(request map[string]any) string {
	method := d.req.Method()
	if param := d.store.String(config.KeyHTTPMethodParam, ""); param != "" {
		if v, ok := layer.GetByPath(request, param); ok {
			if s := config.ToString(v, ""); s != "" {
				method = s
			}
		}
	}
	method = strings.ToUpper(method)

	allowed := lo.Map(d.store.Strings(config.KeyAllowedHTTPMethods), func(m string, _ int) string {
		return strings.ToUpper(m)
	})
	if !lo.Contains(allowed, method) {
		return "GET"
	}
	return method
}

// applyViewContext records the requested context. Only a configured
// context changes the layout or the Content-Type header.
func (d *Dispatcher) applyViewContext(request map[string]any) error {
	def := d.store.String(config.KeyDefaultContext, "html")
	name := config.ToString(request[d.store.String(config.KeyContextParam, "format")], def)

	vc, found, err := d.store.LookupViewContext(name)
	if err != nil {
		return err
	}
	d.set(config.KeyViewContext, name)
	if !found {
		return nil
	}
	if !vc.Layout {
		d.DisableLayout(true)
	}
	if vc.ContentType != "" {
		d.resp.SetHeader("Content-Type", vc.ContentType)
	}
	return nil
}

// output writes content between the Output::Before and Output::After
// events. Before listeners may replace the content.
func (d *Dispatcher) output(ctx context.Context, content string) (string, error) {
	bp := d.payload()
	bp.Content = content
	if err := d.fire(ctx, events.OutputBefore, bp); err != nil {
		return "", err
	}
	content = bp.Content

	if _, err := io.WriteString(d.resp, content); err != nil {
		return "", &OperationError{Op: "output", Target: d.store.String(config.KeyRequestURI, ""), Err: err}
	}

	ap := d.payload()
	ap.Content = content
	if err := d.fire(ctx, events.OutputAfter, ap); err != nil {
		return "", err
	}
	return content, nil
}

// NoRender suppresses the view of the running action.
func (d *Dispatcher) NoRender() {
	if f, ok := d.stack.Top(); ok {
		f.NoRender()
	}
}

// SetView replaces the view of the running action.
func (d *Dispatcher) SetView(view string) {
	if f, ok := d.stack.Top(); ok {
		f.SetView(view)
	}
}

// DisableLayout turns the layouts off, or back on, for this request.
func (d *Dispatcher) DisableLayout(disable bool) {
	d.set(config.KeyDisableLayout, disable)
}

// controls exposes the dispatcher to the atomik Lua module.
type controls struct{ d *Dispatcher }

func (c controls) NoRender()                  { c.d.NoRender() }
func (c controls) SetView(view string)        { c.d.SetView(view) }
func (c controls) DisableLayout(disable bool) { c.d.DisableLayout(disable) }

func (c controls) Execute(ctx context.Context, action string, render bool) (string, map[string]any, error) {
	var opts []ExecOption
	if !render {
		opts = append(opts, WithoutRender())
	}
	res, err := c.d.Execute(ctx, action, opts...)
	return res.Output, res.Vars, err
}

func (c controls) Helper(ctx context.Context, name string, args ...any) (any, error) {
	return c.d.Helper(ctx, name, args...)
}
