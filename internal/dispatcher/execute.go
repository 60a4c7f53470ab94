package dispatcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/dispatcher/execctx"
	"github.com/dshills/atomik/internal/dispatcher/handler"
	"github.com/dshills/atomik/internal/event/events"
)

// ExecResult is the outcome of Execute.
type ExecResult struct {
	// Output is the rendered view, empty when nothing was rendered.
	Output string

	// Vars are the view variables the handlers produced.
	Vars map[string]any

	// Found is false when the action was cleared by a listener, or when
	// probing found neither handler nor view.
	Found bool
}

// ExecOption configures Execute.
type ExecOption func(*execOptions)

type execOptions struct {
	context string
	render  bool
	probe   bool
}

// InContext executes in the view context name instead of the request's.
func InContext(name string) ExecOption {
	return func(o *execOptions) {
		o.context = name
	}
}

// WithoutRender returns the view variables without rendering the view.
func WithoutRender() ExecOption {
	return func(o *execOptions) {
		o.render = false
	}
}

// Probe reports a missing action as not found instead of ErrActionNotFound.
func Probe() ExecOption {
	return func(o *execOptions) {
		o.probe = true
	}
}

// step is one resolved action handler.
type step func(ctx context.Context, vars map[string]any) (map[string]any, error)

// Execute runs an action and renders its view.
//
// The action name may end in ".method", which selects the method-specific
// handler instead of the one for the request method. Both the general
// handler and the method-specific one run when present, the second seeded
// with the variables of the first. Handlers are Go handlers from the
// registry or <name>.lua scripts in dirs/actions. Variables starting with
// an underscore are dropped.
func (d *Dispatcher) Execute(ctx context.Context, action string, opts ...ExecOption) (ExecResult, error) {
	ctx = d.bind(ctx)
	defaultContext := d.store.String(config.KeyDefaultContext, "html")
	o := execOptions{
		context: d.store.String(config.KeyViewContext, defaultContext),
		render:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	sp := d.payload()
	sp.Action = action
	sp.Render = o.render
	sp.Extra = map[string]any{"context": o.context}
	if err := d.fire(ctx, events.ExecuteStart, sp); err != nil {
		return ExecResult{}, err
	}
	action = strings.Trim(sp.Action, "/")
	if action == "" {
		return ExecResult{}, nil
	}
	o.context = config.ToString(sp.Extra["context"], o.context)

	name, method := splitMethod(action, strings.ToLower(d.store.String(config.KeyHTTPMethod, "GET")))

	view := name
	if o.context != defaultContext {
		view += "." + o.context
	}

	frame := execctx.New(name, view, o.context)
	frame.Render = o.render
	d.stack.Push(frame)
	defer func() { _, _ = d.stack.Pop() }()

	params, _ := d.store.Get(config.KeyRequest, nil).(map[string]any)
	actionDirs := d.store.Strings(config.DirActions)
	general := d.findStep(name, name, method, params, actionDirs, frame)
	specific := d.findStep(name+"."+method, name, method, params, actionDirs, frame)
	viewFile, hasView := d.resolveView(view, d.store.Strings(config.DirViews))

	if general == nil && specific == nil && !hasView {
		if o.probe {
			return ExecResult{}, nil
		}
		return ExecResult{}, &OperationError{Op: "execute", Target: action, Err: ErrActionNotFound}
	}

	bp := d.payload()
	bp.Action = name
	bp.View = view
	bp.Filename = viewFile
	bp.Render = o.render
	bp.Extra = map[string]any{"context": o.context, "method": method}
	if err := d.fire(ctx, events.ExecuteBefore, bp); err != nil {
		return ExecResult{}, err
	}

	vars := map[string]any{}
	for _, run := range []step{general, specific} {
		if run == nil {
			continue
		}
		out, err := run(ctx, vars)
		if err != nil {
			return ExecResult{}, &OperationError{Op: "execute", Target: action, Err: err}
		}
		if out != nil {
			vars = out
		}
	}
	vars = lo.OmitBy(vars, func(k string, _ any) bool {
		return strings.HasPrefix(k, "_")
	})

	ap := d.payload()
	ap.Action = name
	ap.View = frame.View
	ap.Vars = vars
	if err := d.fire(ctx, events.ExecuteAfter, ap); err != nil {
		return ExecResult{}, err
	}
	if ap.Vars != nil {
		vars = ap.Vars
	}

	res := ExecResult{Vars: vars, Found: true}
	switch {
	case !frame.Render, frame.View == "":
		return res, nil
	case frame.View == view && !hasView:
		return res, nil
	}

	out, err := d.Render(ctx, frame.View, vars)
	if err != nil {
		return ExecResult{}, err
	}
	res.Output = out
	return res, nil
}

// splitMethod splits "name.method". A dot inside a directory name or at
// the start of the last segment does not count.
func splitMethod(action, method string) (string, string) {
	i := strings.LastIndex(action, ".")
	if i <= strings.LastIndex(action, "/")+1 {
		return action, method
	}
	return action[:i], strings.ToLower(action[i+1:])
}

// findStep returns the handler registered as key, or the script key.lua.
func (d *Dispatcher) findStep(key, name, method string, params map[string]any, dirs []string, frame *execctx.Frame) step {
	if h := d.actions.Get(key); h != nil {
		return func(ctx context.Context, vars map[string]any) (map[string]any, error) {
			return h.Handle(ctx, &handler.Context{
				Action: name,
				Method: method,
				Params: params,
				Vars:   vars,
				Store:  d.store,
				Frame:  frame,
				Log:    d.log.WithField("action", key),
			})
		}
	}

	file, ok := loader.Find(d.fs, filepath.FromSlash(key)+".lua", dirs)
	if !ok {
		return nil
	}
	return func(ctx context.Context, vars map[string]any) (map[string]any, error) {
		s, err := d.Scripts()
		if err != nil {
			return nil, err
		}
		return s.RunAction(ctx, file, vars, params)
	}
}
