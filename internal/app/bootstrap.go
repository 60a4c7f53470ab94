package app

import (
	"context"
	"fmt"
	"os"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/layer"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/dispatcher"
	"github.com/dshills/atomik/internal/dispatcher/hook"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/logging"
	"github.com/dshills/atomik/internal/plugin"
	"github.com/dshills/atomik/internal/plugin/api"
	plua "github.com/dshills/atomik/internal/plugin/lua"
	"github.com/dshills/atomik/internal/render"
)

// KeyApplications maps plugin names to pluggable application options
// (or true for the defaults).
const KeyApplications = "pluggable_applications"

// EnvPrefix prefixes the environment variables read into the
// configuration.
const EnvPrefix = loader.EnvPrefix

// bootstrapper initializes the application components in dependency
// order and releases what it built when a later step fails.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      app.opts,
		initOrder: make([]string, 0, 6),
	}
}

func (b *bootstrapper) bootstrap(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"config", b.initConfig},
		{"events", b.initEvents},
		{"plugins", b.initPlugins},
		{"scripts", b.initScripts},
		{"dispatch", b.initDispatch},
		{"bootstrap", b.runBootstrap},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	b.app.log.Debug("initialized: %v", b.initOrder)
	return nil
}

// initConfig stacks the builtin defaults, the configuration files, the
// environment and the overrides into the store baseline.
func (b *bootstrapper) initConfig(context.Context) error {
	a := b.app
	a.log = b.opts.Logger
	if a.log == nil {
		a.log = logging.Nop()
	}
	a.fs = b.opts.FS
	if a.fs == nil {
		a.fs = loader.DefaultFS()
	}

	a.layers = layer.NewStack(layer.New("builtin", layer.SourceBuiltin, config.Defaults()))

	for i, path := range b.opts.ConfigFiles {
		data, err := loader.LoadFile(a.fs, path)
		if err != nil {
			return err
		}
		l := layer.New(path, layer.SourceFile, data)
		l.Order = i
		a.layers.Push(l)
	}

	environ := os.Environ
	if b.opts.Environ != nil {
		environ = b.opts.Environ
	}
	envData := loader.Env{Prefix: EnvPrefix}.Load(environ())
	a.layers.Push(layer.New("env", layer.SourceEnv, envData))

	args := make(map[string]any, len(b.opts.Overrides))
	for path, v := range b.opts.Overrides {
		if !layer.SetByPath(args, path, v) {
			return fmt.Errorf("%w: %s", ErrInvalidOverride, path)
		}
	}
	a.layers.Push(layer.New("args", layer.SourceArgs, args))

	a.store = config.New()
	return a.store.Merge(a.layers.Merge(), config.WithBaseline())
}

func (b *bootstrapper) initEvents(context.Context) error {
	b.app.bus = event.NewBus(event.WithLogger(b.app.log))
	return nil
}

// initPlugins loads the plugins setting and registers the pluggable
// applications named in the configuration.
func (b *bootstrapper) initPlugins(ctx context.Context) error {
	a := b.app
	a.plugins = plugin.NewLoader(
		plugin.WithFS(a.fs),
		plugin.WithBus(a.bus),
		plugin.WithStore(a.store),
		plugin.WithLogger(a.log),
		plugin.WithExecutionTimeout(b.opts.ScriptTimeout),
	)
	for _, m := range b.opts.Modules {
		if err := a.plugins.RegisterModule(m); err != nil {
			return err
		}
	}

	ctx = api.WithStore(ctx, a.store)
	if err := a.plugins.LoadAll(ctx, a.store.Get(config.KeyPlugins, nil), a.store.Strings(config.DirPlugins)); err != nil {
		return err
	}

	apps, _ := a.store.Get(KeyApplications, nil).(map[string]any)
	for name, v := range apps {
		var opts map[string]any
		switch val := v.(type) {
		case map[string]any:
			opts = val
		default:
			if !config.Truthy(val) {
				continue
			}
		}
		if err := a.plugins.Applications().RegisterApplicationMap(name, opts); err != nil {
			return err
		}
	}
	return nil
}

func (b *bootstrapper) initScripts(context.Context) error {
	a := b.app
	s, err := dispatcher.NewScripts(a.fs, &api.Context{
		Store:   a.store,
		Bus:     a.bus,
		Methods: a.plugins.Methods(),
		Apps:    a.plugins.Applications(),
		Log:     a.log.WithComponent("scripts"),
	}, plua.WithExecutionTimeout(b.opts.ScriptTimeout))
	if err != nil {
		return err
	}
	a.scripts = s
	return nil
}

func (b *bootstrapper) initDispatch(context.Context) error {
	a := b.app
	a.actions = dispatcher.NewRegistry()
	a.metrics = dispatcher.NewMetrics()

	a.hooks = hook.NewManager()
	hook.RegisterFileHooks(a.hooks, a.fs, a.scripts)
	a.hooks.Register(hook.NewAuditHook(a.log.WithComponent("audit")))

	a.renderer = b.opts.Renderer
	if a.renderer == nil {
		a.renderer = render.NewTemplateRenderer(
			render.WithFS(a.fs),
			render.WithCache(!a.store.Bool(config.KeyDebug, false)),
		)
	}
	return nil
}

// runBootstrap runs the bootstrap file in the shared global scope, so
// the functions it defines stay visible to later scripts, and then makes
// the resulting store the baseline of every request.
func (b *bootstrapper) runBootstrap(ctx context.Context) error {
	a := b.app
	path := a.store.String(config.FileBootstrap, "")
	if path != "" && loader.IsFile(a.fs, path) {
		if _, err := a.scripts.RunFile(api.WithStore(ctx, a.store), path, false); err != nil {
			return err
		}
		a.log.Debug("bootstrap %s done", path)
	}
	a.store.Snapshot()
	return nil
}

// cleanup releases the components initialized so far.
func (b *bootstrapper) cleanup() {
	a := b.app
	if a.scripts != nil {
		_ = a.scripts.Close()
	}
	if a.plugins != nil {
		_ = a.plugins.Close()
	}
}
