// Package app ties the atomik core together into an application. It
// builds the startup configuration, loads the plugins, runs the bootstrap
// file once and then serves requests through Run, each over its own copy
// of the store.
package app

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/layer"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/dispatcher"
	"github.com/dshills/atomik/internal/dispatcher/hook"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/logging"
	"github.com/dshills/atomik/internal/plugin"
	"github.com/dshills/atomik/internal/render"
)

// Application is an initialized atomik application. Run is safe for
// concurrent use; every request gets a clone of the store.
type Application struct {
	opts Options

	log      *logging.Logger
	fs       loader.FileSystem
	layers   *layer.Stack
	store    *config.Store
	bus      *event.Bus
	plugins  *plugin.Loader
	actions  *dispatcher.Registry
	hooks    *hook.Manager
	scripts  *dispatcher.Scripts
	renderer render.Renderer
	metrics  *dispatcher.Metrics

	closed atomic.Bool
}

// Options configures the application.
type Options struct {
	// ConfigFiles are TOML or YAML files merged over the builtin
	// defaults, later files winning.
	ConfigFiles []string

	// Overrides are merged last, as with --set on the command line.
	// Keys are store paths.
	Overrides map[string]any

	// Environ supplies the ATOMIK_ variables. Nil reads the process
	// environment.
	Environ func() []string

	// FS is where configuration, scripts and templates are read from.
	FS loader.FileSystem

	// Logger defaults to a discarding logger.
	Logger *logging.Logger

	// Renderer defaults to the template renderer over FS.
	Renderer render.Renderer

	// Helpers are Go view helpers available to every request.
	Helpers map[string]render.HelperFunc

	// Modules are compiled plugins, loadable by name from the plugins
	// setting.
	Modules []plugin.Module

	// ScriptTimeout bounds each script run. Zero means no limit.
	ScriptTimeout time.Duration
}

// New initializes the application.
func New(ctx context.Context, opts Options) (*Application, error) {
	a := &Application{opts: opts}
	if err := newBootstrapper(a).bootstrap(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Store returns the application store. Its baseline is the state every
// request starts from.
func (a *Application) Store() *config.Store {
	return a.store
}

// Layers returns the startup configuration layers.
func (a *Application) Layers() *layer.Stack {
	return a.layers
}

// Bus returns the event bus.
func (a *Application) Bus() *event.Bus {
	return a.bus
}

// Plugins returns the plugin loader.
func (a *Application) Plugins() *plugin.Loader {
	return a.plugins
}

// Registry returns the Go action handlers.
func (a *Application) Registry() *dispatcher.Registry {
	return a.actions
}

// Hooks returns the dispatch hooks.
func (a *Application) Hooks() *hook.Manager {
	return a.hooks
}

// Metrics returns the dispatch metrics.
func (a *Application) Metrics() *dispatcher.Metrics {
	return a.metrics
}

// Logger returns the application logger.
func (a *Application) Logger() *logging.Logger {
	return a.log
}

// WatchPaths returns the configuration files and directories a change
// to which requires a new Application: the app and plugin directories
// and every directory and file setting that lies outside them.
func (a *Application) WatchPaths() []string {
	paths := append([]string{}, a.opts.ConfigFiles...)
	paths = append(paths, a.store.Strings(config.DirApp)...)
	paths = append(paths, a.store.Strings(config.DirPlugins)...)
	for _, key := range []string{config.KeyDirs, config.KeyFiles} {
		group, _ := a.store.Get(key, nil).(map[string]any)
		for name := range group {
			paths = append(paths, a.store.Strings(key+"/"+name)...)
		}
	}

	paths = lo.Map(paths, func(p string, _ int) string { return filepath.Clean(p) })
	paths = lo.Filter(lo.Uniq(paths), func(p string, _ int) bool {
		return loader.IsFile(a.fs, p) || loader.IsDir(a.fs, p)
	})
	sort.Strings(paths)

	var out []string
	for _, p := range paths {
		if !lo.SomeBy(out, func(dir string) bool { return within(dir, p) }) {
			out = append(out, p)
		}
	}
	return out
}

// within reports whether p is dir or below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Close releases the script states. It is safe to call more than once.
func (a *Application) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	var first error
	if a.scripts != nil {
		first = a.scripts.Close()
	}
	if a.plugins != nil {
		if err := a.plugins.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
