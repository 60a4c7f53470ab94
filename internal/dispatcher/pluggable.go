package dispatcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/event/events"
	"github.com/dshills/atomik/internal/plugin"
)

// appDirKeys are the directory settings a pluggable application replaces.
var appDirKeys = []string{"actions", "views", "layouts", "helpers"}

// DispatchPluggableApplication dispatches subURI inside the application
// of a plugin.
//
// The store is reset to its baseline, keeping the layout setting, and the
// action, view, layout and helper dirs are pointed at the application
// directory and its override directory. The application's Application.lua
// runs first; returning false from it ends the request as handled.
// Pluggable application matching is off for the nested dispatch.
func (d *Dispatcher) DispatchPluggableApplication(ctx context.Context, app plugin.Application, subURI string) (bool, error) {
	ctx = d.bind(ctx)
	name := plugin.Normalize(app.Plugin)

	rec, loaded := d.plugins.Record(name)
	if app.CheckLoaded && !loaded {
		d.log.Debug("application %s: plugin not loaded", name)
		return false, nil
	}

	pluginDir := strings.TrimRight(app.PluginDir, "/")
	if pluginDir == "" {
		if loaded && rec.Dir != "" {
			pluginDir = filepath.Join(rec.Dir, name)
		} else if dir, ok := loader.FindDir(d.fs, name, d.store.Strings(config.DirPlugins)); ok {
			pluginDir = dir
		}
	}
	rootDir := strings.TrimRight("/"+strings.Trim(app.RootDir, "/"), "/")
	appDir := pluginDir + rootDir
	if pluginDir == "" || !loader.IsDir(d.fs, appDir) {
		return false, &OperationError{Op: "dispatch application", Target: appDir, Err: ErrNotDirectory}
	}

	overrideDir, ok := loader.FindDir(d.fs, name, d.store.Strings(config.DirOverrides))
	if !ok {
		overrideDir = filepath.Join(d.store.String(config.DirOverrides, "./app/overrides"), name)
	}
	overrideDir += rootDir

	layout, _ := d.store.Lookup(config.KeyLayout)
	d.store.Reset()
	d.set(config.KeyLayout, layout)

	for _, key := range appDirKeys {
		dirs := []any{filepath.Join(appDir, key), filepath.Join(overrideDir, key)}
		if !app.OverwriteDirs {
			dirs = append(dirs, lo.ToAnySlice(d.store.Strings(config.KeyDirs+"/"+key))...)
		}
		d.set(config.KeyDirs+"/"+key, dirs)
	}
	d.set(config.FilePreDispatch, filepath.Join(appDir, "pre_dispatch.lua"))
	d.set(config.FilePostDispatch, filepath.Join(appDir, "post_dispatch.lua"))

	p := d.payload()
	p.Plugin = name
	p.URI = subURI
	p.Extra = map[string]any{"app_dir": appDir, "override_dir": overrideDir}
	if err := d.fire(ctx, events.DispatchPluginApplication, p); err != nil {
		return false, err
	}
	if p.Cancel {
		return d.cancelled()
	}
	subURI = p.URI

	uriPath, _, _ := strings.Cut(subURI, "?")
	d.set(config.KeyRequestURI, strings.Trim(uriPath, "/"))

	if entry := filepath.Join(appDir, plugin.ApplicationFile); loader.IsFile(d.fs, entry) {
		s, err := d.Scripts()
		if err != nil {
			return false, err
		}
		out, err := s.RunFile(ctx, entry, true)
		if err != nil {
			return false, &OperationError{Op: "dispatch application", Target: name, Err: err}
		}
		if out == false {
			return true, nil
		}
	}

	return d.dispatch(ctx, subURI, false, false)
}
