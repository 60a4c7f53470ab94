package plugin

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/router"
)

// Application is a plugin exposing its own actions and views under a mount
// route.
type Application struct {
	Plugin string `mapstructure:"plugin" yaml:"plugin"`

	// Route is the mount pattern, "<plugin>/*" by default.
	Route string `mapstructure:"route" yaml:"route"`

	// RootDir is a subdirectory of the plugin holding the application.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir,omitempty"`

	// PluginDir overrides the plugin's own directory.
	PluginDir string `mapstructure:"plugin_dir" yaml:"plugin_dir,omitempty"`

	// OverwriteDirs replaces the application directories instead of
	// putting the plugin's in front of them.
	OverwriteDirs bool `mapstructure:"overwrite_dirs" yaml:"overwrite_dirs"`

	// CheckLoaded refuses to dispatch when the plugin is not loaded.
	CheckLoaded bool `mapstructure:"check_loaded" yaml:"check_loaded"`
}

// NewApplication returns the default registration for plugin.
func NewApplication(plugin string) Application {
	plugin = Normalize(plugin)
	return Application{
		Plugin:        plugin,
		Route:         strings.ToLower(plugin) + "/*",
		OverwriteDirs: true,
		CheckLoaded:   true,
	}
}

// Normalize upper-cases the first letter of a plugin name.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// Applications is the ordered registry of pluggable applications.
type Applications struct {
	mu   sync.RWMutex
	list []Application
}

// NewApplications creates an empty registry.
func NewApplications() *Applications {
	return &Applications{}
}

// Register adds app, replacing an earlier registration of the same plugin
// in place.
func (a *Applications) Register(app Application) error {
	app.Plugin = Normalize(app.Plugin)
	if app.Plugin == "" {
		return fmt.Errorf("register application: %w", ErrInvalidPlugin)
	}
	app.Route = strings.Trim(app.Route, "/")
	if app.Route == "" {
		app.Route = strings.ToLower(app.Plugin) + "/*"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, existing := range a.list {
		if existing.Plugin == app.Plugin {
			a.list[i] = app
			return nil
		}
	}
	a.list = append(a.list, app)
	return nil
}

// Remove drops the application of plugin and reports whether it was
// registered.
func (a *Applications) Remove(plugin string) bool {
	plugin = Normalize(plugin)

	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.list)
	a.list = slices.DeleteFunc(a.list, func(app Application) bool { return app.Plugin == plugin })
	return len(a.list) < n
}

// RegisterApplicationMap decodes opts over the defaults for plugin and
// registers the result.
func (a *Applications) RegisterApplicationMap(plugin string, opts map[string]any) error {
	app := NewApplication(plugin)
	if len(opts) > 0 {
		if err := config.Decode(opts, &app); err != nil {
			return fmt.Errorf("register application %s: %w", plugin, err)
		}
		app.Plugin = Normalize(plugin)
	}
	return a.Register(app)
}

// Get returns the registration for plugin.
func (a *Applications) Get(plugin string) (Application, bool) {
	plugin = Normalize(plugin)

	a.mu.RLock()
	defer a.mu.RUnlock()
	return lo.Find(a.list, func(app Application) bool { return app.Plugin == plugin })
}

// List returns the registrations in registration order.
func (a *Applications) List() []Application {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Application(nil), a.list...)
}

// Match returns the first application whose route mounts uri.
func (a *Applications) Match(uri string) (Application, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return lo.Find(a.list, func(app Application) bool { return router.MatchMount(app.Route, uri) })
}
