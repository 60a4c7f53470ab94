package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/layer"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/event/events"
	"github.com/dshills/atomik/internal/logging"
	"github.com/dshills/atomik/internal/plugin/api"
	plua "github.com/dshills/atomik/internal/plugin/lua"
)

// Plugin file layout.
const (
	// EntryFile is the entry script of a directory plugin.
	EntryFile = "Plugin.lua"
	// ApplicationFile marks a directory plugin as a pluggable application.
	ApplicationFile = "Application.lua"
	// LibrariesDir is added to the require path of a directory plugin.
	LibrariesDir = "libraries"
	// Wildcard in the plugins list loads every discovered plugin.
	Wildcard = "*"
)

// Record describes a loaded plugin.
type Record struct {
	Name string

	// Dir is the directory the plugin was found in. Empty for modules.
	Dir string

	// Entry is the entry script. Empty for modules.
	Entry string

	// Compiled is true for registered Go modules.
	Compiled bool

	// Config is the plugin configuration with defaults applied.
	Config map[string]any

	state *plua.State
}

// State is where a discovered plugin stands with this loader.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateVetoed // a Plugin::Before listener refused it
	StateError
)

func (s State) String() string {
	if names := [...]string{"unloaded", "loaded", "vetoed", "error"}; s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// PluginInfo describes one plugin found by Discover.
type PluginInfo struct {
	Name  string
	Path  string
	State State
	Error error
}

// Loader finds, loads and records plugins.
type Loader struct {
	mu sync.RWMutex

	fs      loader.FileSystem
	bus     *event.Bus
	store   *config.Store
	log     *logging.Logger
	caps    []plua.Capability
	timeout time.Duration

	methods *Methods
	apps    *Applications

	modules map[string]Module
	loaded  map[string]*Record
	order   []string
	vetoed  map[string]bool
	failed  map[string]error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS sets the file system plugins are read from.
func WithFS(fsys loader.FileSystem) LoaderOption {
	return func(l *Loader) {
		if fsys != nil {
			l.fs = fsys
		}
	}
}

// WithBus sets the event bus plugins listen on.
func WithBus(bus *event.Bus) LoaderOption {
	return func(l *Loader) {
		if bus != nil {
			l.bus = bus
		}
	}
}

// WithStore sets the store plugins use outside of a request.
func WithStore(s *config.Store) LoaderOption {
	return func(l *Loader) {
		l.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log.WithComponent("plugin")
		}
	}
}

// WithCapabilities grants sandbox capabilities to every Lua plugin.
func WithCapabilities(caps ...plua.Capability) LoaderOption {
	return func(l *Loader) {
		l.caps = append(l.caps, caps...)
	}
}

// WithExecutionTimeout bounds each call into a plugin state.
func WithExecutionTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// NewLoader creates a new plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:      loader.DefaultFS(),
		bus:     event.NewBus(),
		store:   config.New(),
		log:     logging.Nop(),
		timeout: plua.DefaultExecutionTimeout,
		methods: NewMethods(),
		apps:    NewApplications(),
		modules: make(map[string]Module),
		loaded:  make(map[string]*Record),
		vetoed:  make(map[string]bool),
		failed:  make(map[string]error),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Methods returns the plugin method registry.
func (l *Loader) Methods() *Methods {
	return l.methods
}

// Applications returns the pluggable application registry.
func (l *Loader) Applications() *Applications {
	return l.apps
}

// RegisterModule makes a compiled plugin loadable under its name.
func (l *Loader) RegisterModule(m Module) error {
	if m == nil || m.Name() == "" {
		return fmt.Errorf("register module: %w", ErrInvalidPlugin)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[Normalize(m.Name())] = m
	return nil
}

// IsLoaded reports whether the plugin has been loaded.
func (l *Loader) IsLoaded(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.loaded[Normalize(name)]
	return ok
}

// Record returns the record of a loaded plugin.
func (l *Loader) Record(name string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.loaded[Normalize(name)]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Loaded returns the loaded plugins in load order.
func (l *Loader) Loaded() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, *l.loaded[name])
	}
	return out
}

// Load loads the plugin name from dirs. Loading an already loaded plugin
// succeeds without doing anything. A Plugin::Before listener clearing the
// plugin name vetoes the load, reported as false with a nil error.
func (l *Loader) Load(ctx context.Context, name string, cfg map[string]any, dirs ...string) (bool, error) {
	name = Normalize(name)
	if name == "" {
		return false, fmt.Errorf("load: %w", ErrInvalidPlugin)
	}
	if l.IsLoaded(name) {
		return true, nil
	}
	if cfg == nil {
		cfg = make(map[string]any)
	}

	p := event.NewPayload(l.store)
	p.Plugin = name
	p.Config = cfg
	p.Extra = map[string]any{"dirs": dirs}
	l.bus.Fire(api.WithStore(ctx, l.store), events.PluginBefore, p)
	if p.Err != nil {
		return false, p.Err
	}
	if p.Plugin == "" {
		l.log.Info("plugin %s vetoed", name)
		l.mu.Lock()
		l.vetoed[name] = true
		l.mu.Unlock()
		return false, nil
	}
	name = Normalize(p.Plugin)
	if p.Config != nil {
		cfg = p.Config
	}

	rec, err := l.load(ctx, name, cfg, dirs)
	if err != nil {
		l.mu.Lock()
		l.failed[name] = err
		l.mu.Unlock()
		return false, err
	}

	l.mu.Lock()
	l.loaded[name] = rec
	l.order = append(l.order, name)
	delete(l.failed, name)
	l.mu.Unlock()
	l.log.Debug("plugin %s loaded", name)

	after := event.NewPayload(l.store)
	after.Plugin = name
	after.Config = rec.Config
	l.bus.Fire(api.WithStore(ctx, l.store), events.PluginAfter, after)
	if after.Err != nil {
		return true, after.Err
	}
	return true, nil
}

// undoList collects the registrations made while a plugin loads so a
// failed load leaves nothing behind.
type undoList []func()

func (u *undoList) add(fn func()) { *u = append(*u, fn) }

func (u undoList) run() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

func (l *Loader) load(ctx context.Context, name string, cfg map[string]any, dirs []string) (rec *Record, err error) {
	var undo undoList
	defer func() {
		if err != nil {
			undo.run()
		}
	}()

	l.mu.RLock()
	mod, ok := l.modules[name]
	l.mu.RUnlock()
	if ok {
		return l.loadModule(ctx, mod, name, cfg, &undo)
	}

	rec = &Record{Name: name}
	var e luaEntry

	if file, ok := loader.Find(l.fs, name+".lua", dirs); ok {
		rec.Dir = filepath.Dir(file)
		e.entry = file
	} else if dir, ok := loader.FindDir(l.fs, name, dirs); ok {
		entry := filepath.Join(dir, EntryFile)
		if !loader.IsFile(l.fs, entry) {
			return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, dir)
		}
		rec.Dir = filepath.Dir(dir)
		e.entry = entry

		if libs := filepath.Join(dir, LibrariesDir); loader.IsDir(l.fs, libs) {
			e.libDirs = append(e.libDirs, libs)
		}
		if loader.IsFile(l.fs, filepath.Join(dir, ApplicationFile)) {
			if _, exists := l.apps.Get(name); !exists {
				if err := l.apps.Register(NewApplication(name)); err != nil {
					return nil, err
				}
				undo.add(func() { l.apps.Remove(name) })
			}
		}
	} else {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	state, merged, err := l.loadLua(ctx, name, cfg, e, &undo)
	if err != nil {
		return nil, err
	}
	rec.Entry = e.entry
	rec.Config = merged
	rec.state = state
	return rec, nil
}

func (l *Loader) loadModule(ctx context.Context, mod Module, name string, cfg map[string]any, undo *undoList) (*Record, error) {
	if d, ok := mod.(DefaultsProvider); ok {
		merged, err := mergeDefaults(d.Defaults(), cfg)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}
		cfg = merged
	}

	if mp, ok := mod.(MethodProvider); ok {
		for method, fn := range mp.Methods() {
			if err := l.methods.Register(method, fn); err != nil {
				return nil, fmt.Errorf("plugin %s: %w", name, err)
			}
			undo.add(func() { l.methods.Unregister(method) })
		}
	}

	start := true
	if s, ok := mod.(Starter); ok {
		start = s.Start(ctx, cfg)
	}
	if lp, ok := mod.(ListenerProvider); ok && start {
		if err := l.bus.ListenAll(lp.Listeners()); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}
	}

	return &Record{Name: name, Compiled: true, Config: cfg}, nil
}

// mergeDefaults returns defaults overlaid with cfg.
func mergeDefaults(defaults, cfg map[string]any) (map[string]any, error) {
	merged := layer.Clone(defaults)
	if merged == nil {
		merged = make(map[string]any)
	}
	if err := mergo.Merge(&merged, layer.Clone(cfg), mergo.WithOverride); err != nil {
		return nil, err
	}
	return merged, nil
}

// LoadAll loads the plugins listed in entries, the value of the plugins
// configuration key: a name, a list of names or {name: config} maps, or a
// map of name to config. The Wildcard name loads every plugin Discover
// finds. Loading stops at the first error.
func (l *Loader) LoadAll(ctx context.Context, entries any, dirs []string) error {
	for _, item := range pluginEntries(entries) {
		if item.name == Wildcard {
			infos, err := l.Discover(dirs)
			if err != nil {
				return err
			}
			for _, info := range infos {
				if _, err := l.Load(ctx, info.Name, nil, dirs...); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := l.Load(ctx, item.name, item.cfg, dirs...); err != nil {
			return err
		}
	}
	return nil
}

type pluginEntry struct {
	name string
	cfg  map[string]any
}

func pluginEntries(v any) []pluginEntry {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []pluginEntry{{name: val}}
	case map[string]any:
		return mapEntries(val)
	}

	items, ok := layer.ToList(v)
	if !ok {
		return nil
	}
	var out []pluginEntry
	for _, item := range items {
		switch it := item.(type) {
		case string:
			out = append(out, pluginEntry{name: it})
		case map[string]any:
			out = append(out, mapEntries(it)...)
		}
	}
	return out
}

func mapEntries(m map[string]any) []pluginEntry {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]pluginEntry, 0, len(names))
	for _, name := range names {
		cfg, _ := m[name].(map[string]any)
		out = append(out, pluginEntry{name: name, cfg: cfg})
	}
	return out
}

// Discover finds the plugins available in dirs and the registered modules.
// Returns plugins sorted by name; the first directory wins.
func (l *Loader) Discover(dirs []string) ([]*PluginInfo, error) {
	found := make(map[string]*PluginInfo)

	for _, dir := range dirs {
		base := filepath.ToSlash(filepath.Clean(dir))
		pattern := "{*.lua,*/" + EntryFile + "}"
		if base != "." {
			pattern = base + "/" + pattern
		}

		matches, err := doublestar.Glob(l.fs, pattern)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("discover %s: %w", dir, err)
		}
		for _, m := range matches {
			name := strings.TrimSuffix(path.Base(m), ".lua")
			if path.Base(m) == EntryFile {
				name = path.Base(path.Dir(m))
			}
			name = Normalize(name)
			if _, exists := found[name]; !exists {
				found[name] = &PluginInfo{Name: name, Path: filepath.FromSlash(m)}
			}
		}
	}

	l.mu.RLock()
	for name := range l.modules {
		if _, exists := found[name]; !exists {
			found[name] = &PluginInfo{Name: name}
		}
	}
	for name, info := range found {
		switch {
		case l.loaded[name] != nil:
			info.State = StateLoaded
		case l.vetoed[name]:
			info.State = StateVetoed
		case l.failed[name] != nil:
			info.State = StateError
			info.Error = l.failed[name]
		}
	}
	l.mu.RUnlock()

	plugins := make([]*PluginInfo, 0, len(found))
	for _, info := range found {
		plugins = append(plugins, info)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})
	return plugins, nil
}

// Close releases the Lua states of loaded plugins.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, name := range l.order {
		if st := l.loaded[name].state; st != nil {
			if err := st.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
