// Package watch reports changes to application files.
//
// A Watcher follows directories recursively and files individually, and
// coalesces the events of a burst of writes into a single Change so a
// reload runs once per save.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op is a set of file system operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the operations joined with "|".
func (op Op) String() string {
	var names []string
	for _, n := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
	} {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Has returns true if op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Change is a batch of events delivered after the watched tree has been
// quiet for the debounce delay.
type Change struct {
	// Paths are the affected paths, sorted.
	Paths []string
	// Ops is the union of the operations seen.
	Ops Op
	// At is the time of the last event in the batch.
	At time.Time
}

// Config holds watcher configuration options.
type Config struct {
	// Delay is the quiet period closing a batch.
	// Default: 100ms
	Delay time.Duration

	// Ignore are doublestar patterns matched against slash-separated
	// paths relative to the watched root, and against base names.
	Ignore []string

	// IgnoreHidden ignores files and directories starting with ".".
	// Default: true
	IgnoreHidden bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Delay:        100 * time.Millisecond,
		Ignore:       []string{"*~", "*.swp", "*.tmp"},
		IgnoreHidden: true,
	}
}

// Option configures a Watcher.
type Option func(*Config)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(c *Config) {
		c.Delay = d
	}
}

// WithIgnore adds ignore patterns.
func WithIgnore(patterns ...string) Option {
	return func(c *Config) {
		c.Ignore = append(c.Ignore, patterns...)
	}
}

// WithIgnoreHidden sets whether hidden paths are ignored.
func WithIgnoreHidden(ignore bool) Option {
	return func(c *Config) {
		c.IgnoreHidden = ignore
	}
}

// Watcher watches paths and delivers debounced changes.
type Watcher struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	config Config

	// roots maps watched directories to the root they were added under.
	roots map[string]string

	pending *Change
	timer   *time.Timer

	changes chan Change
	errors  chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
	flushWg  sync.WaitGroup
}

// New creates a watcher. Nothing is watched until Add is called.
func New(opts ...Option) (*Watcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Delay <= 0 {
		config.Delay = 100 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		config:  config,
		roots:   make(map[string]string),
		changes: make(chan Change, 16),
		errors:  make(chan error, 16),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Add watches path. Directories are watched with all their
// subdirectories, including ones created later.
func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	if !info.IsDir() {
		return w.watch(absPath, filepath.Dir(absPath))
	}
	return w.addTree(absPath, absPath)
}

func (w *Watcher) addTree(dir, root string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root && w.ignored(root, p) {
			return filepath.SkipDir
		}
		return w.watch(p, root)
	})
}

func (w *Watcher) watch(path, root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.roots[path]; ok {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.roots[path] = root
	return nil
}

// Changes returns the channel of debounced changes. It is closed by Close.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the channel of watcher errors. It is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// WatchedPaths returns the watched paths, sorted.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.roots))
	for p := range w.roots {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close stops the watcher. A pending batch is dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()

	err := w.fsw.Close()
	w.closedWg.Wait()
	w.flushWg.Wait()

	close(w.changes)
	close(w.errors)
	return err
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}

	w.mu.Lock()
	root, ok := w.roots[filepath.Dir(ev.Name)]
	if !ok {
		root = w.roots[ev.Name]
	}
	w.mu.Unlock()
	if root != "" && w.ignored(root, ev.Name) {
		return
	}

	if op.Has(OpCreate) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && root != "" {
			_ = w.addTree(ev.Name, root)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending == nil {
		w.pending = &Change{}
	}
	if !lo.Contains(w.pending.Paths, ev.Name) {
		w.pending.Paths = append(w.pending.Paths, ev.Name)
	}
	w.pending.Ops |= op
	w.pending.At = time.Now()

	if w.timer == nil {
		w.timer = time.AfterFunc(w.config.Delay, w.flush)
	} else {
		w.timer.Reset(w.config.Delay)
	}
}

// flush delivers the pending batch.
func (w *Watcher) flush() {
	w.mu.Lock()
	change := w.pending
	w.pending = nil
	if change == nil || w.closed {
		w.mu.Unlock()
		return
	}
	w.flushWg.Add(1)
	w.mu.Unlock()
	defer w.flushWg.Done()

	sort.Strings(change.Paths)

	select {
	case w.changes <- *change:
	case <-w.closeCh:
	}
}

// ignored reports whether path, under root, matches an ignore rule.
func (w *Watcher) ignored(root, path string) bool {
	base := filepath.Base(path)
	if w.config.IgnoreHidden && strings.HasPrefix(base, ".") {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = base
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.config.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
