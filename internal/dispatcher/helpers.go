package dispatcher

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/render"
)

// Helper calls the view helper name. Go helpers given in Options win;
// otherwise <name>.lua is loaded from dirs/helpers, once per dispatcher,
// and its function named after the file is called.
func (d *Dispatcher) Helper(ctx context.Context, name string, args ...any) (any, error) {
	fn, err := d.helper(ctx, name)
	if err != nil {
		return nil, err
	}
	return fn(ctx, name, args...)
}

func (d *Dispatcher) helper(ctx context.Context, name string) (render.HelperFunc, error) {
	if fn, ok := d.helpers[name]; ok {
		return fn, nil
	}

	d.mu.Lock()
	fn, ok := d.helperCache[name]
	d.mu.Unlock()
	if ok {
		return fn, nil
	}

	name = strings.Trim(name, "/")
	if name == "" || strings.Contains(name, "..") {
		return nil, &OperationError{Op: "helper", Target: name, Err: ErrHelperNotFound}
	}
	file, ok := loader.Find(d.fs, filepath.FromSlash(name)+".lua", d.store.Strings(config.DirHelpers))
	if !ok {
		return nil, &OperationError{Op: "helper", Target: name, Err: ErrHelperNotFound}
	}

	s, err := d.Scripts()
	if err != nil {
		return nil, err
	}
	fn, err = s.LoadHelper(ctx, file, path.Base(name))
	if err != nil {
		return nil, &OperationError{Op: "helper", Target: name, Err: err}
	}

	d.mu.Lock()
	d.helperCache[name] = fn
	d.mu.Unlock()
	return fn, nil
}
