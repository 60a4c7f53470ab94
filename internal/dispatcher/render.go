package dispatcher

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/event/events"
)

// ContentForLayout is the variable a layout receives the wrapped output in.
const ContentForLayout = "contentForLayout"

// Render renders a view with vars. A ".ctx" suffix on the view is
// replaced by the prefix of that view context, so "users.html" renders
// users.tmpl and "users.json" renders users.json.tmpl with the builtin
// contexts. dirs default to dirs/views.
func (d *Dispatcher) Render(ctx context.Context, view string, vars map[string]any, dirs ...string) (string, error) {
	ctx = d.bind(ctx)
	if len(dirs) == 0 {
		dirs = d.store.Strings(config.DirViews)
	}

	sp := d.payload()
	sp.View = view
	sp.Vars = vars
	sp.Extra = map[string]any{"dirs": dirs}
	if err := d.fire(ctx, events.RenderStart, sp); err != nil {
		return "", err
	}
	view, vars = sp.View, sp.Vars
	if ds := config.ToStrings(sp.Extra["dirs"]); len(ds) > 0 {
		dirs = ds
	}

	filename, ok := d.resolveView(view, dirs)
	if !ok {
		return "", &OperationError{Op: "render", Target: view, Err: ErrViewNotFound}
	}

	bp := d.payload()
	bp.View = view
	bp.Filename = filename
	bp.Vars = vars
	if err := d.fire(ctx, events.RenderBefore, bp); err != nil {
		return "", err
	}

	out, err := d.RenderFile(ctx, bp.Filename, bp.Vars)
	if err != nil {
		return "", err
	}

	ap := d.payload()
	ap.View = view
	ap.Filename = bp.Filename
	ap.Content = out
	if err := d.fire(ctx, events.RenderAfter, ap); err != nil {
		return "", err
	}
	return ap.Content, nil
}

// RenderFile renders a template file with the configured renderer.
func (d *Dispatcher) RenderFile(ctx context.Context, filename string, vars map[string]any) (string, error) {
	ctx = d.bind(ctx)

	bp := d.payload()
	bp.Filename = filename
	bp.Vars = vars
	if err := d.fire(ctx, events.RenderFileBefore, bp); err != nil {
		return "", err
	}

	out, err := d.renderer.Render(ctx, bp.Filename, bp.Vars)
	if err != nil {
		return "", &OperationError{Op: "render file", Target: bp.Filename, Err: err}
	}

	ap := d.payload()
	ap.Filename = bp.Filename
	ap.Content = out
	if err := d.fire(ctx, events.RenderFileAfter, ap); err != nil {
		return "", err
	}
	return ap.Content, nil
}

// RenderLayout wraps content in the layout found in dirs/layouts.
func (d *Dispatcher) RenderLayout(ctx context.Context, layout, content string) (string, error) {
	ctx = d.bind(ctx)

	p := d.payload()
	p.View = layout
	p.Content = content
	if err := d.fire(ctx, events.RenderLayout, p); err != nil {
		return "", err
	}

	vars := map[string]any{ContentForLayout: p.Content}
	return d.Render(ctx, p.View, vars, d.store.Strings(config.DirLayouts)...)
}

// resolveView finds the file of a view in dirs.
func (d *Dispatcher) resolveView(view string, dirs []string) (string, bool) {
	if view == "" || strings.Contains(view, "..") {
		return "", false
	}
	ext := d.store.String(config.KeyFileExtension, ".tmpl")
	return loader.Find(d.fs, filepath.FromSlash(d.viewName(view))+ext, dirs)
}

// viewName substitutes the context suffix of view with the context
// prefix. An empty prefix drops the suffix.
func (d *Dispatcher) viewName(view string) string {
	suffix := path.Ext(path.Base(view))
	if len(suffix) < 2 {
		return view
	}
	stem := strings.TrimSuffix(view, suffix)
	prefix := d.store.ContextPrefix(suffix[1:])
	if prefix == "" {
		return stem
	}
	return stem + "." + prefix
}
