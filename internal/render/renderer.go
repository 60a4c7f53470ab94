package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/dshills/atomik/internal/config/loader"
)

// Renderer renders a file with variables.
type Renderer interface {
	Render(ctx context.Context, filename string, vars map[string]any) (string, error)
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, filename string, vars map[string]any) (string, error)

// Render implements Renderer.
func (f Func) Render(ctx context.Context, filename string, vars map[string]any) (string, error) {
	return f(ctx, filename, vars)
}

// HelperFunc calls a view helper by name.
type HelperFunc func(ctx context.Context, name string, args ...any) (any, error)

// ErrNoHelpers is returned by the helper template function when the render
// context carries no helpers.
var ErrNoHelpers = errors.New("no view helpers available")

type helperKey struct{}

// WithHelpers attaches the helper caller used by templates rendered with ctx.
func WithHelpers(ctx context.Context, fn HelperFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, helperKey{}, fn)
}

func helpersFrom(ctx context.Context) HelperFunc {
	if ctx == nil {
		return nil
	}
	fn, _ := ctx.Value(helperKey{}).(HelperFunc)
	return fn
}

// TemplateRenderer renders text/template files.
type TemplateRenderer struct {
	fs    loader.FileSystem
	funcs template.FuncMap
	cache bool

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// Option configures a TemplateRenderer.
type Option func(*TemplateRenderer)

// WithFS sets the file system templates are read from.
func WithFS(fsys loader.FileSystem) Option {
	return func(r *TemplateRenderer) {
		if fsys != nil {
			r.fs = fsys
		}
	}
}

// WithFuncs adds template functions. They override sprig's.
func WithFuncs(funcs template.FuncMap) Option {
	return func(r *TemplateRenderer) {
		for name, fn := range funcs {
			r.funcs[name] = fn
		}
	}
}

// WithCache keeps parsed templates between renders.
func WithCache(enabled bool) Option {
	return func(r *TemplateRenderer) {
		r.cache = enabled
	}
}

// NewTemplateRenderer creates a renderer with the sprig functions.
func NewTemplateRenderer(opts ...Option) *TemplateRenderer {
	r := &TemplateRenderer{
		fs:        loader.DefaultFS(),
		funcs:     sprig.TxtFuncMap(),
		templates: make(map[string]*template.Template),
	}
	r.funcs["helper"] = unboundHelper

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func unboundHelper(name string, args ...any) (any, error) {
	return nil, fmt.Errorf("%w: %s", ErrNoHelpers, name)
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(ctx context.Context, filename string, vars map[string]any) (string, error) {
	tmpl, err := r.template(filename)
	if err != nil {
		return "", err
	}

	if helpers := helpersFrom(ctx); helpers != nil {
		tmpl, err = tmpl.Clone()
		if err != nil {
			return "", err
		}
		tmpl.Funcs(template.FuncMap{
			"helper": func(name string, args ...any) (any, error) {
				return helpers(ctx, name, args...)
			},
		})
	}

	if vars == nil {
		vars = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", filename, err)
	}
	return buf.String(), nil
}

func (r *TemplateRenderer) template(filename string) (*template.Template, error) {
	if r.cache {
		r.mu.RLock()
		tmpl, ok := r.templates[filename]
		r.mu.RUnlock()
		if ok {
			return tmpl, nil
		}
	}

	data, err := loader.ReadFile(r.fs, filename)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", filename, err)
	}
	tmpl, err := template.New(filepath.Base(filename)).Funcs(r.funcs).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	if r.cache {
		r.mu.Lock()
		r.templates[filename] = tmpl
		r.mu.Unlock()
	}
	return tmpl, nil
}
