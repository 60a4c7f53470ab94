package hook

import (
	"context"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/logging"
)

// Standard hook priorities.
const (
	PriorityAudit = 1000 // Runs first (pre) / last (post)
	PriorityFile  = 500
)

// Runner runs a script file. Isolated runs get a private global scope.
type Runner interface {
	RunFile(ctx context.Context, path string, isolated bool) (any, error)
}

// FileHook runs the script named by a store key around each dispatch.
// A missing file is skipped, so the key can point at an optional script.
type FileHook struct {
	name   string
	key    string
	fs     loader.FileSystem
	runner Runner
}

// NewPreDispatchFile returns the hook running files/pre_dispatch.
func NewPreDispatchFile(fsys loader.FileSystem, r Runner) *PreDispatchFile {
	return &PreDispatchFile{FileHook{name: "pre_dispatch", key: config.FilePreDispatch, fs: fsys, runner: r}}
}

// NewPostDispatchFile returns the hook running files/post_dispatch.
func NewPostDispatchFile(fsys loader.FileSystem, r Runner) *PostDispatchFile {
	return &PostDispatchFile{FileHook{name: "post_dispatch", key: config.FilePostDispatch, fs: fsys, runner: r}}
}

// Name implements Hook.
func (h *FileHook) Name() string { return h.name }

// Priority implements Hook.
func (h *FileHook) Priority() int { return PriorityFile }

// Path returns the script the hook would run for the request.
func (h *FileHook) Path(hc *Context) (string, bool) {
	if hc.Store == nil {
		return "", false
	}
	path := hc.Store.String(h.key, "")
	if path == "" || !loader.IsFile(h.fs, path) {
		return "", false
	}
	return path, true
}

func (h *FileHook) run(ctx context.Context, hc *Context) error {
	path, ok := h.Path(hc)
	if !ok {
		return nil
	}
	_, err := h.runner.RunFile(ctx, path, true)
	return err
}

// PreDispatchFile is the pre-dispatch form of FileHook.
type PreDispatchFile struct{ FileHook }

// PreDispatch implements PreDispatchHook. The script cannot stop the
// dispatch; it uses the dispatcher controls instead.
func (h *PreDispatchFile) PreDispatch(ctx context.Context, hc *Context) (bool, error) {
	return true, h.run(ctx, hc)
}

// PostDispatchFile is the post-dispatch form of FileHook.
type PostDispatchFile struct{ FileHook }

// PostDispatch implements PostDispatchHook.
func (h *PostDispatchFile) PostDispatch(ctx context.Context, hc *Context) error {
	return h.run(ctx, hc)
}

// RegisterFileHooks registers the pre and post dispatch file hooks.
func RegisterFileHooks(m *Manager, fsys loader.FileSystem, r Runner) {
	m.RegisterPre(NewPreDispatchFile(fsys, r))
	m.RegisterPost(NewPostDispatchFile(fsys, r))
}

// AuditHook logs every dispatched action.
type AuditHook struct {
	logger *logging.Logger
}

// NewAuditHook creates an audit hook with the given logger.
func NewAuditHook(logger *logging.Logger) *AuditHook {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuditHook{logger: logger.WithComponent("audit")}
}

// Name implements Hook.
func (h *AuditHook) Name() string { return "audit" }

// Priority implements Hook.
func (h *AuditHook) Priority() int { return PriorityAudit }

// PreDispatch logs the action being dispatched.
func (h *AuditHook) PreDispatch(_ context.Context, hc *Context) (bool, error) {
	h.logger.Debug("dispatch %s action=%s", hc.URI, hc.Action)
	return true, nil
}

// PostDispatch logs the dispatch result.
func (h *AuditHook) PostDispatch(_ context.Context, hc *Context) error {
	h.logger.Debug("dispatched %s action=%s bytes=%d", hc.URI, hc.Action, len(hc.Output))
	return nil
}
