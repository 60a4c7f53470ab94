package app

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/config/layer"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/dispatcher"
	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/event/events"
	"github.com/dshills/atomik/internal/logging"
	"github.com/dshills/atomik/internal/plugin/api"
)

// Outcome describes how a request ended.
type Outcome struct {
	RequestID string
	Status    int

	// Handled is false for a 404.
	Handled bool

	// Err is the pipeline failure, if any. It is set whether or not the
	// error page was written.
	Err error

	// Session is the session after the request, flash messages included.
	Session map[string]any

	Duration time.Duration
}

// notFoundPage is written when files/404 does not exist.
const notFoundPage = "<h1>404 - File not found</h1>"

// Run serves one request. The store is cloned from the application
// baseline, Atomik::Start fires (a listener may cancel the request), the
// request is dispatched and Atomik::End fires with the result.
//
// Failures are caught at this boundary. With catch_errors off, Run writes
// nothing for them and only reports them in the outcome.
func (a *Application) Run(ctx context.Context, req Request, resp Response) Outcome {
	start := time.Now()
	out := Outcome{RequestID: uuid.NewString(), Status: http.StatusOK}
	log := a.log.WithField("request_id", out.RequestID)

	if a.closed.Load() {
		out.Err = ErrClosed
		out.Status = http.StatusServiceUnavailable
		return out
	}

	store := a.store.Clone()
	if err := store.RegisterSelector(config.FlashNamespace, config.FlashSelector(store)); err != nil {
		log.Warn("flash selector: %v", err)
	}
	session := req.Session()
	if session != nil {
		_ = store.Set(config.KeySession, layer.Clone(session))
	}
	ctx = api.WithStore(ctx, store)

	d := dispatcher.New(dispatcher.Options{
		Store:    store,
		Bus:      a.bus,
		Plugins:  a.plugins,
		Actions:  a.actions,
		Hooks:    a.hooks,
		Renderer: a.renderer,
		Scripts:  a.scripts,
		Helpers:  a.opts.Helpers,
		FS:       a.fs,
		Request:  req,
		Response: resp,
		Logger:   log,
		Metrics:  a.metrics,
	})
	defer d.Close()

	out.Handled, out.Err = a.serve(ctx, d, req.URI(), resp, log)
	switch {
	case out.Err != nil:
		out.Status = http.StatusInternalServerError
	case !out.Handled:
		out.Status = http.StatusNotFound
	}

	ep := event.NewPayload(store)
	ep.Success = out.Err == nil
	a.bus.Fire(ctx, events.End, ep)

	if session != nil {
		if s, ok := store.Get(config.KeySession, nil).(map[string]any); ok {
			out.Session = s
		} else {
			out.Session = map[string]any{}
		}
	}
	out.Duration = time.Since(start)
	log.Debug("%s %q: %d in %s", req.Method(), req.URI(), out.Status, out.Duration)
	return out
}

// serve runs the request between Atomik::Start and the 404 or error
// page.
func (a *Application) serve(ctx context.Context, d *dispatcher.Dispatcher, uri string, resp Response, log *logging.Logger) (handled bool, err error) {
	store := d.Store()

	defer func() {
		if r := recover(); r != nil {
			handled, err = false, recovered(r)
		}
		if err != nil {
			err = a.fail(ctx, d, resp, err, log)
		}
	}()

	sp := event.NewPayload(store)
	a.bus.Fire(ctx, events.Start, sp)
	if sp.Err != nil {
		return false, fault(sp.Err, uri)
	}
	if sp.Cancel {
		return true, nil
	}

	handled, err = d.Dispatch(ctx, uri, true)
	if err != nil {
		return false, fault(err, uri)
	}
	if !handled {
		if err := a.notFound(ctx, d, resp); err != nil {
			return false, fault(err, uri)
		}
	}
	return handled, nil
}

// notFound writes the 404 page: files/404 when it exists, a generic page
// otherwise.
func (a *Application) notFound(ctx context.Context, d *dispatcher.Dispatcher, resp Response) error {
	store := d.Store()
	a.bus.Fire(ctx, events.NotFound, event.NewPayload(store))

	resp.SetStatus(http.StatusNotFound)
	resp.SetHeader("Content-Type", "text/html")

	if file := store.String(config.File404, ""); file != "" && loader.IsFile(a.fs, file) {
		page, err := d.RenderFile(ctx, file, map[string]any{
			"uri": store.String(config.KeyRequestURI, ""),
		})
		if err != nil {
			return err
		}
		_, err = io.WriteString(resp, page)
		return err
	}
	_, err := io.WriteString(resp, notFoundPage)
	return err
}

// fail is the fault boundary. Atomik::Error fires with the error in
// Extra["error"]; a listener cancelling it takes over the response.
// Otherwise the files/error template, or a generic page, is written with
// status 500 when catch_errors is on.
func (a *Application) fail(ctx context.Context, d *dispatcher.Dispatcher, resp Response, err error, log *logging.Logger) error {
	store := d.Store()
	log.Error("request failed: %v", err)

	p := event.NewPayload(store)
	p.Extra = map[string]any{"error": err}
	a.bus.Fire(ctx, events.Error, p)
	if p.Cancel || !store.Bool(config.KeyCatchErrors, true) {
		return err
	}

	resp.SetStatus(http.StatusInternalServerError)
	resp.SetHeader("Content-Type", "text/html")

	display := store.Bool(config.KeyDisplayErrors, false)
	vars := map[string]any{"message": "An error has occurred"}
	if display {
		vars["message"] = err.Error()
		vars["trace"] = fmt.Sprintf("%+v", err)
	}

	if file := store.String(config.FileError, ""); file != "" && loader.IsFile(a.fs, file) {
		page, rerr := d.RenderFile(ctx, file, vars)
		if rerr == nil {
			_, _ = io.WriteString(resp, page)
			return err
		}
		log.Error("error page %s: %v", file, rerr)
	}

	_, _ = io.WriteString(resp, errorPage(err, display))
	return err
}

func errorPage(err error, display bool) string {
	if !display {
		return `<div class="atomik-error"><span class="atomik-error-title">An error has occurred!</span></div>`
	}
	return fmt.Sprintf(
		`<div class="atomik-error"><span class="atomik-error-title">An error has occurred!</span>`+
			`<p>%s</p><strong>Stack:</strong><pre class="atomik-error-stack">%s</pre></div>`,
		html.EscapeString(err.Error()),
		html.EscapeString(fmt.Sprintf("%+v", err)),
	)
}
