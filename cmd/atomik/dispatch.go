package main

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/atomik/internal/app"
	"github.com/dshills/atomik/internal/watch"
)

type dispatchOptions struct {
	method  string
	params  []string
	script  string
	include bool
	stats   bool
	watch   bool
}

func newDispatchCmd(global *globalOptions) *cobra.Command {
	opts := &dispatchOptions{}

	cmd := &cobra.Command{
		Use:   "dispatch <uri>",
		Short: "Dispatch a request and print the response body",
		Long: `Dispatch runs one request through the application: bootstrap, routing,
the action script and the view. The response body is written to stdout.
The command exits with status 1 when the request ends in a 404 or 500.`,
		Example: `  atomik dispatch users/42
  atomik dispatch 'users?page=2' --method POST --param name=Ada
  atomik dispatch blog/index --include --stats
  atomik dispatch users --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, global, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "method", "X", http.MethodGet, "HTTP method")
	flags.StringArrayVarP(&opts.params, "param", "p", nil, "request parameter name=value (repeatable)")
	flags.StringVar(&opts.script, "script", "", "script path the base URL is derived from")
	flags.BoolVarP(&opts.include, "include", "i", false, "print the status line and headers before the body")
	flags.BoolVar(&opts.stats, "stats", false, "print dispatch metrics to stderr")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "dispatch again whenever the application files change")
	return cmd
}

func runDispatch(cmd *cobra.Command, global *globalOptions, opts *dispatchOptions, uri string) error {
	paths, err := dispatchOnce(cmd, global, opts, uri)
	if !opts.watch {
		return err
	}
	reportFailure(cmd, err)
	if len(paths) == 0 {
		paths = append([]string{"."}, global.configs...)
	}

	w, err := watch.New()
	if err != nil {
		return err
	}
	defer w.Close()

	add := func(paths []string) error {
		for _, p := range paths {
			if err := w.Add(p); err != nil && !errors.Is(err, watch.ErrPathNotExist) {
				return err
			}
		}
		return nil
	}
	if err := add(paths); err != nil {
		return err
	}

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\n--- %s: %s\n", change.Ops, strings.Join(change.Paths, ", "))
			paths, err := dispatchOnce(cmd, global, opts, uri)
			reportFailure(cmd, err)
			if err := add(paths); err != nil {
				return err
			}

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
		}
	}
}

// reportFailure prints a dispatch failure in watch mode, where it does
// not end the command.
func reportFailure(cmd *cobra.Command, err error) {
	var ee *exitError
	if err == nil || (errors.As(err, &ee) && ee.err == nil) {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}

// dispatchOnce builds the application, runs one request and returns the
// paths to watch for changes.
func dispatchOnce(cmd *cobra.Command, global *globalOptions, opts *dispatchOptions, uri string) ([]string, error) {
	a, err := global.newApplication(cmd)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	paths := a.WatchPaths()

	query := make(map[string]any, len(opts.params))
	for _, p := range opts.params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return paths, errors.Newf("invalid parameter %q, want name=value", p)
		}
		query[name] = value
	}

	var reqOpts []app.RequestOption
	if opts.script != "" {
		reqOpts = append(reqOpts, app.WithScriptPath(opts.script))
	}
	req := app.NewRequest(strings.ToUpper(opts.method), uri, query, reqOpts...)
	resp := app.NewBufferResponse()

	out := a.Run(cmd.Context(), req, resp)

	w := cmd.OutOrStdout()
	if opts.include {
		writeHead(cmd, resp)
	}
	if _, err := w.Write(resp.Bytes()); err != nil {
		return paths, err
	}

	if opts.stats {
		enc := yaml.NewEncoder(cmd.ErrOrStderr())
		if err := enc.Encode(statsReport(a, out)); err != nil {
			return paths, err
		}
		_ = enc.Close()
	}

	switch {
	case out.Err != nil:
		return paths, &exitError{code: 1, err: out.Err}
	case out.Status >= http.StatusBadRequest:
		return paths, &exitError{code: 1}
	}
	return paths, nil
}

func writeHead(cmd *cobra.Command, resp *app.BufferResponse) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "HTTP/1.1 %d %s\n", resp.Status, http.StatusText(resp.Status))
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range resp.Headers[name] {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
}

func statsReport(a *app.Application, out app.Outcome) map[string]any {
	snap := a.Metrics().Snapshot()
	var slowest []map[string]any
	for _, s := range a.Metrics().Slowest(3) {
		slowest = append(slowest, map[string]any{
			"action":  s.Name,
			"count":   s.Count,
			"average": s.Average().String(),
		})
	}
	return map[string]any{
		"slowest":    slowest,
		"request_id": out.RequestID,
		"status":     out.Status,
		"handled":    out.Handled,
		"duration":   out.Duration.String(),
		"dispatch": map[string]any{
			"total":     snap.TotalDispatches,
			"not_found": snap.TotalNotFound,
			"cancelled": snap.TotalCancelled,
			"errors":    snap.TotalErrors,
			"actions":   snap.ActionCount,
		},
	}
}
