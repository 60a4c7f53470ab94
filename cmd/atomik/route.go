package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/router"
)

func newRouteCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "route <uri>",
		Short: "Show the request parameters a URI resolves to",
		Long: `Route resolves a URI against the configured routes without running
any script. When a pluggable application is mounted on the URI, the
application and the URI it receives are shown as well.`,
		Example: `  atomik route users/42
  atomik route 'archive/2024.json?page=3'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.newApplication(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			uri := args[0]
			report := map[string]any{"uri": uri}

			store := a.Store()
			if mounted, ok := a.Plugins().Applications().Match(uri); ok {
				uri = router.StripMount(mounted.Route, uri)
				report["application"] = mounted.Plugin
				report["application_uri"] = uri
			}

			table, err := router.ParseTable(store.Get(config.KeyRoutes, nil))
			if err != nil {
				return err
			}
			params, err := router.Resolve(uri, nil, table, router.Options{
				ForceExtension: store.Bool(config.KeyForceURIExtension, false),
				ContextParam:   store.String(config.KeyContextParam, "format"),
				DefaultContext: store.String(config.KeyDefaultContext, "html"),
			})
			if err != nil {
				return err
			}
			report["request"] = params
			return writeYAML(cmd, report)
		},
	}
}
