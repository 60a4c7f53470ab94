package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/atomik/internal/config"
)

func newPluginsCmd(global *globalOptions) *cobra.Command {
	var discover bool

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List loaded plugins and mounted applications",
		Long: `Plugins lists the plugins loaded by the configuration and the pluggable
applications mounted on the router. With --discover, every plugin found
in the plugin directories is listed with its state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.newApplication(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			loader := a.Plugins()

			if discover {
				infos, err := loader.Discover(a.Store().Strings(config.DirPlugins))
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "NAME\tSTATE\tPATH")
				for _, info := range infos {
					state := info.State.String()
					if info.Error != nil {
						state += ": " + info.Error.Error()
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, state, orDash(info.Path))
				}
				return w.Flush()
			}

			fmt.Fprintln(w, "NAME\tSOURCE\tENTRY")
			for _, rec := range loader.Loaded() {
				source := "lua"
				if rec.Compiled {
					source = "module"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", rec.Name, source, orDash(rec.Entry))
			}

			apps := loader.Applications().List()
			if len(apps) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintln(w, "APPLICATION\tROUTE\tOVERWRITE DIRS")
				for _, mounted := range apps {
					fmt.Fprintf(w, "%s\t%s\t%t\n", mounted.Plugin, mounted.Route, mounted.OverwriteDirs)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&discover, "discover", false, "list every plugin found in the plugin directories")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
