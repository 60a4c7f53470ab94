package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	var origin bool

	cmd := &cobra.Command{
		Use:   "config [path]",
		Short: "Print the merged configuration",
		Long: `Config prints the configuration after the builtin defaults, the
configuration files, the ATOMIK_ environment variables, the --set
overrides and the bootstrap script have been applied. With a path, only
that value is printed.`,
		Example: `  atomik config
  atomik config views/contexts/json
  atomik config --origin layout`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.newApplication(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				return writeYAML(cmd, a.Store().All())
			}

			path := args[0]
			v, ok := a.Store().Lookup(path)
			if !ok {
				return &exitError{code: 1, err: errors.Newf("%s is not set", path)}
			}
			if origin {
				from := a.Layers().Origin(path)
				if from == "" {
					from = "bootstrap"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", from)
			}
			return writeYAML(cmd, v)
		},
	}

	cmd.Flags().BoolVar(&origin, "origin", false, "show the configuration layer the value comes from")
	return cmd
}
