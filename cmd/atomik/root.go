package main

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/atomik/internal/app"
	"github.com/dshills/atomik/internal/config/loader"
	"github.com/dshills/atomik/internal/logging"
)

// defaultConfigFile is loaded when no --config flag is given and it
// exists in the application root.
const defaultConfigFile = "atomik.toml"

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configs  []string
	sets     []string
	logLevel string
	root     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "atomik",
		Short: "Run and inspect Atomik applications",
		Long: `Atomik is a micro-framework mapping URIs to Lua action scripts and
templates. The commands below load an application from the current
directory (or --root) and dispatch requests to it without a web server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.root == "" {
				return nil
			}
			return errors.Wrap(os.Chdir(opts.root), "change to application root")
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVarP(&opts.configs, "config", "c", nil, "configuration file to load (repeatable, later files win)")
	flags.StringArrayVar(&opts.sets, "set", nil, "override a configuration path, e.g. --set views/default_context=json")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flags.StringVar(&opts.root, "root", "", "application root directory")

	cmd.AddCommand(
		newDispatchCmd(opts),
		newRouteCmd(opts),
		newPluginsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// newApplication builds the application described by the global flags.
// The caller closes it.
func (o *globalOptions) newApplication(cmd *cobra.Command) (*app.Application, error) {
	overrides, err := parseAssignments(o.sets)
	if err != nil {
		return nil, err
	}

	files := o.configs
	if len(files) == 0 && loader.IsFile(loader.DefaultFS(), defaultConfigFile) {
		files = []string{defaultConfigFile}
	}

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(o.logLevel),
		Output: cmd.ErrOrStderr(),
		Prefix: "atomik",
	})

	return app.New(cmd.Context(), app.Options{
		ConfigFiles: files,
		Overrides:   overrides,
		Logger:      logger,
	})
}

// parseAssignments parses path=value pairs. Values are read as YAML
// scalars or flow collections, so "true", "3" and "[a, b]" are typed.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf("invalid assignment %q, want path=value", pair)
		}
		out[key] = parseValue(raw)
	}
	return out, nil
}

func parseValue(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// writeYAML encodes v to the command output.
func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
