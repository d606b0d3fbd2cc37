package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "yaml" | "json"
	Version    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"yaml", "json"}

// NewRootCommand creates the root command for the querybridge CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:     "querybridge",
		Short:   "querybridge - SQL-shaped queries over document and table backends",
		Long:    "Serves and executes the application's SQL-shaped statements against MongoDB, PostgreSQL or an in-memory backend.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewProbeCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewShapesCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
