package cli

import (
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/querybridge/pkg/query"
)

// ShapeEntry describes one recognized statement shape.
type ShapeEntry struct {
	Name    string   `json:"name" yaml:"name"`
	Intent  string   `json:"intent" yaml:"intent"`
	Table   string   `json:"table,omitempty" yaml:"table,omitempty"`
	Params  []string `json:"params,omitempty" yaml:"params,omitempty"`
	Example string   `json:"example,omitempty" yaml:"example,omitempty"`
}

// ShapesOptions holds flags for the shapes command.
type ShapesOptions struct {
	*RootOptions
	Table string
}

// NewShapesCommand creates the shapes command. It does not touch a backend.
func NewShapesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShapesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "shapes",
		Short:         "List the statement shapes the query layer recognizes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), opts.Format, listShapes(opts.Table))
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "only list shapes for this table")

	return cmd
}

func listShapes(table string) []ShapeEntry {
	rules := query.Rules()
	entries := make([]ShapeEntry, 0, len(rules))
	for _, r := range rules {
		if table != "" && r.Table != table {
			continue
		}
		entries = append(entries, ShapeEntry{
			Name:    r.Shape.String(),
			Intent:  r.Intent.String(),
			Table:   r.Table,
			Params:  r.Params,
			Example: r.Example,
		})
	}
	return entries
}
