package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/querybridge/pkg/query"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Shape string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <query> [params...]",
		Short: "Execute one statement against the configured backend",
		Long: `Execute one statement against the configured backend and print the result.

Params are positional. "null", "true", "false" and integers are converted;
everything else is passed as a string.

Examples:
  querybridge exec 'SELECT * FROM users WHERE email = $1' alice@example.com
  querybridge exec --shape contracts_by_id 4f1c0a4e-9c1b-4c55-9a55-0d7e5f3f1f10`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Shape, "shape", "", "execute a shape by name; all args are params")

	return cmd
}

func runExec(cmd *cobra.Command, opts *ExecOptions, args []string) error {
	var shape query.Shape
	if opts.Shape != "" {
		s, ok := query.ParseShape(opts.Shape)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown shape %q", opts.Shape))
		}
		shape = s
	}

	a, err := openApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	var result *query.Result
	if opts.Shape != "" {
		result, err = a.gateway.ExecuteShape(cmd.Context(), shape, parseParams(args))
	} else {
		result, err = a.gateway.Execute(cmd.Context(), args[0], parseParams(args[1:]))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "execute", err)
	}
	return writeOutput(cmd.OutOrStdout(), opts.Format, result)
}

// parseParams converts command-line args into positional params.
func parseParams(args []string) []any {
	params := make([]any, len(args))
	for i, arg := range args {
		params[i] = parseParam(arg)
	}
	return params
}

func parseParam(arg string) any {
	switch strings.ToLower(arg) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n
	}
	return arg
}
