package cli

import (
	"github.com/spf13/cobra"
)

// ProbeResult is the output of the probe command.
type ProbeResult struct {
	Backend   string `json:"backend" yaml:"backend"`
	Table     string `json:"table" yaml:"table"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
}

// NewProbeCommand creates the probe command.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the configured backend answers a trivial read",
		Long: `Check that the configured backend answers a trivial read within the
configured timeout. Exits 1 when the backend is unhealthy.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			result := ProbeResult{
				Backend:   a.cfg.Backend.Type,
				Table:     a.cfg.Probe.Table,
				TimeoutMS: a.cfg.Probe.TimeoutMillis,
				Healthy:   a.prober.Probe(cmd.Context()),
			}
			if err := writeOutput(cmd.OutOrStdout(), rootOpts.Format, result); err != nil {
				return err
			}
			if !result.Healthy {
				return NewExitError(ExitFailure, "backend unhealthy")
			}
			return nil
		},
	}
	return cmd
}
