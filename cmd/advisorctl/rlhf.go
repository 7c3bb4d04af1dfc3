package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wealthadvisor-ai/internal/bootstrap"
)

func newRLHFCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rlhf",
		Short: "Run the feedback learning pipeline",
	}

	var since string
	run := &cobra.Command{
		Use:   "run",
		Short: "Aggregate logged feedback into arm stats and preferences",
		Example: `  advisorctl rlhf run
  advisorctl rlhf run --since 2024-06-01T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var from *time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
				from = &t
			}
			report, err := bootstrap.NewRLHFPipeline(e.cfg, e.log).Run(cmd.Context(), from)
			if err != nil {
				return err
			}
			if report.ReportPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", report.ReportPath)
			}
			return printJSON(e.out, report)
		},
	}
	run.Flags().StringVar(&since, "since", "", "Only process feedback at or after this time (default: lookback window)")

	cmd.AddCommand(run)
	return cmd
}
