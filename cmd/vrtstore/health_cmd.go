package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayambilseva/varshitap-booking/internal/health"
)

func newHealthCommand(a *app) *cobra.Command {
	var outputType string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check store health against the configured thresholds",
		Long: `Check store health against the configured thresholds. Exits nonzero
when the store is critical or errored, so the command can drive a cron
alert directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := a.monitor.Check()

			if outputType == "text" {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Status: %s\n", report.Status)
				if report.File.Exists {
					fmt.Fprintf(w, "File:   %.2f MB, %d rows\n", report.File.SizeMB, report.File.Rows)
				} else {
					fmt.Fprintln(w, "File:   not created yet")
				}
				for _, warning := range report.Warnings {
					fmt.Fprintf(w, "  - %s\n", warning)
				}
			} else if err := printJSON(cmd, report); err != nil {
				return err
			}

			if report.Status == health.StatusCritical || report.Status == health.StatusError {
				return fmt.Errorf("store unhealthy: %s", report.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}
