package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

func newInitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store workbook if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Initialize(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Store ready at %s\n", a.store.Path())
			return nil
		},
	}
}

func newStatsCommand(a *app) *cobra.Command {
	var outputType string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the live store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.service.Statistics()
			if err != nil {
				return err
			}
			if outputType == "text" {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Total:     %d\n", stats.Total)
				fmt.Fprintf(w, "Today:     %d\n", stats.Today)
				fmt.Fprintf(w, "Pending:   %d\n", stats.Pending)
				fmt.Fprintf(w, "Reviewed:  %d\n", stats.Reviewed)
				fmt.Fprintf(w, "Archived:  %d\n", stats.Archived)
				fmt.Fprintf(w, "File size: %.2f MB\n", stats.FileSizeMB)
				return nil
			}
			return printJSON(cmd, stats)
		},
	}
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var status, city string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching records to a standalone workbook",
		Long: `Write matching records to a standalone workbook in the export
directory. The live store is not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.ListFilter{City: city}
			if status != "" {
				parsed, err := parseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}
			path, err := a.service.Export(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|reviewed|archived)")
	cmd.Flags().StringVar(&city, "city", "", "filter by city")
	return cmd
}
