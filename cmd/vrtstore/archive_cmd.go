package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

func newArchiveCommand(a *app) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move old records into an archive workbook",
		Long: `Move records whose booking day (or, when unset, submission day) is
older than the cutoff into a standalone archive workbook, and shrink
the live store. A backup is taken before anything moves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("months") {
				months = a.cfg.ArchiveAfterMonths
			}
			res, err := a.archiver.ArchiveOlderThanMonths(cmd.Context(), months)
			if err != nil {
				return err
			}
			if res.ArchivedCount == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to archive before %s\n",
					res.CutoffDate.Format(storage.DayFormat))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d records to %s (cutoff %s)\n",
				res.ArchivedCount, res.ArchivePath, res.CutoffDate.Format(storage.DayFormat))
			return nil
		},
	}
	cmd.Flags().IntVar(&months, "months", 0, "age threshold in months (default from configuration)")
	return cmd
}
