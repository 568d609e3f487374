package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBackupCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take, list and restore store backups",
	}
	cmd.AddCommand(
		newBackupCreateCommand(a),
		newBackupListCommand(a),
		newBackupRestoreCommand(a),
	)
	return cmd
}

func newBackupCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Copy the live store into the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.backups.Create()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to back up: store file does not exist")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
			return nil
		},
	}
}

func newBackupListCommand(a *app) *cobra.Command {
	var outputType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := a.backups.List()
			if err != nil {
				return err
			}
			if outputType == "text" {
				if len(backups) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No backups.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSIZE\tCREATED")
				for _, b := range backups {
					fmt.Fprintf(w, "%s\t%.2f MB\t%s\n", b.Name, b.SizeMB, humanize.Time(b.Created))
				}
				return w.Flush()
			}
			return printJSON(cmd, backups)
		},
	}
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}

func newBackupRestoreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <name>",
		Short: "Replace the live store with a backup",
		Long: `Replace the live store with the named backup. The current store file
is snapshotted next to itself first, so a mistaken restore can be
recovered by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.RestoreBackup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored store from %s\n", args[0])
			return nil
		},
	}
}
