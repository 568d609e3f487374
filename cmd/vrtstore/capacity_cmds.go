package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayambilseva/varshitap-booking/internal/capacity"
)

func newNextDateCommand(a *app) *cobra.Command {
	var from, outputType string
	cmd := &cobra.Command{
		Use:   "next-date",
		Short: "Find the next day with an open booking slot",
		Long: `Find the next day with an open booking slot. The scan starts
tomorrow, or at --from (inclusive) when given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				slot  capacity.DaySlot
				found bool
				err   error
			)
			if from != "" {
				slot, found, err = a.admission.NextAvailableFrom(from)
			} else {
				slot, found, err = a.admission.NextAvailableDate()
			}
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no open day within the next %d days", a.cfg.HorizonDays)
			}
			if outputType == "text" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d open)\n", slot.Date, slot.Remaining)
				return nil
			}
			return printJSON(cmd, slot)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day to consider, YYYY-MM-DD (default tomorrow)")
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}

func newValidateDateCommand(a *app) *cobra.Command {
	var outputType string
	cmd := &cobra.Command{
		Use:   "validate-date <YYYY-MM-DD>",
		Short: "Check whether a day can take another booking",
		Long: `Check whether a day can take another booking. The answer is the
output, not the exit code: a full or past day is still a successful
check.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.admission.Validate(args[0])
			if err != nil {
				return err
			}
			if outputType == "text" {
				w := cmd.OutOrStdout()
				switch {
				case v.Valid:
					fmt.Fprintf(w, "%s is open (%d of %d booked)\n",
						args[0], v.Availability.Count, v.Availability.Max)
				case v.PastDate:
					fmt.Fprintf(w, "%s is in the past\n", args[0])
				default:
					fmt.Fprintf(w, "%s is full", args[0])
					if v.NextAvailable != "" {
						fmt.Fprintf(w, "; next open day is %s", v.NextAvailable)
					}
					fmt.Fprintln(w)
				}
				return nil
			}
			return printJSON(cmd, v)
		},
	}
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}
