package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSubmission(cmd *cobra.Command, sub storage.Submission, outputType string) error {
	switch strings.ToLower(strings.TrimSpace(outputType)) {
	case "", "json":
		return printJSON(cmd, sub)
	case "text":
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:            %s\n", sub.ID)
		fmt.Fprintf(w, "Name:          %s\n", sub.Name)
		fmt.Fprintf(w, "Status:        %s\n", sub.Status)
		fmt.Fprintf(w, "Submitted:     %s\n", sub.SubmissionDate.Format("2006-01-02 15:04:05 MST"))
		if sub.BookingDate != "" {
			fmt.Fprintf(w, "Booked for:    %s\n", sub.BookingDate)
		}
		if sub.UPINumber != "" {
			fmt.Fprintf(w, "UPI:           %s\n", sub.UPINumber)
		}
		if sub.WhatsAppNumber != "" {
			fmt.Fprintf(w, "WhatsApp:      %s\n", sub.WhatsAppNumber)
		}
		if sub.AyambilShalaName != "" {
			fmt.Fprintf(w, "Ayambil Shala: %s\n", sub.AyambilShalaName)
		}
		if sub.City != "" {
			fmt.Fprintf(w, "City:          %s\n", sub.City)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (expected json or text)", outputType)
	}
}

func printSubmissions(cmd *cobra.Command, subs []storage.Submission, outputType string) error {
	switch strings.ToLower(strings.TrimSpace(outputType)) {
	case "", "json":
		return printJSON(cmd, subs)
	case "text":
		if len(subs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No records.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBOOKED\tNAME\tCITY\tSTATUS\tSUBMITTED")
		for _, sub := range subs {
			booked := sub.BookingDate
			if booked == "" {
				booked = "-"
			}
			city := sub.City
			if city == "" {
				city = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				sub.ID, booked, sub.Name, city, sub.Status,
				sub.SubmissionDate.Format(storage.DayFormat))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported output format %q (expected json or text)", outputType)
	}
}

func parseStatus(s string) (storage.Status, error) {
	status := storage.Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q (expected pending, reviewed or archived)", s)
	}
	return status, nil
}
