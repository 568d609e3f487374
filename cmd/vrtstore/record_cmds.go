package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

func newAddCommand(a *app) *cobra.Command {
	var (
		name, date, upi, whatsapp, shala, city, ip string
		outputType                                 string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a booking record",
		Long: `Create a booking record. When --date is given the day must be open:
past days and full days are rejected with the next open day suggested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := a.service.Create(cmd.Context(), storage.Submission{
				Name:             name,
				BookingDate:      date,
				UPINumber:        upi,
				WhatsAppNumber:   whatsapp,
				AyambilShalaName: shala,
				City:             city,
				IPAddress:        ip,
			})
			if err != nil {
				return err
			}
			return printSubmission(cmd, stored, outputType)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "devotee name (required)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "booking day, YYYY-MM-DD")
	cmd.Flags().StringVar(&upi, "upi", "", "UPI number")
	cmd.Flags().StringVar(&whatsapp, "whatsapp", "", "WhatsApp number")
	cmd.Flags().StringVar(&shala, "shala", "", "ayambil shala name")
	cmd.Flags().StringVar(&city, "city", "", "city")
	cmd.Flags().StringVar(&ip, "ip", "", "source address to record (for imports)")
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	var outputType string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Display one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.service.Get(args[0])
			if err != nil {
				return err
			}
			return printSubmission(cmd, sub, outputType)
		},
	}
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var status, city, outputType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest submission first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.ListFilter{City: city}
			if status != "" {
				parsed, err := parseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}
			subs, err := a.service.List(filter)
			if err != nil {
				return err
			}
			return printSubmissions(cmd, subs, outputType)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|reviewed|archived)")
	cmd.Flags().StringVar(&city, "city", "", "filter by city")
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}

func newSearchCommand(a *app) *cobra.Command {
	var outputType string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search records by name, city, shala, id or phone-like fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := a.service.Search(args[0])
			if err != nil {
				return err
			}
			return printSubmissions(cmd, subs, outputType)
		},
	}
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		name, date, upi, whatsapp, shala, city, status string
		outputType                                     string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Overwrite selected fields of a record",
		Long: `Overwrite selected fields of a record. Only fields passed as flags
change; everything else stays as it was. Moving a record to another
day must fit that day's capacity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields storage.UpdateFields
			changed := false
			set := func(flag string, dst **string, src *string) {
				if cmd.Flags().Changed(flag) {
					*dst = src
					changed = true
				}
			}
			set("name", &fields.Name, &name)
			set("date", &fields.BookingDate, &date)
			set("upi", &fields.UPINumber, &upi)
			set("whatsapp", &fields.WhatsAppNumber, &whatsapp)
			set("shala", &fields.AyambilShalaName, &shala)
			set("city", &fields.City, &city)
			if cmd.Flags().Changed("status") {
				parsed, err := parseStatus(status)
				if err != nil {
					return err
				}
				fields.Status = &parsed
				changed = true
			}
			if !changed {
				return fmt.Errorf("nothing to update: pass at least one field flag")
			}

			updated, err := a.service.Update(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			return printSubmission(cmd, updated, outputType)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "devotee name")
	cmd.Flags().StringVarP(&date, "date", "d", "", "booking day, YYYY-MM-DD")
	cmd.Flags().StringVar(&upi, "upi", "", "UPI number")
	cmd.Flags().StringVar(&whatsapp, "whatsapp", "", "WhatsApp number")
	cmd.Flags().StringVar(&shala, "shala", "", "ayambil shala name")
	cmd.Flags().StringVar(&city, "city", "", "city")
	cmd.Flags().StringVar(&status, "status", "", "status (pending|reviewed|archived)")
	cmd.Flags().StringVarP(&outputType, "output", "o", "json", "output format (json|text)")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a record permanently",
		Long: `Remove a record permanently. A backup is taken first; restoring it
is the only way back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
