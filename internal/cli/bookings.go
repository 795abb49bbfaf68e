package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coregx/tavola/internal/reservations"
)

func newBookingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"booking"},
		Short:   "List, cancel and seat bookings",
	}
	cmd.AddCommand(newBookingsListCmd(a), newBookingsCancelCmd(a), newBookingsAssignCmd(a))
	return cmd
}

func newBookingsListCmd(a *app) *cobra.Command {
	var (
		f       reservations.ListFilter
		output  string
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookings with their customer, tables and ordered items",
		Long: `List bookings ordered by start time.

Examples:
  tavola bookings list                        # first page
  tavola bookings list --status confirmed     # only confirmed bookings
  tavola bookings list --table T2 -o json     # bookings seated at T2
  tavola bookings list --unassigned           # bookings without a table
  tavola bookings list --table T2 --explain   # show the query plan
`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return checkFormat(output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if explain {
				plan, err := a.service.ExplainBookings(cmd.Context(), f)
				if err != nil {
					return err
				}
				return renderPlan(cmd.OutOrStdout(), output, plan)
			}
			page, err := a.service.ListBookings(cmd.Context(), f)
			if err != nil {
				return err
			}
			return renderBookings(cmd.OutOrStdout(), output, page)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.Status, "status", "", "booking status")
	fl.IntVar(&f.MinPartySize, "min-party", 0, "smallest party size")
	fl.StringVar(&f.Customer, "customer", "", "part of the customer name")
	fl.StringVar(&f.TableLabel, "table", "", "only bookings at this table")
	fl.BoolVar(&f.Unassigned, "unassigned", false, "only bookings without a table")
	fl.BoolVar(&f.WithOrders, "with-orders", false, "only bookings with ordered items")
	fl.IntVar(&f.MinTables, "min-tables", 0, "only bookings spread over at least this many tables")
	fl.IntVar(&f.Page, "page", 1, "page number")
	fl.IntVar(&f.PerPage, "per-page", 20, "bookings per page")
	fl.BoolVar(&explain, "explain", false, "print the query plan instead of the bookings")
	fl.StringVarP(&output, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func newBookingsCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel a booking and release its tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.service.CancelBooking(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			yellow.Fprintf(cmd.OutOrStdout(), "cancelled booking %v (%s)\n", b.Key(), b.String("reference"))
			return nil
		},
	}
}

func newBookingsAssignCmd(a *app) *cobra.Command {
	var seatLabel string
	cmd := &cobra.Command{
		Use:   "assign <booking-id> <table-label>...",
		Short: "Seat a booking at exactly the given tables",
		Long: `Replace the tables of a booking. Tables not listed are released.

Examples:
  tavola bookings assign 2 T1 T4 --seat-label bar
`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := a.service.AssignTables(cmd.Context(), args[0], args[1:], seatLabel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			green.Fprintf(out, "booking %s seated at %s\n", args[0], strings.Join(args[1:], ","))
			fmt.Fprintf(out, "attached: %s\n", strings.Join(changes.Attached, ","))
			fmt.Fprintf(out, "updated:  %s\n", strings.Join(changes.Updated, ","))
			fmt.Fprintf(out, "detached: %s\n", strings.Join(changes.Detached, ","))
			return nil
		},
	}
	cmd.Flags().StringVar(&seatLabel, "seat-label", "", "label stored on each table assignment")
	return cmd
}
