package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coregx/tavola/internal/reservations"
)

func newMigrateCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the reservation tables",
		Long: `Create the reservation tables that do not exist yet.

Examples:
  tavola migrate             # create missing tables
  tavola migrate --dry-run   # print the CREATE TABLE statements
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				stmts, err := reservations.CreateTableSQL(a.db)
				if err != nil {
					return err
				}
				for _, s := range stmts {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", s)
				}
				return nil
			}
			if err := reservations.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			green.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", a.db.Dialect().Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements without running them")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo customers, tables, bookings and orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at := time.Now().UTC()
			if day != "" {
				var err error
				if at, err = time.Parse(time.DateOnly, day); err != nil {
					return fmt.Errorf("invalid --day: %w", err)
				}
			}
			if err := reservations.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			if err := reservations.Seed(cmd.Context(), a.db, at); err != nil {
				return err
			}
			green.Fprintf(cmd.OutOrStdout(), "seeded bookings for %s\n", at.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "service day as YYYY-MM-DD (default today)")
	return cmd
}
