package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/tavola/internal/core"
)

func newStatsCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show booking and order aggregates",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return checkFormat(output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return renderStats(cmd.OutOrStdout(), output, st)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := a.db.Ping(cmd.Context())
			if a.metrics != nil {
				a.metrics.ObserveHealth(h)
			}
			return reportHealth(cmd, a.cfg.Driver, h)
		},
	}
}

func reportHealth(cmd *cobra.Command, driver string, h core.Health) error {
	if !h.Healthy {
		return fmt.Errorf("%s database is unreachable: %w", driver, h.Err)
	}
	green.Fprintf(cmd.OutOrStdout(), "%s database is healthy (%s)\n", driver, h.Latency)
	return nil
}
