// Package cli implements the tavola command line: schema migration, demo
// seeding and the booking workflows of the reservations package.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/coregx/tavola/internal/config"
	"github.com/coregx/tavola/internal/core"
	"github.com/coregx/tavola/internal/logger"
	"github.com/coregx/tavola/internal/metrics"
	"github.com/coregx/tavola/internal/reservations"
)

// app is the state shared by the commands of one invocation.
type app struct {
	configFile string
	envFiles   []string

	cfg      *config.Config
	db       *core.DB
	log      logger.Logger
	service  *reservations.Service
	registry *prometheus.Registry
	metrics  *metrics.QueryMetrics
}

// newRootCommand returns the command tree. The database is opened before a
// command runs; the caller closes it with a.close.
func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "tavola",
		Short: "Restaurant reservations on the tavola active-record layer",
		Long: `tavola manages the reservation tables of a restaurant booking site.

Examples:

  tavola migrate
  tavola seed --day 2026-03-20
  tavola bookings list --table T2 -o yaml
  tavola bookings assign 2 T1 T4 --seat-label bar
  tavola stats
`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env", []string{".env"}, "env files loaded before TAVOLA_* variables")

	root.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newBookingsCmd(a),
		newStatsCmd(a),
		newHealthCmd(a),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(stderr); err == nil {
		err = cerr
	}
	if err != nil {
		red.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile, a.envFiles...)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.NewQueryMetrics(a.registry, cfg.Metrics.Namespace)
		opts = append(opts, core.WithQueryHook(a.metrics.Hook))
	}

	db, err := core.Open(cfg.Driver, cfg.DataSourceName(), opts...)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	reservations.Register(db)

	a.log, err = logger.New(cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		_ = db.Close()
		return err
	}
	a.cfg = cfg
	a.db = db
	a.service = reservations.NewService(db, a.log)
	return nil
}

func (a *app) close(w io.Writer) error {
	if a.db == nil {
		return nil
	}
	if a.registry != nil {
		if err := writeQuerySummary(w, a.registry); err != nil {
			return err
		}
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// writeQuerySummary prints the query counters gathered during the run.
func writeQuerySummary(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasSuffix(mf.GetName(), "_queries_total") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
