package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/coregx/tavola/internal/core"
	"github.com/coregx/tavola/internal/reservations"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
)

// Output formats accepted by -o.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// pageDocument is the JSON/YAML shape of a bookings page.
type pageDocument struct {
	Data        []map[string]any `json:"data" yaml:"data"`
	Total       int64            `json:"total" yaml:"total"`
	PerPage     int              `json:"per_page" yaml:"per_page"`
	CurrentPage int              `json:"current_page" yaml:"current_page"`
	LastPage    int              `json:"last_page" yaml:"last_page"`
}

func renderBookings(w io.Writer, format string, page *core.Page) error {
	if format != formatTable {
		return encode(w, format, pageDocument{
			Data:        core.ToMaps(page.Data),
			Total:       page.Total,
			PerPage:     page.PerPage,
			CurrentPage: page.CurrentPage,
			LastPage:    page.LastPage,
		})
	}

	if len(page.Data) == 0 {
		yellow.Fprintln(w, "no bookings found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cyan.Fprintln(tw, "ID\tREFERENCE\tSTARTS\tPARTY\tSTATUS\tCUSTOMER\tTABLES\tITEMS")
	for _, b := range page.Data {
		fmt.Fprintf(tw, "%v\t%s\t%s\t%d\t%s\t%s\t%s\t%d\n",
			b.Key(),
			b.String("reference"),
			b.Time("starts_at").Format("2006-01-02 15:04"),
			b.Int("party_size"),
			statusColor(b.String("status")).Sprint(b.String("status")),
			customerName(b),
			strings.Join(tableLabels(b), ","),
			itemCount(b),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d of %d, %d bookings\n", page.CurrentPage, page.LastPage, page.Total)
	return err
}

func statusColor(status string) *color.Color {
	switch status {
	case reservations.StatusConfirmed, reservations.StatusSeated:
		return green
	case reservations.StatusCancelled:
		return red
	default:
		return yellow
	}
}

func customerName(b *core.Entity) string {
	v, _ := b.GetRelation("customer")
	if c, isEntity := v.(*core.Entity); isEntity && c != nil {
		return c.String("name")
	}
	return "-"
}

func tableLabels(b *core.Entity) []string {
	v, _ := b.GetRelation("tables")
	tables := asEntities(v)
	labels := make([]string, len(tables))
	for i, t := range tables {
		labels[i] = t.String("label")
	}
	return labels
}

func itemCount(b *core.Entity) int64 {
	v, _ := b.GetRelation("orders")
	var n int64
	for _, o := range asEntities(v) {
		items, _ := o.GetRelation("items")
		for _, it := range asEntities(items) {
			n += it.Int("qty")
		}
	}
	return n
}

func asEntities(v any) []*core.Entity {
	list, _ := v.([]*core.Entity)
	return list
}

func renderStats(w io.Writer, format string, st *reservations.Stats) error {
	if format != formatTable {
		return encode(w, format, st)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cyan.Fprintln(tw, "METRIC\tVALUE")
	fmt.Fprintf(tw, "bookings\t%d\n", st.Bookings)
	for _, s := range []string{
		reservations.StatusPending,
		reservations.StatusConfirmed,
		reservations.StatusSeated,
		reservations.StatusCancelled,
	} {
		fmt.Fprintf(tw, "  %s\t%d\n", s, st.ByStatus[s])
	}
	fmt.Fprintf(tw, "covers\t%g\n", st.Covers)
	fmt.Fprintf(tw, "avg party size\t%.2f\n", st.AvgPartySize)
	fmt.Fprintf(tw, "largest party\t%g\n", st.LargestParty)
	fmt.Fprintf(tw, "unassigned\t%d\n", st.Unassigned)
	fmt.Fprintf(tw, "revenue\t%.2f\n", st.Revenue)
	fmt.Fprintf(tw, "items sold\t%g\n", st.ItemsSold)
	fmt.Fprintf(tw, "tables in use\t%s\n", strings.Join(st.TablesInUse, ","))
	return tw.Flush()
}

func renderPlan(w io.Writer, format string, plan *core.QueryPlan) error {
	if format != formatTable {
		return encode(w, format, plan)
	}
	cyan.Fprintf(w, "%s plan\n", plan.Dialect)
	for _, l := range plan.Lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
	if len(plan.FullScans) > 0 {
		yellow.Fprintf(w, "full scans: %s\n", strings.Join(plan.FullScans, ","))
	}
	if plan.UsesIndex() {
		green.Fprintf(w, "indexes: %s\n", strings.Join(plan.Indexes, ","))
	}
	return nil
}
