package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// QueryPlan is the EXPLAIN output of a SELECT, reduced to the tables read
// without an index and the indexes used.
type QueryPlan struct {
	Dialect   string   `json:"dialect" yaml:"dialect"`
	Lines     []string `json:"lines" yaml:"lines"`
	FullScans []string `json:"full_scans" yaml:"full_scans"`
	Indexes   []string `json:"indexes" yaml:"indexes"`
}

// UsesIndex reports whether any step of the plan reads through an index.
func (p *QueryPlan) UsesIndex() bool {
	return len(p.Indexes) > 0
}

// Explain asks the database for the plan of the SELECT the builder would
// run. Eager loads are not explained.
func (b *Builder) Explain(ctx context.Context) (*QueryPlan, error) {
	if b.err != nil {
		return nil, b.err
	}
	dialect := b.db.dialect.Name()
	prefix := "EXPLAIN "
	if dialect == "sqlite" {
		prefix = "EXPLAIN QUERY PLAN "
	}

	sql, args := b.selectSQL()
	rows, err := b.query(prefix+sql, args).WithContext(ctx).Rows()
	if err != nil {
		return nil, WrapError(err, "explain "+b.schema.name)
	}
	return parsePlan(dialect, rows), nil
}

func parsePlan(dialect string, rows []map[string]any) *QueryPlan {
	plan := &QueryPlan{Dialect: dialect, Lines: []string{}, FullScans: []string{}, Indexes: []string{}}
	for _, row := range rows {
		switch dialect {
		case "mysql":
			parseMySQLPlanRow(plan, row)
		case "postgres":
			parsePostgresPlanLine(plan, toString(row["QUERY PLAN"]))
		default:
			parseSQLitePlanLine(plan, toString(row["detail"]))
		}
	}
	plan.FullScans = lo.Uniq(plan.FullScans)
	plan.Indexes = lo.Uniq(plan.Indexes)
	return plan
}

// SQLite details look like "SCAN bookings" or
// "SEARCH bookings USING INTEGER PRIMARY KEY (rowid=?)".
func parseSQLitePlanLine(plan *QueryPlan, detail string) {
	plan.Lines = append(plan.Lines, detail)
	fields := strings.Fields(detail)
	upper := strings.ToUpper(detail)

	switch {
	case strings.Contains(upper, "USING COVERING INDEX "):
		plan.Indexes = append(plan.Indexes, wordAfter(detail, "USING COVERING INDEX "))
	case strings.Contains(upper, "USING INDEX "):
		plan.Indexes = append(plan.Indexes, wordAfter(detail, "USING INDEX "))
	case strings.Contains(upper, "USING INTEGER PRIMARY KEY"):
		plan.Indexes = append(plan.Indexes, "PRIMARY KEY")
	case strings.Contains(upper, "USING AUTOMATIC"):
		plan.Indexes = append(plan.Indexes, "AUTOMATIC INDEX")
	case len(fields) > 2 && fields[0] == "SCAN" && fields[1] == "TABLE":
		plan.FullScans = append(plan.FullScans, fields[2])
	case len(fields) > 1 && fields[0] == "SCAN":
		plan.FullScans = append(plan.FullScans, fields[1])
	}
}

// MySQL returns one row per table with the access type and chosen key.
func parseMySQLPlanRow(plan *QueryPlan, row map[string]any) {
	table := toString(row["table"])
	access := toString(row["type"])
	key := toString(row["key"])
	plan.Lines = append(plan.Lines, fmt.Sprintf("table=%s type=%s key=%s", table, access, key))

	if key != "" {
		plan.Indexes = append(plan.Indexes, key)
	}
	if access == "ALL" && table != "" {
		plan.FullScans = append(plan.FullScans, table)
	}
}

// PostgreSQL returns the text plan one node per row.
func parsePostgresPlanLine(plan *QueryPlan, line string) {
	plan.Lines = append(plan.Lines, line)
	node := strings.TrimLeft(strings.TrimSpace(line), "-> ")

	switch {
	case strings.HasPrefix(node, "Seq Scan on "):
		plan.FullScans = append(plan.FullScans, wordAfter(node, "Seq Scan on "))
	case strings.HasPrefix(node, "Index Scan using "):
		plan.Indexes = append(plan.Indexes, wordAfter(node, "Index Scan using "))
	case strings.HasPrefix(node, "Index Only Scan using "):
		plan.Indexes = append(plan.Indexes, wordAfter(node, "Index Only Scan using "))
	case strings.HasPrefix(node, "Bitmap Index Scan on "):
		plan.Indexes = append(plan.Indexes, wordAfter(node, "Bitmap Index Scan on "))
	}
}

// wordAfter returns the word following marker in s, matched case-insensitively.
func wordAfter(s, marker string) string {
	i := strings.Index(strings.ToUpper(s), strings.ToUpper(marker))
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(s[i+len(marker):])
	if end := strings.IndexAny(rest, " ("); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
