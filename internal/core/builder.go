package core

import (
	"fmt"
	"strings"
)

type trashMode int

const (
	trashedExcluded trashMode = iota
	trashedIncluded
	trashedOnly
)

// Builder accumulates the state of one query against an entity table.
// A Builder is single-use: it must not be shared between goroutines.
type Builder struct {
	db       *DB
	schema   *Schema
	table    string
	columns  []string
	joins    []string
	wheres   []clause
	orWheres []clause
	orders   []string
	groups   []string
	havings  []clause
	limit    int
	offset   int
	with     *WithTree

	withoutScopes bool
	scopesApplied bool
	stored        bool
	trashed       trashMode

	// afterFetch post-processes hydrated entities; relation builders use it
	// to split pivot columns into a pivot relation.
	afterFetch func([]*Entity)

	err error
}

func newBuilder(db *DB, schema *Schema) *Builder {
	return &Builder{
		db:      db,
		schema:  schema,
		table:   db.registry.Table(schema),
		columns: []string{"*"},
		limit:   -1,
		offset:  -1,
		with:    NewWithTree(),
	}
}

// Err returns the first error recorded while building.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) setErr(err error) *Builder {
	if b.err == nil && err != nil {
		b.err = err
	}
	return b
}

// Schema returns the entity schema of the builder.
func (b *Builder) Schema() *Schema {
	return b.schema
}

// Table returns the full table name the builder selects from.
func (b *Builder) Table() string {
	return b.table
}

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	c := *b
	c.columns = append([]string(nil), b.columns...)
	c.joins = append([]string(nil), b.joins...)
	c.wheres = append([]clause(nil), b.wheres...)
	c.orWheres = append([]clause(nil), b.orWheres...)
	c.orders = append([]string(nil), b.orders...)
	c.groups = append([]string(nil), b.groups...)
	c.havings = append([]clause(nil), b.havings...)
	c.with = b.with.clone()
	return &c
}

// Select replaces the select list. Bare column names are quoted.
func (b *Builder) Select(columns ...string) *Builder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	b.columns = b.columns[:0]
	for _, c := range columns {
		b.columns = append(b.columns, b.quoteSelectColumn(c))
	}
	return b
}

// AddSelect appends expressions to the select list, dropping a lone "*".
func (b *Builder) AddSelect(columns ...string) *Builder {
	for _, c := range columns {
		if c != "*" {
			b.columns = removeString(b.columns, "*")
		}
		if !containsString(b.columns, c) {
			b.columns = append(b.columns, c)
		}
	}
	return b
}

// Join adds an INNER JOIN on first <op> second.
func (b *Builder) Join(table, first, operator, second string) *Builder {
	return b.join("INNER", table, first, operator, second)
}

// LeftJoin adds a LEFT JOIN on first <op> second.
func (b *Builder) LeftJoin(table, first, operator, second string) *Builder {
	return b.join("LEFT", table, first, operator, second)
}

func (b *Builder) join(kind, table, first, operator, second string) *Builder {
	op, ok := normalizeOperator(operator)
	if !ok || op == "IN" || op == "NOT IN" {
		return b.setErr(fmt.Errorf("%w: join operator %q", ErrInvalidOperator, operator))
	}
	sql := fmt.Sprintf("%s JOIN %s ON %s %s %s", kind, table, first, op, second)
	if err := b.db.checkRaw(sql); err != nil {
		return b.setErr(err)
	}
	b.joins = append(b.joins, sql)
	return b
}

// Where adds an AND condition. It accepts (value), (operator, value) and
// the legacy (value, operator) argument orders.
func (b *Builder) Where(column string, args ...any) *Builder {
	return b.where(&b.wheres, column, args)
}

// OrWhere adds a condition to the OR group.
func (b *Builder) OrWhere(column string, args ...any) *Builder {
	return b.where(&b.orWheres, column, args)
}

func (b *Builder) where(bag *[]clause, column string, args []any) *Builder {
	op, value, err := normalizeWhereArgs(args)
	if err != nil {
		return b.setErr(err)
	}
	return b.push(bag, column, op, value)
}

func (b *Builder) push(bag *[]clause, column, op string, value any) *Builder {
	c, err := compileCondition(b.quoteWhereColumn(column), op, value)
	if err != nil {
		return b.setErr(err)
	}
	*bag = append(*bag, c)
	return b
}

// WhereIn adds "column IN (...)". An empty list matches nothing.
func (b *Builder) WhereIn(column string, values any) *Builder {
	return b.push(&b.wheres, column, "IN", values)
}

// OrWhereIn adds "column IN (...)" to the OR group.
func (b *Builder) OrWhereIn(column string, values any) *Builder {
	return b.push(&b.orWheres, column, "IN", values)
}

// WhereNotIn adds "column NOT IN (...)". An empty list matches everything.
func (b *Builder) WhereNotIn(column string, values any) *Builder {
	return b.push(&b.wheres, column, "NOT IN", values)
}

// OrWhereNotIn adds "column NOT IN (...)" to the OR group.
func (b *Builder) OrWhereNotIn(column string, values any) *Builder {
	return b.push(&b.orWheres, column, "NOT IN", values)
}

// WhereNull adds "column IS NULL".
func (b *Builder) WhereNull(column string) *Builder {
	return b.push(&b.wheres, column, "IS", nil)
}

// OrWhereNull adds "column IS NULL" to the OR group.
func (b *Builder) OrWhereNull(column string) *Builder {
	return b.push(&b.orWheres, column, "IS", nil)
}

// WhereNotNull adds "column IS NOT NULL".
func (b *Builder) WhereNotNull(column string) *Builder {
	return b.push(&b.wheres, column, "IS NOT", nil)
}

// WhereRaw adds a raw AND fragment. Use "?" for bindings.
func (b *Builder) WhereRaw(sql string, bindings ...any) *Builder {
	if err := b.db.checkRaw(sql); err != nil {
		return b.setErr(err)
	}
	b.wheres = append(b.wheres, clause{sql: sql, args: bindings})
	return b
}

// OrWhereRaw adds a raw fragment to the OR group.
func (b *Builder) OrWhereRaw(sql string, bindings ...any) *Builder {
	if err := b.db.checkRaw(sql); err != nil {
		return b.setErr(err)
	}
	b.orWheres = append(b.orWheres, clause{sql: sql, args: bindings})
	return b
}

// OrderBy adds an ordering. direction is ASC or DESC, case-insensitive,
// and defaults to ASC.
func (b *Builder) OrderBy(column string, direction ...string) *Builder {
	dir := "ASC"
	if len(direction) > 0 && direction[0] != "" {
		dir = strings.ToUpper(strings.TrimSpace(direction[0]))
		if dir != "ASC" && dir != "DESC" {
			return b.setErr(fmt.Errorf("%w: %q", ErrInvalidDirection, direction[0]))
		}
	}
	col := strings.TrimSpace(column)
	if !strings.ContainsAny(col, ".`\"(") {
		col = b.quoteWhereColumn(col)
	}
	b.orders = append(b.orders, col+" "+dir)
	return b
}

// GroupBy adds grouping columns, ignoring duplicates. Columns are used verbatim.
func (b *Builder) GroupBy(columns ...string) *Builder {
	for _, c := range columns {
		if !containsString(b.groups, c) {
			b.groups = append(b.groups, c)
		}
	}
	return b
}

// HavingRaw adds a raw HAVING fragment.
func (b *Builder) HavingRaw(sql string, bindings ...any) *Builder {
	if err := b.db.checkRaw(sql); err != nil {
		return b.setErr(err)
	}
	b.havings = append(b.havings, clause{sql: sql, args: bindings})
	return b
}

// Limit sets the LIMIT clause.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset sets the OFFSET clause.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// With requests eager loading of relation paths such as "items" or
// "customer.orders.items".
func (b *Builder) With(paths ...string) *Builder {
	for _, p := range paths {
		b.with.Add(p)
	}
	return b
}

// WithTree merges a prepared relation tree into the eager-load request.
func (b *Builder) WithTree(tree *WithTree) *Builder {
	b.with.Merge(tree)
	return b
}

// When calls fn when cond is true, otherwise the optional fallback.
func (b *Builder) When(cond bool, fn func(*Builder), otherwise ...func(*Builder)) *Builder {
	if cond {
		fn(b)
		return b
	}
	for _, f := range otherwise {
		f(b)
	}
	return b
}

// Unless calls fn when cond is false.
func (b *Builder) Unless(cond bool, fn func(*Builder), otherwise ...func(*Builder)) *Builder {
	return b.When(!cond, fn, otherwise...)
}

// WithoutGlobalScopes disables the schema scopes, including the soft-delete filter.
func (b *Builder) WithoutGlobalScopes() *Builder {
	b.withoutScopes = true
	b.dropScopeClauses(func(clause) bool { return true })
	return b
}

// WithTrashed includes soft-deleted rows.
func (b *Builder) WithTrashed() *Builder {
	b.trashed = trashedIncluded
	b.dropSoftDeleteScope()
	return b
}

// OnlyTrashed restricts the query to soft-deleted rows.
func (b *Builder) OnlyTrashed() *Builder {
	b.trashed = trashedOnly
	b.dropSoftDeleteScope()
	return b.WhereNotNull(DeletedAtColumn)
}

// dropSoftDeleteScope removes an already injected soft-delete filter.
// Caller conditions on deleted_at are kept.
func (b *Builder) dropSoftDeleteScope() {
	quoted := b.db.dialect.QuoteIdentifier(DeletedAtColumn)
	b.dropScopeClauses(func(c clause) bool { return strings.Contains(c.sql, quoted) })
}

func (b *Builder) dropScopeClauses(match func(clause) bool) {
	keep := func(bag []clause) []clause {
		kept := bag[:0]
		for _, c := range bag {
			if !c.scope || !match(c) {
				kept = append(kept, c)
			}
		}
		return kept
	}
	b.wheres = keep(b.wheres)
	b.orWheres = keep(b.orWheres)
	b.havings = keep(b.havings)
}

// applyScopes injects the global scopes once, before the first compilation.
func (b *Builder) applyScopes() {
	if b.scopesApplied || b.schema == nil {
		return
	}
	b.scopesApplied = true
	if b.withoutScopes {
		return
	}

	andStart, orStart, havingStart := len(b.wheres), len(b.orWheres), len(b.havings)
	if b.schema.trashable && b.trashed == trashedExcluded {
		b.WhereNull(DeletedAtColumn)
	}
	for _, scope := range b.schema.scopes {
		scope(b)
	}
	markScope(b.wheres[andStart:])
	markScope(b.orWheres[orStart:])
	markScope(b.havings[havingStart:])
}

func markScope(clauses []clause) {
	for i := range clauses {
		clauses[i].scope = true
	}
}

func (b *Builder) hasCallerConditions() bool {
	for _, bag := range [][]clause{b.wheres, b.orWheres} {
		for _, c := range bag {
			if !c.scope {
				return true
			}
		}
	}
	return false
}

// Fragment is an exported condition fragment with its bindings.
type Fragment struct {
	SQL  string
	Args []any
}

// WhereParts is the exported content of the two condition groups.
type WhereParts struct {
	And []Fragment
	Or  []Fragment
}

// GroupHavingParts is the exported grouping state.
type GroupHavingParts struct {
	GroupBy []string
	Having  []Fragment
}

// ExportWhereParts returns the AND and OR condition fragments.
func (b *Builder) ExportWhereParts() WhereParts {
	b.applyScopes()
	return WhereParts{And: toFragments(b.wheres), Or: toFragments(b.orWheres)}
}

// ExportGroupHavingParts returns the GROUP BY columns and HAVING fragments.
func (b *Builder) ExportGroupHavingParts() GroupHavingParts {
	return GroupHavingParts{
		GroupBy: append([]string(nil), b.groups...),
		Having:  toFragments(b.havings),
	}
}

func toFragments(clauses []clause) []Fragment {
	out := make([]Fragment, len(clauses))
	for i, c := range clauses {
		out[i] = Fragment{SQL: c.sql, Args: c.args}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
