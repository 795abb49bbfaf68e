package core

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// chainHop is the resolved join metadata of one relation in a path.
type chainHop struct {
	kind RelationKind

	leftTable string
	leftPk    string

	right      *Schema
	rightTable string
	rightPk    string

	// belongs-to-many
	pivotTable string
	fk         string // pivot column pointing at the left side
	rk         string // pivot column pointing at the right side

	// has-one, has-many and belongs-to
	foreignKey string
	localKey   string
	ownerKey   string
}

// resolveChain walks path from root and caches the hops per root entity.
func (r *Registry) resolveChain(root *Schema, path string) ([]chainHop, error) {
	segments := lo.Filter(strings.Split(path, "."), func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	})
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: empty relation path", ErrUnknownRelation)
	}

	return r.chains.GetOrCompute(root.name+"|"+strings.Join(segments, "."), func() ([]chainHop, error) {
		hops := make([]chainHop, 0, len(segments))
		left := root
		for _, name := range segments {
			def, ok := left.Relation(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, left.name, name)
			}
			hop, err := r.resolveHop(left, def)
			if err != nil {
				return nil, err
			}
			hops = append(hops, hop)
			left = hop.right
		}
		return hops, nil
	})
}

func (r *Registry) resolveHop(left *Schema, def RelationDef) (chainHop, error) {
	if def.Kind == KindCustom {
		return chainHop{}, fmt.Errorf("%w: %s relation to %s", ErrUnsupportedRelationKind, def.Kind, def.Related)
	}
	right, err := r.Schema(def.Related)
	if err != nil {
		return chainHop{}, err
	}
	hop := chainHop{
		kind:       def.Kind,
		leftTable:  r.Table(left),
		leftPk:     left.primaryKey,
		right:      right,
		rightTable: r.Table(right),
		rightPk:    right.primaryKey,
	}

	switch def.Kind {
	case KindBelongsToMany:
		pivot, err := r.Schema(def.Pivot)
		if err != nil {
			return chainHop{}, err
		}
		hop.pivotTable = r.Table(pivot)
		hop.fk = lo.Ternary(def.ForeignKey != "", def.ForeignKey, lo.SnakeCase(left.name)+"_id")
		hop.rk = lo.Ternary(def.RelatedPivotKey != "", def.RelatedPivotKey, lo.SnakeCase(right.name)+"_id")
	case KindHasOne, KindHasMany:
		hop.foreignKey = def.ForeignKey
		hop.localKey = lo.Ternary(def.LocalKey != "", def.LocalKey, left.primaryKey)
	case KindBelongsTo:
		hop.foreignKey = def.ForeignKey
		hop.ownerKey = lo.Ternary(def.OwnerKey != "", def.OwnerKey, right.primaryKey)
	default:
		return chainHop{}, fmt.Errorf("%w: %s", ErrUnsupportedRelationKind, def.Kind)
	}
	return hop, nil
}

// WhereHas keeps rows with at least one related row along path. cb, when
// not nil, constrains the last related entity.
func (b *Builder) WhereHas(path string, cb func(*Builder)) *Builder {
	return b.exists(&b.wheres, "EXISTS", path, cb)
}

// OrWhereHas is WhereHas in the OR group.
func (b *Builder) OrWhereHas(path string, cb func(*Builder)) *Builder {
	return b.exists(&b.orWheres, "EXISTS", path, cb)
}

// DoesntHave keeps rows without any related row along path.
func (b *Builder) DoesntHave(path string, cb func(*Builder)) *Builder {
	return b.exists(&b.wheres, "NOT EXISTS", path, cb)
}

// OrWhereDoesntHave is DoesntHave in the OR group.
func (b *Builder) OrWhereDoesntHave(path string, cb func(*Builder)) *Builder {
	return b.exists(&b.orWheres, "NOT EXISTS", path, cb)
}

// WhereRelation is WhereHas with a single condition on the last related entity.
func (b *Builder) WhereRelation(path, column string, args ...any) *Builder {
	return b.WhereHas(path, func(q *Builder) { q.Where(column, args...) })
}

// OrWhereRelation is WhereRelation in the OR group.
func (b *Builder) OrWhereRelation(path, column string, args ...any) *Builder {
	return b.OrWhereHas(path, func(q *Builder) { q.Where(column, args...) })
}

// WhereHasCount compares the number of related rows with n. ">= 1" is
// compiled as EXISTS; other comparisons need a single-hop path.
func (b *Builder) WhereHasCount(path string, cb func(*Builder), operator string, n int) *Builder {
	return b.hasCount(&b.wheres, path, cb, operator, n)
}

// OrWhereHasCount is WhereHasCount in the OR group.
func (b *Builder) OrWhereHasCount(path string, cb func(*Builder), operator string, n int) *Builder {
	return b.hasCount(&b.orWheres, path, cb, operator, n)
}

func (b *Builder) exists(bag *[]clause, keyword, path string, cb func(*Builder)) *Builder {
	if b.err != nil {
		return b
	}
	sql, args, err := b.compileExistsChain(path, cb)
	if err != nil {
		return b.setErr(err)
	}
	*bag = append(*bag, clause{sql: keyword + " (" + sql + ")", args: args})
	return b
}

func (b *Builder) hasCount(bag *[]clause, path string, cb func(*Builder), operator string, n int) *Builder {
	if b.err != nil {
		return b
	}
	op, ok := normalizeOperator(operator)
	if !ok || op == "IN" || op == "NOT IN" || op == "IS" || op == "IS NOT" {
		return b.setErr(fmt.Errorf("%w: count operator %q", ErrInvalidOperator, operator))
	}
	if op == ">=" && n == 1 {
		return b.exists(bag, "EXISTS", path, cb)
	}
	if strings.Contains(strings.Trim(path, "."), ".") {
		return b.setErr(fmt.Errorf("%w: %s", ErrUnsupportedChainCount, path))
	}

	sql, args, err := b.compileCount(path, cb)
	if err != nil {
		return b.setErr(err)
	}
	*bag = append(*bag, clause{sql: "(" + sql + ") " + op + " ?", args: append(args, n)})
	return b
}

// compileExistsChain builds the correlated subquery for path from the
// innermost hop outwards, so the callback constrains the last related table
// inside its own subquery.
func (b *Builder) compileExistsChain(path string, cb func(*Builder)) (string, []any, error) {
	hops, err := b.db.registry.resolveChain(b.schema, path)
	if err != nil {
		return "", nil, err
	}

	last := len(hops) - 1
	sql := b.hopSQL(hops[last], "SELECT 1")

	// The callback targets the related table of the full path, which is only
	// in scope inside the innermost hop.
	var args []any
	if cb != nil {
		cond, condArgs, gh, ghArgs, err := b.callbackSQL(hops[last], cb)
		if err != nil {
			return "", nil, err
		}
		if cond != "" {
			sql += " AND " + cond
			args = append(args, condArgs...)
		}
		if gh != "" {
			sql += " " + gh
			args = append(args, ghArgs...)
		}
	}

	for i := last - 1; i >= 0; i-- {
		sql = b.hopSQL(hops[i], "SELECT 1") + " AND EXISTS (" + sql + ")"
	}
	return sql + " LIMIT 1", args, nil
}

func (b *Builder) compileCount(path string, cb func(*Builder)) (string, []any, error) {
	hops, err := b.db.registry.resolveChain(b.schema, path)
	if err != nil {
		return "", nil, err
	}
	hop := hops[0]

	selectExpr := "SELECT COUNT(*)"
	if hop.kind == KindBelongsToMany {
		selectExpr = "SELECT COUNT(DISTINCT " + b.qualify(hop.rightTable, hop.rightPk) + ")"
	}
	sql := b.hopSQL(hop, selectExpr)
	if cb == nil {
		return sql, nil, nil
	}

	cond, args, _, _, err := b.callbackSQL(hop, cb)
	if err != nil {
		return "", nil, err
	}
	if cond != "" {
		sql += " AND " + cond
	}
	return sql, args, nil
}

// hopSQL correlates one hop with its left table.
func (b *Builder) hopSQL(hop chainHop, selectExpr string) string {
	switch hop.kind {
	case KindBelongsToMany:
		return selectExpr + " FROM " + hop.pivotTable +
			" JOIN " + hop.rightTable +
			" ON " + b.qualify(hop.rightTable, hop.rightPk) + " = " + b.qualify(hop.pivotTable, hop.rk) +
			" WHERE " + b.qualify(hop.pivotTable, hop.fk) + " = " + b.qualify(hop.leftTable, hop.leftPk)
	case KindBelongsTo:
		return selectExpr + " FROM " + hop.rightTable +
			" WHERE " + b.qualify(hop.rightTable, hop.ownerKey) + " = " + b.qualify(hop.leftTable, hop.foreignKey)
	default:
		return selectExpr + " FROM " + hop.rightTable +
			" WHERE " + b.qualify(hop.rightTable, hop.foreignKey) + " = " + b.qualify(hop.leftTable, hop.localKey)
	}
}

// callbackSQL runs cb on a scratch builder for the hop's related entity and
// returns its conditions and grouping qualified with the related table.
func (b *Builder) callbackSQL(hop chainHop, cb func(*Builder)) (cond string, condArgs []any, gh string, ghArgs []any, err error) {
	q := newBuilder(b.db, hop.right).WithoutGlobalScopes()
	cb(q)
	if q.err != nil {
		return "", nil, "", nil, q.err
	}

	parts := q.ExportWhereParts()
	var pieces []string
	for _, f := range parts.And {
		pieces = append(pieces, b.qualifyLeading(f.SQL, hop.rightTable))
		condArgs = append(condArgs, f.Args...)
	}
	if len(parts.Or) > 0 {
		ors := make([]string, len(parts.Or))
		for i, f := range parts.Or {
			ors[i] = b.qualifyLeading(f.SQL, hop.rightTable)
			condArgs = append(condArgs, f.Args...)
		}
		pieces = append(pieces, "("+strings.Join(ors, " OR ")+")")
	}
	cond = strings.Join(pieces, " AND ")

	grouping := q.ExportGroupHavingParts()
	var ghParts []string
	if len(grouping.GroupBy) > 0 {
		cols := lo.Map(grouping.GroupBy, func(col string, _ int) string {
			col = strings.TrimSpace(col)
			if isExpression(col) {
				return col
			}
			return b.qualify(hop.rightTable, col)
		})
		ghParts = append(ghParts, "GROUP BY "+strings.Join(cols, ", "))
	}
	if len(grouping.Having) > 0 {
		having := make([]string, len(grouping.Having))
		for i, f := range grouping.Having {
			having[i] = f.SQL
			ghArgs = append(ghArgs, f.Args...)
		}
		ghParts = append(ghParts, "HAVING "+strings.Join(having, " AND "))
	}
	return cond, condArgs, strings.Join(ghParts, " "), ghArgs, nil
}

// qualifyLeading prefixes a condition that starts with a quoted identifier
// with table.
func (b *Builder) qualifyLeading(cond, table string) string {
	q := b.db.dialect.QuoteChar()
	if len(cond) < 2 || cond[0] != q || strings.IndexByte(cond[1:], q) < 0 {
		return cond
	}
	return table + "." + cond
}
