package core

import (
	"strconv"
	"strings"
)

// whereSQL renders " WHERE <and> AND (<or>)" and its bindings in emission order.
func (b *Builder) whereSQL() (string, []any) {
	var parts []string
	var args []any

	if len(b.wheres) > 0 {
		and := make([]string, len(b.wheres))
		for i, c := range b.wheres {
			and[i] = c.sql
			args = append(args, c.args...)
		}
		parts = append(parts, strings.Join(and, " AND "))
	}
	if len(b.orWheres) > 0 {
		or := make([]string, len(b.orWheres))
		for i, c := range b.orWheres {
			or[i] = c.sql
			args = append(args, c.args...)
		}
		parts = append(parts, "("+strings.Join(or, " OR ")+")")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (b *Builder) groupHavingSQL() (string, []any) {
	var sb strings.Builder
	var args []any
	if len(b.groups) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groups, ", "))
	}
	if len(b.havings) > 0 {
		having := make([]string, len(b.havings))
		for i, c := range b.havings {
			having[i] = c.sql
			args = append(args, c.args...)
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(having, " AND "))
	}
	return sb.String(), args
}

// assemble appends joins, conditions, ordering, limit/offset and then
// grouping to base. GROUP BY and HAVING follow LIMIT/OFFSET on this path.
func (b *Builder) assemble(base string) (string, []any) {
	b.applyScopes()

	var sb strings.Builder
	sb.WriteString(base)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}

	where, args := b.whereSQL()
	sb.WriteString(where)

	if len(b.orders) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orders, ", "))
	}
	if b.limit >= 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	if b.offset >= 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(b.offset))
	}

	gh, ghArgs := b.groupHavingSQL()
	sb.WriteString(gh)
	return sb.String(), append(args, ghArgs...)
}

// assembleAggregate is assemble without ordering or paging and with
// grouping in standard position.
func (b *Builder) assembleAggregate(base string) (string, []any) {
	b.applyScopes()

	var sb strings.Builder
	sb.WriteString(base)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	where, args := b.whereSQL()
	sb.WriteString(where)

	gh, ghArgs := b.groupHavingSQL()
	sb.WriteString(gh)
	return sb.String(), append(args, ghArgs...)
}

func (b *Builder) selectSQL() (string, []any) {
	return b.assemble("SELECT " + strings.Join(b.columns, ", ") + " FROM " + b.table)
}

// ToSQL returns the SELECT statement for the current state, rebound for
// the driver, and its bindings. It does not execute anything.
func (b *Builder) ToSQL() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	sql, args := b.selectSQL()
	return b.query(sql, args).SQL(), args, nil
}

// query wraps compiled SQL into an executable Query tagged with the table.
func (b *Builder) query(sql string, args []any) *Query {
	q := b.db.NewQuery(sql, args...)
	q.table = b.table
	if b.schema != nil {
		q.entity = b.schema.name
	}
	return q
}
