package core

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// clause is one SQL fragment together with the bindings of its placeholders.
type clause struct {
	sql   string
	args  []any
	scope bool // added by a global scope, ignored by the mutation guard
}

var validOperators = map[string]struct{}{
	"=": {}, "!=": {}, "<>": {}, "<": {}, ">": {}, "<=": {}, ">=": {},
	"LIKE": {}, "NOT LIKE": {},
	"IN": {}, "NOT IN": {},
	"IS": {}, "IS NOT": {},
}

var multiSpace = regexp.MustCompile(`\s+`)

// normalizeOperator upper-cases op and reports whether it is allowed.
func normalizeOperator(op string) (string, bool) {
	norm := strings.ToUpper(multiSpace.ReplaceAllString(strings.TrimSpace(op), " "))
	_, ok := validOperators[norm]
	return norm, ok
}

// compileCondition builds "<column> <op> <placeholders>" for an already
// quoted column.
func compileCondition(column, operator string, value any) (clause, error) {
	op, ok := normalizeOperator(operator)
	if !ok {
		return clause{}, fmt.Errorf("%w: %q", ErrInvalidOperator, operator)
	}

	switch op {
	case "IS", "IS NOT":
		if value == nil {
			return clause{sql: column + " " + op + " NULL"}, nil
		}
		return clause{sql: column + " " + op + " ?", args: []any{value}}, nil

	case "IN", "NOT IN":
		values, ok := toSlice(value)
		if !ok {
			return clause{}, fmt.Errorf("%w: got %T", ErrInvalidInValue, value)
		}
		if len(values) == 0 {
			if op == "IN" {
				return clause{sql: "0=1"}, nil
			}
			return clause{sql: "1=1"}, nil
		}
		return clause{
			sql:  column + " " + op + " (" + placeholders(len(values)) + ")",
			args: values,
		}, nil
	}

	return clause{sql: column + " " + op + " ?", args: []any{value}}, nil
}

// normalizeWhereArgs resolves the accepted argument orders:
//
//	Where(col, value)          col = value
//	Where(col, op, value)      when op is a recognised operator
//	Where(col, value, op)      legacy order
func normalizeWhereArgs(args []any) (string, any, error) {
	switch len(args) {
	case 1:
		return "=", args[0], nil
	case 2:
		if s, ok := args[0].(string); ok {
			if op, valid := normalizeOperator(s); valid {
				return op, args[1], nil
			}
		}
		if args[1] == nil {
			return "=", args[0], nil
		}
		if s, ok := args[1].(string); ok {
			return s, args[0], nil
		}
		return "=", args[0], nil
	default:
		return "", nil, fmt.Errorf("%w: expected value or operator and value, got %d arguments", ErrInvalidOperator, len(args))
	}
}

// toSlice expands any slice or array into []any. []byte is not a list.
func toSlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if vs, ok := value.([]any); ok {
		return vs, true
	}
	if _, ok := value.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// isExpression reports whether s is a prepared SQL expression rather than a
// bare column name.
func isExpression(s string) bool {
	if strings.ContainsAny(s, " \t\n\r`\"().") {
		return true
	}
	return strings.Contains(strings.ToLower(s), " as ")
}

var tableWildcard = regexp.MustCompile(`^[A-Za-z0-9_]+\.\*$`)

// quoteSelectColumn quotes a bare column for a select list.
func (b *Builder) quoteSelectColumn(col string) string {
	col = strings.TrimSpace(col)
	if col == "*" || tableWildcard.MatchString(col) || isExpression(col) {
		return col
	}
	return b.db.dialect.QuoteIdentifier(col)
}

// quoteWhereColumn quotes a bare column for a condition, qualifying it with
// the primary table when joins are present.
func (b *Builder) quoteWhereColumn(col string) string {
	col = strings.TrimSpace(col)
	if isExpression(col) {
		return col
	}
	if len(b.joins) > 0 {
		return b.table + "." + b.db.dialect.QuoteIdentifier(col)
	}
	return b.db.dialect.QuoteIdentifier(col)
}

// quoteAggregateColumn is quoteWhereColumn that also lets wildcards through.
func (b *Builder) quoteAggregateColumn(col string) string {
	col = strings.TrimSpace(col)
	if col == "*" || tableWildcard.MatchString(col) {
		return col
	}
	return b.quoteWhereColumn(col)
}

// qualify returns table.<quoted col>.
func (b *Builder) qualify(table, col string) string {
	return table + "." + b.db.dialect.QuoteIdentifier(col)
}
