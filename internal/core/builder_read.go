package core

import (
	"context"
	"fmt"
	"math"
)

// Page is one page of results with pagination metadata.
type Page struct {
	Data        []*Entity `json:"data"`
	Total       int64     `json:"total"`
	PerPage     int       `json:"per_page"`
	CurrentPage int       `json:"current_page"`
	LastPage    int       `json:"last_page"`
}

func (b *Builder) hydrate(rows []map[string]any) []*Entity {
	entities := make([]*Entity, len(rows))
	for i, row := range rows {
		e := newEntity(b.db, b.schema)
		e.attrs.SetRaw(row, false)
		e.exists = true
		entities[i] = e
	}
	if b.afterFetch != nil {
		b.afterFetch(entities)
	}
	return entities
}

func (b *Builder) fetch(ctx context.Context, sql string, args []any) ([]*Entity, error) {
	rows, err := b.query(sql, args).WithContext(ctx).Rows()
	if err != nil {
		return nil, err
	}
	entities := b.hydrate(rows)

	if !b.with.Empty() && len(entities) > 0 {
		for _, e := range entities {
			e.with = b.with
		}
		if err := eagerLoad(ctx, b.db, entities, b.with); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// Get runs the SELECT and returns the hydrated entities, eager-loading any
// relations requested with With.
func (b *Builder) Get(ctx context.Context) ([]*Entity, error) {
	if b.err != nil {
		return nil, b.err
	}
	sql, args := b.selectSQL()
	return b.fetch(ctx, sql, args)
}

// All is an alias of Get.
func (b *Builder) All(ctx context.Context) ([]*Entity, error) {
	return b.Get(ctx)
}

// First returns the first matching entity, or nil when there is none.
func (b *Builder) First(ctx context.Context) (*Entity, error) {
	b.limit = 1
	entities, err := b.Get(ctx)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	return entities[0], nil
}

// Find returns the entity with primary key id, or nil.
func (b *Builder) Find(ctx context.Context, id any) (*Entity, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.Where(b.schema.primaryKey, id).First(ctx)
}

// FindOrFail is Find returning ErrRecordNotFound when no row matches.
func (b *Builder) FindOrFail(ctx context.Context, id any) (*Entity, error) {
	e, err := b.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s %v", ErrRecordNotFound, b.schema.name, id)
	}
	return e, nil
}

// Value returns the cast value of column on the first row, or nil.
func (b *Builder) Value(ctx context.Context, column string) (any, error) {
	e, err := b.First(ctx)
	if err != nil || e == nil {
		return nil, err
	}
	return e.Get(column), nil
}

// Pluck returns the cast values of column in row order.
func (b *Builder) Pluck(ctx context.Context, column string) ([]any, error) {
	entities, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(entities))
	for i, e := range entities {
		out[i] = e.Get(column)
	}
	return out, nil
}

// PluckKeyed returns valueColumn keyed by keyColumn. Keys are compared in
// their string form; a repeated key fails with ErrDuplicateKey.
func (b *Builder) PluckKeyed(ctx context.Context, valueColumn, keyColumn string) (map[string]any, error) {
	entities, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(entities))
	for _, e := range entities {
		key := keyOf(e.Get(keyColumn))
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		out[key] = e.Get(valueColumn)
	}
	return out, nil
}

// Count returns SELECT COUNT(*) through the general assembly path.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	sql, args := b.assemble("SELECT COUNT(*) FROM " + b.table)
	v, err := b.query(sql, args).WithContext(ctx).Scalar()
	if err != nil {
		return 0, err
	}
	return toInt64(v), nil
}

// Sum returns SUM(column), 0 when NULL.
func (b *Builder) Sum(ctx context.Context, column string) (float64, error) {
	return b.aggregate(ctx, "SUM", b.quoteAggregateColumn(column))
}

// SumDistinct returns SUM(DISTINCT column).
func (b *Builder) SumDistinct(ctx context.Context, column string) (float64, error) {
	return b.aggregate(ctx, "SUM", "DISTINCT "+b.quoteAggregateColumn(column))
}

// Avg returns AVG(column).
func (b *Builder) Avg(ctx context.Context, column string) (float64, error) {
	return b.aggregate(ctx, "AVG", b.quoteAggregateColumn(column))
}

// Min returns MIN(column).
func (b *Builder) Min(ctx context.Context, column string) (float64, error) {
	return b.aggregate(ctx, "MIN", b.quoteAggregateColumn(column))
}

// Max returns MAX(column).
func (b *Builder) Max(ctx context.Context, column string) (float64, error) {
	return b.aggregate(ctx, "MAX", b.quoteAggregateColumn(column))
}

// aggregate runs fn(expr). With GROUP BY the per-group values are summed
// into one total.
func (b *Builder) aggregate(ctx context.Context, fn, expr string) (float64, error) {
	if b.err != nil {
		return 0, b.err
	}
	sql, args := b.aggregateSQL(fn, expr)
	v, err := b.query(sql, args).WithContext(ctx).Scalar()
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return toFloat64(v), nil
}

func (b *Builder) aggregateSQL(fn, expr string) (string, []any) {
	if len(b.groups) == 0 {
		return b.assembleAggregate("SELECT " + fn + "(" + expr + ") AS aggregate FROM " + b.table)
	}
	inner, args := b.assembleAggregate("SELECT " + fn + "(" + expr + ") AS agg_val FROM " + b.table)
	return "SELECT SUM(agg_val) FROM (" + inner + ") _agg", args
}

// Exists reports whether at least one row matches.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	b.limit = 1
	sql, args := b.assemble("SELECT 1 FROM " + b.table)
	row, err := b.query(sql, args).WithContext(ctx).Row()
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// Paginate counts the matching rows and returns the requested page.
// page is floored to 1.
func (b *Builder) Paginate(ctx context.Context, perPage, page int) (*Page, error) {
	if b.err != nil {
		return nil, b.err
	}
	page = max(1, page)

	counter := b.Clone()
	counter.orders = nil
	counter.limit, counter.offset = -1, -1
	total, err := counter.Count(ctx)
	if err != nil {
		return nil, err
	}

	b.limit = perPage
	b.offset = (page - 1) * perPage
	data, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []*Entity{}
	}

	return &Page{
		Data:        data,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    int(math.Ceil(float64(total) / float64(max(1, perPage)))),
	}, nil
}
