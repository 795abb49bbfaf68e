package core

import (
	"context"

	"github.com/samber/lo"
)

type pivotOrder struct {
	column    string
	direction string
}

type pivotWhere struct {
	column string
	args   []any
}

// BelongsToManyRelation relates parent and related entities through a pivot
// table holding (foreignKey → parent, relatedKey → related) pairs.
type BelongsToManyRelation struct {
	db           *DB
	parent       *Entity
	related      *Schema
	pivot        *Schema
	foreignKey   string
	relatedKey   string
	pivotColumns []string
	order        *pivotOrder
	wheres       []pivotWhere
	constrained  bool
	query        *Builder
	parentKeys   []any
}

func newBelongsToMany(db *DB, def RelationDef, parent *Entity, related, pivot *Schema, constrained bool) *BelongsToManyRelation {
	r := &BelongsToManyRelation{
		db:           db,
		parent:       parent,
		related:      related,
		pivot:        pivot,
		foreignKey:   def.ForeignKey,
		relatedKey:   def.RelatedPivotKey,
		pivotColumns: lo.Uniq(def.PivotColumns),
		constrained:  constrained,
		query:        newBuilder(db, related),
	}
	if r.foreignKey == "" {
		r.foreignKey = lo.SnakeCase(parent.schema.name) + "_id"
	}
	if r.relatedKey == "" {
		r.relatedKey = lo.SnakeCase(related.name) + "_id"
	}
	r.query.afterFetch = r.attachPivots
	if constrained {
		r.addConstraints()
	}
	return r
}

func (r *BelongsToManyRelation) relatedTable() string { return r.db.registry.Table(r.related) }

// PivotTable returns the full join table name.
func (r *BelongsToManyRelation) PivotTable() string { return r.db.registry.Table(r.pivot) }

func (r *BelongsToManyRelation) pivotColumn(col string) string {
	return r.PivotTable() + "." + r.db.dialect.QuoteIdentifier(col)
}

func (r *BelongsToManyRelation) addConstraints() {
	pid := r.parent.Key()
	if pid == nil {
		r.query.wheres = append(r.query.wheres, clause{sql: "0=1"})
		return
	}

	relTable := r.relatedTable()
	r.query.Join(r.PivotTable(),
		r.pivotColumn(r.relatedKey), "=",
		relTable+"."+r.db.dialect.QuoteIdentifier(r.related.primaryKey))
	r.query.Where(r.pivotColumn(r.foreignKey), pid)
	r.query.AddSelect(relTable + ".*")
	r.addPivotSelects()
}

func (r *BelongsToManyRelation) addPivotSelects() {
	cols := lo.Uniq(append([]string{r.foreignKey, r.relatedKey}, r.pivotColumns...))
	for _, col := range cols {
		r.query.AddSelect(r.pivotColumn(col) + " AS " + r.db.dialect.QuoteIdentifier("pivot_"+col))
	}
}

// Kind returns KindBelongsToMany.
func (r *BelongsToManyRelation) Kind() RelationKind { return KindBelongsToMany }

// Related returns the related schema.
func (r *BelongsToManyRelation) Related() *Schema { return r.related }

// PivotSchema returns the schema of the join table.
func (r *BelongsToManyRelation) PivotSchema() *Schema { return r.pivot }

// Query returns the join query. Entities it returns carry their pivot row
// as the "pivot" relation.
func (r *BelongsToManyRelation) Query() *Builder { return r.query }

// ForeignKey returns the pivot column pointing at the parent.
func (r *BelongsToManyRelation) ForeignKey() string { return r.foreignKey }

// RelatedKey returns the pivot column pointing at the related entity.
func (r *BelongsToManyRelation) RelatedKey() string { return r.relatedKey }

// WithPivot adds pivot columns to the selected pivot attributes.
func (r *BelongsToManyRelation) WithPivot(columns ...string) *BelongsToManyRelation {
	r.pivotColumns = lo.Uniq(append(r.pivotColumns, columns...))
	if r.constrained && r.parent.Key() != nil {
		r.addPivotSelects()
	}
	return r
}

// OrderByPivot orders results by a pivot column.
func (r *BelongsToManyRelation) OrderByPivot(column string, direction ...string) *BelongsToManyRelation {
	dir := "ASC"
	if len(direction) > 0 && direction[0] != "" {
		dir = direction[0]
	}
	r.order = &pivotOrder{column: column, direction: dir}
	r.query.OrderBy(r.pivotColumn(column), dir)
	return r
}

// WherePivot filters on a pivot column. It accepts the same argument
// orders as Builder.Where.
func (r *BelongsToManyRelation) WherePivot(column string, args ...any) *BelongsToManyRelation {
	r.wheres = append(r.wheres, pivotWhere{column: column, args: args})
	r.query.Where(r.pivotColumn(column), args...)
	return r
}

// HasPivotColumn reports whether column is a fillable pivot column or one of the two keys.
func (r *BelongsToManyRelation) HasPivotColumn(column string) bool {
	return r.pivot.IsFillable(column) || column == r.foreignKey || column == r.relatedKey
}

// Get runs the join query.
func (r *BelongsToManyRelation) Get(ctx context.Context) ([]*Entity, error) {
	return r.query.Get(ctx)
}

// First runs the join query with LIMIT 1.
func (r *BelongsToManyRelation) First(ctx context.Context) (*Entity, error) {
	return r.query.First(ctx)
}

// attachPivots moves pivot_* attributes into a pivot relation entity.
func (r *BelongsToManyRelation) attachPivots(entities []*Entity) {
	for _, e := range entities {
		p := newEntity(r.db, r.pivot)
		p.attrs.SetRaw(e.TakeAttributesByPrefix("pivot_"), false)
		p.exists = true
		e.SetRelation(PivotRelation, p)
	}
}

// Results loads the related entities of the parent with the batched
// two-query path.
func (r *BelongsToManyRelation) Results(ctx context.Context) (any, error) {
	pid := r.parent.Key()
	if pid == nil {
		return []*Entity{}, nil
	}
	r.parentKeys = []any{pid}
	result, err := r.GetEager(ctx)
	if err != nil {
		return nil, err
	}
	return r.matchOne(r.parent, r.groupPivots(result), r.relatedByKey(result)), nil
}

// InitRelation sets an empty list on every parent.
func (r *BelongsToManyRelation) InitRelation(parents []*Entity, name string) {
	for _, p := range parents {
		p.SetRelation(name, []*Entity{})
	}
}

// AddEagerConstraints collects the parents' primary keys.
func (r *BelongsToManyRelation) AddEagerConstraints(parents []*Entity) {
	if len(parents) == 0 {
		r.parentKeys = nil
		return
	}
	r.parentKeys = uniqueKeys(parents, parents[0].schema.primaryKey)
}

// GetEager loads the pivot rows of the collected parents, then the related
// entities they reference.
func (r *BelongsToManyRelation) GetEager(ctx context.Context) (*EagerResult, error) {
	if len(r.parentKeys) == 0 {
		return &EagerResult{}, nil
	}

	pq := newBuilder(r.db, r.pivot).WhereIn(r.foreignKey, r.parentKeys)
	for _, w := range r.wheres {
		pq.Where(w.column, w.args...)
	}
	if r.order != nil {
		pq.OrderBy(r.order.column, r.order.direction)
	}
	pivots, err := pq.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(pivots) == 0 {
		return &EagerResult{}, nil
	}

	related, err := newBuilder(r.db, r.related).
		WhereIn(r.related.primaryKey, uniqueKeys(pivots, r.relatedKey)).
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return &EagerResult{Related: related, Pivots: pivots}, nil
}

// Match assigns each parent its related entities in pivot order. Every
// result is a copy carrying its own pivot row.
func (r *BelongsToManyRelation) Match(parents []*Entity, result *EagerResult, name string) {
	byParent := r.groupPivots(result)
	byKey := r.relatedByKey(result)
	for _, p := range parents {
		p.SetRelation(name, r.matchOne(p, byParent, byKey))
	}
}

func (r *BelongsToManyRelation) groupPivots(result *EagerResult) map[string][]*Entity {
	return lo.GroupBy(result.Pivots, func(row *Entity) string {
		return keyOf(row.attrs.Get(r.foreignKey))
	})
}

func (r *BelongsToManyRelation) relatedByKey(result *EagerResult) map[string]*Entity {
	return lo.KeyBy(result.Related, func(e *Entity) string {
		return keyOf(e.Key())
	})
}

func (r *BelongsToManyRelation) matchOne(parent *Entity, byParent map[string][]*Entity, byKey map[string]*Entity) []*Entity {
	out := []*Entity{}
	for _, row := range byParent[keyOf(parent.Key())] {
		rel, ok := byKey[keyOf(row.attrs.Get(r.relatedKey))]
		if !ok {
			continue
		}
		c := rel.clone()
		c.SetRelation(PivotRelation, r.filteredPivot(row))
		out = append(out, c)
	}
	return out
}

// filteredPivot copies the fillable pivot attributes of row, restricted to
// the keys and WithPivot columns when any were requested.
func (r *BelongsToManyRelation) filteredPivot(row *Entity) *Entity {
	keep := r.pivot.fillable
	if len(r.pivotColumns) > 0 {
		keep = lo.Uniq(append([]string{r.foreignKey, r.relatedKey}, r.pivotColumns...))
	}
	attrs := make(map[string]any, len(keep))
	for _, col := range keep {
		if !r.pivot.IsFillable(col) {
			continue
		}
		if v, ok := row.attrs.Raw(col); ok {
			attrs[col] = v
		}
	}
	p := newEntity(r.db, r.pivot)
	p.attrs.SetRaw(attrs, false)
	p.exists = true
	return p
}
