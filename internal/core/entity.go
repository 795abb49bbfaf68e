package core

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// PivotRelation is the relation name under which belongs-to-many results
// carry their join-table row.
const PivotRelation = "pivot"

// Entity is one row of an entity table.
type Entity struct {
	schema    *Schema
	db        *DB
	attrs     *Attributes
	relations map[string]any // *Entity, []*Entity or nil
	with      *WithTree
	exists    bool
}

func newEntity(db *DB, schema *Schema) *Entity {
	return &Entity{
		schema:    schema,
		db:        db,
		attrs:     newAttributes(schema.casts),
		relations: make(map[string]any),
	}
}

// Schema returns the entity schema.
func (e *Entity) Schema() *Schema { return e.schema }

// Attributes returns the attribute store.
func (e *Entity) Attributes() *Attributes { return e.attrs }

// Exists reports whether the entity was loaded from or saved to the database.
func (e *Entity) Exists() bool { return e.exists }

// Key returns the cast primary key value, or nil.
func (e *Entity) Key() any {
	return e.attrs.Get(e.schema.primaryKey)
}

// Get returns the value of column through its accessor or cast.
func (e *Entity) Get(column string) any {
	if fn, ok := e.schema.accessors[column]; ok {
		return fn(e, e.attrs.Get(column))
	}
	return e.attrs.Get(column)
}

// Lookup is Get returning None for absent or nil values.
func (e *Entity) Lookup(column string) mo.Option[any] {
	v := e.Get(column)
	if v == nil {
		return mo.None[any]()
	}
	return mo.Some(v)
}

// Int returns column as int64.
func (e *Entity) Int(column string) int64 {
	if v := e.Get(column); v != nil {
		return toInt64(v)
	}
	return 0
}

// Float returns column as float64.
func (e *Entity) Float(column string) float64 {
	if v := e.Get(column); v != nil {
		return toFloat64(v)
	}
	return 0
}

// String returns column as a string.
func (e *Entity) String(column string) string {
	return toString(e.Get(column))
}

// Bool returns column as a bool.
func (e *Entity) Bool(column string) bool {
	if v := e.Get(column); v != nil {
		return toBool(v)
	}
	return false
}

// Time returns column as a time.Time, zero when absent.
func (e *Entity) Time(column string) time.Time {
	if t, ok := parseDatetime(e.Get(column)).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Set assigns column through its mutator and storage cast.
func (e *Entity) Set(column string, value any) error {
	if fn, ok := e.schema.mutators[column]; ok {
		v, err := fn(e, value)
		if err != nil {
			return WrapError(err, column)
		}
		value = v
	}
	return e.attrs.Set(column, value)
}

// Fill assigns the fillable subset of attrs.
func (e *Entity) Fill(attrs map[string]any) error {
	for col, v := range attrs {
		if !e.schema.IsFillable(col) {
			continue
		}
		if err := e.Set(col, v); err != nil {
			return err
		}
	}
	return nil
}

// SetRawAttributes replaces (or merges into) the stored values without casting.
func (e *Entity) SetRawAttributes(values map[string]any, merge bool) {
	e.attrs.SetRaw(values, merge)
}

// TakeAttributesByPrefix removes and returns the attributes named prefix+X, keyed by X.
func (e *Entity) TakeAttributesByPrefix(prefix string) map[string]any {
	return e.attrs.TakeByPrefix(prefix)
}

// CastForStorage reduces attrs to fillable columns and applies storage casts.
func (e *Entity) CastForStorage(attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for col, v := range attrs {
		if !e.schema.IsFillable(col) {
			continue
		}
		if t, ok := e.schema.casts[col]; ok {
			stored, err := castForStorage(v, t)
			if err != nil {
				return nil, WrapError(err, col)
			}
			v = stored
		}
		out[col] = v
	}
	return out, nil
}

func (e *Entity) query() *Builder {
	return newBuilder(e.db, e.schema)
}

// Save inserts the entity when it has no stored primary key and updates it otherwise.
func (e *Entity) Save(ctx context.Context) error {
	pk := e.schema.primaryKey
	values := e.attrs.Map()

	if id, ok := values[pk]; ok && id != nil && e.exists {
		delete(values, pk)
		if len(values) == 0 {
			return nil
		}
		if _, err := e.query().withStoredValues().WithTrashed().Where(pk, id).Update(ctx, values); err != nil {
			return err
		}
		if e.schema.timestamps {
			e.attrs.SetRaw(map[string]any{UpdatedAtColumn: e.db.now().Format(DatetimeLayout)}, true)
		}
		return nil
	}

	id, err := e.query().withStoredValues().Create(ctx, values)
	if err != nil {
		return err
	}
	if e.schema.timestamps {
		now := e.db.now().Format(DatetimeLayout)
		e.attrs.SetRaw(map[string]any{CreatedAtColumn: now, UpdatedAtColumn: now}, true)
	}
	if id != nil {
		e.attrs.SetRaw(map[string]any{pk: id}, true)
	}
	e.exists = true
	return nil
}

// Update fills attrs and saves.
func (e *Entity) Update(ctx context.Context, attrs map[string]any) error {
	if err := e.Fill(attrs); err != nil {
		return err
	}
	return e.Save(ctx)
}

func (e *Entity) requireKey() (any, error) {
	id := e.Key()
	if id == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrimaryKey, e.schema.name)
	}
	return id, nil
}

// Delete soft-deletes a trashable entity and removes it otherwise.
func (e *Entity) Delete(ctx context.Context) error {
	id, err := e.requireKey()
	if err != nil {
		return err
	}
	if e.Trashed() {
		return nil
	}
	now := e.db.now()
	if _, err := e.query().Where(e.schema.primaryKey, id).Delete(ctx); err != nil {
		return err
	}
	if e.schema.trashable {
		stamp := map[string]any{DeletedAtColumn: now.Format(DatetimeLayout)}
		if e.schema.timestamps {
			stamp[UpdatedAtColumn] = now.Format(DatetimeLayout)
		}
		e.attrs.SetRaw(stamp, true)
		return nil
	}
	e.exists = false
	return nil
}

// ForceDelete removes the row even when the entity is trashable.
func (e *Entity) ForceDelete(ctx context.Context) error {
	id, err := e.requireKey()
	if err != nil {
		return err
	}
	if _, err := e.query().WithTrashed().Where(e.schema.primaryKey, id).ForceDelete(ctx); err != nil {
		return err
	}
	e.exists = false
	return nil
}

// Trashed reports whether the entity carries a deleted_at stamp.
func (e *Entity) Trashed() bool {
	return e.schema.trashable && e.attrs.Get(DeletedAtColumn) != nil
}

// Refresh reloads the attributes from the database and drops loaded relations.
func (e *Entity) Refresh(ctx context.Context) error {
	id, err := e.requireKey()
	if err != nil {
		return err
	}
	fresh, err := e.query().WithTrashed().FindOrFail(ctx, id)
	if err != nil {
		return err
	}
	e.attrs.SetRaw(fresh.attrs.Map(), false)
	e.relations = make(map[string]any)
	e.exists = true
	return nil
}

// SetRelation stores a loaded relation value.
func (e *Entity) SetRelation(name string, value any) {
	e.relations[name] = value
}

// GetRelation returns a loaded relation value.
func (e *Entity) GetRelation(name string) (any, bool) {
	v, ok := e.relations[name]
	return v, ok
}

// RelationLoaded reports whether name has been loaded.
func (e *Entity) RelationLoaded(name string) bool {
	_, ok := e.relations[name]
	return ok
}

// Pivot returns the join-table row attached by a belongs-to-many query.
func (e *Entity) Pivot() *Entity {
	p, _ := e.relations[PivotRelation].(*Entity)
	return p
}

// Relation builds the descriptor of a named relation bound to e.
func (e *Entity) Relation(name string) (Relation, error) {
	def, ok := e.schema.relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, e.schema.name, name)
	}
	return def.bind(e.db, e, true)
}

// BelongsToMany returns the belongs-to-many descriptor of name for pivot operations.
func (e *Entity) BelongsToMany(name string) (*BelongsToManyRelation, error) {
	rel, err := e.Relation(name)
	if err != nil {
		return nil, err
	}
	btm, ok := rel.(*BelongsToManyRelation)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is %s", ErrNotBelongsToMany, e.schema.name, name, rel.Kind())
	}
	return btm, nil
}

// Related returns the loaded value of a relation, loading and caching it first if needed.
func (e *Entity) Related(ctx context.Context, name string) (any, error) {
	if v, ok := e.relations[name]; ok {
		return v, nil
	}
	rel, err := e.Relation(name)
	if err != nil {
		return nil, err
	}
	v, err := rel.Results(ctx)
	if err != nil {
		return nil, err
	}
	e.relations[name] = v
	return v, nil
}

// RelatedOne is Related for single-entity relations.
func (e *Entity) RelatedOne(ctx context.Context, name string) (*Entity, error) {
	v, err := e.Related(ctx, name)
	if err != nil {
		return nil, err
	}
	one, _ := v.(*Entity)
	return one, nil
}

// RelatedMany is Related for collection relations.
func (e *Entity) RelatedMany(ctx context.Context, name string) ([]*Entity, error) {
	v, err := e.Related(ctx, name)
	if err != nil {
		return nil, err
	}
	many, _ := v.([]*Entity)
	return many, nil
}

// Load loads relation paths on this entity, reusing relations already loaded.
func (e *Entity) Load(ctx context.Context, paths ...string) error {
	tree := NewWithTree(paths...)
	if err := loadTree(ctx, e, tree); err != nil {
		return err
	}
	if e.with == nil {
		e.with = NewWithTree()
	}
	e.with.Merge(tree)
	return nil
}

func loadTree(ctx context.Context, e *Entity, tree *WithTree) error {
	for _, name := range tree.Names() {
		v, err := e.Related(ctx, name)
		if err != nil {
			return err
		}
		child := tree.Child(name)
		if child.Empty() {
			continue
		}
		for _, c := range relationEntities(v) {
			if err := loadTree(ctx, c, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// relationEntities flattens a relation value into a list.
func relationEntities(v any) []*Entity {
	switch x := v.(type) {
	case *Entity:
		if x != nil {
			return []*Entity{x}
		}
	case []*Entity:
		return x
	}
	return nil
}

// SetWithTree sets the relation tree used by ToMap.
func (e *Entity) SetWithTree(tree *WithTree) {
	e.with = tree
}

// clone copies the entity with its own attributes and relation cache.
func (e *Entity) clone() *Entity {
	c := newEntity(e.db, e.schema)
	c.attrs.SetRaw(e.attrs.Map(), false)
	for k, v := range e.relations {
		c.relations[k] = v
	}
	c.with = e.with
	c.exists = e.exists
	return c
}
