package core

import (
	"context"
)

// HasOneOrManyRelation relates parent.localKey to related.foreignKey.
type HasOneOrManyRelation struct {
	kind       RelationKind
	parent     *Entity
	related    *Schema
	foreignKey string
	localKey   string
	query      *Builder
}

func newHasOneOrMany(db *DB, def RelationDef, parent *Entity, related *Schema, constrained bool) *HasOneOrManyRelation {
	localKey := def.LocalKey
	if localKey == "" {
		localKey = parent.schema.primaryKey
	}
	r := &HasOneOrManyRelation{
		kind:       def.Kind,
		parent:     parent,
		related:    related,
		foreignKey: def.ForeignKey,
		localKey:   localKey,
		query:      newBuilder(db, related),
	}
	if constrained {
		r.query.Where(r.foreignKey, parent.attrs.Get(localKey))
	}
	return r
}

// Kind returns KindHasOne or KindHasMany.
func (r *HasOneOrManyRelation) Kind() RelationKind { return r.kind }

// Related returns the related schema.
func (r *HasOneOrManyRelation) Related() *Schema { return r.related }

// Query returns the constrained builder.
func (r *HasOneOrManyRelation) Query() *Builder { return r.query }

// ForeignKey returns the related column pointing at the parent.
func (r *HasOneOrManyRelation) ForeignKey() string { return r.foreignKey }

// LocalKey returns the parent column referenced by the foreign key.
func (r *HasOneOrManyRelation) LocalKey() string { return r.localKey }

// Results returns the first related entity for has-one and all of them for has-many.
func (r *HasOneOrManyRelation) Results(ctx context.Context) (any, error) {
	if r.kind == KindHasOne {
		return r.query.First(ctx)
	}
	return r.query.Get(ctx)
}

// InitRelation sets nil (has-one) or an empty list (has-many) on every parent.
func (r *HasOneOrManyRelation) InitRelation(parents []*Entity, name string) {
	for _, p := range parents {
		if r.kind == KindHasOne {
			p.SetRelation(name, (*Entity)(nil))
		} else {
			p.SetRelation(name, []*Entity{})
		}
	}
}

// AddEagerConstraints restricts the query to the parents' local keys.
func (r *HasOneOrManyRelation) AddEagerConstraints(parents []*Entity) {
	r.query.WhereIn(r.foreignKey, uniqueKeys(parents, r.localKey))
}

// GetEager runs the batched query.
func (r *HasOneOrManyRelation) GetEager(ctx context.Context) (*EagerResult, error) {
	related, err := r.query.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &EagerResult{Related: related}, nil
}

// Match assigns related entities to the parent whose local key they reference.
func (r *HasOneOrManyRelation) Match(parents []*Entity, result *EagerResult, name string) {
	byKey := make(map[string][]*Entity)
	for _, e := range result.Related {
		k := keyOf(e.attrs.Get(r.foreignKey))
		byKey[k] = append(byKey[k], e)
	}

	for _, p := range parents {
		v := p.attrs.Get(r.localKey)
		if v == nil {
			continue
		}
		group := byKey[keyOf(v)]
		if r.kind == KindHasOne {
			if len(group) > 0 {
				p.SetRelation(name, group[0])
			}
			continue
		}
		p.SetRelation(name, append([]*Entity{}, group...))
	}
}
