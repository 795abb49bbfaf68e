package core

import (
	"context"
)

// BelongsToRelation relates parent.foreignKey to related.ownerKey.
type BelongsToRelation struct {
	parent     *Entity
	related    *Schema
	foreignKey string
	ownerKey   string
	query      *Builder
}

func newBelongsTo(db *DB, def RelationDef, parent *Entity, related *Schema, constrained bool) *BelongsToRelation {
	ownerKey := def.OwnerKey
	if ownerKey == "" {
		ownerKey = related.primaryKey
	}
	r := &BelongsToRelation{
		parent:     parent,
		related:    related,
		foreignKey: def.ForeignKey,
		ownerKey:   ownerKey,
		query:      newBuilder(db, related),
	}
	if constrained {
		if fk := parent.attrs.Get(r.foreignKey); fk != nil {
			r.query.Where(r.ownerKey, fk)
		}
	}
	return r
}

// Kind returns KindBelongsTo.
func (r *BelongsToRelation) Kind() RelationKind { return KindBelongsTo }

// Related returns the owner schema.
func (r *BelongsToRelation) Related() *Schema { return r.related }

// Query returns the constrained builder.
func (r *BelongsToRelation) Query() *Builder { return r.query }

// ForeignKey returns the parent column holding the owner key.
func (r *BelongsToRelation) ForeignKey() string { return r.foreignKey }

// OwnerKey returns the related column referenced by the foreign key.
func (r *BelongsToRelation) OwnerKey() string { return r.ownerKey }

// Results returns the owner, or nil without querying when the foreign key is nil.
func (r *BelongsToRelation) Results(ctx context.Context) (any, error) {
	if r.parent.attrs.Get(r.foreignKey) == nil {
		return (*Entity)(nil), nil
	}
	return r.query.First(ctx)
}

// InitRelation sets nil on every parent.
func (r *BelongsToRelation) InitRelation(parents []*Entity, name string) {
	for _, p := range parents {
		p.SetRelation(name, (*Entity)(nil))
	}
}

// AddEagerConstraints restricts the query to the parents' foreign keys.
func (r *BelongsToRelation) AddEagerConstraints(parents []*Entity) {
	r.query.WhereIn(r.ownerKey, uniqueKeys(parents, r.foreignKey))
}

// GetEager runs the batched query.
func (r *BelongsToRelation) GetEager(ctx context.Context) (*EagerResult, error) {
	related, err := r.query.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &EagerResult{Related: related}, nil
}

// Match assigns each parent its owner.
func (r *BelongsToRelation) Match(parents []*Entity, result *EagerResult, name string) {
	byKey := make(map[string]*Entity, len(result.Related))
	for _, e := range result.Related {
		k := keyOf(e.attrs.Get(r.ownerKey))
		if _, ok := byKey[k]; !ok {
			byKey[k] = e
		}
	}
	for _, p := range parents {
		fk := p.attrs.Get(r.foreignKey)
		if fk == nil {
			continue
		}
		if owner, ok := byKey[keyOf(fk)]; ok {
			p.SetRelation(name, owner)
		}
	}
}
