package core

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

// RelationKind identifies a relation variant.
type RelationKind int

// Relation kinds.
const (
	KindHasOne RelationKind = iota + 1
	KindHasMany
	KindBelongsTo
	KindBelongsToMany
	KindCustom
)

func (k RelationKind) String() string {
	switch k {
	case KindHasOne:
		return "hasOne"
	case KindHasMany:
		return "hasMany"
	case KindBelongsTo:
		return "belongsTo"
	case KindBelongsToMany:
		return "belongsToMany"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// Relation is a typed edge from one parent entity to a related entity type.
type Relation interface {
	Kind() RelationKind
	// Related returns the schema of the related entities.
	Related() *Schema
	// Query returns the constrained builder of the relation.
	Query() *Builder
	// Results returns *Entity (or nil) for single relations and []*Entity otherwise.
	Results(ctx context.Context) (any, error)
}

// EagerResult holds the rows fetched by one batched relation load.
type EagerResult struct {
	Related []*Entity
	Pivots  []*Entity // join-table rows, belongs-to-many only
}

// BatchLoader is implemented by relations that can load for many parents
// with a bounded number of queries.
type BatchLoader interface {
	// InitRelation sets an empty value for name on every parent.
	InitRelation(parents []*Entity, name string)
	// AddEagerConstraints collects the unique parent keys to load.
	AddEagerConstraints(parents []*Entity)
	// GetEager runs the batched query.
	GetEager(ctx context.Context) (*EagerResult, error)
	// Match assigns the fetched entities back to their parents.
	Match(parents []*Entity, result *EagerResult, name string)
}

// RelationResolver builds a custom relation for a parent entity.
type RelationResolver func(db *DB, parent *Entity, constrained bool) (Relation, error)

// RelationDef is the declaration of a relation stored on a Schema.
// Descriptors are built from it per use.
type RelationDef struct {
	Kind    RelationKind
	Related string // related entity name
	// ForeignKey is the related column for has-one/has-many, the parent
	// column for belongs-to and the pivot column pointing at the parent
	// for belongs-to-many.
	ForeignKey string
	// LocalKey is the parent column matched by has-one/has-many.
	LocalKey string
	// OwnerKey is the related column matched by belongs-to.
	OwnerKey string
	// Pivot is the entity name of the join table.
	Pivot string
	// RelatedPivotKey is the pivot column pointing at the related entity.
	RelatedPivotKey string
	// PivotColumns are extra pivot columns selected with the results.
	PivotColumns []string
	// Resolver builds KindCustom relations.
	Resolver RelationResolver
}

// HasOne declares a one-to-one relation where related.foreignKey = parent.localKey.
// An empty localKey selects the parent primary key.
func HasOne(related, foreignKey, localKey string) RelationDef {
	return RelationDef{Kind: KindHasOne, Related: related, ForeignKey: foreignKey, LocalKey: localKey}
}

// HasMany declares a one-to-many relation where related.foreignKey = parent.localKey.
func HasMany(related, foreignKey, localKey string) RelationDef {
	return RelationDef{Kind: KindHasMany, Related: related, ForeignKey: foreignKey, LocalKey: localKey}
}

// BelongsTo declares an inverse relation where parent.foreignKey = related.ownerKey.
// An empty ownerKey selects the related primary key.
func BelongsTo(related, foreignKey, ownerKey string) RelationDef {
	return RelationDef{Kind: KindBelongsTo, Related: related, ForeignKey: foreignKey, OwnerKey: ownerKey}
}

// BelongsToMany declares a many-to-many relation through the pivot entity.
// Empty keys are inferred as snake_case(entity name) + "_id".
func BelongsToMany(related, pivot, foreignPivotKey, relatedPivotKey string, pivotColumns ...string) RelationDef {
	return RelationDef{
		Kind:            KindBelongsToMany,
		Related:         related,
		Pivot:           pivot,
		ForeignKey:      foreignPivotKey,
		RelatedPivotKey: relatedPivotKey,
		PivotColumns:    pivotColumns,
	}
}

// CustomRelation declares a relation built by resolver.
func CustomRelation(related string, resolver RelationResolver) RelationDef {
	return RelationDef{Kind: KindCustom, Related: related, Resolver: resolver}
}

// bind builds the descriptor for parent. With constrained false the
// per-parent conditions are left out so that eager constraints can be added.
func (d RelationDef) bind(db *DB, parent *Entity, constrained bool) (Relation, error) {
	related, err := db.registry.Schema(d.Related)
	if err != nil {
		return nil, err
	}

	switch d.Kind {
	case KindHasOne, KindHasMany:
		return newHasOneOrMany(db, d, parent, related, constrained), nil
	case KindBelongsTo:
		return newBelongsTo(db, d, parent, related, constrained), nil
	case KindBelongsToMany:
		pivot, err := db.registry.Schema(d.Pivot)
		if err != nil {
			return nil, err
		}
		return newBelongsToMany(db, d, parent, related, pivot, constrained), nil
	case KindCustom:
		if d.Resolver == nil {
			return nil, fmt.Errorf("%w: custom relation to %s has no resolver", ErrUnsupportedRelationKind, d.Related)
		}
		return d.Resolver(db, parent, constrained)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRelationKind, d.Kind)
	}
}

// keyOf normalises a key value for map lookups across driver types.
func keyOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprint(int64(x))
		}
	}
	return fmt.Sprint(v)
}

// uniqueKeys returns the non-nil values of column on entities in first
// occurrence order, deduplicated by keyOf.
func uniqueKeys(entities []*Entity, column string) []any {
	values := lo.FilterMap(entities, func(e *Entity, _ int) (any, bool) {
		v := e.attrs.Get(column)
		return v, v != nil
	})
	return lo.UniqBy(values, keyOf)
}
