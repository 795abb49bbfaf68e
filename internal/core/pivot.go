package core

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

// PivotRow is one desired pivot entry: a related id and extra pivot attributes.
type PivotRow struct {
	ID         any
	Attributes map[string]any
}

// SyncOptions controls which side of the difference SyncPivot applies.
type SyncOptions struct {
	// Detaching deletes existing rows that are not desired.
	Detaching bool
	// DetachOnly skips inserts.
	DetachOnly bool
}

// SyncChanges lists the related ids touched by a sync, in string form.
type SyncChanges struct {
	Attached []string
	Detached []string
	Updated  []string
}

// IDs builds pivot rows without attributes.
func IDs(ids ...any) []PivotRow {
	return lo.Map(ids, func(id any, _ int) PivotRow {
		return PivotRow{ID: id}
	})
}

func (r *BelongsToManyRelation) parentKey() (any, error) {
	pid := r.parent.Key()
	if pid == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrimaryKey, r.parent.schema.name)
	}
	return pid, nil
}

func (r *BelongsToManyRelation) pivotQuery() *Builder {
	return newBuilder(r.db, r.pivot).withStoredValues()
}

// pivotPayload reduces attrs to fillable pivot columns with storage casts.
func (r *BelongsToManyRelation) pivotPayload(attrs map[string]any) (map[string]any, error) {
	return newEntity(r.db, r.pivot).CastForStorage(attrs)
}

// Sync makes ids the exact set of related ids.
func (r *BelongsToManyRelation) Sync(ctx context.Context, ids ...any) (*SyncChanges, error) {
	return r.SyncPivot(ctx, IDs(ids...), SyncOptions{Detaching: true})
}

// SyncWithoutDetaching attaches missing ids and keeps the others.
func (r *BelongsToManyRelation) SyncWithoutDetaching(ctx context.Context, ids ...any) (*SyncChanges, error) {
	return r.SyncPivot(ctx, IDs(ids...), SyncOptions{})
}

// Attach adds ids with the same pivot attributes. Existing pairs get their
// attributes updated.
func (r *BelongsToManyRelation) Attach(ctx context.Context, ids []any, attrs map[string]any) (*SyncChanges, error) {
	rows := lo.Map(ids, func(id any, _ int) PivotRow {
		return PivotRow{ID: id, Attributes: attrs}
	})
	return r.SyncPivot(ctx, rows, SyncOptions{})
}

// Detach removes the pivot rows of ids. Without ids it removes them all.
func (r *BelongsToManyRelation) Detach(ctx context.Context, ids ...any) (*SyncChanges, error) {
	if len(ids) == 0 {
		return r.DetachAll(ctx)
	}
	pid, err := r.parentKey()
	if err != nil {
		return nil, err
	}
	if _, err := r.pivotQuery().Where(r.foreignKey, pid).WhereIn(r.relatedKey, ids).Delete(ctx); err != nil {
		return nil, err
	}
	return &SyncChanges{Detached: lo.Uniq(lo.Map(ids, func(id any, _ int) string { return keyOf(id) }))}, nil
}

// DetachAll removes every pivot row of the parent.
func (r *BelongsToManyRelation) DetachAll(ctx context.Context) (*SyncChanges, error) {
	return r.SyncPivot(ctx, nil, SyncOptions{Detaching: true, DetachOnly: true})
}

// UpdateExistingPivot updates the pivot row of id. It returns false when
// the payload has no fillable pivot column.
func (r *BelongsToManyRelation) UpdateExistingPivot(ctx context.Context, id any, attrs map[string]any) (bool, error) {
	pid, err := r.parentKey()
	if err != nil {
		return false, err
	}
	payload, err := r.pivotPayload(attrs)
	if err != nil {
		return false, err
	}
	if len(payload) == 0 {
		return false, nil
	}
	return r.pivotQuery().Where(r.foreignKey, pid).Where(r.relatedKey, id).Update(ctx, payload)
}

// SyncPivot reconciles the parent's pivot rows with rows: it inserts
// missing ids, updates existing ones that carry attributes and, when
// detaching, deletes ids that are not desired.
func (r *BelongsToManyRelation) SyncPivot(ctx context.Context, rows []PivotRow, opts SyncOptions) (*SyncChanges, error) {
	pid, err := r.parentKey()
	if err != nil {
		return nil, err
	}

	existing, err := r.pivotQuery().Where(r.foreignKey, pid).Get(ctx)
	if err != nil {
		return nil, err
	}
	existingIDs := lo.UniqBy(lo.Map(existing, func(row *Entity, _ int) any {
		return row.attrs.Get(r.relatedKey)
	}), keyOf)
	existingByKey := lo.KeyBy(existingIDs, keyOf)
	existingKeys := lo.Map(existingIDs, func(id any, _ int) string { return keyOf(id) })

	desired := make(map[string]PivotRow, len(rows))
	var desiredKeys []string
	for _, row := range rows {
		k := keyOf(row.ID)
		if _, ok := desired[k]; !ok {
			desiredKeys = append(desiredKeys, k)
		}
		desired[k] = row
	}

	toInsert, toDelete := lo.Difference(desiredKeys, existingKeys)
	common := lo.Intersect(existingKeys, desiredKeys)
	toUpdate := lo.Filter(desiredKeys, func(k string, _ int) bool { return lo.Contains(common, k) })
	if opts.DetachOnly {
		toInsert = nil
	}
	if !opts.Detaching {
		toDelete = nil
	}

	changes := &SyncChanges{Attached: []string{}, Detached: []string{}, Updated: []string{}}

	for _, k := range toInsert {
		payload, err := r.pivotPayload(desired[k].Attributes)
		if err != nil {
			return nil, err
		}
		payload[r.foreignKey] = pid
		payload[r.relatedKey] = desired[k].ID
		if _, err := r.pivotQuery().Create(ctx, payload); err != nil {
			return nil, err
		}
		changes.Attached = append(changes.Attached, k)
	}

	for _, k := range toUpdate {
		payload, err := r.pivotPayload(desired[k].Attributes)
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			continue
		}
		if _, err := r.pivotQuery().Where(r.foreignKey, pid).Where(r.relatedKey, desired[k].ID).Update(ctx, payload); err != nil {
			return nil, err
		}
		changes.Updated = append(changes.Updated, k)
	}

	if len(toDelete) > 0 {
		ids := lo.Map(toDelete, func(k string, _ int) any { return existingByKey[k] })
		if _, err := r.pivotQuery().Where(r.foreignKey, pid).WhereIn(r.relatedKey, ids).Delete(ctx); err != nil {
			return nil, err
		}
		changes.Detached = toDelete
	}
	return changes, nil
}
