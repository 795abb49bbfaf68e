package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// storagePayload copies data with storage casts applied, sorted by column.
// Values of a builder marked withStoredValues are copied as they are.
func (b *Builder) storagePayload(data map[string]any) ([]string, map[string]any, error) {
	payload := make(map[string]any, len(data))
	for col, v := range data {
		if t, ok := b.schema.casts[col]; ok && !b.stored {
			stored, err := castForStorage(v, t)
			if err != nil {
				return nil, nil, WrapError(err, col)
			}
			v = stored
		}
		payload[col] = v
	}
	cols := make([]string, 0, len(payload))
	for col := range payload {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, payload, nil
}

// withStoredValues marks the payloads of Create and Update as already cast
// for storage.
func (b *Builder) withStoredValues() *Builder {
	b.stored = true
	return b
}

// Create inserts data and returns the new primary key. An empty payload
// inserts nothing and returns nil.
func (b *Builder) Create(ctx context.Context, data map[string]any) (any, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(data) == 0 {
		return nil, nil
	}

	row := make(map[string]any, len(data)+2)
	for k, v := range data {
		row[k] = v
	}
	if b.schema.timestamps {
		now := b.db.now().Format(DatetimeLayout)
		row[CreatedAtColumn] = now
		row[UpdatedAtColumn] = now
	}

	cols, payload, err := b.storagePayload(row)
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = b.db.dialect.QuoteIdentifier(col)
		args[i] = payload[col]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.table, strings.Join(quoted, ", "), placeholders(len(cols)))

	pk := b.schema.primaryKey
	if v, ok := payload[pk]; ok && v != nil {
		if _, err := b.query(sql, args).WithContext(ctx).Execute(); err != nil {
			return nil, err
		}
		return v, nil
	}

	if returning := b.db.dialect.ReturningSQL(pk); returning != "" {
		id, err := b.query(sql+returning, args).WithContext(ctx).Scalar()
		if err != nil {
			return nil, err
		}
		return castAttribute(id, b.schema.keyType), nil
	}

	res, err := b.query(sql, args).WithContext(ctx).Execute()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, WrapError(err, "read inserted id")
	}
	return id, nil
}

// Update applies data to the matching rows. It returns false without
// running anything for an empty payload.
func (b *Builder) Update(ctx context.Context, data map[string]any) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	if len(data) == 0 {
		return false, nil
	}
	b.applyScopes()
	if !b.hasCallerConditions() {
		return false, fmt.Errorf("%w: update %s", ErrUnsafeMutation, b.table)
	}

	row := make(map[string]any, len(data)+1)
	for k, v := range data {
		row[k] = v
	}
	if b.schema.timestamps {
		row[UpdatedAtColumn] = b.db.now().Format(DatetimeLayout)
	}
	delete(row, b.schema.primaryKey)
	if len(row) == 0 {
		return false, nil
	}

	cols, payload, err := b.storagePayload(row)
	if err != nil {
		return false, err
	}
	pairs := make([]string, len(cols))
	var args []any
	for i, col := range cols {
		quoted := b.db.dialect.QuoteIdentifier(col)
		if payload[col] == nil {
			pairs[i] = quoted + " = NULL"
			continue
		}
		pairs[i] = quoted + " = ?"
		args = append(args, payload[col])
	}

	where, whereArgs := b.whereSQL()
	sql := "UPDATE " + b.table + " SET " + strings.Join(pairs, ", ") + where
	if _, err := b.query(sql, append(args, whereArgs...)).WithContext(ctx).Execute(); err != nil {
		return false, err
	}
	return true, nil
}

// Delete soft-deletes the matching rows of a trashable entity and removes
// them otherwise.
func (b *Builder) Delete(ctx context.Context) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	b.applyScopes()
	if !b.hasCallerConditions() {
		return false, fmt.Errorf("%w: delete from %s", ErrUnsafeMutation, b.table)
	}
	if b.schema.trashable {
		return b.SoftDelete(ctx, map[string]any{DeletedAtColumn: b.db.now().Format(DatetimeLayout)})
	}
	return b.ForceDelete(ctx)
}

// ForceDelete removes the matching rows regardless of soft deletes.
func (b *Builder) ForceDelete(ctx context.Context) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	b.applyScopes()
	if !b.hasCallerConditions() {
		return false, fmt.Errorf("%w: delete from %s", ErrUnsafeMutation, b.table)
	}
	where, args := b.whereSQL()
	if _, err := b.query("DELETE FROM "+b.table+where, args).WithContext(ctx).Execute(); err != nil {
		return false, err
	}
	return true, nil
}

// SoftDelete is Update with the soft-delete payload.
func (b *Builder) SoftDelete(ctx context.Context, data map[string]any) (bool, error) {
	return b.Update(ctx, data)
}

// UpdateOrCreate updates the row identified by the primary key in data when
// it exists, inserts data otherwise, and returns the stored entity.
func (b *Builder) UpdateOrCreate(ctx context.Context, data map[string]any) (*Entity, error) {
	if b.err != nil {
		return nil, b.err
	}
	pk := b.schema.primaryKey

	if id, ok := data[pk]; ok && !isEmptyKey(id) {
		exists, err := b.Clone().Where(pk, id).Exists(ctx)
		if err != nil {
			return nil, err
		}
		if exists {
			payload := make(map[string]any, len(data))
			for k, v := range data {
				if k != pk {
					payload[k] = v
				}
			}
			if _, err := newBuilder(b.db, b.schema).Where(pk, id).Update(ctx, payload); err != nil {
				return nil, err
			}
			return newBuilder(b.db, b.schema).FindOrFail(ctx, id)
		}
	}

	id, err := b.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	return newBuilder(b.db, b.schema).FindOrFail(ctx, id)
}

// FirstOrCreate returns the first row matching where, or inserts where+data
// and returns an entity hydrated from that payload with the new key set.
func (b *Builder) FirstOrCreate(ctx context.Context, where, data map[string]any) (*Entity, error) {
	if b.err != nil {
		return nil, b.err
	}

	q := b.Clone()
	cols := make([]string, 0, len(where))
	for col := range where {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		q.Where(col, where[col])
	}
	found, err := q.First(ctx)
	if err != nil || found != nil {
		return found, err
	}

	record := make(map[string]any, len(where)+len(data))
	for k, v := range where {
		record[k] = v
	}
	for k, v := range data {
		record[k] = v
	}
	id, err := b.Create(ctx, record)
	if err != nil {
		return nil, err
	}

	e := newEntity(b.db, b.schema)
	_, payload, err := b.storagePayload(record)
	if err != nil {
		return nil, err
	}
	e.attrs.SetRaw(payload, false)
	if id != nil {
		e.attrs.SetRaw(map[string]any{b.schema.primaryKey: id}, true)
		e.exists = true
	}
	return e, nil
}

func isEmptyKey(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "" || x == "0"
	default:
		return toInt64(v) == 0 && toString(v) == "0"
	}
}
