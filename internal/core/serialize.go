package core

import (
	"encoding/json"
	"time"
)

// ToMap returns the entity as a plain map: cast attributes, appended
// attributes and the loaded relations named by its with-tree, recursively.
// Time values are formatted with DatetimeLayout. An entity met again while
// it is still being serialized is reduced to its primary key.
func (e *Entity) ToMap() map[string]any {
	return e.toMap(make(map[*Entity]struct{}), e.with)
}

func (e *Entity) toMap(seen map[*Entity]struct{}, tree *WithTree) map[string]any {
	if _, ok := seen[e]; ok {
		return map[string]any{e.schema.primaryKey: e.Key()}
	}
	seen[e] = struct{}{}
	defer delete(seen, e)

	out := make(map[string]any)
	for _, col := range e.attrs.Keys() {
		out[col] = serializeValue(e.Get(col))
	}
	for _, name := range e.schema.appends {
		out[name] = serializeValue(e.Get(name))
	}

	var names []string
	if tree != nil {
		names = tree.Names()
	}
	if !containsString(names, PivotRelation) {
		names = append(names, PivotRelation)
	}

	for _, name := range names {
		value, loaded := e.relations[name]
		if !loaded {
			continue
		}
		var child *WithTree
		if tree != nil {
			child = tree.Child(name)
		}
		switch v := value.(type) {
		case *Entity:
			if v == nil {
				out[name] = nil
				continue
			}
			out[name] = v.toMap(seen, child)
		case []*Entity:
			list := make([]map[string]any, len(v))
			for i, item := range v {
				list[i] = item.toMap(seen, child)
			}
			out[name] = list
		default:
			out[name] = nil
		}
	}
	return out
}

func serializeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(DatetimeLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(DatetimeLayout)
	default:
		return v
	}
}

// MarshalJSON encodes ToMap.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}

// ToMaps converts a list of entities with ToMap.
func ToMaps(entities []*Entity) []map[string]any {
	out := make([]map[string]any, len(entities))
	for i, e := range entities {
		out[i] = e.ToMap()
	}
	return out
}
