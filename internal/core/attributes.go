package core

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Attributes is the column store of an entity. Values are kept raw, as read
// from or written to the database, and cast on read using the schema casts.
type Attributes struct {
	casts  map[string]CastType
	values map[string]any
}

func newAttributes(casts map[string]CastType) *Attributes {
	return &Attributes{casts: casts, values: make(map[string]any)}
}

// Has reports whether column is present, even with a nil value.
func (a *Attributes) Has(column string) bool {
	_, ok := a.values[column]
	return ok
}

// Raw returns the stored value of column without casting.
func (a *Attributes) Raw(column string) (any, bool) {
	v, ok := a.values[column]
	return v, ok
}

// Get returns the cast value of column, or nil when absent.
func (a *Attributes) Get(column string) any {
	v, ok := a.values[column]
	if !ok {
		return nil
	}
	if t, ok := a.casts[column]; ok {
		return castAttribute(v, t)
	}
	return v
}

// Lookup returns the cast value of column when it is present and not nil.
func (a *Attributes) Lookup(column string) mo.Option[any] {
	v := a.Get(column)
	if v == nil {
		return mo.None[any]()
	}
	return mo.Some(v)
}

// Set stores value under column after applying its storage cast.
func (a *Attributes) Set(column string, value any) error {
	if t, ok := a.casts[column]; ok {
		stored, err := castForStorage(value, t)
		if err != nil {
			return WrapError(err, column)
		}
		value = stored
	}
	a.values[column] = value
	return nil
}

// SetRaw replaces or merges the raw values.
func (a *Attributes) SetRaw(values map[string]any, merge bool) {
	if !merge {
		a.values = make(map[string]any, len(values))
	}
	for k, v := range values {
		a.values[k] = v
	}
}

// Delete removes column from the store.
func (a *Attributes) Delete(column string) {
	delete(a.values, column)
}

// TakeByPrefix removes every column starting with prefix and returns them
// keyed by the remainder of their name.
func (a *Attributes) TakeByPrefix(prefix string) map[string]any {
	taken := make(map[string]any)
	for k, v := range a.values {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			taken[rest] = v
			delete(a.values, k)
		}
	}
	return taken
}

// Keys returns the stored column names, sorted.
func (a *Attributes) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the raw values.
func (a *Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Int returns column as int64, 0 when absent.
func (a *Attributes) Int(column string) int64 {
	v := a.Get(column)
	if v == nil {
		return 0
	}
	return toInt64(v)
}

// Float returns column as float64, 0 when absent.
func (a *Attributes) Float(column string) float64 {
	v := a.Get(column)
	if v == nil {
		return 0
	}
	return toFloat64(v)
}

// String returns column as a string, "" when absent.
func (a *Attributes) String(column string) string {
	return toString(a.Get(column))
}

// Bool returns column as a bool, false when absent.
func (a *Attributes) Bool(column string) bool {
	v := a.Get(column)
	if v == nil {
		return false
	}
	return toBool(v)
}

// Time returns column as a time.Time, the zero time when absent or unparsable.
func (a *Attributes) Time(column string) time.Time {
	switch x := parseDatetime(a.Get(column)).(type) {
	case time.Time:
		return x
	default:
		return time.Time{}
	}
}
