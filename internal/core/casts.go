package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CastType is the semantic type of a column.
type CastType string

// Supported cast types.
const (
	CastInt      CastType = "int"
	CastFloat    CastType = "float"
	CastString   CastType = "string"
	CastBool     CastType = "bool"
	CastArray    CastType = "array" // JSON document stored as text
	CastDatetime CastType = "datetime"
	CastTime     CastType = "time"
)

// Storage layouts for temporal columns.
const (
	DatetimeLayout = "2006-01-02 15:04:05"
	TimeLayout     = "15:04:05"
)

const zeroDatetime = "0000-00-00 00:00:00"

var datetimeLayouts = []string{
	DatetimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// castAttribute converts a raw column value to its cast type for reading.
// Nil stays nil. Values that cannot be interpreted are returned unchanged.
func castAttribute(v any, t CastType) any {
	if v == nil {
		return nil
	}
	switch t {
	case CastInt:
		return toInt64(v)
	case CastFloat:
		return toFloat64(v)
	case CastString:
		return toString(v)
	case CastBool:
		return toBool(v)
	case CastArray:
		return decodeArray(v)
	case CastDatetime:
		return parseDatetime(v)
	case CastTime:
		return parseClock(v)
	default:
		return v
	}
}

// castForStorage converts a value to the representation written to the database.
func castForStorage(v any, t CastType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case CastInt:
		return toInt64(v), nil
	case CastFloat:
		return toFloat64(v), nil
	case CastString:
		return toString(v), nil
	case CastBool:
		if toBool(v) {
			return 1, nil
		}
		return 0, nil
	case CastArray:
		if x, ok := v.([]byte); ok {
			v = string(x)
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode array attribute: %w", err)
		}
		return string(encoded), nil
	case CastDatetime:
		switch x := v.(type) {
		case time.Time:
			if x.IsZero() {
				return nil, nil
			}
			return x.Format(DatetimeLayout), nil
		case *time.Time:
			if x == nil || x.IsZero() {
				return nil, nil
			}
			return x.Format(DatetimeLayout), nil
		case string:
			if x == "" || x == zeroDatetime {
				return nil, nil
			}
			return x, nil
		}
		return v, nil
	case CastTime:
		if x, ok := v.(time.Time); ok {
			return x.Format(TimeLayout), nil
		}
		return v, nil
	default:
		return v, nil
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case []byte:
		return toInt64(string(x))
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case []byte:
		return toFloat64(string(x))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return float64(toInt64(v))
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(DatetimeLayout)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	case []byte:
		return toBool(string(x))
	case float32, float64:
		return toFloat64(x) != 0
	default:
		return toInt64(v) != 0
	}
}

func decodeArray(v any) any {
	var raw []byte
	switch x := v.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		return v
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	return decoded
}

func parseDatetime(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case []byte:
		return parseDatetime(string(x))
	case string:
		if x == "" || x == zeroDatetime {
			return nil
		}
		for _, layout := range datetimeLayouts {
			if t, err := time.ParseInLocation(layout, x, time.UTC); err == nil {
				return t
			}
		}
		return x
	default:
		return v
	}
}

func parseClock(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x
	case []byte:
		return parseClock(string(x))
	case string:
		for _, layout := range []string{TimeLayout, "15:04"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t
			}
		}
		return x
	default:
		return v
	}
}
