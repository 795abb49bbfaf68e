package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastAttribute(t *testing.T) {
	at := time.Date(2026, 3, 20, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		cast CastType
		want any
	}{
		{"int from string", "42", CastInt, int64(42)},
		{"int from float string", "4.9", CastInt, int64(4)},
		{"int from bytes", []byte("7"), CastInt, int64(7)},
		{"int from garbage", "many", CastInt, int64(0)},
		{"float from string", "12.50", CastFloat, 12.5},
		{"float from int", int64(3), CastFloat, 3.0},
		{"string from int", int64(9), CastString, "9"},
		{"bool from yes", "yes", CastBool, true},
		{"bool from zero", int64(0), CastBool, false},
		{"array from json", `["a",1]`, CastArray, []any{"a", float64(1)}},
		{"array from json string", `"window seat"`, CastArray, "window seat"},
		{"array from invalid json keeps text", `[`, CastArray, "["},
		{"array from plain text keeps text", "birthday", CastArray, "birthday"},
		{"datetime from storage layout", "2026-03-20 20:00:00", CastDatetime, at},
		{"datetime from rfc3339", "2026-03-20T20:00:00Z", CastDatetime, at},
		{"datetime zero value", zeroDatetime, CastDatetime, nil},
		{"datetime unparsable", "soon", CastDatetime, "soon"},
		{"nil stays nil", nil, CastInt, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := castAttribute(tt.in, tt.cast)
			if want, ok := tt.want.(time.Time); ok {
				require.IsType(t, time.Time{}, got)
				assert.True(t, want.Equal(got.(time.Time)))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCastForStorage(t *testing.T) {
	at := time.Date(2026, 3, 20, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		cast CastType
		want any
	}{
		{"bool true", "on", CastBool, 1},
		{"bool false", false, CastBool, 0},
		{"array encodes", map[string]any{"vegan": true}, CastArray, `{"vegan":true}`},
		{"array encodes string", "window seat", CastArray, `"window seat"`},
		{"array encodes json looking string", `[1,2]`, CastArray, `"[1,2]"`},
		{"array encodes bytes as string", []byte("vip"), CastArray, `"vip"`},
		{"array encodes scalar", 3, CastArray, "3"},
		{"datetime formats", at, CastDatetime, "2026-03-20 20:00:00"},
		{"datetime zero time", time.Time{}, CastDatetime, nil},
		{"datetime empty string", "", CastDatetime, nil},
		{"time formats clock", at, CastTime, "20:00:00"},
		{"int", "12", CastInt, int64(12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := castForStorage(tt.in, tt.cast)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := castForStorage(make(chan int), CastArray)
	assert.Error(t, err)
}

func TestAttributes(t *testing.T) {
	a := newAttributes(map[string]CastType{"seats": CastInt, "opens_at": CastTime})

	require.NoError(t, a.Set("seats", "6"))
	raw, ok := a.Raw("seats")
	require.True(t, ok)
	assert.Equal(t, int64(6), raw)
	assert.Equal(t, int64(6), a.Int("seats"))

	a.SetRaw(map[string]any{"pivot_seat_label": "window", "pivot_booking_id": int64(1), "label": "T1"}, true)
	assert.Equal(t, []string{"label", "pivot_booking_id", "pivot_seat_label", "seats"}, a.Keys())

	taken := a.TakeByPrefix("pivot_")
	assert.Equal(t, map[string]any{"seat_label": "window", "booking_id": int64(1)}, taken)
	assert.Equal(t, []string{"label", "seats"}, a.Keys())

	require.NoError(t, a.Set("opens_at", "18:30"))
	assert.Equal(t, 18, a.Time("opens_at").Hour())

	assert.True(t, a.Lookup("label").IsPresent())
	assert.True(t, a.Lookup("missing").IsAbsent())
	assert.Equal(t, "", a.String("missing"))
	assert.False(t, a.Bool("missing"))
	assert.True(t, a.Time("missing").IsZero())

	a.Delete("label")
	assert.False(t, a.Has("label"))

	snapshot := a.Map()
	snapshot["seats"] = int64(99)
	assert.Equal(t, int64(6), a.Int("seats"))
}
