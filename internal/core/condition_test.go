package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCondition(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		operator string
		value    any
		wantSQL  string
		wantArgs []any
	}{
		{"equality", "`status`", "=", "confirmed", "`status` = ?", []any{"confirmed"}},
		{"comparison", "`qty`", ">", 3, "`qty` > ?", []any{3}},
		{"lowercase like", "`name`", "like", "%ada%", "`name` LIKE ?", []any{"%ada%"}},
		{"collapsed spaces", "`name`", "not   like", "x%", "`name` NOT LIKE ?", []any{"x%"}},
		{"in list", "`id`", "IN", []int{1, 2, 3}, "`id` IN (?, ?, ?)", []any{1, 2, 3}},
		{"not in list", "`id`", "not in", []any{"a"}, "`id` NOT IN (?)", []any{"a"}},
		{"empty in", "`id`", "IN", []int{}, "0=1", nil},
		{"empty not in", "`id`", "NOT IN", []string{}, "1=1", nil},
		{"is null", "`deleted_at`", "IS", nil, "`deleted_at` IS NULL", nil},
		{"is not null", "`deleted_at`", "is not", nil, "`deleted_at` IS NOT NULL", nil},
		{"array value", "`id`", "IN", [2]int64{7, 8}, "`id` IN (?, ?)", []any{int64(7), int64(8)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := compileCondition(tt.column, tt.operator, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, c.sql)
			assert.Equal(t, tt.wantArgs, c.args)
		})
	}
}

func TestCompileCondition_Errors(t *testing.T) {
	_, err := compileCondition("`id`", "~", 1)
	assert.ErrorIs(t, err, ErrInvalidOperator)

	_, err = compileCondition("`id`", "IN", 5)
	assert.ErrorIs(t, err, ErrInvalidInValue)

	_, err = compileCondition("`id`", "IN", []byte("12"))
	assert.ErrorIs(t, err, ErrInvalidInValue)

	_, err = compileCondition("`id`", "NOT IN", nil)
	assert.ErrorIs(t, err, ErrInvalidInValue)
}

func TestNormalizeWhereArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []any
		op    string
		value any
	}{
		{"value only", []any{5}, "=", 5},
		{"operator first", []any{">=", 5}, ">=", 5},
		{"lowercase operator", []any{"like", "%a"}, "LIKE", "%a"},
		{"legacy order", []any{5, ">"}, ">", 5},
		{"string value with nil", []any{"Ada", nil}, "=", "Ada"},
		{"two plain values", []any{5, 6}, "=", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, value, err := normalizeWhereArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.value, value)
		})
	}

	_, _, err := normalizeWhereArgs(nil)
	assert.ErrorIs(t, err, ErrInvalidOperator)
	_, _, err = normalizeWhereArgs([]any{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidOperator)
}

func TestIsExpression(t *testing.T) {
	assert.False(t, isExpression("status"))
	assert.False(t, isExpression("party_size"))
	assert.True(t, isExpression("bookings.status"))
	assert.True(t, isExpression("`status`"))
	assert.True(t, isExpression("COUNT(*)"))
	assert.True(t, isExpression("name AS n"))
}
