package dialects

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDialect(t *testing.T) {
	tests := []struct {
		driver string
		name   string
		quoted string
		bind   int
	}{
		{"mysql", "mysql", "`guest_name`", sqlx.QUESTION},
		{"postgres", "postgres", `"guest_name"`, sqlx.DOLLAR},
		{"pgx", "postgres", `"guest_name"`, sqlx.DOLLAR},
		{"sqlite", "sqlite", `"guest_name"`, sqlx.QUESTION},
		{"sqlite3", "sqlite", `"guest_name"`, sqlx.QUESTION},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := GetDialect(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
			assert.Equal(t, tt.quoted, d.QuoteIdentifier("guest_name"))
			assert.Equal(t, tt.bind, d.BindType())
			assert.Equal(t, tt.quoted[0], d.QuoteChar())
		})
	}
}

func TestGetDialect_Unknown(t *testing.T) {
	_, err := GetDialect("oracle")
	assert.Error(t, err)
}

func TestQuoteIdentifier_EscapesQuotes(t *testing.T) {
	my := &MySQLDialect{}
	assert.Equal(t, "`a``b`", my.QuoteIdentifier("a`b"))

	lite := &SQLiteDialect{}
	assert.Equal(t, `"a""b"`, lite.QuoteIdentifier(`a"b`))
}

func TestReturningSQL(t *testing.T) {
	assert.Equal(t, ` RETURNING "id"`, (&PostgresDialect{}).ReturningSQL("id"))
	assert.Empty(t, (&MySQLDialect{}).ReturningSQL("id"))
	assert.Empty(t, (&SQLiteDialect{}).ReturningSQL("id"))
}
