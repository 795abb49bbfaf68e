package dialects

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteChar returns the double quote.
func (d *SQLiteDialect) QuoteChar() byte { return '"' }

// BindType keeps "?" placeholders.
func (d *SQLiteDialect) BindType() int { return sqlx.QUESTION }

// ReturningSQL is empty: the driver reports ids through LastInsertId.
func (d *SQLiteDialect) ReturningSQL(_ string) string { return "" }
