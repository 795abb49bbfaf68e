package dialects

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteChar returns the backtick.
func (d *MySQLDialect) QuoteChar() byte { return '`' }

// BindType keeps "?" placeholders.
func (d *MySQLDialect) BindType() int { return sqlx.QUESTION }

// ReturningSQL is empty: MySQL reports ids through LastInsertId.
func (d *MySQLDialect) ReturningSQL(_ string) string { return "" }
