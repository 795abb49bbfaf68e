package dialects

import (
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pgx", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return pq.QuoteIdentifier(s)
}

// QuoteChar returns the double quote.
func (d *PostgresDialect) QuoteChar() byte { return '"' }

// BindType rebinds placeholders to $1, $2, ...
func (d *PostgresDialect) BindType() int { return sqlx.DOLLAR }

// ReturningSQL reads the primary key back with RETURNING.
func (d *PostgresDialect) ReturningSQL(pk string) string {
	return " RETURNING " + d.QuoteIdentifier(pk)
}
