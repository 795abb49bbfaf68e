//go:build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite"

	"github.com/coregx/tavola"
)

// DatabaseSetup holds a handle and the container behind it, if any.
type DatabaseSetup struct {
	DB        *tavola.DB
	Container testcontainers.Container
	Dialect   string
}

// Close releases the handle and stops the container.
func (ds *DatabaseSetup) Close() {
	if ds.DB != nil {
		ds.DB.Close() //nolint:errcheck
	}
	if ds.Container != nil {
		ds.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

var handleOptions = []tavola.Option{tavola.WithTablePrefix("wp_fson_")}

// SetupPostgreSQLTestDB starts PostgreSQL in Docker, or connects to
// POSTGRES_TEST_DSN when it is set. driver is "postgres" or "pgx".
func SetupPostgreSQLTestDB(t *testing.T, driver string) *DatabaseSetup {
	ctx := context.Background()

	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		db, err := tavola.Open(driver, dsn, handleOptions...)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, Dialect: "postgres"}
	}

	pgContainer, err := postgres.Run(
		ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("tavola"),
		postgres.WithUsername("tavola"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := tavola.Open(driver, dsn, handleOptions...)
	require.NoError(t, err)
	return &DatabaseSetup{DB: db, Container: pgContainer, Dialect: "postgres"}
}

// SetupMySQLTestDB starts MySQL in Docker, or connects to MYSQL_TEST_DSN
// when it is set. parseTime is always enabled.
func SetupMySQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	withParseTime := func(dsn string) string {
		if strings.Contains(dsn, "parseTime=true") {
			return dsn
		}
		if strings.Contains(dsn, "?") {
			return dsn + "&parseTime=true"
		}
		return dsn + "?parseTime=true"
	}

	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		db, err := tavola.Open("mysql", withParseTime(dsn), handleOptions...)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, Dialect: "mysql"}
	}

	mysqlContainer, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase("tavola"),
		mysql.WithUsername("tavola"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	dsn, err := mysqlContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := tavola.Open("mysql", withParseTime(dsn), handleOptions...)
	require.NoError(t, err)
	return &DatabaseSetup{DB: db, Container: mysqlContainer, Dialect: "mysql"}
}

// SetupSQLiteTestDB opens an in-memory SQLite database on one connection.
func SetupSQLiteTestDB(t *testing.T) *DatabaseSetup {
	opts := append([]tavola.Option{tavola.WithMaxOpenConns(1)}, handleOptions...)
	db, err := tavola.Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)
	return &DatabaseSetup{DB: db, Dialect: "sqlite"}
}

// setups returns a constructor per database under test.
func setups() map[string]func(*testing.T) *DatabaseSetup {
	return map[string]func(*testing.T) *DatabaseSetup{
		"sqlite":   SetupSQLiteTestDB,
		"mysql":    SetupMySQLTestDB,
		"postgres": func(t *testing.T) *DatabaseSetup { return SetupPostgreSQLTestDB(t, "postgres") },
		"pgx":      func(t *testing.T) *DatabaseSetup { return SetupPostgreSQLTestDB(t, "pgx") },
	}
}
