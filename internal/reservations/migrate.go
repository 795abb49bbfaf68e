package reservations

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/coregx/tavola/internal/core"
)

type columnKind int

const (
	kindID columnKind = iota
	kindRef
	kindString
	kindText
	kindInt
	kindMoney
	kindDatetime
)

type column struct {
	name string
	kind columnKind
}

type tableDef struct {
	entity  string
	columns []column
}

var timestamps = []column{
	{"created_at", kindDatetime},
	{"updated_at", kindDatetime},
}

var softDeletes = []column{{"deleted_at", kindDatetime}}

func withColumns(groups ...[]column) []column {
	var out []column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// tableDefs lists the reservation tables in creation order.
var tableDefs = []tableDef{
	{Customer, withColumns([]column{
		{"id", kindID},
		{"name", kindString},
		{"email", kindString},
		{"phone", kindString},
	}, timestamps, softDeletes)},
	{Booking, withColumns([]column{
		{"id", kindID},
		{"customer_id", kindRef},
		{"reference", kindString},
		{"party_size", kindInt},
		{"status", kindString},
		{"starts_at", kindDatetime},
		{"notes", kindText},
	}, timestamps, softDeletes)},
	{Table, withColumns([]column{
		{"id", kindID},
		{"label", kindString},
		{"seats", kindInt},
		{"area", kindString},
	}, timestamps, softDeletes)},
	{BookingTable, []column{
		{"id", kindID},
		{"booking_id", kindRef},
		{"restaurant_table_id", kindRef},
		{"seat_label", kindString},
	}},
	{Order, withColumns([]column{
		{"id", kindID},
		{"booking_id", kindRef},
		{"status", kindString},
		{"total", kindMoney},
	}, timestamps, softDeletes)},
	{OrderItem, withColumns([]column{
		{"id", kindID},
		{"order_id", kindRef},
		{"name", kindString},
		{"qty", kindInt},
		{"price", kindMoney},
	}, timestamps)},
}

func flavorFor(dialect string) (sqlbuilder.Flavor, error) {
	switch dialect {
	case "mysql":
		return sqlbuilder.MySQL, nil
	case "postgres":
		return sqlbuilder.PostgreSQL, nil
	case "sqlite":
		return sqlbuilder.SQLite, nil
	default:
		return 0, fmt.Errorf("reservations: no DDL flavor for dialect %q", dialect)
	}
}

func columnType(flavor sqlbuilder.Flavor, kind columnKind) string {
	switch flavor {
	case sqlbuilder.MySQL:
		switch kind {
		case kindID:
			return "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY"
		case kindRef:
			return "BIGINT UNSIGNED NULL"
		case kindString:
			return "VARCHAR(191) NULL"
		case kindText:
			return "LONGTEXT NULL"
		case kindInt:
			return "INT NULL"
		case kindMoney:
			return "DECIMAL(10,2) NULL"
		case kindDatetime:
			return "DATETIME NULL"
		}
	case sqlbuilder.PostgreSQL:
		switch kind {
		case kindID:
			return "BIGSERIAL PRIMARY KEY"
		case kindRef:
			return "BIGINT NULL"
		case kindString:
			return "VARCHAR(191) NULL"
		case kindText:
			return "TEXT NULL"
		case kindInt:
			return "INTEGER NULL"
		case kindMoney:
			return "NUMERIC(10,2) NULL"
		case kindDatetime:
			return "TIMESTAMP NULL"
		}
	}
	switch kind {
	case kindID:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case kindRef, kindInt:
		return "INTEGER"
	case kindMoney:
		return "REAL"
	default:
		return "TEXT"
	}
}

// CreateTableSQL returns the CREATE TABLE statements for the registered
// reservation schemas of db, with the registry prefix applied.
func CreateTableSQL(db *core.DB) ([]string, error) {
	flavor, err := flavorFor(db.Dialect().Name())
	if err != nil {
		return nil, err
	}

	stmts := make([]string, 0, len(tableDefs))
	for _, def := range tableDefs {
		schema, err := db.Registry().Schema(def.entity)
		if err != nil {
			return nil, err
		}
		ctb := flavor.NewCreateTableBuilder().
			CreateTable(db.Registry().Table(schema)).
			IfNotExists()
		for _, col := range def.columns {
			ctb.Define(col.name, columnType(flavor, col.kind))
		}
		if flavor == sqlbuilder.MySQL {
			ctb.Option("DEFAULT CHARSET=utf8mb4")
		}
		sql, _ := ctb.Build()
		stmts = append(stmts, sql)
	}
	return stmts, nil
}

// Migrate creates the reservation tables that do not exist yet. The
// schemas must be registered on db.
func Migrate(ctx context.Context, db *core.DB) error {
	stmts, err := CreateTableSQL(db)
	if err != nil {
		return err
	}
	for _, sql := range stmts {
		if _, err := db.NewQuery(sql).WithContext(ctx).Execute(); err != nil {
			return core.WrapError(err, "migrate")
		}
	}
	return nil
}
