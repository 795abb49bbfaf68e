package core

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var fixedNow = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

const testDDL = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT, email TEXT,
	created_at TEXT, updated_at TEXT, deleted_at TEXT
);
CREATE TABLE bookings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER, party_size INTEGER, status TEXT, starts_at TEXT, notes TEXT,
	created_at TEXT, updated_at TEXT, deleted_at TEXT
);
CREATE TABLE restaurant_tables (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT, seats INTEGER,
	created_at TEXT, updated_at TEXT, deleted_at TEXT
);
CREATE TABLE booking_tables (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	booking_id INTEGER, restaurant_table_id INTEGER, seat_label TEXT
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	booking_id INTEGER, total REAL,
	created_at TEXT, updated_at TEXT, deleted_at TEXT
);
CREATE TABLE order_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id INTEGER, name TEXT, qty INTEGER, price REAL,
	created_at TEXT, updated_at TEXT
)`

// testSchemas returns a fresh copy of the reservation schemas used across
// the package tests.
func testSchemas() []*Schema {
	return []*Schema{
		MustSchema("customer", "customers",
			WithFillable("name", "email"),
			WithMutator("email", func(_ *Entity, v any) (any, error) {
				return strings.ToLower(toString(v)), nil
			}),
			WithAppends("display_name"),
			WithAccessor("display_name", func(e *Entity, _ any) any {
				return strings.ToUpper(e.String("name"))
			}),
			WithRelation("bookings", HasMany("booking", "customer_id", "")),
		),
		MustSchema("booking", "bookings",
			WithFillable("customer_id", "party_size", "status", "starts_at", "notes"),
			WithCasts(map[string]CastType{
				"customer_id": CastInt,
				"party_size":  CastInt,
				"starts_at":   CastDatetime,
				"notes":       CastArray,
			}),
			WithRelation("customer", BelongsTo("customer", "customer_id", "")),
			WithRelation("tables", BelongsToMany("restaurant_table", "booking_table", "booking_id", "restaurant_table_id", "seat_label")),
			WithRelation("orders", HasMany("order", "booking_id", "")),
			WithRelation("latest_order", HasOne("order", "booking_id", "")),
		),
		MustSchema("restaurant_table", "restaurant_tables",
			WithFillable("label", "seats"),
			WithCasts(map[string]CastType{"seats": CastInt}),
			WithRelation("bookings", BelongsToMany("booking", "booking_table", "restaurant_table_id", "booking_id")),
		),
		MustSchema("booking_table", "booking_tables",
			WithoutTimestamps(),
			WithoutSoftDeletes(),
			WithFillable("booking_id", "restaurant_table_id", "seat_label"),
		),
		MustSchema("order", "orders",
			WithFillable("booking_id", "total"),
			WithCasts(map[string]CastType{"booking_id": CastInt, "total": CastFloat}),
			WithRelation("items", HasMany("order_item", "order_id", "")),
			WithRelation("booking", BelongsTo("booking", "booking_id", "")),
		),
		MustSchema("order_item", "order_items",
			WithoutSoftDeletes(),
			WithFillable("order_id", "name", "qty", "price"),
			WithCasts(map[string]CastType{"order_id": CastInt, "qty": CastInt, "price": CastFloat}),
			WithRelation("order", BelongsTo("order", "order_id", "")),
		),
	}
}

// queryLog records the statements seen by a QueryHook.
type queryLog struct {
	events []QueryEvent
}

func (l *queryLog) hook(_ context.Context, e QueryEvent) {
	l.events = append(l.events, e)
}

func (l *queryLog) reset() { l.events = nil }

func (l *queryLog) selects() int {
	n := 0
	for _, e := range l.events {
		if e.Operation == "SELECT" {
			n++
		}
	}
	return n
}

// newTestDB opens an in-memory SQLite database with the reservation tables.
// A single connection keeps every statement on the same memory database.
func newTestDB(t *testing.T, opts ...Option) (*DB, *queryLog) {
	t.Helper()

	log := &queryLog{}
	opts = append([]Option{
		WithMaxOpenConns(1),
		WithClock(func() time.Time { return fixedNow }),
		WithQueryHook(log.hook),
	}, opts...)

	db, err := Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range strings.Split(testDDL, ";") {
		_, err = db.SQLX().Exec(stmt)
		require.NoError(t, err)
	}
	db.Register(testSchemas()...)
	return db, log
}

// newMySQLBuilderDB returns a handle that compiles MySQL-flavoured SQL.
// It is only used for ToSQL assertions and never executes statements.
func newMySQLBuilderDB(t *testing.T) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := WrapDB(sqlDB, "mysql")
	require.NoError(t, err)
	db.Register(testSchemas()...)
	return db
}

// seed inserts two customers, three bookings, four tables, pivot rows,
// two orders and three order items.
func seed(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	create := func(entity string, attrs map[string]any) {
		t.Helper()
		_, err := db.Create(ctx, entity, attrs)
		require.NoError(t, err)
	}

	create("customer", map[string]any{"name": "Ada", "email": "ada@example.com"})
	create("customer", map[string]any{"name": "Grace", "email": "grace@example.com"})

	create("booking", map[string]any{"customer_id": 1, "party_size": 4, "status": "confirmed", "starts_at": "2026-03-20 20:00:00"})
	create("booking", map[string]any{"customer_id": 1, "party_size": 2, "status": "pending", "starts_at": "2026-03-21 19:00:00"})
	create("booking", map[string]any{"customer_id": 2, "party_size": 6, "status": "confirmed", "starts_at": "2026-03-22 21:00:00"})

	for i, seats := range []int{2, 4, 6, 8} {
		create("restaurant_table", map[string]any{"label": "T" + string(rune('1'+i)), "seats": seats})
	}

	create("booking_table", map[string]any{"booking_id": 1, "restaurant_table_id": 1, "seat_label": "window"})
	create("booking_table", map[string]any{"booking_id": 1, "restaurant_table_id": 2, "seat_label": "aisle"})
	create("booking_table", map[string]any{"booking_id": 3, "restaurant_table_id": 3, "seat_label": "patio"})

	create("order", map[string]any{"booking_id": 1, "total": 50.0})
	create("order", map[string]any{"booking_id": 3, "total": 80.0})

	create("order_item", map[string]any{"order_id": 1, "name": "pasta", "qty": 2, "price": 12.5})
	create("order_item", map[string]any{"order_id": 1, "name": "wine", "qty": 0, "price": 25.0})
	create("order_item", map[string]any{"order_id": 2, "name": "steak", "qty": 3, "price": 26.0})
}
