package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/coregx/tavola"
	_ "modernc.org/sqlite"
)

const ddl = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT, created_at TEXT, updated_at TEXT, deleted_at TEXT
);
CREATE TABLE bookings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER, party_size INTEGER, status TEXT,
	created_at TEXT, updated_at TEXT, deleted_at TEXT
);
CREATE TABLE restaurant_tables (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT, created_at TEXT, updated_at TEXT, deleted_at TEXT
);
CREATE TABLE booking_tables (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	booking_id INTEGER, restaurant_table_id INTEGER, seat_label TEXT
)`

func setupDB(b *testing.B, bookings int) *tavola.DB {
	b.Helper()
	db, err := tavola.Open("sqlite", ":memory:", tavola.WithMaxOpenConns(1))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close() })

	db.Register(
		tavola.MustSchema("customer", "customers",
			tavola.WithFillable("name"),
			tavola.WithRelation("bookings", tavola.HasMany("booking", "customer_id", "")),
		),
		tavola.MustSchema("booking", "bookings",
			tavola.WithFillable("customer_id", "party_size", "status"),
			tavola.WithRelation("customer", tavola.BelongsTo("customer", "customer_id", "")),
			tavola.WithRelation("tables", tavola.BelongsToMany("restaurant_table", "booking_table", "booking_id", "restaurant_table_id", "seat_label")),
		),
		tavola.MustSchema("restaurant_table", "restaurant_tables", tavola.WithFillable("label")),
		tavola.MustSchema("booking_table", "booking_tables", tavola.WithoutTimestamps(), tavola.WithoutSoftDeletes()),
	)

	for _, stmt := range strings.Split(ddl, ";") {
		if _, err := db.NewQuery(stmt).Execute(); err != nil {
			b.Fatal(err)
		}
	}

	ctx := context.Background()
	err = db.Transactional(ctx, func(tx *tavola.DB) error {
		for i := 1; i <= 10; i++ {
			if _, err := tx.Create(ctx, "restaurant_table", map[string]any{"label": fmt.Sprintf("T%d", i)}); err != nil {
				return err
			}
		}
		for i := 0; i < bookings; i++ {
			c, err := tx.Create(ctx, "customer", map[string]any{"name": fmt.Sprintf("guest %d", i)})
			if err != nil {
				return err
			}
			bk, err := tx.Create(ctx, "booking", map[string]any{"customer_id": c.Key(), "party_size": 2 + i%6, "status": "confirmed"})
			if err != nil {
				return err
			}
			tables, err := bk.BelongsToMany("tables")
			if err != nil {
				return err
			}
			if _, err := tables.Sync(ctx, 1+i%10, 1+(i+3)%10); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return db
}

func BenchmarkCompile(b *testing.B) {
	db := setupDB(b, 0)

	b.Run("Conditions", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = db.Query("booking").
				Where("status", "confirmed").
				Where("party_size", ">=", 4).
				WhereIn("customer_id", []any{1, 2, 3}).
				OrWhere("status", "seated").
				OrderBy("id", "desc").
				Limit(20).
				ToSQL()
		}
	})

	b.Run("WhereHasTwoHops", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = db.Query("customer").
				WhereHas("bookings.tables", func(t *tavola.Builder) { t.Where("label", "T1") }).
				ToSQL()
		}
	})
}

func BenchmarkEagerLoad(b *testing.B) {
	db := setupDB(b, 200)
	ctx := context.Background()

	b.Run("NoRelations", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := db.Query("booking").Get(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("CustomerAndTables", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := db.Query("booking").With("customer", "tables").Get(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("LazyPerRow", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			rows, err := db.Query("booking").Limit(50).Get(ctx)
			if err != nil {
				b.Fatal(err)
			}
			for _, r := range rows {
				if _, err := r.RelatedMany(ctx, "tables"); err != nil {
					b.Fatal(err)
				}
			}
		}
	})
}

func BenchmarkPivotSync(b *testing.B) {
	db := setupDB(b, 1)
	ctx := context.Background()
	booking, err := db.Query("booking").FindOrFail(ctx, 1)
	if err != nil {
		b.Fatal(err)
	}
	tables, err := booking.BelongsToMany("tables")
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tables.Sync(ctx, 1+i%10, 1+(i+5)%10); err != nil {
			b.Fatal(err)
		}
	}
}
