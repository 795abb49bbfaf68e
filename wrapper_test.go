package tavola_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	_ "modernc.org/sqlite"

	"github.com/coregx/tavola"
)

const wrapperDDL = `CREATE TABLE wp_fson_guests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT, vip INTEGER,
	created_at TEXT, updated_at TEXT, deleted_at TEXT
)`

func guestSchema() *tavola.Schema {
	return tavola.MustSchema("guest", "guests",
		tavola.WithFillable("name", "vip"),
		tavola.WithCasts(map[string]tavola.CastType{"vip": tavola.CastBool}),
	)
}

func openGuests(t *testing.T, opts ...tavola.Option) *tavola.DB {
	t.Helper()
	opts = append([]tavola.Option{tavola.WithMaxOpenConns(1), tavola.WithTablePrefix("wp_fson_")}, opts...)
	db, err := tavola.Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewQuery(wrapperDDL).Execute()
	require.NoError(t, err)
	db.Register(guestSchema())
	return db
}

func TestDB_Wrapper(t *testing.T) {
	t.Run("Open", func(t *testing.T) {
		db, err := tavola.Open("sqlite", ":memory:")
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, "sqlite", db.DriverName())
		assert.Equal(t, "sqlite", db.Dialect().Name())
	})

	t.Run("UnknownDriverDialect", func(t *testing.T) {
		_, err := tavola.Open("oracle", "scott/tiger")
		assert.Error(t, err)
	})

	t.Run("WrapDB keeps caller pool", func(t *testing.T) {
		sqlDB, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		defer sqlDB.Close()

		db, err := tavola.WrapDB(sqlDB, "sqlite")
		require.NoError(t, err)
		assert.True(t, db.Ping(context.Background()).Healthy)
	})

	t.Run("WithContext", func(t *testing.T) {
		db := openGuests(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := db.WithContext(ctx).NewQuery("SELECT 1").Scalar()
		assert.ErrorIs(t, err, context.Canceled)

		v, err := db.NewQuery("SELECT 1").Scalar()
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})
}

func TestDB_EntityRoundTrip(t *testing.T) {
	db := openGuests(t)
	ctx := context.Background()

	g, err := db.Create(ctx, "guest", map[string]any{"name": "Ada", "vip": true})
	require.NoError(t, err)

	found, err := db.Query("guest").FindOrFail(ctx, g.Key())
	require.NoError(t, err)
	assert.True(t, found.Bool("vip"))
	raw, _ := found.Attributes().Raw("vip")
	assert.Equal(t, int64(1), raw)

	_, err = db.Query("guest").Delete(ctx)
	assert.ErrorIs(t, err, tavola.ErrUnsafeMutation)

	_, err = db.Query("table").Get(ctx)
	assert.ErrorIs(t, err, tavola.ErrUnknownEntity)
}

func TestDB_LoggerAndTracer(t *testing.T) {
	var buf bytes.Buffer
	log, err := tavola.NewLogger("json", "debug", &buf)
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	db := openGuests(t, tavola.WithLogger(log), tavola.WithTracer(tavola.TracerFromProvider(tp)))
	ctx := context.Background()
	exporter.Reset()
	buf.Reset()

	_, err = db.Query("guest").Where("name", "Ada").Get(ctx)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"msg":"query executed"`)
	assert.Contains(t, buf.String(), "wp_fson_guests")

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	attrs := make(map[string]any)
	for _, kv := range spans[len(spans)-1].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "wp_fson_guests", attrs["db.sql.table"])
	assert.Equal(t, "guest", attrs["tavola.entity"])
}

func TestDB_RawGuard(t *testing.T) {
	db := openGuests(t)
	_, _, err := db.Query("guest").WhereRaw("1=1; DROP TABLE wp_fson_guests").ToSQL()
	assert.ErrorIs(t, err, tavola.ErrUnsafeFragment)

	open := openGuests(t, tavola.WithRawGuard(nil))
	_, _, err = open.Query("guest").WhereRaw("name = 'x' -- comment").ToSQL()
	assert.NoError(t, err)
}

func TestWrapError(t *testing.T) {
	base := errors.New("boom")
	err := tavola.WrapError(base, "load booking.tables")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "load booking.tables: boom", err.Error())
	assert.NoError(t, tavola.WrapError(nil, "ignored"))
}
