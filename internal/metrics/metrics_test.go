package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/tavola/internal/core"
)

func TestQueryMetrics_Hook(t *testing.T) {
	m := NewQueryMetrics(prometheus.NewRegistry(), "")

	m.Hook(context.Background(), core.QueryEvent{Operation: "SELECT", Entity: "booking", Rows: 3, Duration: 2 * time.Millisecond})
	m.Hook(context.Background(), core.QueryEvent{Operation: "UPDATE", Entity: "booking", Error: errors.New("locked")})
	m.Hook(context.Background(), core.QueryEvent{Operation: "SELECT"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("booking", "select", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("booking", "update", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("raw", "select", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("booking", "select")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.QueriesTotal))
	assert.Equal(t, 3, testutil.CollectAndCount(m.QueryDuration))
}

func TestQueryMetrics_ObserveHealth(t *testing.T) {
	m := NewQueryMetrics(prometheus.NewRegistry(), "reservations")

	m.ObserveHealth(core.Health{Healthy: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseUp))
	m.ObserveHealth(core.Health{Err: errors.New("down")})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DatabaseUp))
}

func TestQueryMetrics_WiredAsHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewQueryMetrics(reg, "")

	db, err := core.Open("sqlite", ":memory:", core.WithMaxOpenConns(1), core.WithQueryHook(m.Hook))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewQuery("CREATE TABLE guests (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)").Execute()
	require.NoError(t, err)
	db.Register(core.MustSchema("guest", "guests",
		core.WithoutTimestamps(),
		core.WithoutSoftDeletes(),
		core.WithFillable("name"),
	))

	ctx := context.Background()
	_, err = db.Create(ctx, "guest", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	_, err = db.Query("guest").Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("guest", "insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("guest", "select", "ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "tavola_db_queries_total")
	assert.Contains(t, names, "tavola_db_query_duration_seconds")
}
