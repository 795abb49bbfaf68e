package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuilder_Aggregates(t *testing.T) {
	db, _ := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	count, err := db.Query("order").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	sum, err := db.Query("order").Sum(ctx, "total")
	require.NoError(t, err)
	assert.InDelta(t, 130.0, sum, 0.001)

	avg, err := db.Query("order").Avg(ctx, "total")
	require.NoError(t, err)
	assert.InDelta(t, 65.0, avg, 0.001)

	minTotal, err := db.Query("order").Min(ctx, "total")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, minTotal, 0.001)

	maxTotal, err := db.Query("order").Where("booking_id", 1).Max(ctx, "total")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, maxTotal, 0.001)

	distinct, err := db.Query("booking").SumDistinct(ctx, "customer_id")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, distinct, 0.001)

	empty, err := db.Query("order").Where("total", ">", 1000).Sum(ctx, "total")
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestBuilder_AggregateWithGroupBy(t *testing.T) {
	db, _ := newTestDB(t)
	seed(t, db)

	b := db.Query("order_item").GroupBy("order_id")
	sql, args := b.aggregateSQL("SUM", b.quoteAggregateColumn("qty"))
	assert.Equal(t, `SELECT SUM(agg_val) FROM (SELECT SUM("qty") AS agg_val FROM order_items GROUP BY order_id) _agg`, sql)
	assert.Empty(t, args)

	total, err := db.Query("order_item").GroupBy("order_id").Sum(context.Background(), "qty")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, total, 0.001)
}

func TestBuilder_ExistsValuePluck(t *testing.T) {
	db, _ := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	ok, err := db.Query("booking").Where("status", "pending").Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Query("booking").Where("status", "cancelled").Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	name, err := db.Query("customer").OrderBy("id", "DESC").Value(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Grace", name)

	statuses, err := db.Query("booking").OrderBy("id").Pluck(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, []any{"confirmed", "pending", "confirmed"}, statuses)

	labels, err := db.Query("restaurant_table").PluckKeyed(ctx, "label", "id")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "T1", "2": "T2", "3": "T3", "4": "T4"}, labels)

	_, err = db.Query("booking").PluckKeyed(ctx, "id", "status")
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestBuilder_Paginate(t *testing.T) {
	db, log := newTestDB(t)
	seed(t, db)
	ctx := context.Background()

	log.reset()
	page, err := db.Query("booking").With("customer").OrderBy("id").Paginate(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.PerPage)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.LastPage)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(3), page.Data[0].Key())
	assert.Equal(t, 3, log.selects()) // count, page, customers

	customer, err := page.Data[0].RelatedOne(ctx, "customer")
	require.NoError(t, err)
	assert.Equal(t, "Grace", customer.String("name"))

	encoded, err := json.Marshal(page)
	require.NoError(t, err)
	doc := gjson.ParseBytes(encoded)
	assert.Equal(t, int64(3), doc.Get("total").Int())
	assert.Equal(t, int64(2), doc.Get("last_page").Int())
	assert.Equal(t, "Grace", doc.Get("data.0.customer.name").String())

	first, err := db.Query("booking").Paginate(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentPage)
	assert.Equal(t, 1, first.LastPage)
	assert.Len(t, first.Data, 3)

	none, err := db.Query("booking").Where("status", "cancelled").Paginate(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), none.Total)
	assert.Equal(t, 0, none.LastPage)
	assert.NotNil(t, none.Data)
}
