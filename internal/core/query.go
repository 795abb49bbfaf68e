package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coregx/tavola/internal/tracer"
)

// Query is a compiled statement bound to a DB. Its SQL uses "?" placeholders
// and is rebound for the driver on execution.
type Query struct {
	sql    string
	params []any
	db     *DB
	ctx    context.Context
	table  string
	entity string
}

// WithContext sets the context the query executes with.
func (q *Query) WithContext(ctx context.Context) *Query {
	q.ctx = ctx
	return q
}

// SQL returns the statement rebound for the driver.
func (q *Query) SQL() string {
	return sqlx.Rebind(q.db.dialect.BindType(), q.sql)
}

// Params returns the bound parameters in placeholder order.
func (q *Query) Params() []any {
	return q.params
}

func (q *Query) context() context.Context {
	if q.ctx != nil {
		return q.ctx
	}
	if q.db.ctx != nil {
		return q.db.ctx
	}
	return context.Background()
}

// prepare returns a statement for the query. Statements inside a transaction
// are prepared on the transaction and must be closed by the caller; others
// come from the shared cache.
func (q *Query) prepare(ctx context.Context, query string) (*sql.Stmt, bool, error) {
	if q.db.tx != nil {
		stmt, err := q.db.tx.PrepareContext(ctx, query)
		if err != nil {
			return nil, false, err
		}
		return stmt, true, nil
	}

	if stmt, ok := q.db.stmtCache.Get(query); ok {
		return stmt, false, nil
	}

	stmt, err := q.db.sqlx.PrepareContext(ctx, query)
	if err != nil {
		return nil, false, err
	}
	// Another goroutine may have cached the same statement meanwhile.
	if cached, loaded := q.db.stmtCache.PutIfAbsent(query, stmt); loaded {
		_ = stmt.Close()
		return cached, false, nil
	}
	return stmt, false, nil
}

// observe logs, traces and reports one finished statement.
func (q *Query) observe(ctx context.Context, span tracer.Span, query string, start time.Time, rows int64, err error) {
	elapsed := time.Since(start)
	operation := tracer.DetectOperation(query)
	params := q.db.sanitizer.FormatParams(q.db.sanitizer.MaskParams(q.sql, q.params))

	if err != nil {
		q.db.logger.Error("query execution failed",
			"sql", query,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"database", q.db.driverName,
			"error", err,
		)
	} else {
		rowsKey := "rows"
		if operation != "SELECT" {
			rowsKey = "rows_affected"
		}
		q.db.logger.Debug("query executed",
			"sql", query,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			rowsKey, rows,
			"database", q.db.driverName,
		)
	}

	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		SQL:       query,
		Args:      q.params,
		Duration:  elapsed,
		Rows:      rows,
		Error:     err,
		Database:  q.db.driverName,
		Operation: operation,
		Table:     q.table,
		Entity:    q.entity,
	})

	q.db.invokeHooks(ctx, QueryEvent{
		SQL:       query,
		Args:      q.params,
		Duration:  elapsed,
		Rows:      rows,
		Error:     err,
		Operation: operation,
		Table:     q.table,
		Entity:    q.entity,
	})
}

// Execute runs a statement that returns no rows.
func (q *Query) Execute() (sql.Result, error) {
	ctx, span := q.db.tracer.StartSpan(q.context(), "tavola.query.execute")
	defer span.End()

	query := q.SQL()
	start := time.Now()

	stmt, needsClose, err := q.prepare(ctx, query)
	if err != nil {
		q.observe(ctx, span, query, start, 0, err)
		return nil, WrapError(err, "prepare statement")
	}
	if needsClose {
		defer func() { _ = stmt.Close() }()
	}

	result, err := stmt.ExecContext(ctx, q.params...)
	var affected int64
	if err == nil {
		affected, _ = result.RowsAffected()
	}
	q.observe(ctx, span, query, start, affected, err)
	if err != nil {
		return nil, WrapError(err, "execute statement")
	}
	return result, nil
}

// Rows runs the query and returns every row as a column map.
func (q *Query) Rows() ([]map[string]any, error) {
	ctx, span := q.db.tracer.StartSpan(q.context(), "tavola.query.rows")
	defer span.End()

	query := q.SQL()
	start := time.Now()

	stmt, needsClose, err := q.prepare(ctx, query)
	if err != nil {
		q.observe(ctx, span, query, start, 0, err)
		return nil, WrapError(err, "prepare statement")
	}
	if needsClose {
		defer func() { _ = stmt.Close() }()
	}

	rows, err := stmt.QueryContext(ctx, q.params...)
	if err != nil {
		q.observe(ctx, span, query, start, 0, err)
		return nil, WrapError(err, "run query")
	}
	defer func() { _ = rows.Close() }()

	result, err := scanMaps(rows)
	q.observe(ctx, span, query, start, int64(len(result)), err)
	if err != nil {
		return nil, WrapError(err, "scan rows")
	}
	return result, nil
}

// Row runs the query and returns the first row, or nil when there is none.
func (q *Query) Row() (map[string]any, error) {
	rows, err := q.Rows()
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Scalar returns the first column of the first row, or nil.
func (q *Query) Scalar() (any, error) {
	ctx, span := q.db.tracer.StartSpan(q.context(), "tavola.query.scalar")
	defer span.End()

	query := q.SQL()
	start := time.Now()

	stmt, needsClose, err := q.prepare(ctx, query)
	if err != nil {
		q.observe(ctx, span, query, start, 0, err)
		return nil, WrapError(err, "prepare statement")
	}
	if needsClose {
		defer func() { _ = stmt.Close() }()
	}

	rows, err := stmt.QueryContext(ctx, q.params...)
	if err != nil {
		q.observe(ctx, span, query, start, 0, err)
		return nil, WrapError(err, "run query")
	}
	defer func() { _ = rows.Close() }()

	value, found, err := scanFirstColumn(rows)
	var n int64
	if found {
		n = 1
	}
	q.observe(ctx, span, query, start, n, err)
	if err != nil {
		return nil, WrapError(err, "scan value")
	}
	return value, nil
}
