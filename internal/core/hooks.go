package core

import (
	"context"
	"time"
)

// QueryEvent contains information about an executed statement.
// It is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the statement as sent to the driver.
	SQL string
	// Args are the bound parameters.
	Args []any
	// Duration is how long the statement took.
	Duration time.Duration
	// Rows is the number of rows returned (SELECT) or affected (writes).
	Rows int64
	// Error is the execution error, nil on success.
	Error error
	// Operation is SELECT, INSERT, UPDATE, DELETE or UNKNOWN.
	Operation string
	// Table is the primary table of a builder query, empty for raw queries.
	Table string
	// Entity is the registered entity name of a builder query.
	Entity string
}

// QueryHook is a callback invoked after each statement.
//
// Example:
//
//	db, _ := tavola.Open("sqlite", ":memory:",
//	    tavola.WithQueryHook(func(ctx context.Context, e tavola.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

func (db *DB) invokeHooks(ctx context.Context, event QueryEvent) {
	for _, hook := range db.hooks {
		hook(ctx, event)
	}
}
