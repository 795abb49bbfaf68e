// Package core provides the entity registry, query builder, relation
// resolver and eager-loading engine of tavola, together with the
// database handle that executes the statements they compile.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coregx/tavola/internal/cache"
	"github.com/coregx/tavola/internal/dialects"
	"github.com/coregx/tavola/internal/logger"
	"github.com/coregx/tavola/internal/security"
	"github.com/coregx/tavola/internal/tracer"
)

// DB is the shared database handle. It owns the statement cache and the
// entity registry and is safe for concurrent use.
type DB struct {
	sqlx       *sqlx.DB
	tx         *sqlx.Tx // set on handles passed to Transactional callbacks
	driverName string
	dialect    dialects.Dialect
	stmtCache  *cache.StmtCache
	registry   *Registry
	logger     logger.Logger
	sanitizer  *logger.Sanitizer
	tracer     tracer.Tracer
	hooks      []QueryHook
	guard      *security.Guard
	clock      func() time.Time
	health     *healthMonitor
	ctx        context.Context
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlx.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlx.SetMaxIdleConns(n)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.NewStmtCacheWithCapacity(capacity)
	}
}

// WithLogger sets the logger used for statement logging.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l == nil {
			l = &logger.NoopLogger{}
		}
		db.logger = l
	}
}

// WithSensitiveFields replaces the column names whose parameters are masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer sets the tracer that wraps every statement in a span.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		if t == nil {
			t = &tracer.NoopTracer{}
		}
		db.tracer = t
	}
}

// WithQueryHook registers a callback invoked after every statement.
// Hooks run in registration order.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		if hook != nil {
			db.hooks = append(db.hooks, hook)
		}
	}
}

// WithRawGuard replaces the guard applied to raw SQL fragments.
// A nil guard disables the check.
func WithRawGuard(g *security.Guard) Option {
	return func(db *DB) {
		db.guard = g
	}
}

// WithTablePrefix sets the prefix prepended to every registered table.
func WithTablePrefix(prefix string) Option {
	return func(db *DB) {
		db.registry.SetPrefix(prefix)
	}
}

// WithRegistry shares an existing registry with this handle.
func WithRegistry(r *Registry) Option {
	return func(db *DB) {
		if r != nil {
			db.registry = r
		}
	}
}

// WithClock sets the time source used for created_at, updated_at and deleted_at.
func WithClock(clock func() time.Time) Option {
	return func(db *DB) {
		if clock != nil {
			db.clock = clock
		}
	}
}

// NewDB opens a database handle for driverName without applying options.
func NewDB(driverName, dsn string) (*DB, error) {
	sqlxDB, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db, err := newDB(sqlxDB, driverName)
	if err != nil {
		_ = sqlxDB.Close()
		return nil, err
	}
	return db, nil
}

// Open creates a new DB instance with options.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	db, err := NewDB(driverName, dsn)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}

// WrapDB wraps an existing *sql.DB. The caller keeps ownership of sqlDB:
// Close releases cached statements but does not close the pool.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	db, err := newDB(sqlx.NewDb(sqlDB, driverName), driverName)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

func newDB(sqlxDB *sqlx.DB, driverName string) (*DB, error) {
	dialect, err := dialects.GetDialect(driverName)
	if err != nil {
		return nil, err
	}
	return &DB{
		sqlx:       sqlxDB,
		driverName: driverName,
		dialect:    dialect,
		stmtCache:  cache.NewStmtCache(),
		registry:   NewRegistry(""),
		logger:     &logger.NoopLogger{},
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
		guard:      security.NewGuard(),
		clock:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases all database resources.
func (db *DB) Close() error {
	if db.health != nil {
		db.health.shutdown()
		db.health = nil
	}
	db.stmtCache.Clear()
	return db.sqlx.Close()
}

// DriverName returns the driver the handle was opened with.
func (db *DB) DriverName() string {
	return db.driverName
}

// Dialect returns the SQL dialect of the handle.
func (db *DB) Dialect() dialects.Dialect {
	return db.dialect
}

// Registry returns the entity registry.
func (db *DB) Registry() *Registry {
	return db.registry
}

// SQLX exposes the underlying sqlx handle.
func (db *DB) SQLX() *sqlx.DB {
	return db.sqlx
}

// Register adds schemas to the registry.
func (db *DB) Register(schemas ...*Schema) {
	db.registry.Register(schemas...)
}

// WithContext returns a new DB with the given context.
func (db *DB) WithContext(ctx context.Context) *DB {
	newDB := *db
	newDB.ctx = ctx
	return &newDB
}

// Query starts a builder for the registered entity name.
// An unknown name yields a builder whose terminal operations fail with ErrUnknownEntity.
func (db *DB) Query(entity string) *Builder {
	schema, err := db.registry.Schema(entity)
	if err != nil {
		return &Builder{db: db, columns: []string{"*"}, limit: -1, offset: -1, with: NewWithTree(), err: err}
	}
	return newBuilder(db, schema)
}

// Model starts a builder for schema, registering it if needed.
func (db *DB) Model(schema *Schema) *Builder {
	if _, err := db.registry.Schema(schema.Name()); err != nil {
		db.registry.Register(schema)
	}
	return newBuilder(db, schema)
}

// New returns an empty, unsaved entity of the named type.
func (db *DB) New(entity string) (*Entity, error) {
	schema, err := db.registry.Schema(entity)
	if err != nil {
		return nil, err
	}
	return newEntity(db, schema), nil
}

// Make returns an unsaved entity filled with the fillable subset of attrs.
func (db *DB) Make(entity string, attrs map[string]any) (*Entity, error) {
	e, err := db.New(entity)
	if err != nil {
		return nil, err
	}
	if err := e.Fill(attrs); err != nil {
		return nil, err
	}
	return e, nil
}

// Create fills a new entity with attrs, saves it and returns it.
func (db *DB) Create(ctx context.Context, entity string, attrs map[string]any) (*Entity, error) {
	e, err := db.Make(entity, attrs)
	if err != nil {
		return nil, err
	}
	if err := e.Save(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// NewQuery creates a raw query. Use "?" placeholders: they are rebound
// for the driver at execution time.
func (db *DB) NewQuery(query string, params ...any) *Query {
	return &Query{
		sql:    query,
		params: params,
		db:     db,
		ctx:    db.ctx,
	}
}

// Transactional runs fn inside a transaction. The handle passed to fn routes
// every statement through the transaction; it is committed when fn returns
// nil and rolled back otherwise.
func (db *DB) Transactional(ctx context.Context, fn func(tx *DB) error) (err error) {
	if db.tx != nil {
		return fn(db)
	}

	tx, err := db.sqlx.BeginTxx(ctx, nil)
	if err != nil {
		return WrapError(err, "begin transaction")
	}

	txDB := *db
	txDB.tx = tx
	txDB.ctx = ctx

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		err = tx.Commit()
	}()

	return fn(&txDB)
}

func (db *DB) now() time.Time {
	return db.clock()
}

func (db *DB) checkRaw(fragment string) error {
	if db.guard == nil {
		return nil
	}
	if err := db.guard.Check(fragment); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeFragment, err)
	}
	return nil
}
