// Package tavola is an active-record layer for the reservation tables of a
// restaurant booking plugin. Entities are described by schemas, queried with
// a chainable builder, related through has-one, has-many, belongs-to and
// belongs-to-many descriptors, and eager-loaded in one query per relation
// level. It runs on MySQL, PostgreSQL and SQLite through database/sql.
package tavola

import (
	"github.com/coregx/tavola/internal/core"
	"github.com/coregx/tavola/internal/logger"
	"github.com/coregx/tavola/internal/security"
	"github.com/coregx/tavola/internal/tracer"
)

type (
	// DB is the shared database handle with its statement cache and entity registry.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Query is a raw statement bound to a DB.
	Query = core.Query
	// Builder composes conditions, ordering and limits for one entity.
	Builder = core.Builder
	// Page is one page of Paginate results.
	Page = core.Page

	// Schema describes an entity: table, keys, fillable columns, casts and relations.
	Schema = core.Schema
	// SchemaOption configures a Schema.
	SchemaOption = core.SchemaOption
	// Registry holds the registered schemas and the table prefix.
	Registry = core.Registry
	// Entity is one row of a registered schema.
	Entity = core.Entity
	// Attributes is the column store of an Entity.
	Attributes = core.Attributes
	// CastType is the semantic type of a column.
	CastType = core.CastType
	// Accessor computes a column value on read.
	Accessor = core.Accessor
	// Mutator transforms a column value on write.
	Mutator = core.Mutator
	// Scope is a global query scope.
	Scope = core.Scope

	// Relation is a relation descriptor bound to a parent entity.
	Relation = core.Relation
	// RelationDef declares a relation on a Schema.
	RelationDef = core.RelationDef
	// RelationKind enumerates the relation variants.
	RelationKind = core.RelationKind
	// BelongsToManyRelation relates entities through a pivot table.
	BelongsToManyRelation = core.BelongsToManyRelation
	// PivotRow is a desired pivot entry for SyncPivot.
	PivotRow = core.PivotRow
	// SyncOptions controls SyncPivot.
	SyncOptions = core.SyncOptions
	// SyncChanges lists the ids touched by a pivot sync.
	SyncChanges = core.SyncChanges
	// WithTree is the tree of relation paths to eager-load.
	WithTree = core.WithTree

	// QueryEvent describes an executed statement.
	QueryEvent = core.QueryEvent
	// QueryHook is called after every statement.
	QueryHook = core.QueryHook
	// Health is the result of a connection probe.
	Health = core.Health
)

// Cast types.
const (
	CastInt      = core.CastInt
	CastFloat    = core.CastFloat
	CastString   = core.CastString
	CastBool     = core.CastBool
	CastArray    = core.CastArray
	CastDatetime = core.CastDatetime
	CastTime     = core.CastTime
)

// Timestamp columns and their storage layout.
const (
	CreatedAtColumn = core.CreatedAtColumn
	UpdatedAtColumn = core.UpdatedAtColumn
	DeletedAtColumn = core.DeletedAtColumn
	DatetimeLayout  = core.DatetimeLayout
)

// Relation kinds.
const (
	KindHasOne        = core.KindHasOne
	KindHasMany       = core.KindHasMany
	KindBelongsTo     = core.KindBelongsTo
	KindBelongsToMany = core.KindBelongsToMany
	KindCustom        = core.KindCustom
)

// Re-export core functions.
var (
	Open                  = core.Open
	NewDB                 = core.NewDB
	WrapDB                = core.WrapDB
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithSensitiveFields   = core.WithSensitiveFields
	WithTracer            = core.WithTracer
	WithQueryHook         = core.WithQueryHook
	WithRawGuard          = core.WithRawGuard
	WithTablePrefix       = core.WithTablePrefix
	WithRegistry          = core.WithRegistry
	WithClock             = core.WithClock
	WithHealthCheck       = core.WithHealthCheck

	// Schemas
	NewSchema          = core.NewSchema
	MustSchema         = core.MustSchema
	NewRegistry        = core.NewRegistry
	WithPrimaryKey     = core.WithPrimaryKey
	WithoutTimestamps  = core.WithoutTimestamps
	WithoutSoftDeletes = core.WithoutSoftDeletes
	WithoutPrefix      = core.WithoutPrefix
	WithFillable       = core.WithFillable
	WithCasts          = core.WithCasts
	WithAccessor       = core.WithAccessor
	WithMutator        = core.WithMutator
	WithAppends        = core.WithAppends
	WithRelation       = core.WithRelation
	WithGlobalScope    = core.WithGlobalScope

	// Relations
	HasOne         = core.HasOne
	HasMany        = core.HasMany
	BelongsTo      = core.BelongsTo
	BelongsToMany  = core.BelongsToMany
	CustomRelation = core.CustomRelation
	IDs            = core.IDs
	NewWithTree    = core.NewWithTree
	ToMaps         = core.ToMaps

	WrapError = core.WrapError

	// Logging, tracing and the raw fragment guard
	NewLogger          = logger.New
	NewSlogLogger      = logger.NewSlogAdapter
	NewZapLogger       = logger.NewZapAdapter
	TracerFromProvider = tracer.FromProvider
	NewRawGuard        = security.NewGuard
)

// Errors returned by tavola operations. Match them with errors.Is.
var (
	ErrInvalidOperator         = core.ErrInvalidOperator
	ErrInvalidInValue          = core.ErrInvalidInValue
	ErrUnsafeMutation          = core.ErrUnsafeMutation
	ErrRecordNotFound          = core.ErrRecordNotFound
	ErrUnsupportedRelationKind = core.ErrUnsupportedRelationKind
	ErrUnsupportedChainCount   = core.ErrUnsupportedChainCount
	ErrDuplicateKey            = core.ErrDuplicateKey
	ErrUnknownEntity           = core.ErrUnknownEntity
	ErrUnknownRelation         = core.ErrUnknownRelation
	ErrTableRequired           = core.ErrTableRequired
	ErrMissingPrimaryKey       = core.ErrMissingPrimaryKey
	ErrInvalidDirection        = core.ErrInvalidDirection
	ErrNotBelongsToMany        = core.ErrNotBelongsToMany
	ErrUnsafeFragment          = core.ErrUnsafeFragment
)
