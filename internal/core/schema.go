package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/coregx/tavola/internal/cache"
)

// Columns maintained automatically on timestamped and trashable entities.
const (
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
	DeletedAtColumn = "deleted_at"
)

// Accessor computes the value returned by Entity.Get for a column or an
// appended attribute. raw is the cast attribute value, nil for appends.
type Accessor func(e *Entity, raw any) any

// Mutator transforms a value before Entity.Set stores it.
type Mutator func(e *Entity, value any) (any, error)

// Scope adds conditions to every builder of an entity type unless the
// builder opts out with WithoutGlobalScopes.
type Scope func(b *Builder)

// Schema describes an entity type: its table, keys, casts and relations.
// A Schema is immutable once registered.
type Schema struct {
	name       string
	table      string
	unprefixed bool
	primaryKey string
	keyType    CastType
	timestamps bool
	trashable  bool
	fillable   []string
	casts      map[string]CastType
	accessors  map[string]Accessor
	mutators   map[string]Mutator
	appends    []string
	relations  map[string]RelationDef
	scopes     []Scope
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// WithPrimaryKey sets the primary key column and its semantic type.
func WithPrimaryKey(column string, keyType CastType) SchemaOption {
	return func(s *Schema) {
		s.primaryKey = column
		s.keyType = keyType
	}
}

// WithoutTimestamps disables created_at/updated_at maintenance.
func WithoutTimestamps() SchemaOption {
	return func(s *Schema) { s.timestamps = false }
}

// WithoutSoftDeletes makes Delete remove rows instead of stamping deleted_at.
func WithoutSoftDeletes() SchemaOption {
	return func(s *Schema) { s.trashable = false }
}

// WithFillable sets the columns accepted by mass assignment.
func WithFillable(columns ...string) SchemaOption {
	return func(s *Schema) { s.fillable = append(s.fillable, columns...) }
}

// WithCasts declares column casts.
func WithCasts(casts map[string]CastType) SchemaOption {
	return func(s *Schema) {
		for col, t := range casts {
			s.casts[col] = t
		}
	}
}

// WithAccessor registers a read accessor for column.
func WithAccessor(column string, fn Accessor) SchemaOption {
	return func(s *Schema) { s.accessors[column] = fn }
}

// WithMutator registers a write mutator for column.
func WithMutator(column string, fn Mutator) SchemaOption {
	return func(s *Schema) { s.mutators[column] = fn }
}

// WithAppends adds computed attributes to serialization. Each name needs an accessor.
func WithAppends(names ...string) SchemaOption {
	return func(s *Schema) { s.appends = append(s.appends, names...) }
}

// WithRelation declares a named relation.
func WithRelation(name string, def RelationDef) SchemaOption {
	return func(s *Schema) { s.relations[name] = def }
}

// WithGlobalScope adds a scope applied to every builder of the entity.
func WithGlobalScope(scope Scope) SchemaOption {
	return func(s *Schema) { s.scopes = append(s.scopes, scope) }
}

// WithoutPrefix keeps the table name free of the registry prefix.
func WithoutPrefix() SchemaOption {
	return func(s *Schema) { s.unprefixed = true }
}

// NewSchema declares an entity type backed by table.
func NewSchema(name, table string, opts ...SchemaOption) (*Schema, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("%w: entity %s", ErrTableRequired, name)
	}
	s := &Schema{
		name:       name,
		table:      table,
		primaryKey: "id",
		keyType:    CastInt,
		timestamps: true,
		trashable:  true,
		casts:      make(map[string]CastType),
		accessors:  make(map[string]Accessor),
		mutators:   make(map[string]Mutator),
		relations:  make(map[string]RelationDef),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.casts[s.primaryKey] = s.keyType
	if s.timestamps {
		s.casts[CreatedAtColumn] = CastDatetime
		s.casts[UpdatedAtColumn] = CastDatetime
	}
	if s.trashable {
		s.casts[DeletedAtColumn] = CastDatetime
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for
// package-level schema declarations.
func MustSchema(name, table string, opts ...SchemaOption) *Schema {
	s, err := NewSchema(name, table, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the entity name.
func (s *Schema) Name() string { return s.name }

// BaseTable returns the table name without prefix.
func (s *Schema) BaseTable() string { return s.table }

// PrimaryKey returns the primary key column.
func (s *Schema) PrimaryKey() string { return s.primaryKey }

// KeyType returns the semantic type of the primary key.
func (s *Schema) KeyType() CastType { return s.keyType }

// UsesTimestamps reports whether created_at/updated_at are maintained.
func (s *Schema) UsesTimestamps() bool { return s.timestamps }

// Trashable reports whether the entity soft-deletes.
func (s *Schema) Trashable() bool { return s.trashable }

// Fillable returns the mass-assignable columns.
func (s *Schema) Fillable() []string { return append([]string(nil), s.fillable...) }

// IsFillable reports whether column accepts mass assignment.
func (s *Schema) IsFillable(column string) bool {
	for _, c := range s.fillable {
		if c == column {
			return true
		}
	}
	return false
}

// CastOf returns the declared cast of column.
func (s *Schema) CastOf(column string) (CastType, bool) {
	t, ok := s.casts[column]
	return t, ok
}

// Appends returns the computed attribute names.
func (s *Schema) Appends() []string { return append([]string(nil), s.appends...) }

// Relation returns the definition of a named relation.
func (s *Schema) Relation(name string) (RelationDef, bool) {
	def, ok := s.relations[name]
	return def, ok
}

// RelationNames returns the declared relation names, sorted.
func (s *Schema) RelationNames() []string {
	names := make([]string, 0, len(s.relations))
	for name := range s.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the schemas known to a DB, the table prefix and the
// resolved relation chains used by existence queries.
type Registry struct {
	mu      sync.RWMutex
	prefix  string
	schemas map[string]*Schema
	chains  *cache.LRU[string, []chainHop]
}

// NewRegistry creates an empty registry using prefix for table names.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:  prefix,
		schemas: make(map[string]*Schema),
		chains:  cache.NewLRU[string, []chainHop](cache.DefaultCapacity, nil),
	}
}

// Register adds schemas, replacing any with the same name.
func (r *Registry) Register(schemas ...*Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemas {
		r.schemas[s.name] = s
	}
	r.chains.Clear()
}

// SetPrefix changes the table prefix.
func (r *Registry) SetPrefix(prefix string) {
	r.mu.Lock()
	r.prefix = prefix
	r.mu.Unlock()
	r.chains.Clear()
}

// Prefix returns the table prefix.
func (r *Registry) Prefix() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prefix
}

// Schema returns the schema registered under name.
func (r *Registry) Schema(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return s, nil
}

// Table returns the full table name of s.
func (r *Registry) Table(s *Schema) string {
	if s.unprefixed {
		return s.table
	}
	return r.Prefix() + s.table
}

// Names returns the registered entity names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
