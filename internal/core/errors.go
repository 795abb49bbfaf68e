package core

import "errors"

// Predefined errors returned by tavola operations.
var (
	// ErrInvalidOperator is returned when a condition uses an operator outside the allow-list.
	ErrInvalidOperator = errors.New("invalid SQL operator")
	// ErrInvalidInValue is returned when IN/NOT IN receives a value that is not a slice.
	ErrInvalidInValue = errors.New("IN/NOT IN values must be a slice")
	// ErrUnsafeMutation is returned when UPDATE or DELETE would run without a WHERE clause.
	ErrUnsafeMutation = errors.New("refusing to mutate without a WHERE clause")
	// ErrRecordNotFound is returned by FindOrFail and friends when no row matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnsupportedRelationKind is returned when a relation chain hop has an unknown kind.
	ErrUnsupportedRelationKind = errors.New("unsupported relation kind")
	// ErrUnsupportedChainCount is returned when a count comparison targets a multi-hop relation path.
	ErrUnsupportedChainCount = errors.New("count comparison is only supported on single-hop relations")
	// ErrDuplicateKey is returned by PluckKeyed when the key column repeats.
	ErrDuplicateKey = errors.New("duplicate key in pluck")
	// ErrUnknownEntity is returned when a schema name is not registered.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownRelation is returned when a relation name is not defined on a schema.
	ErrUnknownRelation = errors.New("unknown relation")
	// ErrTableRequired is returned when a schema is declared without a table name.
	ErrTableRequired = errors.New("table name is required")
	// ErrMissingPrimaryKey is returned when an entity operation needs a primary key value it does not have.
	ErrMissingPrimaryKey = errors.New("entity has no primary key value")
	// ErrInvalidDirection is returned when ORDER BY receives something other than ASC or DESC.
	ErrInvalidDirection = errors.New("invalid order direction")
	// ErrNotBelongsToMany is returned when pivot operations target another relation kind.
	ErrNotBelongsToMany = errors.New("relation is not belongs-to-many")
	// ErrUnsafeFragment is returned when a raw SQL fragment is rejected by the raw guard.
	ErrUnsafeFragment = errors.New("raw SQL fragment rejected")
)

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
