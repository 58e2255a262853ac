package core

import (
	"context"
	"time"
)

// Statement is one parameterized SQL statement. Core never interpolates
// values into SQL text; everything user-supplied travels through Args.
type Statement struct {
	SQL  string
	Args []any
}

// Dialect funnels every backend-specific piece of SQL through one place:
// identifier quoting, placeholder style, timestamp rendering, and the
// handful of DDL spellings that differ between engines.
type Dialect interface {
	// Name identifies the dialect ("sqlite", "postgresql", "mysql",
	// "sqlserver").
	Name() string

	// QuoteIdentifier quotes a table or column identifier.
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter marker for the given 1-based
	// ordinal, e.g. "?" or "$3".
	Placeholder(ordinal int) string

	// FormatTimestamp renders a timestamp as the parameter value stored in
	// timestamp columns. The rendering must sort lexically in UTC.
	FormatTimestamp(t time.Time) string

	// SerialPrimaryKeyColumn returns the column clause for an
	// auto-assigned surrogate primary key named "id".
	SerialPrimaryKeyColumn() string

	// TextType returns the unbounded text column type.
	TextType() string

	// IndexableTextType returns a text column type short enough to carry a
	// secondary index. MySQL and SQL Server cap index key sizes, so this is
	// a bounded VARCHAR there.
	IndexableTextType() string

	// MaxIndexableValueRunes returns the longest leaf value, in runes, that
	// IndexableTextType can hold. Zero means unbounded. Backends with a cap
	// store values beyond it by prefix.
	MaxIndexableValueRunes() int

	// NumericCast wraps a value expression in the dialect's numeric cast,
	// used for range predicates over text-encoded leaf values.
	NumericCast(expr string) string

	// LikeEscapeClause returns the ESCAPE suffix appended to LIKE
	// predicates whose pattern escapes wildcards with a backslash.
	LikeEscapeClause() string

	// LimitOffsetClause renders pagination. An ORDER BY is always present
	// when this is emitted.
	LimitOffsetClause(limit, offset int) string

	// CreateTableIfNotExists renders idempotent table DDL from a column
	// body.
	CreateTableIfNotExists(table, body string) string

	// CreateIndexIfNotExists renders idempotent secondary-index DDL.
	CreateIndexIfNotExists(index, table, column string) string

	// DropTableIfExists renders idempotent drop DDL.
	DropTableIfExists(table string) string
}

// DatabaseAdapter is the narrow surface through which the core talks to a
// relational backend. Implementations own the connection pool; the core
// must not hold a connection across blob I/O.
type DatabaseAdapter interface {
	Dialect

	// Execute runs a statement that returns no rows.
	Execute(ctx context.Context, sql string, args ...any) error

	// Query runs a statement and returns every row as a column-keyed map.
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)

	// ExecuteTransaction runs the statements as one transactional unit,
	// rolling back on the first failure.
	ExecuteTransaction(ctx context.Context, stmts []Statement) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// DocumentBlobStore persists raw document bodies, one blob per document,
// grouped under each collection's documents directory.
type DocumentBlobStore interface {
	Put(ctx context.Context, collectionDir, docID string, data []byte) error
	Get(ctx context.Context, collectionDir, docID string) ([]byte, error)
	Delete(ctx context.Context, collectionDir, docID string) error
}
