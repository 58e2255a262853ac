// Package metadata implements the repository over Lattice's fixed tables:
// collections, documents, schemas, schema_elements, labels, tags,
// field_constraints, indexed_fields, and index_table_mappings. All SQL is
// parameterized and funnels identifiers through the adapter's dialect.
package metadata

import (
	"strconv"
	"time"

	"github.com/jchristn/lattice/core"
	"go.uber.org/zap"
)

// Repository provides typed CRUD over the fixed metadata tables. It holds
// no state beyond the adapter; instances are safe for concurrent use.
type Repository struct {
	db     core.DatabaseAdapter
	logger *zap.Logger
}

// NewRepository creates a repository over the given adapter.
func NewRepository(db core.DatabaseAdapter, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// Adapter exposes the underlying adapter for components that assemble their
// own statements (the index engine, the search planner).
func (r *Repository) Adapter() core.DatabaseAdapter {
	return r.db
}

// stringVal reads a column as a string, tolerating []byte from drivers.
func stringVal(row map[string]any, col string) string {
	switch v := row[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return ""
	}
}

// nullableString reads a column as *string, nil for SQL NULL.
func nullableString(row map[string]any, col string) *string {
	if row[col] == nil {
		return nil
	}
	s := stringVal(row, col)
	return &s
}

// int64Val reads a column as int64 across driver representations.
func int64Val(row map[string]any, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// float64Val reads a column as float64 across driver representations.
func float64Val(row map[string]any, col string) float64 {
	switch v := row[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// boolVal reads a 0/1 or native boolean column.
func boolVal(row map[string]any, col string) bool {
	switch v := row[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []byte:
		return string(v) == "1" || string(v) == "true"
	case string:
		return v == "1" || v == "true"
	default:
		return false
	}
}

// timeVal reads a canonical timestamp column, returning the zero time when
// the value is absent or malformed.
func timeVal(row map[string]any, col string) time.Time {
	s := stringVal(row, col)
	if s == "" {
		return time.Time{}
	}
	t, err := core.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// boolArg renders a boolean as the 0/1 stored in SMALLINT columns.
func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}
