// Package sqladapter implements core.DatabaseAdapter over database/sql.
// The dialect packages (sqlite, postgres, mysql, sqlserver) construct it
// with their driver's *sql.DB and their core.Dialect.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jchristn/lattice/core"
	"go.uber.org/zap"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithIgnorableErrors installs a predicate for errors Execute may swallow.
// MySQL uses it to make index DDL idempotent, since the engine has no
// CREATE INDEX IF NOT EXISTS.
func WithIgnorableErrors(f func(error) bool) Option {
	return func(a *Adapter) { a.ignorable = f }
}

// Adapter runs statements against a *sql.DB and shapes results into the
// column-keyed rows the core consumes. It embeds the dialect so callers
// reach quoting and placeholder hooks through the same value.
type Adapter struct {
	core.Dialect

	db        *sql.DB
	logger    *zap.Logger
	ignorable func(error) bool
}

var _ core.DatabaseAdapter = (*Adapter)(nil)

// New creates an adapter over an open connection pool.
func New(db *sql.DB, dialect core.Dialect, logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{Dialect: dialect, db: db, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DB exposes the underlying pool, for callers that manage its lifecycle.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Execute runs a statement that returns no rows.
func (a *Adapter) Execute(ctx context.Context, stmt string, args ...any) error {
	if _, err := a.db.ExecContext(ctx, stmt, args...); err != nil {
		if a.ignorable != nil && a.ignorable(err) {
			a.logger.Debug("Ignoring execute error", zap.String("sql", stmt), zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Query runs a statement and returns every row as a column-keyed map.
// Driver []byte values are converted to strings so the core sees one
// representation across backends.
func (a *Adapter) Query(ctx context.Context, stmt string, args ...any) ([]map[string]any, error) {
	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return readRows(rows)
}

// ExecuteTransaction runs the statements as one transactional unit, rolling
// back on the first failure.
func (a *Adapter) ExecuteTransaction(ctx context.Context, stmts []core.Statement) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.SQL, s.Args...); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				a.logger.Warn("Rollback failed", zap.Error(rbErr))
			}
			return fmt.Errorf("failed to execute statement in transaction: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping reports whether the backend is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func readRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
