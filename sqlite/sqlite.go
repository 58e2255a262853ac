// Package sqlite provides the SQLite dialect and adapter constructor.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/sqladapter"
)

// Dialect renders SQLite's spelling of the backend-specific SQL fragments.
type Dialect struct{}

var _ core.Dialect = Dialect{}

func (Dialect) Name() string {
	return "sqlite"
}

func (Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) Placeholder(ordinal int) string {
	return "?"
}

func (Dialect) FormatTimestamp(t time.Time) string {
	return core.FormatTimestampUTC(t)
}

func (d Dialect) SerialPrimaryKeyColumn() string {
	return d.QuoteIdentifier("id") + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (Dialect) TextType() string {
	return "TEXT"
}

func (Dialect) IndexableTextType() string {
	// SQLite indexes TEXT without a key-size cap.
	return "TEXT"
}

func (Dialect) MaxIndexableValueRunes() int {
	return 0
}

func (Dialect) NumericCast(expr string) string {
	return "CAST(" + expr + " AS NUMERIC)"
}

func (Dialect) LikeEscapeClause() string {
	return " ESCAPE '\\'"
}

func (Dialect) LimitOffsetClause(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (d Dialect) CreateTableIfNotExists(table, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), body)
}

func (d Dialect) CreateIndexIfNotExists(index, table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.QuoteIdentifier(index), d.QuoteIdentifier(table), d.QuoteIdentifier(column))
}

func (d Dialect) DropTableIfExists(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdentifier(table))
}

// Open creates an adapter over a SQLite database file, or an in-memory
// database when dsn is ":memory:". Foreign keys and a busy timeout are
// enabled through the DSN.
func Open(dsn string, logger *zap.Logger) (*sqladapter.Adapter, error) {
	connStr := dsn
	if !strings.Contains(connStr, "?") {
		connStr += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A shared in-memory database evaporates when its last connection
	// closes; a single connection also serializes writers on file DBs.
	db.SetMaxOpenConns(1)
	return sqladapter.New(db, Dialect{}, logger), nil
}
