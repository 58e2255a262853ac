// Package mysql provides the MySQL dialect and adapter constructor.
package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/sqladapter"
)

// MySQL error numbers that make idempotent DDL report a conflict instead
// of a no-op.
const (
	errTableExists   = 1050
	errDuplicateKey  = 1061
	errDuplicateName = 1826
)

// Dialect renders MySQL's spelling of the backend-specific SQL fragments.
type Dialect struct{}

var _ core.Dialect = Dialect{}

func (Dialect) Name() string {
	return "mysql"
}

func (Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) Placeholder(ordinal int) string {
	return "?"
}

func (Dialect) FormatTimestamp(t time.Time) string {
	return core.FormatTimestampUTC(t)
}

func (d Dialect) SerialPrimaryKeyColumn() string {
	return d.QuoteIdentifier("id") + " BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
}

func (Dialect) TextType() string {
	return "LONGTEXT"
}

func (Dialect) IndexableTextType() string {
	// InnoDB caps index keys at 3072 bytes; 768 utf8mb4 characters fit.
	return "VARCHAR(768)"
}

func (Dialect) MaxIndexableValueRunes() int {
	return 768
}

func (Dialect) NumericCast(expr string) string {
	return "CAST(" + expr + " AS DECIMAL(38,10))"
}

func (Dialect) LikeEscapeClause() string {
	// MySQL strings treat backslash as an escape, so the literal holding
	// the escape character doubles it.
	return " ESCAPE '\\\\'"
}

func (Dialect) LimitOffsetClause(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (d Dialect) CreateTableIfNotExists(table, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), body)
}

func (d Dialect) CreateIndexIfNotExists(index, table, column string) string {
	// MySQL has no CREATE INDEX IF NOT EXISTS; the adapter swallows the
	// duplicate-key-name error instead.
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		d.QuoteIdentifier(index), d.QuoteIdentifier(table), d.QuoteIdentifier(column))
}

func (d Dialect) DropTableIfExists(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdentifier(table))
}

// Open creates an adapter over a MySQL DSN, e.g.
// "user:pass@tcp(host:3306)/dbname".
func Open(dsn string, logger *zap.Logger) (*sqladapter.Adapter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql database: %w", err)
	}
	return sqladapter.New(db, Dialect{}, logger,
		sqladapter.WithIgnorableErrors(isIdempotentDDLConflict)), nil
}

// isIdempotentDDLConflict reports whether an error means the object the
// DDL creates already exists.
func isIdempotentDDLConflict(err error) bool {
	var myErr *driver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	switch myErr.Number {
	case errTableExists, errDuplicateKey, errDuplicateName:
		return true
	}
	return false
}
