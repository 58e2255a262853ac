package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDialect(t *testing.T) {
	d := Dialect{}

	assert.Equal(t, "postgresql", d.Name())
	assert.Equal(t, `"documents"`, d.QuoteIdentifier("documents"))
	assert.Equal(t, `"we""ird"`, d.QuoteIdentifier(`we"ird`))
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$7", d.Placeholder(7))
	assert.Equal(t, "LIMIT 100 OFFSET 20", d.LimitOffsetClause(100, 20))
	assert.Zero(t, d.MaxIndexableValueRunes())
	assert.Equal(t,
		`CASE WHEN "value" ~ '^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$' THEN CAST("value" AS DOUBLE PRECISION) END`,
		d.NumericCast(`"value"`))
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "idx_0" (body)`, d.CreateTableIfNotExists("idx_0", "body"))
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "ix" ON "idx_0" ("value")`, d.CreateIndexIfNotExists("ix", "idx_0", "value"))
	assert.Equal(t, `DROP TABLE IF EXISTS "idx_0"`, d.DropTableIfExists("idx_0"))

	ts := time.Date(2025, 3, 9, 14, 30, 0, 123456000, time.UTC)
	assert.Equal(t, "2025-03-09 14:30:00.123456", d.FormatTimestamp(ts))
}
