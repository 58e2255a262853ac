// Package index materializes flattened document leaves into per-path
// index tables. Each distinct leaf path across the whole database owns one
// physical table; the index_table_mappings table binds paths to tables.
package index

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/flatten"
	"github.com/jchristn/lattice/core/metadata"
)

// Index tables are named idx_<counter> with the counter rendered in
// lowercase base-32, so generated names never collide with the fixed
// metadata tables.
const tablePrefix = "idx_"

// allocMu serializes index-table allocation process-wide. Two concurrent
// ingests discovering the same new path must not both create a table.
var allocMu sync.Mutex

// Engine allocates index tables and builds the statements that keep them
// aligned with document writes and deletes.
type Engine struct {
	repo   *metadata.Repository
	logger *zap.Logger
}

// NewEngine creates an index engine over the metadata repository.
func NewEngine(repo *metadata.Repository, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: repo, logger: logger}
}

func tableName(counter uint64) string {
	return tablePrefix + strconv.FormatUint(counter, 32)
}

// parseTableCounter recovers the allocation counter from a generated table
// name.
func parseTableCounter(name string) (uint64, bool) {
	suffix, ok := strings.CutPrefix(name, tablePrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(suffix, 32, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// EnsureMappings guarantees every key has an index table, allocating and
// creating tables for keys never seen before. It returns the full
// key-to-table map for the requested keys plus the names of any tables it
// created. Allocation is serialized process-wide and the DDL is
// idempotent, so a crash between CREATE TABLE and the mapping insert heals
// on the next attempt.
func (e *Engine) EnsureMappings(ctx context.Context, keys []string) (map[string]string, []string, error) {
	allocMu.Lock()
	defer allocMu.Unlock()

	existing, err := e.repo.ListMappings(ctx)
	if err != nil {
		return nil, nil, err
	}
	byKey := make(map[string]string, len(existing))
	var counter uint64
	for _, m := range existing {
		byKey[m.Key] = m.TableName
		if n, ok := parseTableCounter(m.TableName); ok && n >= counter {
			counter = n + 1
		}
	}

	out := make(map[string]string, len(keys))
	var created []string
	for _, key := range keys {
		if table, ok := byKey[key]; ok {
			out[key] = table
			continue
		}
		table := tableName(counter)
		counter++
		if err := e.createIndexTable(ctx, table); err != nil {
			return nil, nil, err
		}
		if err := e.repo.InsertMapping(ctx, core.IndexTableMapping{Key: key, TableName: table}); err != nil {
			return nil, nil, err
		}
		byKey[key] = table
		out[key] = table
		created = append(created, table)
		e.logger.Debug("Allocated index table",
			zap.String("key", key), zap.String("table", table))
	}
	return out, created, nil
}

func (e *Engine) createIndexTable(ctx context.Context, table string) error {
	d := e.repo.Adapter()
	q := d.QuoteIdentifier
	body := fmt.Sprintf("%s, %s VARCHAR(64) NOT NULL, %s VARCHAR(64) NOT NULL, %s %s",
		d.SerialPrimaryKeyColumn(),
		q("documentid"), q("collectionid"),
		q("value"), d.IndexableTextType())
	if err := d.Execute(ctx, d.CreateTableIfNotExists(table, body)); err != nil {
		return &core.BackendError{Op: "create index table " + table, Err: err}
	}
	for _, col := range []string{"value", "documentid", "collectionid"} {
		stmt := d.CreateIndexIfNotExists("ix_"+table+"_"+col, table, col)
		if err := d.Execute(ctx, stmt); err != nil {
			return &core.BackendError{Op: "create index on " + table, Err: err}
		}
	}
	return nil
}

// indexedKeys returns the distinct leaf paths of the document that the
// collection's indexing mode selects, in first-seen order.
func (e *Engine) indexedKeys(ctx context.Context, col *core.Collection, leaves []flatten.LeafRecord) ([]string, error) {
	if col.IndexingMode == core.IndexingNone {
		return nil, nil
	}

	var selected map[string]bool
	if col.IndexingMode == core.IndexingSelective {
		fields, err := e.repo.ListIndexedFields(ctx, col.ID)
		if err != nil {
			return nil, err
		}
		selected = make(map[string]bool, len(fields))
		for _, f := range fields {
			selected[f.FieldPath] = true
		}
	}

	seen := make(map[string]bool, len(leaves))
	keys := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		if seen[leaf.Path] {
			continue
		}
		seen[leaf.Path] = true
		if selected != nil && !selected[leaf.Path] {
			continue
		}
		keys = append(keys, leaf.Path)
	}
	return keys, nil
}

// InsertStatements builds the index-row inserts for one document's leaves,
// allocating index tables as needed. A JSON null leaf inserts a row with a
// SQL NULL value. The returned statements join the document's metadata
// inserts in one transaction; createdTables reports any tables allocated
// along the way.
func (e *Engine) InsertStatements(ctx context.Context, col *core.Collection, docID string, leaves []flatten.LeafRecord) (stmts []core.Statement, createdTables []string, err error) {
	keys, err := e.indexedKeys(ctx, col, leaves)
	if err != nil {
		return nil, nil, err
	}
	if len(keys) == 0 {
		return nil, nil, nil
	}

	mappings, created, err := e.EnsureMappings(ctx, keys)
	if err != nil {
		return nil, nil, err
	}

	d := e.repo.Adapter()
	for _, leaf := range leaves {
		table, ok := mappings[leaf.Path]
		if !ok {
			continue
		}
		var value any
		if !leaf.IsNull() {
			// Backends whose index keys cap the value column store a prefix;
			// the planner clamps its literals the same way.
			value = core.ClampIndexValue(d, *leaf.Value)
		}
		stmts = append(stmts, core.Statement{
			SQL: fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s)",
				d.QuoteIdentifier(table),
				d.QuoteIdentifier("documentid"), d.QuoteIdentifier("collectionid"),
				d.QuoteIdentifier("value"),
				core.PlaceholderList(d, 1, 3)),
			Args: []any{docID, col.ID, value},
		})
	}
	return stmts, created, nil
}

// DeleteStatements builds the deletes that remove one document's rows from
// every index table its schema could have touched. The document's schema
// lists its leaf paths, and the mapping table names the tables.
func (e *Engine) DeleteStatements(ctx context.Context, docID, schemaID string) ([]core.Statement, error) {
	keys, err := e.repo.SchemaElementKeys(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	mappings, err := e.repo.MappingsForKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	d := e.repo.Adapter()
	tables := sortedTables(mappings)
	stmts := make([]core.Statement, 0, len(tables))
	for _, table := range tables {
		stmts = append(stmts, core.Statement{
			SQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
				d.QuoteIdentifier(table),
				d.QuoteIdentifier("documentid"), d.Placeholder(1)),
			Args: []any{docID},
		})
	}
	return stmts, nil
}

// ClearCollectionStatements builds the deletes that remove every index row
// of a collection across all mapped tables. Collection deletion and
// rebuild both start here.
func (e *Engine) ClearCollectionStatements(ctx context.Context, collectionID string) ([]core.Statement, error) {
	mappings, err := e.repo.ListMappings(ctx)
	if err != nil {
		return nil, err
	}
	d := e.repo.Adapter()
	stmts := make([]core.Statement, 0, len(mappings))
	for _, m := range mappings {
		stmts = append(stmts, core.Statement{
			SQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
				d.QuoteIdentifier(m.TableName),
				d.QuoteIdentifier("collectionid"), d.Placeholder(1)),
			Args: []any{collectionID},
		})
	}
	return stmts, nil
}

// sortedTables returns the distinct table names of a mapping set in a
// stable order.
func sortedTables(mappings map[string]string) []string {
	seen := make(map[string]bool, len(mappings))
	tables := make([]string, 0, len(mappings))
	for _, t := range mappings {
		if seen[t] {
			continue
		}
		seen[t] = true
		tables = append(tables, t)
	}
	// Mapping iteration order is random; pin it so transactions touch
	// tables in a consistent order.
	sort.Strings(tables)
	return tables
}
