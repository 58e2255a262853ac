package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/jchristn/lattice/core"
)

// ListMappings returns every index-table mapping, oldest first.
func (r *Repository) ListMappings(ctx context.Context) ([]core.IndexTableMapping, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC",
		d.QuoteIdentifier("index_table_mappings"), d.QuoteIdentifier("createdutc"))
	rows, err := d.Query(ctx, stmt)
	if err != nil {
		return nil, &core.BackendError{Op: "list index table mappings", Err: err}
	}
	out := make([]core.IndexTableMapping, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.IndexTableMapping{
			Key:       stringVal(row, "mapkey"),
			TableName: stringVal(row, "tablename"),
		})
	}
	return out, nil
}

// GetMapping looks up the physical table for one leaf path.
func (r *Repository) GetMapping(ctx context.Context, key string) (*core.IndexTableMapping, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		d.QuoteIdentifier("index_table_mappings"),
		d.QuoteIdentifier("mapkey"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, key)
	if err != nil {
		return nil, &core.BackendError{Op: "get index table mapping", Err: err}
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	return &core.IndexTableMapping{
		Key:       stringVal(rows[0], "mapkey"),
		TableName: stringVal(rows[0], "tablename"),
	}, nil
}

// MappingsForKeys fetches the mappings of many leaf paths in one query.
func (r *Repository) MappingsForKeys(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		d.QuoteIdentifier("index_table_mappings"),
		d.QuoteIdentifier("mapkey"), core.PlaceholderList(d, 1, len(keys)))
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := d.Query(ctx, stmt, args...)
	if err != nil {
		return nil, &core.BackendError{Op: "mappings for keys", Err: err}
	}
	for _, row := range rows {
		out[stringVal(row, "mapkey")] = stringVal(row, "tablename")
	}
	return out, nil
}

// InsertMapping records a newly allocated index table.
func (r *Repository) InsertMapping(ctx context.Context, m core.IndexTableMapping) error {
	d := r.db
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier("index_table_mappings"),
		quoteJoin(d, "mapkey", "tablename", "createdutc"),
		core.PlaceholderList(d, 1, 3))
	if err := d.Execute(ctx, stmt, m.Key, m.TableName, d.FormatTimestamp(time.Now())); err != nil {
		return &core.BackendError{Op: "insert index table mapping", Err: err}
	}
	return nil
}

// DeleteMapping removes the mapping for one leaf path. Only rebuild with
// dropUnusedIndexes does this.
func (r *Repository) DeleteMapping(ctx context.Context, key string) error {
	d := r.db
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		d.QuoteIdentifier("index_table_mappings"),
		d.QuoteIdentifier("mapkey"), d.Placeholder(1))
	if err := d.Execute(ctx, stmt, key); err != nil {
		return &core.BackendError{Op: "delete index table mapping", Err: err}
	}
	return nil
}
