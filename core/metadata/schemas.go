package metadata

import (
	"context"
	"fmt"

	"github.com/jchristn/lattice/core"
)

// FindSchemaByHash looks up a schema row by its fingerprint, returning
// core.ErrNotFound when no schema with that shape has been seen.
func (r *Repository) FindSchemaByHash(ctx context.Context, hash string) (*core.Schema, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		d.QuoteIdentifier("schemas"), d.QuoteIdentifier("hash"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, hash)
	if err != nil {
		return nil, &core.BackendError{Op: "find schema by hash", Err: err}
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	s := schemaFromRow(rows[0])
	return &s, nil
}

// InsertSchema persists a schema row and its ordered elements as one
// transactional unit. Schema rows are immutable after this call.
func (r *Repository) InsertSchema(ctx context.Context, s *core.Schema, elements []core.SchemaElement) error {
	d := r.db
	stmts := make([]core.Statement, 0, 1+len(elements))
	stmts = append(stmts, core.Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.QuoteIdentifier("schemas"),
			quoteJoin(d, "id", "hash", "createdutc", "lastupdateutc"),
			core.PlaceholderList(d, 1, 4)),
		Args: []any{s.ID, s.Hash, d.FormatTimestamp(s.CreatedUTC), d.FormatTimestamp(s.LastUpdateUTC)},
	})
	for _, el := range elements {
		stmts = append(stmts, core.Statement{
			SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				d.QuoteIdentifier("schema_elements"),
				quoteJoin(d, "id", "schemaid", "position", "elementkey", "datatype", "nullable"),
				core.PlaceholderList(d, 1, 6)),
			Args: []any{el.ID, el.SchemaID, el.Position, el.Key, string(el.DataType), boolArg(el.Nullable)},
		})
	}
	if err := d.ExecuteTransaction(ctx, stmts); err != nil {
		return &core.BackendError{Op: "insert schema", Err: err}
	}
	return nil
}

// GetSchema fetches one schema row by id.
func (r *Repository) GetSchema(ctx context.Context, id string) (*core.Schema, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		d.QuoteIdentifier("schemas"), d.QuoteIdentifier("id"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, id)
	if err != nil {
		return nil, &core.BackendError{Op: "get schema", Err: err}
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	s := schemaFromRow(rows[0])
	return &s, nil
}

// ListSchemas returns every schema row, oldest first.
func (r *Repository) ListSchemas(ctx context.Context) ([]core.Schema, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC",
		d.QuoteIdentifier("schemas"), d.QuoteIdentifier("createdutc"))
	rows, err := d.Query(ctx, stmt)
	if err != nil {
		return nil, &core.BackendError{Op: "list schemas", Err: err}
	}
	out := make([]core.Schema, 0, len(rows))
	for _, row := range rows {
		out = append(out, schemaFromRow(row))
	}
	return out, nil
}

// GetSchemaElements returns a schema's elements ordered by position.
func (r *Repository) GetSchemaElements(ctx context.Context, schemaID string) ([]core.SchemaElement, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s ASC",
		d.QuoteIdentifier("schema_elements"),
		d.QuoteIdentifier("schemaid"), d.Placeholder(1),
		d.QuoteIdentifier("position"))
	rows, err := d.Query(ctx, stmt, schemaID)
	if err != nil {
		return nil, &core.BackendError{Op: "get schema elements", Err: err}
	}
	out := make([]core.SchemaElement, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.SchemaElement{
			ID:       stringVal(row, "id"),
			SchemaID: stringVal(row, "schemaid"),
			Position: int(int64Val(row, "position")),
			Key:      stringVal(row, "elementkey"),
			DataType: core.DataType(stringVal(row, "datatype")),
			Nullable: boolVal(row, "nullable"),
		})
	}
	return out, nil
}

// SchemaElementKeys returns just the distinct leaf paths of a schema. The
// delete path joins these against the mapping table to find every index
// table a document could have touched.
func (r *Repository) SchemaElementKeys(ctx context.Context, schemaID string) ([]string, error) {
	elements, err := r.GetSchemaElements(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(elements))
	seen := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		if _, dup := seen[el.Key]; dup {
			continue
		}
		seen[el.Key] = struct{}{}
		keys = append(keys, el.Key)
	}
	return keys, nil
}

func schemaFromRow(row map[string]any) core.Schema {
	return core.Schema{
		ID:            stringVal(row, "id"),
		Hash:          stringVal(row, "hash"),
		CreatedUTC:    timeVal(row, "createdutc"),
		LastUpdateUTC: timeVal(row, "lastupdateutc"),
	}
}
