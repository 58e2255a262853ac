package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jchristn/lattice/core"
)

// InsertCollection persists a new collection row.
func (r *Repository) InsertCollection(ctx context.Context, c *core.Collection) error {
	d := r.db
	labelsJSON, err := json.Marshal(c.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode collection labels: %w", err)
	}
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode collection tags: %w", err)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s) VALUES (%s)",
		d.QuoteIdentifier("collections"),
		d.QuoteIdentifier("id"), d.QuoteIdentifier("name"),
		d.QuoteIdentifier("description"), d.QuoteIdentifier("documentsdirectory"),
		d.QuoteIdentifier("labels"), d.QuoteIdentifier("tags"),
		d.QuoteIdentifier("schemaenforcementmode"), d.QuoteIdentifier("indexingmode"),
		d.QuoteIdentifier("createdutc"), d.QuoteIdentifier("lastupdateutc"),
		core.PlaceholderList(d, 1, 10))

	err = d.Execute(ctx, stmt,
		c.ID, c.Name, c.Description, c.DocumentsDirectory,
		string(labelsJSON), string(tagsJSON),
		string(c.SchemaEnforcementMode), string(c.IndexingMode),
		d.FormatTimestamp(c.CreatedUTC), d.FormatTimestamp(c.LastUpdateUTC))
	if err != nil {
		return &core.BackendError{Op: "insert collection", Err: err}
	}
	return nil
}

// GetCollection fetches one collection by id, returning core.ErrNotFound
// when no row exists.
func (r *Repository) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		d.QuoteIdentifier("collections"), d.QuoteIdentifier("id"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, id)
	if err != nil {
		return nil, &core.BackendError{Op: "get collection", Err: err}
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	return collectionFromRow(rows[0]), nil
}

// CollectionExists reports whether a collection row exists.
func (r *Repository) CollectionExists(ctx context.Context, id string) (bool, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		d.QuoteIdentifier("id"), d.QuoteIdentifier("collections"),
		d.QuoteIdentifier("id"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, id)
	if err != nil {
		return false, &core.BackendError{Op: "collection exists", Err: err}
	}
	return len(rows) > 0, nil
}

// ListCollections returns every collection, ordered by creation time.
func (r *Repository) ListCollections(ctx context.Context) ([]core.Collection, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC",
		d.QuoteIdentifier("collections"), d.QuoteIdentifier("createdutc"))
	rows, err := d.Query(ctx, stmt)
	if err != nil {
		return nil, &core.BackendError{Op: "list collections", Err: err}
	}
	out := make([]core.Collection, 0, len(rows))
	for _, row := range rows {
		out = append(out, *collectionFromRow(row))
	}
	return out, nil
}

// UpdateCollection rewrites the mutable attributes of a collection row.
func (r *Repository) UpdateCollection(ctx context.Context, c *core.Collection) error {
	d := r.db
	labelsJSON, err := json.Marshal(c.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode collection labels: %w", err)
	}
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode collection tags: %w", err)
	}

	stmt := fmt.Sprintf(
		"UPDATE %s SET %s = %s, %s = %s, %s = %s, %s = %s, %s = %s, %s = %s, %s = %s WHERE %s = %s",
		d.QuoteIdentifier("collections"),
		d.QuoteIdentifier("name"), d.Placeholder(1),
		d.QuoteIdentifier("description"), d.Placeholder(2),
		d.QuoteIdentifier("labels"), d.Placeholder(3),
		d.QuoteIdentifier("tags"), d.Placeholder(4),
		d.QuoteIdentifier("schemaenforcementmode"), d.Placeholder(5),
		d.QuoteIdentifier("indexingmode"), d.Placeholder(6),
		d.QuoteIdentifier("lastupdateutc"), d.Placeholder(7),
		d.QuoteIdentifier("id"), d.Placeholder(8))

	err = d.Execute(ctx, stmt,
		c.Name, c.Description, string(labelsJSON), string(tagsJSON),
		string(c.SchemaEnforcementMode), string(c.IndexingMode),
		d.FormatTimestamp(c.LastUpdateUTC), c.ID)
	if err != nil {
		return &core.BackendError{Op: "update collection", Err: err}
	}
	return nil
}

// DeleteCollection removes the collection row itself. Cascading through
// documents, constraints, and index rows is the lifecycle layer's job.
func (r *Repository) DeleteCollection(ctx context.Context, id string) error {
	d := r.db
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		d.QuoteIdentifier("collections"), d.QuoteIdentifier("id"), d.Placeholder(1))
	if err := d.Execute(ctx, stmt, id); err != nil {
		return &core.BackendError{Op: "delete collection", Err: err}
	}
	return nil
}

func collectionFromRow(row map[string]any) *core.Collection {
	c := &core.Collection{
		ID:                    stringVal(row, "id"),
		Name:                  stringVal(row, "name"),
		Description:           stringVal(row, "description"),
		DocumentsDirectory:    stringVal(row, "documentsdirectory"),
		SchemaEnforcementMode: core.SchemaEnforcementMode(stringVal(row, "schemaenforcementmode")),
		IndexingMode:          core.IndexingMode(stringVal(row, "indexingmode")),
		CreatedUTC:            timeVal(row, "createdutc"),
		LastUpdateUTC:         timeVal(row, "lastupdateutc"),
	}
	if s := stringVal(row, "labels"); s != "" {
		_ = json.Unmarshal([]byte(s), &c.Labels)
	}
	if s := stringVal(row, "tags"); s != "" {
		_ = json.Unmarshal([]byte(s), &c.Tags)
	}
	return c
}
