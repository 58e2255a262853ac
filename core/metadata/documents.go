package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jchristn/lattice/core"
)

// InsertDocumentStatement builds the parameterized insert for a document
// row. Ingest collects it with the label, tag, and index-row inserts into
// one transactional unit.
func (r *Repository) InsertDocumentStatement(doc *core.Document) core.Statement {
	d := r.db
	return core.Statement{
		SQL: fmt.Sprintf(
			"INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s) VALUES (%s)",
			d.QuoteIdentifier("documents"),
			d.QuoteIdentifier("id"), d.QuoteIdentifier("collectionid"),
			d.QuoteIdentifier("schemaid"), d.QuoteIdentifier("name"),
			d.QuoteIdentifier("contentlength"), d.QuoteIdentifier("sha256hash"),
			d.QuoteIdentifier("createdutc"), d.QuoteIdentifier("lastupdateutc"),
			core.PlaceholderList(d, 1, 8)),
		Args: []any{
			doc.ID, doc.CollectionID, doc.SchemaID, doc.Name,
			doc.ContentLength, doc.SHA256Hash,
			d.FormatTimestamp(doc.CreatedUTC), d.FormatTimestamp(doc.LastUpdateUTC),
		},
	}
}

// InsertLabelStatement builds the insert for one document label row.
func (r *Repository) InsertLabelStatement(docID, collectionID, value string) core.Statement {
	d := r.db
	return core.Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s)",
			d.QuoteIdentifier("labels"),
			d.QuoteIdentifier("documentid"), d.QuoteIdentifier("collectionid"),
			d.QuoteIdentifier("labelvalue"),
			core.PlaceholderList(d, 1, 3)),
		Args: []any{docID, collectionID, value},
	}
}

// InsertTagStatement builds the insert for one document tag row.
func (r *Repository) InsertTagStatement(docID, collectionID, key, value string) core.Statement {
	d := r.db
	return core.Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (%s)",
			d.QuoteIdentifier("tags"),
			d.QuoteIdentifier("documentid"), d.QuoteIdentifier("collectionid"),
			d.QuoteIdentifier("tagkey"), d.QuoteIdentifier("tagvalue"),
			core.PlaceholderList(d, 1, 4)),
		Args: []any{docID, collectionID, key, value},
	}
}

// DeleteDocumentStatements builds the deletes for a document's metadata
// rows: the document itself plus its label and tag rows. Index-table rows
// are the index engine's responsibility.
func (r *Repository) DeleteDocumentStatements(docID string) []core.Statement {
	d := r.db
	del := func(table string) core.Statement {
		return core.Statement{
			SQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
				d.QuoteIdentifier(table), d.QuoteIdentifier("documentid"), d.Placeholder(1)),
			Args: []any{docID},
		}
	}
	return []core.Statement{
		del("labels"),
		del("tags"),
		{
			SQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
				d.QuoteIdentifier("documents"), d.QuoteIdentifier("id"), d.Placeholder(1)),
			Args: []any{docID},
		},
	}
}

// GetDocument fetches one document row by id, without labels or tags.
func (r *Repository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		d.QuoteIdentifier("documents"), d.QuoteIdentifier("id"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, id)
	if err != nil {
		return nil, &core.BackendError{Op: "get document", Err: err}
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	doc := DocumentFromRow(rows[0])
	return &doc, nil
}

// DocumentExists reports whether a document row exists.
func (r *Repository) DocumentExists(ctx context.Context, id string) (bool, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		d.QuoteIdentifier("id"), d.QuoteIdentifier("documents"),
		d.QuoteIdentifier("id"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, id)
	if err != nil {
		return false, &core.BackendError{Op: "document exists", Err: err}
	}
	return len(rows) > 0, nil
}

// CountDocuments counts the documents in a collection.
func (r *Repository) CountDocuments(ctx context.Context, collectionID string) (int, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s WHERE %s = %s",
		d.QuoteIdentifier("total"), d.QuoteIdentifier("documents"),
		d.QuoteIdentifier("collectionid"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, collectionID)
	if err != nil {
		return 0, &core.BackendError{Op: "count documents", Err: err}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(int64Val(rows[0], "total")), nil
}

// ListDocumentIDs returns the ids of every document in a collection,
// ordered by creation time ascending.
func (r *Repository) ListDocumentIDs(ctx context.Context, collectionID string) ([]string, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s ASC",
		d.QuoteIdentifier("id"), d.QuoteIdentifier("documents"),
		d.QuoteIdentifier("collectionid"), d.Placeholder(1),
		d.QuoteIdentifier("createdutc"))
	rows, err := d.Query(ctx, stmt, collectionID)
	if err != nil {
		return nil, &core.BackendError{Op: "list document ids", Err: err}
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, stringVal(row, "id"))
	}
	return ids, nil
}

// ListDocumentsPage returns one ascending createdutc page of a collection's
// documents. Rebuild uses it to stream a collection in chunks.
func (r *Repository) ListDocumentsPage(ctx context.Context, collectionID string, limit, offset int) ([]core.Document, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s ASC %s",
		d.QuoteIdentifier("documents"),
		d.QuoteIdentifier("collectionid"), d.Placeholder(1),
		d.QuoteIdentifier("createdutc"),
		d.LimitOffsetClause(limit, offset))
	rows, err := d.Query(ctx, stmt, collectionID)
	if err != nil {
		return nil, &core.BackendError{Op: "list documents page", Err: err}
	}
	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, DocumentFromRow(row))
	}
	return docs, nil
}

// DocumentLabels returns the label set of one document.
func (r *Repository) DocumentLabels(ctx context.Context, docID string) ([]string, error) {
	byDoc, err := r.LabelsForDocuments(ctx, []string{docID})
	if err != nil {
		return nil, err
	}
	return byDoc[docID], nil
}

// DocumentTags returns the tag map of one document.
func (r *Repository) DocumentTags(ctx context.Context, docID string) (map[string]string, error) {
	byDoc, err := r.TagsForDocuments(ctx, []string{docID})
	if err != nil {
		return nil, err
	}
	return byDoc[docID], nil
}

// LabelsForDocuments fetches the labels of many documents in one query.
func (r *Repository) LabelsForDocuments(ctx context.Context, docIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(docIDs))
	if len(docIDs) == 0 {
		return out, nil
	}
	d := r.db
	stmt := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
		d.QuoteIdentifier("documentid"), d.QuoteIdentifier("labelvalue"),
		d.QuoteIdentifier("labels"),
		d.QuoteIdentifier("documentid"), core.PlaceholderList(d, 1, len(docIDs)))
	rows, err := d.Query(ctx, stmt, idArgs(docIDs)...)
	if err != nil {
		return nil, &core.BackendError{Op: "labels for documents", Err: err}
	}
	for _, row := range rows {
		id := stringVal(row, "documentid")
		out[id] = append(out[id], stringVal(row, "labelvalue"))
	}
	return out, nil
}

// TagsForDocuments fetches the tags of many documents in one query.
func (r *Repository) TagsForDocuments(ctx context.Context, docIDs []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(docIDs))
	if len(docIDs) == 0 {
		return out, nil
	}
	d := r.db
	stmt := fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s IN (%s)",
		d.QuoteIdentifier("documentid"), d.QuoteIdentifier("tagkey"),
		d.QuoteIdentifier("tagvalue"), d.QuoteIdentifier("tags"),
		d.QuoteIdentifier("documentid"), core.PlaceholderList(d, 1, len(docIDs)))
	rows, err := d.Query(ctx, stmt, idArgs(docIDs)...)
	if err != nil {
		return nil, &core.BackendError{Op: "tags for documents", Err: err}
	}
	for _, row := range rows {
		id := stringVal(row, "documentid")
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		out[id][stringVal(row, "tagkey")] = stringVal(row, "tagvalue")
	}
	return out, nil
}

// DocumentFromRow hydrates a document struct from a column-keyed row.
func DocumentFromRow(row map[string]any) core.Document {
	return core.Document{
		ID:            stringVal(row, "id"),
		CollectionID:  stringVal(row, "collectionid"),
		SchemaID:      stringVal(row, "schemaid"),
		Name:          stringVal(row, "name"),
		ContentLength: int64Val(row, "contentlength"),
		SHA256Hash:    stringVal(row, "sha256hash"),
		CreatedUTC:    timeVal(row, "createdutc"),
		LastUpdateUTC: timeVal(row, "lastupdateutc"),
	}
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// quoteJoin is a convenience for building column lists.
func quoteJoin(d core.Dialect, cols ...string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
