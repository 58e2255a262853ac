package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/metadata"
)

// Executor plans and runs searches and enumerations. It compiles a query
// into document-id subqueries against the index tables, labels, and tags,
// intersects them, and hydrates document rows from the intersection.
type Executor struct {
	repo   *metadata.Repository
	blobs  core.DocumentBlobStore
	logger *zap.Logger
}

// NewExecutor creates an executor over the metadata repository. The blob
// store serves includeContent hydration.
func NewExecutor(repo *metadata.Repository, blobs core.DocumentBlobStore, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{repo: repo, blobs: blobs, logger: logger}
}

// sqlBuilder accumulates SQL text and its positional arguments, so
// placeholder ordinals stay correct on backends that number them.
type sqlBuilder struct {
	d    core.Dialect
	text strings.Builder
	args []any
}

func newBuilder(d core.Dialect) *sqlBuilder {
	return &sqlBuilder{d: d}
}

func (b *sqlBuilder) write(s string) {
	b.text.WriteString(s)
}

// arg registers a parameter value and returns its placeholder.
func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// preparedFilter is a search filter resolved to its physical index table.
type preparedFilter struct {
	table     string
	condition SearchCondition
	value     string
	numeric   float64
}

// prepareFilters resolves every filter's field to an index table. A field
// with no mapping has no index rows anywhere, so any query that ANDs over
// it is unsatisfiable; the second return reports that short-circuit.
func (e *Executor) prepareFilters(ctx context.Context, filters []SearchFilter) ([]preparedFilter, bool, error) {
	if len(filters) == 0 {
		return nil, false, nil
	}
	fields := make([]string, 0, len(filters))
	for _, f := range filters {
		fields = append(fields, f.Field)
	}
	mappings, err := e.repo.MappingsForKeys(ctx, fields)
	if err != nil {
		return nil, false, err
	}

	prepared := make([]preparedFilter, 0, len(filters))
	for _, f := range filters {
		table, ok := mappings[f.Field]
		if !ok {
			return nil, true, nil
		}
		pf := preparedFilter{table: table, condition: f.Condition, value: f.Value}
		switch f.Condition {
		case ConditionGreaterThan, ConditionGreaterThanOrEqualTo,
			ConditionLessThan, ConditionLessThanOrEqualTo:
			n, err := strconv.ParseFloat(f.Value, 64)
			if err != nil {
				return nil, false, core.NewValidationError(core.CodeTypeMismatch, f.Field,
					fmt.Sprintf("numeric comparison requires a numeric value, got %q", f.Value))
			}
			pf.numeric = n
		case ConditionEquals, ConditionNotEquals, ConditionIsNull, ConditionIsNotNull,
			ConditionContains, ConditionStartsWith, ConditionEndsWith, ConditionLike:
		default:
			return nil, false, &core.UnsupportedOperationError{
				Code:    "UNSUPPORTED_CONDITION",
				Message: fmt.Sprintf("unknown search condition %q", f.Condition),
			}
		}
		prepared = append(prepared, pf)
	}
	return prepared, false, nil
}

// writeIDConstraints appends the " AND id IN (subquery)" fragments for
// filters, labels, and tags to a documents-table query.
func (e *Executor) writeIDConstraints(b *sqlBuilder, collectionID string, filters []preparedFilter, labels []string, tags map[string]string) {
	q := b.d.QuoteIdentifier

	for _, f := range filters {
		b.write(" AND " + q("id") + " IN (SELECT " + q("documentid") + " FROM " + q(f.table) +
			" WHERE " + q("collectionid") + " = " + b.arg(collectionID) + " AND ")
		e.writeValuePredicate(b, f)
		b.write(")")
	}

	if len(labels) > 0 {
		b.write(" AND " + q("id") + " IN (SELECT " + q("documentid") + " FROM " + q("labels") +
			" WHERE " + q("collectionid") + " = " + b.arg(collectionID) +
			" AND " + q("labelvalue") + " IN (")
		for i, label := range labels {
			if i > 0 {
				b.write(", ")
			}
			b.write(b.arg(label))
		}
		b.write(") GROUP BY " + q("documentid") +
			" HAVING COUNT(DISTINCT " + q("labelvalue") + ") = " + b.arg(len(labels)) + ")")
	}

	if len(tags) > 0 {
		keys := make([]string, 0, len(tags))
		for k := range tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.write(" AND " + q("id") + " IN (SELECT " + q("documentid") + " FROM " + q("tags") +
				" WHERE " + q("collectionid") + " = " + b.arg(collectionID) +
				" AND " + q("tagkey") + " = " + b.arg(k) +
				" AND " + q("tagvalue") + " = " + b.arg(tags[k]) + ")")
		}
	}
}

func (e *Executor) writeValuePredicate(b *sqlBuilder, f preparedFilter) {
	value := b.d.QuoteIdentifier("value")
	switch f.condition {
	case ConditionEquals:
		// Index writers clamp stored values to the dialect's indexable cap,
		// so equality and prefix literals clamp identically here.
		b.write(value + " = " + b.arg(core.ClampIndexValue(b.d, f.value)))
	case ConditionNotEquals:
		b.write(value + " <> " + b.arg(core.ClampIndexValue(b.d, f.value)))
	case ConditionGreaterThan:
		b.write(b.d.NumericCast(value) + " > " + b.arg(f.numeric))
	case ConditionGreaterThanOrEqualTo:
		b.write(b.d.NumericCast(value) + " >= " + b.arg(f.numeric))
	case ConditionLessThan:
		b.write(b.d.NumericCast(value) + " < " + b.arg(f.numeric))
	case ConditionLessThanOrEqualTo:
		b.write(b.d.NumericCast(value) + " <= " + b.arg(f.numeric))
	case ConditionIsNull:
		// A JSON null leaf is present as a row with a SQL NULL value; an
		// absent field has no row and never matches.
		b.write(value + " IS NULL")
	case ConditionIsNotNull:
		b.write(value + " IS NOT NULL")
	case ConditionContains:
		b.write(value + " LIKE " + b.arg("%"+escapeLike(f.value)+"%") + b.d.LikeEscapeClause())
	case ConditionStartsWith:
		b.write(value + " LIKE " + b.arg(escapeLike(core.ClampIndexValue(b.d, f.value))+"%") + b.d.LikeEscapeClause())
	case ConditionEndsWith:
		b.write(value + " LIKE " + b.arg("%"+escapeLike(f.value)) + b.d.LikeEscapeClause())
	case ConditionLike:
		// The pattern is the caller's; wildcards pass through.
		b.write(value + " LIKE " + b.arg(f.value) + b.d.LikeEscapeClause())
	}
}

// escapeLike escapes LIKE wildcards and the escape character itself in a
// literal fragment.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// orderClause renders the ORDER BY for a query's ordering, defaulting to
// createdUtc descending.
func orderClause(d core.Dialect, ordering *Ordering) (string, error) {
	field := OrderByCreatedUTC
	descending := true
	if ordering != nil {
		if ordering.Field != "" {
			field = ordering.Field
		}
		descending = ordering.Descending
	}

	var column string
	switch field {
	case OrderByCreatedUTC:
		column = "createdutc"
	case OrderByLastUpdateUTC:
		column = "lastupdateutc"
	case OrderByName:
		column = "name"
	default:
		return "", &core.UnsupportedOperationError{
			Code:    "UNSUPPORTED_ORDERING",
			Message: fmt.Sprintf("unknown order field %q", field),
		}
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}
	return "ORDER BY " + d.QuoteIdentifier(column) + " " + direction, nil
}

// Search runs one structured search against a collection.
func (e *Executor) Search(ctx context.Context, col *core.Collection, q *SearchQuery) (*SearchResult, error) {
	start := time.Now()
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	skip := q.Skip
	if skip < 0 {
		skip = 0
	}

	prepared, unsatisfiable, err := e.prepareFilters(ctx, q.Filters)
	if err != nil {
		return nil, err
	}
	if unsatisfiable {
		return emptySearchResult(start, maxResults), nil
	}

	d := e.repo.Adapter()
	quote := d.QuoteIdentifier

	order, err := orderClause(d, q.Ordering)
	if err != nil {
		return nil, err
	}

	// Total over the intersection.
	cb := newBuilder(d)
	cb.write("SELECT COUNT(*) AS " + quote("total") + " FROM " + quote("documents") +
		" WHERE " + quote("collectionid") + " = " + cb.arg(col.ID))
	e.writeIDConstraints(cb, col.ID, prepared, q.Labels, q.Tags)
	countRows, err := d.Query(ctx, cb.text.String(), cb.args...)
	if err != nil {
		return nil, &core.BackendError{Op: "search count", Err: err}
	}
	total := rowCount(countRows)

	// One page of the intersection, ordered.
	pb := newBuilder(d)
	pb.write("SELECT * FROM " + quote("documents") +
		" WHERE " + quote("collectionid") + " = " + pb.arg(col.ID))
	e.writeIDConstraints(pb, col.ID, prepared, q.Labels, q.Tags)
	pb.write(" " + order + " " + d.LimitOffsetClause(maxResults, skip))
	rows, err := d.Query(ctx, pb.text.String(), pb.args...)
	if err != nil {
		return nil, &core.BackendError{Op: "search page", Err: err}
	}

	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, metadata.DocumentFromRow(row))
	}
	if err := e.hydrate(ctx, col, docs, q.IncludeContent); err != nil {
		return nil, err
	}

	remaining := total - skip - len(docs)
	if remaining < 0 {
		remaining = 0
	}
	return &SearchResult{
		Success:          true,
		Timestamp:        Timestamp{Start: start.UTC(), End: time.Now().UTC()},
		MaxResults:       maxResults,
		EndOfResults:     remaining == 0,
		TotalRecords:     total,
		RecordsRemaining: remaining,
		Documents:        docs,
	}, nil
}

// hydrate attaches labels, tags, and optionally the raw content body to a
// page of documents.
func (e *Executor) hydrate(ctx context.Context, col *core.Collection, docs []core.Document, includeContent bool) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	labels, err := e.repo.LabelsForDocuments(ctx, ids)
	if err != nil {
		return err
	}
	tags, err := e.repo.TagsForDocuments(ctx, ids)
	if err != nil {
		return err
	}
	for i := range docs {
		docs[i].Labels = labels[docs[i].ID]
		docs[i].Tags = tags[docs[i].ID]
	}

	if includeContent && e.blobs != nil {
		for i := range docs {
			body, err := e.blobs.Get(ctx, col.DocumentsDirectory, docs[i].ID)
			if err != nil {
				return fmt.Errorf("failed to read content of document %s: %w", docs[i].ID, err)
			}
			docs[i].Content = body
		}
	}
	return nil
}

func emptySearchResult(start time.Time, maxResults int) *SearchResult {
	return &SearchResult{
		Success:      true,
		Timestamp:    Timestamp{Start: start.UTC(), End: time.Now().UTC()},
		MaxResults:   maxResults,
		EndOfResults: true,
		Documents:    []core.Document{},
	}
}

func rowCount(rows []map[string]any) int {
	if len(rows) == 0 {
		return 0
	}
	switch v := rows[0]["total"].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
