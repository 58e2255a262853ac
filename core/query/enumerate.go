package query

import (
	"context"
	"time"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/metadata"
)

// Enumerate runs a plain paged scan over documents, scoped to a collection
// when the query names one.
func (e *Executor) Enumerate(ctx context.Context, q *EnumerationQuery) (*EnumerationResult, error) {
	start := time.Now()
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	skip := q.Skip
	if skip < 0 {
		skip = 0
	}

	d := e.repo.Adapter()
	quote := d.QuoteIdentifier
	order, err := orderClause(d, q.Ordering)
	if err != nil {
		return nil, err
	}

	cb := newBuilder(d)
	cb.write("SELECT COUNT(*) AS " + quote("total") + " FROM " + quote("documents"))
	if q.CollectionID != "" {
		cb.write(" WHERE " + quote("collectionid") + " = " + cb.arg(q.CollectionID))
	}
	countRows, err := d.Query(ctx, cb.text.String(), cb.args...)
	if err != nil {
		return nil, &core.BackendError{Op: "enumeration count", Err: err}
	}
	total := rowCount(countRows)

	pb := newBuilder(d)
	pb.write("SELECT * FROM " + quote("documents"))
	if q.CollectionID != "" {
		pb.write(" WHERE " + quote("collectionid") + " = " + pb.arg(q.CollectionID))
	}
	pb.write(" " + order + " " + d.LimitOffsetClause(maxResults, skip))
	rows, err := d.Query(ctx, pb.text.String(), pb.args...)
	if err != nil {
		return nil, &core.BackendError{Op: "enumeration page", Err: err}
	}

	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, metadata.DocumentFromRow(row))
	}

	remaining := total - skip - len(docs)
	if remaining < 0 {
		remaining = 0
	}
	return &EnumerationResult{
		Success:          true,
		Timestamp:        Timestamp{Start: start.UTC(), End: time.Now().UTC()},
		MaxResults:       maxResults,
		EndOfResults:     remaining == 0,
		TotalRecords:     total,
		RecordsRemaining: remaining,
		Objects:          docs,
	}, nil
}
