package index

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/flatten"
)

// defaultRebuildPageSize is the number of documents fetched per page while
// streaming a collection during rebuild.
const defaultRebuildPageSize = 100

// RebuildOptions configures a whole-collection index rebuild.
type RebuildOptions struct {
	// DropUnusedIndexes reaps index tables left empty by the rebuild whose
	// path no collection lists among its indexed fields.
	DropUnusedIndexes bool

	// PageSize overrides the document page size.
	PageSize int

	// OnProgress, when set, is invoked after each page of documents.
	OnProgress func(core.RebuildProgress)
}

// Rebuild discards and recreates every index row of a collection from the
// stored document bodies. Documents whose body cannot be read or reparsed
// are reported in the result's Errors and skipped; the rebuild continues
// past them.
func (e *Engine) Rebuild(ctx context.Context, col *core.Collection, blobs core.DocumentBlobStore, opts RebuildOptions) (*core.IndexRebuildResult, error) {
	start := time.Now()
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultRebuildPageSize
	}
	result := &core.IndexRebuildResult{}
	d := e.repo.Adapter()

	total, err := e.repo.CountDocuments(ctx, col.ID)
	if err != nil {
		return nil, err
	}

	clearStmts, err := e.ClearCollectionStatements(ctx, col.ID)
	if err != nil {
		return nil, err
	}
	if len(clearStmts) > 0 {
		if err := d.ExecuteTransaction(ctx, clearStmts); err != nil {
			return nil, &core.BackendError{Op: "clear collection index rows", Err: err}
		}
	}

	for offset := 0; ; offset += pageSize {
		docs, err := e.repo.ListDocumentsPage(ctx, col.ID, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			break
		}

		for i := range docs {
			doc := &docs[i]
			if err := e.reindexDocument(ctx, col, doc, blobs, result); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("document %s: %v", doc.ID, err))
				e.logger.Warn("Failed to reindex document",
					zap.String("documentId", doc.ID), zap.Error(err))
			}
			result.DocumentsProcessed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(core.RebuildProgress{
				DocumentsProcessed: result.DocumentsProcessed,
				TotalDocuments:     total,
				ValuesInserted:     result.ValuesInserted,
			})
		}
		if len(docs) < pageSize {
			break
		}
	}

	if opts.DropUnusedIndexes {
		dropped, err := e.dropUnusedTables(ctx)
		if err != nil {
			return nil, err
		}
		result.IndexesDropped = dropped
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.Success = len(result.Errors) == 0
	e.logger.Info("Index rebuild finished",
		zap.String("collectionId", col.ID),
		zap.Int("documents", result.DocumentsProcessed),
		zap.Int64("values", result.ValuesInserted),
		zap.Bool("success", result.Success))
	return result, nil
}

func (e *Engine) reindexDocument(ctx context.Context, col *core.Collection, doc *core.Document, blobs core.DocumentBlobStore, result *core.IndexRebuildResult) error {
	body, err := blobs.Get(ctx, col.DocumentsDirectory, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to read document body: %w", err)
	}
	leaves, err := flatten.Flatten(body)
	if err != nil {
		return fmt.Errorf("failed to flatten document body: %w", err)
	}
	stmts, created, err := e.InsertStatements(ctx, col, doc.ID, leaves)
	if err != nil {
		return err
	}
	result.IndexesCreated = append(result.IndexesCreated, created...)
	if len(stmts) == 0 {
		return nil
	}
	if err := e.repo.Adapter().ExecuteTransaction(ctx, stmts); err != nil {
		return &core.BackendError{Op: "insert index rows", Err: err}
	}
	result.ValuesInserted += int64(len(stmts))
	return nil
}

// dropUnusedTables reaps index tables that hold no rows and whose path no
// collection lists among its indexed fields. The mapping row goes last, so
// a crash mid-drop leaves a mapping to a missing table that the next
// allocation recreates idempotently.
func (e *Engine) dropUnusedTables(ctx context.Context) ([]string, error) {
	allocMu.Lock()
	defer allocMu.Unlock()

	mappings, err := e.repo.ListMappings(ctx)
	if err != nil {
		return nil, err
	}
	d := e.repo.Adapter()

	var dropped []string
	for _, m := range mappings {
		count, err := e.tableRowCount(ctx, m.TableName)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}
		used, err := e.repo.FieldIndexedAnywhere(ctx, m.Key)
		if err != nil {
			return nil, err
		}
		if used {
			continue
		}
		if err := d.Execute(ctx, d.DropTableIfExists(m.TableName)); err != nil {
			return nil, &core.BackendError{Op: "drop index table " + m.TableName, Err: err}
		}
		if err := e.repo.DeleteMapping(ctx, m.Key); err != nil {
			return nil, err
		}
		dropped = append(dropped, m.TableName)
		e.logger.Debug("Dropped unused index table",
			zap.String("key", m.Key), zap.String("table", m.TableName))
	}
	return dropped, nil
}

func (e *Engine) tableRowCount(ctx context.Context, table string) (int64, error) {
	d := e.repo.Adapter()
	stmt := fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s",
		d.QuoteIdentifier("total"), d.QuoteIdentifier(table))
	rows, err := d.Query(ctx, stmt)
	if err != nil {
		return 0, &core.BackendError{Op: "count index table rows", Err: err}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	switch v := rows[0]["total"].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		var n int64
		_, scanErr := fmt.Sscan(v, &n)
		if scanErr != nil {
			return 0, fmt.Errorf("failed to parse row count: %w", scanErr)
		}
		return n, nil
	default:
		return 0, nil
	}
}
