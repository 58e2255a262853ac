package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/index"
)

// blobCollectionDeleter is implemented by blob stores that can remove a
// whole collection directory in one call.
type blobCollectionDeleter interface {
	DeleteCollection(ctx context.Context, collectionDir string) error
}

// CreateCollection persists a new collection with its initial constraints
// and indexed fields.
func (p *Persistence) CreateCollection(ctx context.Context, opts *core.CreateCollectionOptions) (*core.Collection, error) {
	result, err := p.emitter.withEvents("create_collection",
		CollectionCreateStart, CollectionCreateSuccess, CollectionCreateFailed,
		nil, opts, func() (any, *string, error) {
			col, err := p.createCollection(ctx, opts)
			return col, nil, err
		})
	if err != nil {
		return nil, err
	}
	return result.(*core.Collection), nil
}

func (p *Persistence) createCollection(ctx context.Context, opts *core.CreateCollectionOptions) (*core.Collection, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	now := time.Now().UTC()
	col := &core.Collection{
		ID:                    core.NewID(core.IDKindCollection),
		Name:                  opts.Name,
		Description:           opts.Description,
		DocumentsDirectory:    opts.DocumentsDirectory,
		Labels:                opts.Labels,
		Tags:                  opts.Tags,
		SchemaEnforcementMode: opts.SchemaEnforcementMode,
		IndexingMode:          opts.IndexingMode,
		CreatedUTC:            now,
		LastUpdateUTC:         now,
	}
	if col.DocumentsDirectory == "" {
		col.DocumentsDirectory = col.ID
	}
	if col.SchemaEnforcementMode == "" {
		col.SchemaEnforcementMode = core.EnforcementNone
	}
	if col.IndexingMode == "" {
		col.IndexingMode = core.IndexingAll
	}

	if err := p.repo.InsertCollection(ctx, col); err != nil {
		return nil, err
	}
	if len(opts.FieldConstraints) > 0 {
		if err := p.repo.ReplaceConstraints(ctx, col.ID, opts.FieldConstraints); err != nil {
			return nil, err
		}
	}
	if len(opts.IndexedFields) > 0 {
		if err := p.repo.ReplaceIndexedFields(ctx, col.ID, opts.IndexedFields); err != nil {
			return nil, err
		}
	}

	p.logger.Info("Created collection",
		zap.String("collectionId", col.ID), zap.String("name", col.Name))
	return col, nil
}

// DeleteCollection removes a collection and cascades through its
// documents, blobs, labels, tags, constraints, indexed fields, and index
// rows.
func (p *Persistence) DeleteCollection(ctx context.Context, id string) error {
	collID := id
	_, err := p.emitter.withEvents("delete_collection",
		CollectionDeleteStart, CollectionDeleteSuccess, CollectionDeleteFailed,
		&collID, nil, func() (any, *string, error) {
			return nil, nil, p.deleteCollection(ctx, id)
		})
	return err
}

func (p *Persistence) deleteCollection(ctx context.Context, id string) error {
	col, err := p.repo.GetCollection(ctx, id)
	if err != nil {
		return err
	}

	unlock := p.lockCollection(col.ID)
	defer unlock()

	docIDs, err := p.repo.ListDocumentIDs(ctx, col.ID)
	if err != nil {
		return err
	}
	for _, docID := range docIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.deleteDocument(ctx, col.ID, docID); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", docID, err)
		}
	}

	// Belt and braces: documents are already gone, but index rows keyed
	// only by collectionid could survive a past crash.
	clearStmts, err := p.engine.ClearCollectionStatements(ctx, col.ID)
	if err != nil {
		return err
	}
	if len(clearStmts) > 0 {
		if err := p.repo.Adapter().ExecuteTransaction(ctx, clearStmts); err != nil {
			return &core.BackendError{Op: "clear collection index rows", Err: err}
		}
	}

	if err := p.repo.DeleteConstraints(ctx, col.ID); err != nil {
		return err
	}
	if err := p.repo.DeleteIndexedFields(ctx, col.ID); err != nil {
		return err
	}
	if err := p.repo.DeleteCollection(ctx, col.ID); err != nil {
		return err
	}

	if deleter, ok := p.blobs.(blobCollectionDeleter); ok {
		if err := deleter.DeleteCollection(ctx, col.DocumentsDirectory); err != nil {
			p.logger.Warn("Failed to delete collection directory",
				zap.String("collectionId", col.ID), zap.Error(err))
		}
	}

	p.logger.Info("Deleted collection",
		zap.String("collectionId", col.ID), zap.Int("documents", len(docIDs)))
	return nil
}

// GetConstraints returns a collection's enforcement mode and constraint
// set.
func (p *Persistence) GetConstraints(ctx context.Context, collectionID string) (core.SchemaEnforcementMode, []core.FieldConstraint, error) {
	col, err := p.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return "", nil, err
	}
	constraints, err := p.repo.ListConstraints(ctx, col.ID)
	if err != nil {
		return "", nil, err
	}
	return col.SchemaEnforcementMode, constraints, nil
}

// UpdateConstraints replaces a collection's enforcement mode and
// constraint set.
func (p *Persistence) UpdateConstraints(ctx context.Context, collectionID string, mode core.SchemaEnforcementMode, constraints []core.FieldConstraint) error {
	col, err := p.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if err := p.repo.ReplaceConstraints(ctx, col.ID, constraints); err != nil {
		return err
	}
	if mode != "" {
		col.SchemaEnforcementMode = mode
	}
	col.LastUpdateUTC = time.Now().UTC()
	return p.repo.UpdateCollection(ctx, col)
}

// GetIndexing returns a collection's indexing mode and indexed fields.
func (p *Persistence) GetIndexing(ctx context.Context, collectionID string) (core.IndexingMode, []core.IndexedField, error) {
	col, err := p.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return "", nil, err
	}
	fields, err := p.repo.ListIndexedFields(ctx, col.ID)
	if err != nil {
		return "", nil, err
	}
	return col.IndexingMode, fields, nil
}

// UpdateIndexing replaces a collection's indexing mode and indexed-field
// set, optionally rebuilding the collection's indexes afterwards.
func (p *Persistence) UpdateIndexing(ctx context.Context, collectionID string, mode core.IndexingMode, fieldPaths []string, rebuild bool) (*core.IndexRebuildResult, error) {
	col, err := p.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if err := p.repo.ReplaceIndexedFields(ctx, col.ID, fieldPaths); err != nil {
		return nil, err
	}
	if mode != "" {
		col.IndexingMode = mode
	}
	col.LastUpdateUTC = time.Now().UTC()
	if err := p.repo.UpdateCollection(ctx, col); err != nil {
		return nil, err
	}
	if !rebuild {
		return nil, nil
	}
	return p.RebuildIndexes(ctx, col.ID, false)
}

// RebuildIndexes re-materializes a collection's index rows from the
// stored document bodies, emitting progress events along the way.
func (p *Persistence) RebuildIndexes(ctx context.Context, collectionID string, dropUnusedIndexes bool) (*core.IndexRebuildResult, error) {
	col, err := p.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	unlock := p.lockCollection(col.ID)
	defer unlock()

	collID := col.ID
	result, err := p.emitter.withEvents("rebuild_indexes",
		IndexRebuildStart, IndexRebuildSuccess, IndexRebuildFailed,
		&collID, dropUnusedIndexes, func() (any, *string, error) {
			r, err := p.engine.Rebuild(ctx, col, p.blobs, index.RebuildOptions{
				DropUnusedIndexes: dropUnusedIndexes,
				OnProgress: func(progress core.RebuildProgress) {
					p.emitter.emit(PersistenceEvent{
						Type:         IndexRebuildProgress,
						Timestamp:    time.Now().UnixMilli(),
						Operation:    "rebuild_indexes",
						CollectionID: &collID,
						Output:       progress,
					})
				},
			})
			return r, nil, err
		})
	if err != nil {
		return nil, err
	}
	return result.(*core.IndexRebuildResult), nil
}
