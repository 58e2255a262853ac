package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/flatten"
	"github.com/jchristn/lattice/core/schema"
)

// ReadOptions selects what a document read hydrates alongside the
// metadata row.
type ReadOptions struct {
	IncludeContent bool
	IncludeLabels  bool
	IncludeTags    bool
}

// Ingest writes one JSON document into a collection: validate, resolve
// schema, persist the raw body, then commit the metadata and index rows
// as one transactional unit. The returned document carries metadata only,
// not the body.
func (p *Persistence) Ingest(ctx context.Context, collectionID string, body []byte, opts core.IngestOptions) (*core.Document, error) {
	collID := collectionID
	result, err := p.emitter.withEvents("ingest",
		DocumentIngestStart, DocumentIngestSuccess, DocumentIngestFailed,
		&collID, opts, func() (any, *string, error) {
			doc, err := p.ingest(ctx, collectionID, body, opts)
			if doc != nil {
				return doc, &doc.ID, err
			}
			return nil, nil, err
		})
	if err != nil {
		return nil, err
	}
	return result.(*core.Document), nil
}

func (p *Persistence) ingest(ctx context.Context, collectionID string, body []byte, opts core.IngestOptions) (*core.Document, error) {
	col, err := p.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	leaves, err := flatten.Flatten(body)
	if err != nil {
		return nil, core.NewValidationError(core.CodeInvalidJSON, "", err.Error())
	}

	unlock := p.lockCollection(col.ID)
	defer unlock()

	constraints, err := p.repo.ListConstraints(ctx, col.ID)
	if err != nil {
		return nil, err
	}
	if len(constraints) > 0 {
		v := schema.NewValidator(col.SchemaEnforcementMode, constraints)
		if err := v.Validate(leaves); err != nil {
			return nil, err
		}
	}

	schemaID, err := p.discover.Resolve(ctx, leaves)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sum := sha256.Sum256(body)
	doc := &core.Document{
		ID:            core.NewID(core.IDKindDocument),
		CollectionID:  col.ID,
		SchemaID:      schemaID,
		Name:          opts.Name,
		ContentLength: int64(len(body)),
		SHA256Hash:    hex.EncodeToString(sum[:]),
		CreatedUTC:    now,
		LastUpdateUTC: now,
		Labels:        opts.Labels,
		Tags:          opts.Tags,
	}

	if err := p.blobs.Put(ctx, col.DocumentsDirectory, doc.ID, body); err != nil {
		return nil, err
	}

	stmts := []core.Statement{p.repo.InsertDocumentStatement(doc)}
	for _, label := range opts.Labels {
		stmts = append(stmts, p.repo.InsertLabelStatement(doc.ID, col.ID, label))
	}
	for key, value := range opts.Tags {
		stmts = append(stmts, p.repo.InsertTagStatement(doc.ID, col.ID, key, value))
	}
	indexStmts, _, err := p.engine.InsertStatements(ctx, col, doc.ID, leaves)
	if err != nil {
		p.cleanupBlob(ctx, col.DocumentsDirectory, doc.ID)
		return nil, err
	}
	stmts = append(stmts, indexStmts...)

	// The blob write above is outside this transaction; a failure here
	// unwinds it best-effort so queries never see the orphan.
	if err := p.repo.Adapter().ExecuteTransaction(ctx, stmts); err != nil {
		p.cleanupBlob(ctx, col.DocumentsDirectory, doc.ID)
		return nil, &core.BackendError{Op: "ingest document", Err: err}
	}

	p.logger.Debug("Ingested document",
		zap.String("documentId", doc.ID),
		zap.String("collectionId", col.ID),
		zap.String("schemaId", schemaID),
		zap.Int64("contentLength", doc.ContentLength))
	return doc, nil
}

func (p *Persistence) cleanupBlob(ctx context.Context, collectionDir, docID string) {
	if err := p.blobs.Delete(ctx, collectionDir, docID); err != nil {
		p.logger.Warn("Failed to clean up blob after ingest failure",
			zap.String("documentId", docID), zap.Error(err))
	}
}

// GetDocument fetches one document of a collection, optionally hydrating
// labels, tags, and the raw content body.
func (p *Persistence) GetDocument(ctx context.Context, collectionID, docID string, opts ReadOptions) (*core.Document, error) {
	doc, err := p.repo.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.CollectionID != collectionID {
		return nil, core.ErrNotFound
	}

	if opts.IncludeLabels {
		labels, err := p.repo.DocumentLabels(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		doc.Labels = labels
	}
	if opts.IncludeTags {
		tags, err := p.repo.DocumentTags(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		doc.Tags = tags
	}
	if opts.IncludeContent {
		col, err := p.repo.GetCollection(ctx, doc.CollectionID)
		if err != nil {
			return nil, err
		}
		body, err := p.blobs.Get(ctx, col.DocumentsDirectory, doc.ID)
		if err != nil {
			return nil, err
		}
		doc.Content = body
	}
	return doc, nil
}

// DocumentExists reports whether a document exists in a collection.
func (p *Persistence) DocumentExists(ctx context.Context, collectionID, docID string) (bool, error) {
	doc, err := p.repo.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return doc.CollectionID == collectionID, nil
}

// DeleteDocument removes one document: its metadata and index rows in one
// transaction, then its blob best-effort.
func (p *Persistence) DeleteDocument(ctx context.Context, collectionID, docID string) error {
	collID := collectionID
	_, err := p.emitter.withEvents("delete",
		DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed,
		&collID, docID, func() (any, *string, error) {
			id := docID
			return nil, &id, p.deleteDocument(ctx, collectionID, docID)
		})
	return err
}

func (p *Persistence) deleteDocument(ctx context.Context, collectionID, docID string) error {
	doc, err := p.repo.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.CollectionID != collectionID {
		return core.ErrNotFound
	}
	col, err := p.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}

	stmts, err := p.engine.DeleteStatements(ctx, doc.ID, doc.SchemaID)
	if err != nil {
		return err
	}
	stmts = append(stmts, p.repo.DeleteDocumentStatements(doc.ID)...)
	if err := p.repo.Adapter().ExecuteTransaction(ctx, stmts); err != nil {
		return &core.BackendError{Op: "delete document", Err: err}
	}

	if err := p.blobs.Delete(ctx, col.DocumentsDirectory, doc.ID); err != nil {
		p.logger.Warn("Failed to delete blob",
			zap.String("documentId", doc.ID), zap.Error(err))
	}
	return nil
}
