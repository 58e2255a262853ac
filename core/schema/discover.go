// Package schema discovers the typed leaf-path schema of incoming JSON
// documents and validates them against collection field constraints.
package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/flatten"
	"github.com/jchristn/lattice/core/metadata"
	"go.uber.org/zap"
)

// Element is one canonical leaf of a discovered schema, in first-seen
// order.
type Element struct {
	Key      string        `json:"key"`
	DataType core.DataType `json:"dataType"`
	Nullable bool          `json:"nullable"`
}

// Discoverer canonicalizes flattened documents into schema fingerprints
// and resolves them against the global schemas table.
type Discoverer struct {
	repo   *metadata.Repository
	logger *zap.Logger
}

// NewDiscoverer creates a discoverer over the metadata repository.
func NewDiscoverer(repo *metadata.Repository, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{repo: repo, logger: logger}
}

// CanonicalElements collapses a document's leaves into the ordered leaf-type
// list: one entry per path in first-seen order. A path seen as both null
// and non-null keeps the non-null type and becomes nullable; a path seen
// with two different non-null types widens to string and becomes nullable.
func CanonicalElements(leaves []flatten.LeafRecord) []Element {
	elements := make([]Element, 0, len(leaves))
	index := make(map[string]int, len(leaves))
	nonNullSeen := make(map[string]bool, len(leaves))

	for _, leaf := range leaves {
		i, seen := index[leaf.Path]
		if !seen {
			el := Element{Key: leaf.Path, DataType: leaf.Type}
			if leaf.Type == core.DataTypeNull {
				// Placeholder until a non-null sibling arrives.
				el.DataType = core.DataTypeString
				el.Nullable = true
			} else {
				nonNullSeen[leaf.Path] = true
			}
			index[leaf.Path] = len(elements)
			elements = append(elements, el)
			continue
		}

		el := &elements[i]
		if leaf.Type == core.DataTypeNull {
			el.Nullable = true
			continue
		}
		if !nonNullSeen[leaf.Path] {
			// First non-null occurrence of a path introduced by null.
			el.DataType = leaf.Type
			nonNullSeen[leaf.Path] = true
			continue
		}
		if leaf.Type != el.DataType {
			// Two genuinely different non-null types: widen to string.
			el.DataType = core.DataTypeString
			el.Nullable = true
		}
	}
	return elements
}

// Fingerprint computes the stable schema hash over the canonical element
// list: SHA-256 of the canonical JSON rendering in first-seen order.
func Fingerprint(elements []Element) string {
	canonical := struct {
		Elements []Element `json:"elements"`
	}{Elements: elements}
	// Struct marshaling is deterministic: field order is fixed and the
	// element slice carries first-seen order.
	encoded, _ := json.Marshal(canonical)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// Resolve maps a document's leaves to a schema id, creating the schema row
// and its elements when the shape has never been seen. Identical shapes
// resolve to the same id across collections and across time. A concurrent
// first ingest of the same shape is absorbed by retrying the hash lookup
// after a failed insert.
func (d *Discoverer) Resolve(ctx context.Context, leaves []flatten.LeafRecord) (string, error) {
	elements := CanonicalElements(leaves)
	hash := Fingerprint(elements)

	existing, err := d.repo.FindSchemaByHash(ctx, hash)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return "", err
	}

	now := time.Now().UTC()
	s := &core.Schema{
		ID:            core.NewID(core.IDKindSchema),
		Hash:          hash,
		CreatedUTC:    now,
		LastUpdateUTC: now,
	}
	rows := make([]core.SchemaElement, len(elements))
	for i, el := range elements {
		rows[i] = core.SchemaElement{
			ID:       core.NewID(core.IDKindSchema),
			SchemaID: s.ID,
			Position: i,
			Key:      el.Key,
			DataType: el.DataType,
			Nullable: el.Nullable,
		}
	}

	if err := d.repo.InsertSchema(ctx, s, rows); err != nil {
		// Exactly one of two concurrent ingests of a new shape wins the
		// insert; the loser observes the winner's row here.
		if winner, lookupErr := d.repo.FindSchemaByHash(ctx, hash); lookupErr == nil {
			return winner.ID, nil
		}
		return "", fmt.Errorf("failed to create schema: %w", err)
	}

	d.logger.Debug("Discovered new schema",
		zap.String("schemaId", s.ID), zap.Int("elements", len(rows)))
	return s.ID, nil
}
