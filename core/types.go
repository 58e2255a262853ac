// Package core defines the shared types of the Lattice document database:
// the entities persisted in the metadata tables, the enumerations governing
// validation and indexing policy, and the abstract interfaces through which
// the core reaches its relational backend and its blob store.
package core

import (
	"encoding/json"
	"time"
)

// DataType identifies the JSON type of a schema element, a flattened leaf,
// or a field constraint. The set mirrors JSON itself, with whole numbers
// split out from fractional ones.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeInteger DataType = "integer"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeArray   DataType = "array"
	DataTypeObject  DataType = "object"
	DataTypeNull    DataType = "null"
)

// SchemaEnforcementMode selects how strictly a collection's field
// constraints are applied at ingest time.
type SchemaEnforcementMode string

const (
	// EnforcementNone skips constraint validation entirely.
	EnforcementNone SchemaEnforcementMode = "None"
	// EnforcementStrict evaluates every constraint and rejects any leaf
	// whose path is not covered by a constraint.
	EnforcementStrict SchemaEnforcementMode = "Strict"
	// EnforcementFlexible evaluates every constraint but tolerates extra
	// fields.
	EnforcementFlexible SchemaEnforcementMode = "Flexible"
	// EnforcementPartial evaluates only constraints whose field path is
	// present in the document; required is inert for absent fields.
	EnforcementPartial SchemaEnforcementMode = "Partial"
)

// IndexingMode selects which leaves of an ingested document are
// materialized into per-path index tables.
type IndexingMode string

const (
	IndexingAll       IndexingMode = "All"
	IndexingSelective IndexingMode = "Selective"
	IndexingNone      IndexingMode = "None"
)

// Collection is a named namespace for documents with an independent
// constraint set and indexing policy. Labels and tags on the collection
// itself are descriptive metadata, stored inline on the row.
type Collection struct {
	ID                    string                `json:"id"`
	Name                  string                `json:"name"`
	Description           string                `json:"description,omitempty"`
	DocumentsDirectory    string                `json:"documentsDirectory"`
	Labels                []string              `json:"labels,omitempty"`
	Tags                  map[string]string     `json:"tags,omitempty"`
	SchemaEnforcementMode SchemaEnforcementMode `json:"schemaEnforcementMode"`
	IndexingMode          IndexingMode          `json:"indexingMode"`
	CreatedUTC            time.Time             `json:"createdUtc"`
	LastUpdateUTC         time.Time             `json:"lastUpdateUtc"`
}

// Document is the metadata row for one ingested JSON value. The content
// body lives in the blob store, not in a column; Content is populated only
// when a read explicitly requests it.
type Document struct {
	ID            string            `json:"id"`
	CollectionID  string            `json:"collectionId"`
	SchemaID      string            `json:"schemaId"`
	Name          string            `json:"name,omitempty"`
	ContentLength int64             `json:"contentLength"`
	SHA256Hash    string            `json:"sha256Hash"`
	CreatedUTC    time.Time         `json:"createdUtc"`
	LastUpdateUTC time.Time         `json:"lastUpdateUtc"`
	Labels        []string          `json:"labels,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	Content       json.RawMessage   `json:"content,omitempty"`
}

// Schema is the immutable typed leaf-path list discovered from a document
// shape. Schemas are global: two collections ingesting identical structures
// share one schema row, keyed by Hash.
type Schema struct {
	ID            string    `json:"id"`
	Hash          string    `json:"hash"`
	CreatedUTC    time.Time `json:"createdUtc"`
	LastUpdateUTC time.Time `json:"lastUpdateUtc"`
}

// SchemaElement is one typed leaf of a schema, ordered by Position.
type SchemaElement struct {
	ID       string   `json:"id"`
	SchemaID string   `json:"schemaId"`
	Position int      `json:"position"`
	Key      string   `json:"key"`
	DataType DataType `json:"dataType"`
	Nullable bool     `json:"nullable"`
}

// FieldConstraint declares a validation rule for one dotted leaf path in a
// collection. Optional checks are nil when unset.
type FieldConstraint struct {
	ID               string    `json:"id"`
	CollectionID     string    `json:"collectionId"`
	FieldPath        string    `json:"fieldPath"`
	DataType         *DataType `json:"dataType,omitempty"`
	Required         bool      `json:"required"`
	Nullable         bool      `json:"nullable"`
	RegexPattern     *string   `json:"regexPattern,omitempty"`
	MinValue         *float64  `json:"minValue,omitempty"`
	MaxValue         *float64  `json:"maxValue,omitempty"`
	MinLength        *int      `json:"minLength,omitempty"`
	MaxLength        *int      `json:"maxLength,omitempty"`
	AllowedValues    []string  `json:"allowedValues,omitempty"`
	ArrayElementType *DataType `json:"arrayElementType,omitempty"`
}

// IndexedField names one leaf path that a collection materializes when its
// indexing mode is Selective.
type IndexedField struct {
	ID           string `json:"id"`
	CollectionID string `json:"collectionId"`
	FieldPath    string `json:"fieldPath"`
}

// IndexTableMapping binds a leaf path to the physical table holding its
// values. Mappings are process-wide and append-only; only a rebuild with
// dropUnusedIndexes reaps them.
type IndexTableMapping struct {
	Key       string `json:"key"`
	TableName string `json:"tableName"`
}

// CreateCollectionOptions carries everything needed to create a collection,
// including its initial constraint and indexing configuration.
type CreateCollectionOptions struct {
	Name                  string                `json:"name"`
	Description           string                `json:"description,omitempty"`
	DocumentsDirectory    string                `json:"documentsDirectory,omitempty"`
	Labels                []string              `json:"labels,omitempty"`
	Tags                  map[string]string     `json:"tags,omitempty"`
	SchemaEnforcementMode SchemaEnforcementMode `json:"schemaEnforcementMode,omitempty"`
	IndexingMode          IndexingMode          `json:"indexingMode,omitempty"`
	FieldConstraints      []FieldConstraint     `json:"fieldConstraints,omitempty"`
	IndexedFields         []string              `json:"indexedFields,omitempty"`
}

// IngestOptions carries the caller-supplied attributes of one document
// write. Body is the raw JSON exactly as received; hashing and length are
// computed over these bytes.
type IngestOptions struct {
	Name   string            `json:"name,omitempty"`
	Labels []string          `json:"labels,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// IndexRebuildResult reports the outcome of a whole-collection index
// rebuild.
type IndexRebuildResult struct {
	Success            bool     `json:"success"`
	DocumentsProcessed int      `json:"documentsProcessed"`
	IndexesCreated     []string `json:"indexesCreated"`
	IndexesDropped     []string `json:"indexesDropped"`
	ValuesInserted     int64    `json:"valuesInserted"`
	DurationMs         int64    `json:"durationMs"`
	Errors             []string `json:"errors,omitempty"`
}

// RebuildProgress is emitted at a steady cadence while a rebuild scans a
// collection.
type RebuildProgress struct {
	DocumentsProcessed int   `json:"documentsProcessed"`
	TotalDocuments     int   `json:"totalDocuments"`
	ValuesInserted     int64 `json:"valuesInserted"`
}
