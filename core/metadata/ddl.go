package metadata

import (
	"context"
	"fmt"

	"github.com/jchristn/lattice/core"
	"go.uber.org/zap"
)

// Initialize creates the fixed metadata tables and their secondary indexes.
// Every statement is idempotent, so Initialize can run on every startup.
func (r *Repository) Initialize(ctx context.Context) error {
	d := r.db
	q := d.QuoteIdentifier
	text := d.TextType()
	itext := d.IndexableTextType()

	tables := []struct {
		name string
		body string
	}{
		{"collections", fmt.Sprintf(
			"%s VARCHAR(64) NOT NULL PRIMARY KEY, "+
				"%s %s NOT NULL, "+
				"%s %s, "+
				"%s %s NOT NULL, "+
				"%s %s, "+
				"%s %s, "+
				"%s VARCHAR(16) NOT NULL, "+
				"%s VARCHAR(16) NOT NULL, "+
				"%s VARCHAR(32) NOT NULL, "+
				"%s VARCHAR(32) NOT NULL",
			q("id"), q("name"), itext, q("description"), text,
			q("documentsdirectory"), text, q("labels"), text, q("tags"), text,
			q("schemaenforcementmode"), q("indexingmode"),
			q("createdutc"), q("lastupdateutc"))},
		{"documents", fmt.Sprintf(
			"%s VARCHAR(64) NOT NULL PRIMARY KEY, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s %s, "+
				"%s BIGINT NOT NULL, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s VARCHAR(32) NOT NULL, "+
				"%s VARCHAR(32) NOT NULL",
			q("id"), q("collectionid"), q("schemaid"), q("name"), itext,
			q("contentlength"), q("sha256hash"),
			q("createdutc"), q("lastupdateutc"))},
		{"schemas", fmt.Sprintf(
			"%s VARCHAR(64) NOT NULL PRIMARY KEY, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s VARCHAR(32) NOT NULL, "+
				"%s VARCHAR(32) NOT NULL",
			q("id"), q("hash"), q("createdutc"), q("lastupdateutc"))},
		{"schema_elements", fmt.Sprintf(
			"%s VARCHAR(64) NOT NULL PRIMARY KEY, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s INT NOT NULL, "+
				"%s %s NOT NULL, "+
				"%s VARCHAR(16) NOT NULL, "+
				"%s SMALLINT NOT NULL",
			q("id"), q("schemaid"), q("position"), q("elementkey"), itext,
			q("datatype"), q("nullable"))},
		{"labels", fmt.Sprintf(
			"%s, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s %s NOT NULL",
			d.SerialPrimaryKeyColumn(), q("documentid"), q("collectionid"),
			q("labelvalue"), itext)},
		{"tags", fmt.Sprintf(
			"%s, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s %s NOT NULL, "+
				"%s %s",
			d.SerialPrimaryKeyColumn(), q("documentid"), q("collectionid"),
			q("tagkey"), itext, q("tagvalue"), text)},
		{"field_constraints", fmt.Sprintf(
			"%s VARCHAR(64) NOT NULL PRIMARY KEY, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s %s NOT NULL, "+
				"%s VARCHAR(16), "+
				"%s SMALLINT NOT NULL, "+
				"%s SMALLINT NOT NULL, "+
				"%s %s, "+
				"%s DOUBLE PRECISION, "+
				"%s DOUBLE PRECISION, "+
				"%s INT, "+
				"%s INT, "+
				"%s %s, "+
				"%s VARCHAR(16)",
			q("id"), q("collectionid"), q("fieldpath"), itext, q("datatype"),
			q("required"), q("nullable"), q("regexpattern"), text,
			q("minvalue"), q("maxvalue"), q("minlength"), q("maxlength"),
			q("allowedvalues"), text, q("arrayelementtype"))},
		{"indexed_fields", fmt.Sprintf(
			"%s VARCHAR(64) NOT NULL PRIMARY KEY, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s %s NOT NULL",
			q("id"), q("collectionid"), q("fieldpath"), itext)},
		{"index_table_mappings", fmt.Sprintf(
			"%s %s NOT NULL, "+
				"%s VARCHAR(64) NOT NULL, "+
				"%s VARCHAR(32) NOT NULL",
			q("mapkey"), itext, q("tablename"), q("createdutc"))},
	}

	for _, t := range tables {
		stmt := d.CreateTableIfNotExists(t.name, t.body)
		if err := d.Execute(ctx, stmt); err != nil {
			return &core.BackendError{Op: "create table " + t.name, Err: err}
		}
	}

	indexes := []struct {
		name, table, column string
	}{
		{"ix_collections_name", "collections", "name"},
		{"ix_documents_collectionid", "documents", "collectionid"},
		{"ix_documents_schemaid", "documents", "schemaid"},
		{"ix_documents_createdutc", "documents", "createdutc"},
		{"ix_schemas_hash", "schemas", "hash"},
		{"ix_schema_elements_schemaid", "schema_elements", "schemaid"},
		{"ix_labels_documentid", "labels", "documentid"},
		{"ix_labels_labelvalue", "labels", "labelvalue"},
		{"ix_labels_collectionid", "labels", "collectionid"},
		{"ix_tags_documentid", "tags", "documentid"},
		{"ix_tags_tagkey", "tags", "tagkey"},
		{"ix_tags_collectionid", "tags", "collectionid"},
		{"ix_field_constraints_collectionid", "field_constraints", "collectionid"},
		{"ix_indexed_fields_collectionid", "indexed_fields", "collectionid"},
		{"ix_index_table_mappings_mapkey", "index_table_mappings", "mapkey"},
	}

	for _, ix := range indexes {
		stmt := d.CreateIndexIfNotExists(ix.name, ix.table, ix.column)
		if err := d.Execute(ctx, stmt); err != nil {
			return &core.BackendError{Op: "create index " + ix.name, Err: err}
		}
	}

	r.logger.Debug("Metadata tables initialized", zap.String("dialect", d.Name()))
	return nil
}
