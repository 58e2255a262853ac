package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jchristn/lattice/core"
)

// ListConstraints returns the field constraints of a collection.
func (r *Repository) ListConstraints(ctx context.Context, collectionID string) ([]core.FieldConstraint, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s ASC",
		d.QuoteIdentifier("field_constraints"),
		d.QuoteIdentifier("collectionid"), d.Placeholder(1),
		d.QuoteIdentifier("fieldpath"))
	rows, err := d.Query(ctx, stmt, collectionID)
	if err != nil {
		return nil, &core.BackendError{Op: "list constraints", Err: err}
	}
	out := make([]core.FieldConstraint, 0, len(rows))
	for _, row := range rows {
		out = append(out, constraintFromRow(row))
	}
	return out, nil
}

// ReplaceConstraints swaps a collection's constraint set atomically.
func (r *Repository) ReplaceConstraints(ctx context.Context, collectionID string, constraints []core.FieldConstraint) error {
	d := r.db
	stmts := []core.Statement{{
		SQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
			d.QuoteIdentifier("field_constraints"),
			d.QuoteIdentifier("collectionid"), d.Placeholder(1)),
		Args: []any{collectionID},
	}}
	for _, fc := range constraints {
		stmt, err := r.insertConstraintStatement(collectionID, fc)
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}
	if err := d.ExecuteTransaction(ctx, stmts); err != nil {
		return &core.BackendError{Op: "replace constraints", Err: err}
	}
	return nil
}

func (r *Repository) insertConstraintStatement(collectionID string, fc core.FieldConstraint) (core.Statement, error) {
	d := r.db
	id := fc.ID
	if id == "" {
		id = core.NewID(core.IDKindFieldConstraint)
	}

	var allowedJSON any
	if len(fc.AllowedValues) > 0 {
		b, err := json.Marshal(fc.AllowedValues)
		if err != nil {
			return core.Statement{}, fmt.Errorf("failed to encode allowed values: %w", err)
		}
		allowedJSON = string(b)
	}

	var dataType, arrayElementType, regexPattern any
	if fc.DataType != nil {
		dataType = string(*fc.DataType)
	}
	if fc.ArrayElementType != nil {
		arrayElementType = string(*fc.ArrayElementType)
	}
	if fc.RegexPattern != nil {
		regexPattern = *fc.RegexPattern
	}

	var minValue, maxValue, minLength, maxLength any
	if fc.MinValue != nil {
		minValue = *fc.MinValue
	}
	if fc.MaxValue != nil {
		maxValue = *fc.MaxValue
	}
	if fc.MinLength != nil {
		minLength = *fc.MinLength
	}
	if fc.MaxLength != nil {
		maxLength = *fc.MaxLength
	}

	return core.Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.QuoteIdentifier("field_constraints"),
			quoteJoin(d, "id", "collectionid", "fieldpath", "datatype", "required",
				"nullable", "regexpattern", "minvalue", "maxvalue", "minlength",
				"maxlength", "allowedvalues", "arrayelementtype"),
			core.PlaceholderList(d, 1, 13)),
		Args: []any{
			id, collectionID, fc.FieldPath, dataType, boolArg(fc.Required),
			boolArg(fc.Nullable), regexPattern, minValue, maxValue, minLength,
			maxLength, allowedJSON, arrayElementType,
		},
	}, nil
}

// DeleteConstraints removes every constraint of a collection.
func (r *Repository) DeleteConstraints(ctx context.Context, collectionID string) error {
	d := r.db
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		d.QuoteIdentifier("field_constraints"),
		d.QuoteIdentifier("collectionid"), d.Placeholder(1))
	if err := d.Execute(ctx, stmt, collectionID); err != nil {
		return &core.BackendError{Op: "delete constraints", Err: err}
	}
	return nil
}

func constraintFromRow(row map[string]any) core.FieldConstraint {
	fc := core.FieldConstraint{
		ID:           stringVal(row, "id"),
		CollectionID: stringVal(row, "collectionid"),
		FieldPath:    stringVal(row, "fieldpath"),
		Required:     boolVal(row, "required"),
		Nullable:     boolVal(row, "nullable"),
		RegexPattern: nullableString(row, "regexpattern"),
	}
	if s := nullableString(row, "datatype"); s != nil && *s != "" {
		dt := core.DataType(*s)
		fc.DataType = &dt
	}
	if s := nullableString(row, "arrayelementtype"); s != nil && *s != "" {
		dt := core.DataType(*s)
		fc.ArrayElementType = &dt
	}
	if row["minvalue"] != nil {
		v := float64Val(row, "minvalue")
		fc.MinValue = &v
	}
	if row["maxvalue"] != nil {
		v := float64Val(row, "maxvalue")
		fc.MaxValue = &v
	}
	if row["minlength"] != nil {
		v := int(int64Val(row, "minlength"))
		fc.MinLength = &v
	}
	if row["maxlength"] != nil {
		v := int(int64Val(row, "maxlength"))
		fc.MaxLength = &v
	}
	if s := nullableString(row, "allowedvalues"); s != nil && *s != "" {
		_ = json.Unmarshal([]byte(*s), &fc.AllowedValues)
	}
	return fc
}

// ListIndexedFields returns the leaf paths a collection indexes under
// Selective mode.
func (r *Repository) ListIndexedFields(ctx context.Context, collectionID string) ([]core.IndexedField, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s ASC",
		d.QuoteIdentifier("indexed_fields"),
		d.QuoteIdentifier("collectionid"), d.Placeholder(1),
		d.QuoteIdentifier("fieldpath"))
	rows, err := d.Query(ctx, stmt, collectionID)
	if err != nil {
		return nil, &core.BackendError{Op: "list indexed fields", Err: err}
	}
	out := make([]core.IndexedField, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.IndexedField{
			ID:           stringVal(row, "id"),
			CollectionID: stringVal(row, "collectionid"),
			FieldPath:    stringVal(row, "fieldpath"),
		})
	}
	return out, nil
}

// ReplaceIndexedFields swaps a collection's indexed-field set atomically.
func (r *Repository) ReplaceIndexedFields(ctx context.Context, collectionID string, fieldPaths []string) error {
	d := r.db
	stmts := []core.Statement{{
		SQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
			d.QuoteIdentifier("indexed_fields"),
			d.QuoteIdentifier("collectionid"), d.Placeholder(1)),
		Args: []any{collectionID},
	}}
	for _, path := range fieldPaths {
		stmts = append(stmts, core.Statement{
			SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				d.QuoteIdentifier("indexed_fields"),
				quoteJoin(d, "id", "collectionid", "fieldpath"),
				core.PlaceholderList(d, 1, 3)),
			Args: []any{core.NewID(core.IDKindIndexedField), collectionID, path},
		})
	}
	if err := d.ExecuteTransaction(ctx, stmts); err != nil {
		return &core.BackendError{Op: "replace indexed fields", Err: err}
	}
	return nil
}

// DeleteIndexedFields removes every indexed-field row of a collection.
func (r *Repository) DeleteIndexedFields(ctx context.Context, collectionID string) error {
	d := r.db
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		d.QuoteIdentifier("indexed_fields"),
		d.QuoteIdentifier("collectionid"), d.Placeholder(1))
	if err := d.Execute(ctx, stmt, collectionID); err != nil {
		return &core.BackendError{Op: "delete indexed fields", Err: err}
	}
	return nil
}

// FieldIndexedAnywhere reports whether any collection lists the path in its
// indexed fields. Rebuild consults this before dropping an empty index
// table.
func (r *Repository) FieldIndexedAnywhere(ctx context.Context, fieldPath string) (bool, error) {
	d := r.db
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		d.QuoteIdentifier("id"), d.QuoteIdentifier("indexed_fields"),
		d.QuoteIdentifier("fieldpath"), d.Placeholder(1))
	rows, err := d.Query(ctx, stmt, fieldPath)
	if err != nil {
		return false, &core.BackendError{Op: "field indexed anywhere", Err: err}
	}
	return len(rows) > 0, nil
}
