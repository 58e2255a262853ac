// Package flatten converts a raw JSON document into its ordered stream of
// typed leaf records. The flattener works on the token stream rather than a
// decoded map so that object-key insertion order survives; that order is
// what gives a schema its stable identity.
package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jchristn/lattice/core"
)

// LeafRecord is one terminal JSON value and its dotted path from the root.
// Array elements do not contribute path segments, so a path can repeat.
// Value is nil when the leaf is JSON null.
type LeafRecord struct {
	Path  string
	Type  core.DataType
	Value *string
}

// IsNull reports whether the leaf carries the null sentinel.
func (l LeafRecord) IsNull() bool { return l.Value == nil }

// ValueOrEmpty returns the encoded value, or "" for null leaves.
func (l LeafRecord) ValueOrEmpty() string {
	if l.Value == nil {
		return ""
	}
	return *l.Value
}

// Flatten parses body and returns its leaves in traversal order: objects by
// insertion order of the source, arrays left to right. An empty object or
// array yields no leaves. The root must be an object or an array.
func Flatten(body []byte) ([]LeafRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil, fmt.Errorf("document root must be an object or array, got %v", tok)
	}

	leaves := make([]LeafRecord, 0, 16)
	if delim == '{' {
		err = flattenObject(dec, "", &leaves)
	} else {
		err = flattenArray(dec, "", &leaves)
	}
	if err != nil {
		return nil, err
	}

	// Anything after the root value is malformed input.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON document: trailing content after root value")
	}
	return leaves, nil
}

// flattenObject consumes tokens up to and including the object's closing
// brace, appending leaves under parent.
func flattenObject(dec *json.Decoder, parent string, leaves *[]LeafRecord) error {
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid JSON document: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("invalid JSON document: expected object key, got %v", keyTok)
		}
		if err := flattenValue(dec, joinPath(parent, key), leaves); err != nil {
			return err
		}
	}
	_, err := dec.Token() // consume '}'
	return err
}

// flattenArray consumes tokens up to and including the closing bracket.
// Elements share the array's own path; nested objects flatten with that
// path as their parent.
func flattenArray(dec *json.Decoder, path string, leaves *[]LeafRecord) error {
	for dec.More() {
		if err := flattenValue(dec, path, leaves); err != nil {
			return err
		}
	}
	_, err := dec.Token() // consume ']'
	return err
}

// flattenValue reads one JSON value and either recurses into a container or
// emits a leaf.
func flattenValue(dec *json.Decoder, path string, leaves *[]LeafRecord) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}

	switch v := tok.(type) {
	case json.Delim:
		if v == '{' {
			return flattenObject(dec, path, leaves)
		}
		return flattenArray(dec, path, leaves)
	case string:
		*leaves = append(*leaves, LeafRecord{Path: path, Type: core.DataTypeString, Value: &v})
	case json.Number:
		leaf := encodeNumber(path, v)
		*leaves = append(*leaves, leaf)
	case bool:
		enc := "false"
		if v {
			enc = "true"
		}
		*leaves = append(*leaves, LeafRecord{Path: path, Type: core.DataTypeBoolean, Value: &enc})
	case nil:
		*leaves = append(*leaves, LeafRecord{Path: path, Type: core.DataTypeNull})
	default:
		return fmt.Errorf("invalid JSON document: unexpected token %v", tok)
	}
	return nil
}

// encodeNumber classifies a JSON number literal as integer or number and
// normalizes its encoding. The literal decides: a fraction or exponent
// makes it a number even when mathematically whole.
func encodeNumber(path string, n json.Number) LeafRecord {
	literal := n.String()
	if !strings.ContainsAny(literal, ".eE") {
		enc := literal
		if i, err := strconv.ParseInt(literal, 10, 64); err == nil {
			enc = strconv.FormatInt(i, 10)
		}
		return LeafRecord{Path: path, Type: core.DataTypeInteger, Value: &enc}
	}
	enc := literal
	if f, err := strconv.ParseFloat(literal, 64); err == nil {
		enc = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return LeafRecord{Path: path, Type: core.DataTypeNumber, Value: &enc}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
