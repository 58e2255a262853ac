package schema

import (
	"testing"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/flatten"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFlatten(t *testing.T, body string) []flatten.LeafRecord {
	t.Helper()
	leaves, err := flatten.Flatten([]byte(body))
	require.NoError(t, err)
	return leaves
}

func TestCanonicalElements_CollapsesArrayDuplicates(t *testing.T) {
	elements := CanonicalElements(mustFlatten(t, `{"Tags":["red","green","blue"]}`))
	require.Len(t, elements, 1)
	assert.Equal(t, "Tags", elements[0].Key)
	assert.Equal(t, core.DataTypeString, elements[0].DataType)
	assert.False(t, elements[0].Nullable)
}

func TestCanonicalElements_NullThenValueIsNullable(t *testing.T) {
	elements := CanonicalElements(mustFlatten(t, `{"A":[null,42]}`))
	require.Len(t, elements, 1)
	assert.Equal(t, core.DataTypeInteger, elements[0].DataType)
	assert.True(t, elements[0].Nullable)
}

func TestCanonicalElements_ValueThenNullIsNullable(t *testing.T) {
	elements := CanonicalElements(mustFlatten(t, `{"A":[42,null]}`))
	require.Len(t, elements, 1)
	assert.Equal(t, core.DataTypeInteger, elements[0].DataType)
	assert.True(t, elements[0].Nullable)
}

func TestCanonicalElements_NullOnlyPathIsNullableString(t *testing.T) {
	// A path whose only occurrences are null carries no type evidence;
	// it is stored as a nullable string rather than dataType "null".
	elements := CanonicalElements(mustFlatten(t, `{"A":null}`))
	require.Len(t, elements, 1)
	assert.Equal(t, core.DataTypeString, elements[0].DataType)
	assert.True(t, elements[0].Nullable)
}

func TestCanonicalElements_ConflictingTypesWidenToString(t *testing.T) {
	elements := CanonicalElements(mustFlatten(t, `{"A":[42,"x"]}`))
	require.Len(t, elements, 1)
	assert.Equal(t, core.DataTypeString, elements[0].DataType)
	assert.True(t, elements[0].Nullable)
}

func TestCanonicalElements_PreservesFirstSeenOrder(t *testing.T) {
	elements := CanonicalElements(mustFlatten(t, `{"b":1,"a":"x","c":{"z":true}}`))
	require.Len(t, elements, 3)
	assert.Equal(t, "b", elements[0].Key)
	assert.Equal(t, "a", elements[1].Key)
	assert.Equal(t, "c.z", elements[2].Key)
}

func TestFingerprint_StableAcrossIdenticalShapes(t *testing.T) {
	a := Fingerprint(CanonicalElements(mustFlatten(t, `{"Name":"A"}`)))
	b := Fingerprint(CanonicalElements(mustFlatten(t, `{"Name":"B"}`)))
	assert.Equal(t, a, b, "identical shapes must share a fingerprint")

	c := Fingerprint(CanonicalElements(mustFlatten(t, `{"Age":30}`)))
	assert.NotEqual(t, a, c, "different shapes must not share a fingerprint")
}

func TestFingerprint_SensitiveToTypeAndOrder(t *testing.T) {
	intShape := Fingerprint(CanonicalElements(mustFlatten(t, `{"N":1}`)))
	numShape := Fingerprint(CanonicalElements(mustFlatten(t, `{"N":1.5}`)))
	assert.NotEqual(t, intShape, numShape)

	ab := Fingerprint(CanonicalElements(mustFlatten(t, `{"a":1,"b":2}`)))
	ba := Fingerprint(CanonicalElements(mustFlatten(t, `{"b":2,"a":1}`)))
	assert.NotEqual(t, ab, ba, "first-seen order is part of the identity")
}

func TestFingerprint_EmptyObject(t *testing.T) {
	elements := CanonicalElements(mustFlatten(t, `{}`))
	assert.Empty(t, elements)
	assert.NotEmpty(t, Fingerprint(elements))
}
