package flatten

import (
	"testing"

	"github.com/jchristn/lattice/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(path string, dt core.DataType, value string) LeafRecord {
	return LeafRecord{Path: path, Type: dt, Value: &value}
}

func TestFlatten_SimpleObject(t *testing.T) {
	leaves, err := Flatten([]byte(`{"Name":"Joel","Age":30,"Active":true}`))
	require.NoError(t, err)
	assert.Equal(t, []LeafRecord{
		leaf("Name", core.DataTypeString, "Joel"),
		leaf("Age", core.DataTypeInteger, "30"),
		leaf("Active", core.DataTypeBoolean, "true"),
	}, leaves)
}

func TestFlatten_NestedObjectPaths(t *testing.T) {
	leaves, err := Flatten([]byte(`{"Person":{"Name":{"First":"Joel"}}}`))
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "Person.Name.First", leaves[0].Path)
	assert.Equal(t, core.DataTypeString, leaves[0].Type)
	assert.Equal(t, "Joel", *leaves[0].Value)
}

func TestFlatten_ArraysDoNotAddSegments(t *testing.T) {
	leaves, err := Flatten([]byte(`{"Tags":["red","green","blue"]}`))
	require.NoError(t, err)
	require.Len(t, leaves, 3)
	for i, want := range []string{"red", "green", "blue"} {
		assert.Equal(t, "Tags", leaves[i].Path)
		assert.Equal(t, want, *leaves[i].Value)
	}
}

func TestFlatten_ObjectsInsideArrays(t *testing.T) {
	leaves, err := Flatten([]byte(`{"Items":[{"Sku":"a"},{"Sku":"b"}]}`))
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, "Items.Sku", leaves[0].Path)
	assert.Equal(t, "a", *leaves[0].Value)
	assert.Equal(t, "Items.Sku", leaves[1].Path)
	assert.Equal(t, "b", *leaves[1].Value)
}

func TestFlatten_NumberClassification(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		dtype   core.DataType
		encoded string
	}{
		{"whole", `{"N":42}`, core.DataTypeInteger, "42"},
		{"negative", `{"N":-7}`, core.DataTypeInteger, "-7"},
		{"fractional", `{"N":3.14}`, core.DataTypeNumber, "3.14"},
		{"wholeWithFraction", `{"N":2.0}`, core.DataTypeNumber, "2"},
		{"exponent", `{"N":1e3}`, core.DataTypeNumber, "1000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			leaves, err := Flatten([]byte(tc.body))
			require.NoError(t, err)
			require.Len(t, leaves, 1)
			assert.Equal(t, tc.dtype, leaves[0].Type)
			assert.Equal(t, tc.encoded, *leaves[0].Value)
		})
	}
}

func TestFlatten_NullSentinel(t *testing.T) {
	leaves, err := Flatten([]byte(`{"Gone":null}`))
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.True(t, leaves[0].IsNull())
	assert.Equal(t, core.DataTypeNull, leaves[0].Type)
}

func TestFlatten_EmptyContainersEmitNothing(t *testing.T) {
	for _, body := range []string{`{}`, `{"A":{}}`, `{"A":[]}`, `[]`} {
		leaves, err := Flatten([]byte(body))
		require.NoError(t, err)
		assert.Empty(t, leaves, body)
	}
}

func TestFlatten_PreservesInsertionOrder(t *testing.T) {
	leaves, err := Flatten([]byte(`{"b":1,"a":2,"c":{"z":3,"y":4}}`))
	require.NoError(t, err)
	paths := make([]string, len(leaves))
	for i, l := range leaves {
		paths[i] = l.Path
	}
	assert.Equal(t, []string{"b", "a", "c.z", "c.y"}, paths)
}

func TestFlatten_RejectsMalformedInput(t *testing.T) {
	for _, body := range []string{``, `{`, `"scalar"`, `42`, `{"a":1} trailing`} {
		_, err := Flatten([]byte(body))
		assert.Error(t, err, body)
	}
}
