package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchristn/lattice/core"
)

func TestStore_PutGetDelete(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	body := []byte(`{"Name":"Joel"}`)
	require.NoError(t, s.Put(ctx, "col_abc", "doc_1", body))

	got, err := s.Get(ctx, "col_abc", "doc_1")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	// Overwrite replaces the body in place.
	body2 := []byte(`{"Name":"Maria"}`)
	require.NoError(t, s.Put(ctx, "col_abc", "doc_1", body2))
	got, err = s.Get(ctx, "col_abc", "doc_1")
	require.NoError(t, err)
	assert.Equal(t, body2, got)

	require.NoError(t, s.Delete(ctx, "col_abc", "doc_1"))
	_, err = s.Get(ctx, "col_abc", "doc_1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Deleting an absent body is not an error.
	assert.NoError(t, s.Delete(ctx, "col_abc", "doc_1"))
}

func TestStore_DeleteCollection(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "col_abc", "doc_1", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "col_abc", "doc_2", []byte(`{}`)))

	require.NoError(t, s.DeleteCollection(ctx, "col_abc"))
	_, err = s.Get(ctx, "col_abc", "doc_1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
