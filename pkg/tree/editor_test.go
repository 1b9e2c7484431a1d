package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
)

func TestEditorNestedPaths(t *testing.T) {
	store := object.NewMemoryStore()
	schema := object.HashBytes([]byte("roads-type"))

	e, err := NewEditor(store, object.NullHash)
	require.NoError(t, err)
	require.NoError(t, e.SetTree("roads", schema))
	require.NoError(t, e.Put("roads/r1", recordNode("r1")))
	require.NoError(t, e.Put("roads/r2", recordNode("r2")))
	require.NoError(t, e.Put("parcels/p1", recordNode("p1")))
	root, err := e.Build()
	require.NoError(t, err)

	rootTree, err := store.ReadTree(root)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rootTree.Size)

	n, inherited, ok, err := Find(store, root, "roads/r2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, recordNode("r2").ID, n.ID)
	assert.Equal(t, schema, inherited)

	roads, _, ok, err := Find(store, root, "roads")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, roads.IsTree())
	assert.Equal(t, schema, roads.MetadataID)

	_, _, _, err = Find(store, root, "roads/r1/deeper")
	assert.ErrorIs(t, err, ErrNotATree)
}

func TestEditorRemoveAndRebuildRestoresRoot(t *testing.T) {
	store := object.NewMemoryStore()
	e, err := NewEditor(store, object.NullHash)
	require.NoError(t, err)
	require.NoError(t, e.Put("a/x", recordNode("x")))
	before, err := e.Build()
	require.NoError(t, err)

	e, err = NewEditor(store, before)
	require.NoError(t, err)
	require.NoError(t, e.Put("a/y", recordNode("y")))
	mid, err := e.Build()
	require.NoError(t, err)
	assert.NotEqual(t, before, mid)

	removed, err := e.Remove("a/y")
	require.NoError(t, err)
	assert.True(t, removed)
	after, err := e.Build()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	removed, err = e.Remove("missing/z")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestWalkRecordsInheritsMetadata(t *testing.T) {
	store := object.NewMemoryStore()
	schema := object.HashBytes([]byte("s"))
	override := object.HashBytes([]byte("o"))
	e, err := NewEditor(store, object.NullHash)
	require.NoError(t, err)
	require.NoError(t, e.SetTree("layer", schema))
	require.NoError(t, e.Put("layer/a", recordNode("a")))
	n := recordNode("b")
	n.MetadataID = override
	require.NoError(t, e.Put("layer/b", n))
	root, err := e.Build()
	require.NoError(t, err)

	got := map[string]object.Hash{}
	require.NoError(t, WalkRecords(context.Background(), store, root, func(path string, _ object.Node, md object.Hash) error {
		got[path] = md
		return nil
	}))
	assert.Equal(t, map[string]object.Hash{"layer/a": schema, "layer/b": override}, got)
}
