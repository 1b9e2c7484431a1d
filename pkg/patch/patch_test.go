package patch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

type fixture struct {
	t      *testing.T
	store  *object.Store
	roads  object.Hash
	rails  object.Hash
	base   object.Hash
	edited object.Hash
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, store: object.NewMemoryStore()}
	var err error
	f.roads, err = f.store.WriteRecordType(&object.RecordTypeObj{Name: "road", Attributes: []object.AttributeDescriptor{
		{Name: "name", Type: "string"}, {Name: "lanes", Type: "int"},
	}})
	require.NoError(t, err)
	f.rails, err = f.store.WriteRecordType(&object.RecordTypeObj{Name: "rail", Attributes: []object.AttributeDescriptor{
		{Name: "name", Type: "string"}, {Name: "gauge", Type: "float"},
	}})
	require.NoError(t, err)

	f.base = f.edit("", func(e *tree.Editor) {
		require.NoError(t, e.SetTree("roads", f.roads))
		f.put(e, "roads/r1", nil, object.String("High St"), object.Int(2))
		f.put(e, "roads/r2", nil, object.String("Mill Ln"), object.Int(1))
		f.put(e, "roads/r3", &object.Extent{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}, object.String("Quay Rd"), object.Int(4))
	})
	f.edited = f.edit(f.base, func(e *tree.Editor) {
		f.put(e, "roads/r1", nil, object.String("High St"), object.Int(3))
		_, err := e.Remove("roads/r2")
		require.NoError(t, err)
		f.put(e, "roads/r4", nil, object.String("New Rd"), object.Int(2))
		require.NoError(t, e.SetTree("rails", f.rails))
		f.put(e, "rails/l1", nil, object.String("Main Line"), object.Float(1.435))
	})
	return f
}

func (f *fixture) put(e *tree.Editor, path string, ext *object.Extent, vals ...object.Value) {
	f.t.Helper()
	id, err := f.store.WriteRecord(&object.RecordObj{Values: vals})
	require.NoError(f.t, err)
	require.NoError(f.t, e.Put(path, object.Node{Kind: object.NodeRecord, ID: id, Extent: ext}))
}

func (f *fixture) edit(base object.Hash, fn func(e *tree.Editor)) object.Hash {
	f.t.Helper()
	e, err := tree.NewEditor(f.store, base)
	require.NoError(f.t, err)
	fn(e)
	id, err := e.Build()
	require.NoError(f.t, err)
	return id
}

func (f *fixture) create(from, to object.Hash) *Patch {
	f.t.Helper()
	p, err := Create(context.Background(), f.store, from, to)
	require.NoError(f.t, err)
	return p
}

func TestCreateClassifiesEntries(t *testing.T) {
	f := newFixture(t)
	p := f.create(f.base, f.edited)

	require.Len(t, p.Added, 2)
	types := map[string]object.Hash{}
	for _, r := range p.Added {
		types[r.Path] = r.TypeID
	}
	assert.Equal(t, map[string]object.Hash{"rails/l1": f.rails, "roads/r4": f.roads}, types)
	require.Len(t, p.Removed, 1)
	assert.Equal(t, "roads/r2", p.Removed[0].Path)
	require.Len(t, p.Modified, 1)
	require.Len(t, p.Modified[0].Attributes, 1)
	assert.Equal(t, "lanes", p.Modified[0].Attributes[0].Name)
	assert.Equal(t, []TreeChange{{Path: "rails", Change: diff.Added, NewType: f.rails}}, p.AlteredTrees)
	assert.Contains(t, p.Types, f.roads)
	assert.Contains(t, p.Types, f.rails)
	assert.Equal(t, 5, p.Count())
}

func TestApplyThenReverseRestoresTree(t *testing.T) {
	f := newFixture(t)
	p := f.create(f.base, f.edited)

	got, rejected, err := Apply(context.Background(), f.store, f.base, p, false)
	require.NoError(t, err)
	assert.True(t, rejected.IsEmpty())
	assert.Equal(t, f.edited, got)

	back, _, err := Apply(context.Background(), f.store, got, p.Reversed(), false)
	require.NoError(t, err)
	assert.Equal(t, f.base, back)
}

func TestReversedTwiceIsIdentity(t *testing.T) {
	f := newFixture(t)
	p := f.create(f.base, f.edited)
	assert.True(t, p.Reversed().Reversed().Equal(p))
	assert.False(t, p.Reversed().Equal(p))
}

func TestApplyOntoFreshStore(t *testing.T) {
	f := newFixture(t)
	p := f.create(f.base, f.edited)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))
	decoded, err := Read(&buf)
	require.NoError(t, err)

	other := object.NewMemoryStore()
	base, err := Create(context.Background(), f.store, "", f.base)
	require.NoError(t, err)
	seeded, _, err := Apply(context.Background(), other, "", base, false)
	require.NoError(t, err)
	require.Equal(t, f.base, seeded)

	got, _, err := Apply(context.Background(), other, seeded, decoded, false)
	require.NoError(t, err)
	assert.Equal(t, f.edited, got)
}

func TestApplyKindChange(t *testing.T) {
	f := newFixture(t)
	asRecord := f.edit(f.base, func(e *tree.Editor) {
		f.put(e, "junction", nil, object.String("J1"))
	})
	asTree := f.edit(f.base, func(e *tree.Editor) {
		f.put(e, "junction/a", nil, object.String("J1a"))
		f.put(e, "junction/b", nil, object.String("J1b"))
	})

	p := f.create(asRecord, asTree)
	got, _, err := Apply(context.Background(), f.store, asRecord, p, false)
	require.NoError(t, err)
	assert.Equal(t, asTree, got)

	back, _, err := Apply(context.Background(), f.store, asTree, p.Reversed(), false)
	require.NoError(t, err)
	assert.Equal(t, asRecord, back)
}

func TestApplyStalePatchFails(t *testing.T) {
	f := newFixture(t)
	p := f.create(f.base, f.edited)

	_, _, err := Apply(context.Background(), f.store, f.edited, p, false)
	var cannot *CannotApplyError
	require.True(t, errors.As(err, &cannot))
	assert.Equal(t, p.Count(), cannot.Rejected.Count())
}

func TestPartialApplyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.create(f.base, f.edited)

	drifted := f.edit(f.base, func(e *tree.Editor) {
		f.put(e, "roads/r1", nil, object.String("High Street"), object.Int(2))
		f.put(e, "roads/r4", nil, object.String("Other Rd"), object.Int(1))
	})

	_, _, err := Apply(context.Background(), f.store, drifted, p, false)
	require.Error(t, err)

	got, rejected, err := Apply(context.Background(), f.store, drifted, p, true)
	require.NoError(t, err)
	require.Len(t, rejected.Modified, 1)
	require.Len(t, rejected.Added, 1)
	assert.Equal(t, "roads/r4", rejected.Added[0].Path)
	assert.Equal(t, 2, rejected.Count())

	_, _, found, err := tree.Find(f.store, got, "rails/l1")
	require.NoError(t, err)
	assert.True(t, found, "accepted entries are applied")
	_, _, gone, err := tree.Find(f.store, got, "roads/r2")
	require.NoError(t, err)
	assert.False(t, gone)

	again, rejectedAgain, err := Apply(context.Background(), f.store, got, rejected, true)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.True(t, rejected.Equal(rejectedAgain))
}

func TestTreeRemovalWaitsForRejectedChildren(t *testing.T) {
	f := newFixture(t)
	withoutRoads := f.edit(f.base, func(e *tree.Editor) {
		_, err := e.Remove("roads")
		require.NoError(t, err)
	})
	p := f.create(f.base, withoutRoads)

	drifted := f.edit(f.base, func(e *tree.Editor) {
		f.put(e, "roads/r3", nil, object.String("Quay Rd"), object.Int(5))
	})
	got, rejected, err := Apply(context.Background(), f.store, drifted, p, true)
	require.NoError(t, err)
	require.Len(t, rejected.Removed, 1)
	require.Len(t, rejected.AlteredTrees, 1)
	assert.Equal(t, "roads", rejected.AlteredTrees[0].Path)

	n, _, found, err := tree.Find(f.store, got, "roads/r3")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, n.IsTree())
}

func TestSchemaChangeOnTree(t *testing.T) {
	f := newFixture(t)
	retyped := f.edit(f.base, func(e *tree.Editor) {
		require.NoError(t, e.SetTree("roads", f.rails))
	})
	p := f.create(f.base, retyped)
	assert.Equal(t, []TreeChange{{Path: "roads", Change: diff.Modified, OldType: f.roads, NewType: f.rails}}, p.AlteredTrees)

	got, _, err := Apply(context.Background(), f.store, f.base, p, false)
	require.NoError(t, err)
	assert.Equal(t, retyped, got)

	_, _, err = Apply(context.Background(), f.store, retyped, p, false)
	require.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	f := newFixture(t)
	p := f.create(f.base, f.edited)

	var plain bytes.Buffer
	require.NoError(t, Write(&plain, p))
	assert.Contains(t, plain.String(), "roads/r4")
	decoded, err := Read(bytes.NewReader(plain.Bytes()))
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
	assert.Equal(t, len(p.Types), len(decoded.Types))

	var packed bytes.Buffer
	require.NoError(t, WriteCompressed(&packed, p))
	unpacked, err := ReadCompressed(&packed)
	require.NoError(t, err)
	assert.True(t, p.Equal(unpacked))
}

func TestReadRejectsTamperedType(t *testing.T) {
	doc := "version: 1\ntypes:\n  - id: deadbeef\n    name: road\n    attributes: []\n"
	_, err := Read(bytes.NewBufferString(doc))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Read(bytes.NewBufferString("version: 9\n"))
	assert.ErrorIs(t, err, ErrFormat)
}
