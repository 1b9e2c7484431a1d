package tree

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
)

func recordNode(name string) object.Node {
	return object.Node{Name: name, Kind: object.NodeRecord, ID: object.HashBytes([]byte("rec:" + name))}
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("feature-%05d", i)
	}
	return out
}

func buildFrom(t *testing.T, store *object.Store, entries []string) (*object.TreeObj, object.Hash) {
	t.Helper()
	b := NewBuilder(store)
	for _, name := range entries {
		require.NoError(t, b.Put(recordNode(name)))
	}
	tr, id, err := b.Build()
	require.NoError(t, err)
	return tr, id
}

func TestBuilderDeterministicAcrossPermutations(t *testing.T) {
	for _, n := range []int{0, 1, 37, 512, 513, 2000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			store := object.NewMemoryStore()
			entries := names(n)
			_, want := buildFrom(t, store, entries)
			rng := rand.New(rand.NewSource(int64(n)))
			for i := 0; i < 3; i++ {
				shuffled := slices.Clone(entries)
				rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
				_, got := buildFrom(t, store, shuffled)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestBuilderSplitsPastLimit(t *testing.T) {
	store := object.NewMemoryStore()
	small, _ := buildFrom(t, store, names(object.SplitLimit(0)))
	assert.False(t, small.IsBucketed())
	assert.Equal(t, uint64(512), small.Size)

	big, _ := buildFrom(t, store, names(object.SplitLimit(0)+1))
	require.True(t, big.IsBucketed())
	assert.Equal(t, uint64(513), big.Size)
	var count uint64
	for _, b := range big.Buckets {
		assert.Less(t, b.Index, object.Fanout(0))
		count += b.Count
	}
	assert.Equal(t, uint64(513), count)
}

func TestBuilderRemovalCollapsesToCanonicalForm(t *testing.T) {
	store := object.NewMemoryStore()
	all := names(1200)
	_, bigID := buildFrom(t, store, all)
	_, wantID := buildFrom(t, store, all[:300])

	b, err := Load(store, bigID)
	require.NoError(t, err)
	for _, name := range all[300:] {
		removed, err := b.Remove(name)
		require.NoError(t, err)
		require.True(t, removed)
	}
	tr, id, err := b.Build()
	require.NoError(t, err)
	assert.False(t, tr.IsBucketed())
	assert.Equal(t, wantID, id)
}

func TestBuilderIncrementalEditMatchesFreshBuild(t *testing.T) {
	store := object.NewMemoryStore()
	all := names(3000)
	_, baseID := buildFrom(t, store, all[:2500])

	b, err := Load(store, baseID)
	require.NoError(t, err)
	for _, name := range all[2500:] {
		require.NoError(t, b.Put(recordNode(name)))
	}
	removed, err := b.Remove(all[0])
	require.NoError(t, err)
	assert.True(t, removed)
	_, gotID, err := b.Build()
	require.NoError(t, err)

	_, wantID := buildFrom(t, store, all[1:])
	assert.Equal(t, wantID, gotID)
}

func TestBuilderRemoveMissing(t *testing.T) {
	b := NewBuilder(object.NewMemoryStore())
	removed, err := b.Remove("nope")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Error(t, b.Put(object.Node{Name: "a/b"}))
}

func TestLookupInBucketedTree(t *testing.T) {
	store := object.NewMemoryStore()
	entries := names(1500)
	tr, _ := buildFrom(t, store, entries)
	require.True(t, tr.IsBucketed())

	for _, name := range []string{entries[0], entries[777], entries[1499]} {
		n, ok, err := Lookup(store, tr, name, 0)
		require.NoError(t, err)
		require.True(t, ok, name)
		assert.Equal(t, recordNode(name).ID, n.ID)
	}
	_, ok, err := Lookup(store, tr, "absent", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWalkVisitsCanonicalOrder(t *testing.T) {
	store := object.NewMemoryStore()
	_, id := buildFrom(t, store, names(900))
	var seen []string
	require.NoError(t, Walk(context.Background(), store, id, func(n object.Node) error {
		seen = append(seen, n.Name)
		return nil
	}))
	require.Len(t, seen, 900)
	assert.True(t, slices.IsSortedFunc(seen, object.CompareNames))
}

func TestWalkHonorsCancellation(t *testing.T) {
	store := object.NewMemoryStore()
	_, id := buildFrom(t, store, names(10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Walk(ctx, store, id, func(object.Node) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilderNestedBuckets(t *testing.T) {
	if testing.Short() {
		t.Skip("large tree")
	}
	store := object.NewMemoryStore()
	entries := names(40000)
	tr, id := buildFrom(t, store, entries)
	require.True(t, tr.IsBucketed())
	assert.Equal(t, uint64(40000), tr.Size)

	nested := 0
	for _, bk := range tr.Buckets {
		child, err := store.ReadTree(bk.ID)
		require.NoError(t, err)
		assert.Equal(t, bk.Count, child.Size)
		if child.IsBucketed() {
			nested++
			for _, inner := range child.Buckets {
				assert.Less(t, inner.Index, object.Fanout(1))
			}
		}
	}
	assert.Positive(t, nested, "level-one buckets past the limit split again")

	shuffled := slices.Clone(entries)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
	_, again := buildFrom(t, store, shuffled)
	assert.Equal(t, id, again)

	for _, name := range []string{entries[0], entries[20000], entries[39999]} {
		n, ok, err := Lookup(store, tr, name, 0)
		require.NoError(t, err)
		require.True(t, ok, name)
		assert.Equal(t, recordNode(name).ID, n.ID)
	}

	var count int
	require.NoError(t, Walk(context.Background(), store, id, func(object.Node) error {
		count++
		return nil
	}))
	assert.Equal(t, 40000, count)

	b, err := Load(store, id)
	require.NoError(t, err)
	for _, name := range entries[100:] {
		removed, err := b.Remove(name)
		require.NoError(t, err)
		require.True(t, removed)
	}
	small, smallID, err := b.Build()
	require.NoError(t, err)
	assert.False(t, small.IsBucketed())
	_, want := buildFrom(t, store, entries[:100])
	assert.Equal(t, want, smallID)
}
