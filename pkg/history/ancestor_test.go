package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
)

type fixture struct {
	t     *testing.T
	store *object.Store
	n     int
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, store: object.NewMemoryStore()}
}

func (f *fixture) commit(parents ...object.Hash) object.Hash {
	f.t.Helper()
	f.n++
	who := object.Person{Name: "tester", Email: "t@example.com", When: int64(1_700_000_000 + f.n)}
	h, err := f.store.WriteCommit(&object.CommitObj{
		TreeHash:  object.EmptyTreeHash,
		Parents:   parents,
		Author:    who,
		Committer: who,
		Message:   fmt.Sprintf("commit %d", f.n),
	})
	require.NoError(f.t, err)
	return h
}

func (f *fixture) chain(from object.Hash, n int) object.Hash {
	cur := from
	for i := 0; i < n; i++ {
		cur = f.commit(cur)
	}
	return cur
}

func setTraversalLimitsForTest(t *testing.T, maxSteps, maxDepth int) {
	t.Helper()
	prevSteps, prevDepth := traversalStepsLimit, traversalDepthLimit
	traversalStepsLimit, traversalDepthLimit = maxSteps, maxDepth
	t.Cleanup(func() {
		traversalStepsLimit, traversalDepthLimit = prevSteps, prevDepth
	})
}

func TestCommonAncestorLinearHistory(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	mid := f.chain(root, 3)
	tip := f.chain(mid, 4)
	g := NewGraph(f.store)

	base, found, err := g.FindCommonAncestor(context.Background(), mid, tip)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, mid, base)

	base, found, err = g.FindCommonAncestor(context.Background(), tip, tip)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tip, base)
}

func TestCommonAncestorDiamond(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	a := f.commit(root)
	b := f.commit(root)
	m := f.commit(a, b)
	x := f.commit(a)
	g := NewGraph(f.store)

	base, found, err := g.FindCommonAncestor(context.Background(), m, x)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, a, base)

	base, _, err = g.FindCommonAncestor(context.Background(), x, m)
	require.NoError(t, err)
	assert.Equal(t, a, base, "result must not depend on argument order")
}

func TestCommonAncestorDivergedBranches(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	fork := f.chain(root, 2)
	left := f.chain(fork, 5)
	right := f.chain(fork, 2)
	g := NewGraph(f.store)

	base, found, err := g.FindCommonAncestor(context.Background(), left, right)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, fork, base)
}

func TestCommonAncestorCrissCrossIsDeterministic(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	a1 := f.commit(root)
	b1 := f.commit(root)
	a2 := f.commit(a1, b1)
	b2 := f.commit(b1, a1)

	want := min(a1, b1)
	for i := 0; i < 3; i++ {
		g := NewGraph(f.store)
		base, found, err := g.FindCommonAncestor(context.Background(), a2, b2)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, base)

		base, _, err = g.FindCommonAncestor(context.Background(), b2, a2)
		require.NoError(t, err)
		assert.Equal(t, want, base)
	}
}

func TestCommonAncestorOctopusMerge(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	p1 := f.commit(root)
	p2 := f.commit(root)
	p3 := f.commit(root)
	octo := f.commit(p1, p2, p3)
	side := f.commit(p3)
	g := NewGraph(f.store)

	base, found, err := g.FindCommonAncestor(context.Background(), octo, side)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p3, base)

	base, _, err = g.FindCommonAncestor(context.Background(), octo, f.commit(p1, p2))
	require.NoError(t, err)
	assert.Contains(t, []object.Hash{p1, p2}, base)
	assert.Equal(t, min(p1, p2), base)
}

func TestCommonAncestorDisjointHistories(t *testing.T) {
	f := newFixture(t)
	a := f.chain(f.commit(), 2)
	b := f.chain(f.commit(), 3)
	g := NewGraph(f.store)

	_, found, err := g.FindCommonAncestor(context.Background(), a, b)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCommonAncestorIsCached(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	left := f.chain(root, 3)
	right := f.chain(root, 3)
	g := NewGraph(f.store)

	_, _, err := g.FindCommonAncestor(context.Background(), left, right)
	require.NoError(t, err)
	_, _, cached := g.cacheSizes()
	assert.Equal(t, 1, cached)

	_, _, err = g.FindCommonAncestor(context.Background(), right, left)
	require.NoError(t, err)
	_, _, cached = g.cacheSizes()
	assert.Equal(t, 1, cached)
}

func TestIsAncestor(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	a := f.chain(root, 2)
	b := f.chain(root, 2)
	g := NewGraph(f.store)
	ctx := context.Background()

	ok, err := g.IsAncestor(ctx, root, a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsAncestor(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.IsAncestor(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerationDetectsCycle(t *testing.T) {
	store := object.NewMemoryStore()
	x := object.HashBytes([]byte("x"))
	y := object.HashBytes([]byte("y"))
	who := object.Person{Name: "n", Email: "e"}
	_, err := store.Backend().Put(x, object.TypeCommit, object.MarshalCommit(&object.CommitObj{TreeHash: object.EmptyTreeHash, Parents: []object.Hash{y}, Author: who, Committer: who}))
	require.NoError(t, err)
	_, err = store.Backend().Put(y, object.TypeCommit, object.MarshalCommit(&object.CommitObj{TreeHash: object.EmptyTreeHash, Parents: []object.Hash{x}, Author: who, Committer: who}))
	require.NoError(t, err)

	_, err = NewGraph(store).Generation(context.Background(), x)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestTraversalStepLimit(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	left := f.chain(root, 20)
	right := f.chain(root, 20)
	setTraversalLimitsForTest(t, 5, 0)

	g := NewGraph(f.store)
	_, _, err := g.FindCommonAncestor(context.Background(), left, right)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum steps")
}

func TestCommonAncestorHonorsCancellation(t *testing.T) {
	f := newFixture(t)
	root := f.commit()
	left := f.chain(root, 3)
	right := f.chain(root, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGraph(f.store)
	_, _, err := g.FindCommonAncestor(ctx, left, right)
	assert.ErrorIs(t, err, context.Canceled)
}
