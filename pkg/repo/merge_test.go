package repo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// diverge seeds main, then commits one change on feature and one on main.
func diverge(t *testing.T, onFeature, onMain func(tr *testRepo)) (*testRepo, object.Hash, object.Hash) {
	t.Helper()
	tr := newTestRepo(t)
	tr.seed()
	tr.branch("feature")
	tr.checkout("feature")
	onFeature(tr)
	feature := tr.commit("feature work")
	tr.checkout("main")
	onMain(tr)
	main := tr.commit("main work")
	return tr, main, feature
}

func TestMergeFastForward(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.branch("feature")
	tr.checkout("feature")
	tr.put("r3", 2, "gravel")
	feature := tr.commit("add r3")
	tr.checkout("main")

	res, err := tr.Merge(tr.ctx, MergeOptions{}, "feature")
	require.NoError(t, err)
	assert.True(t, res.FastForward)
	assert.Equal(t, feature, res.Commit)
	assert.Equal(t, feature, tr.tip())

	res, err = tr.Merge(tr.ctx, MergeOptions{}, string(first))
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Equal(t, feature, tr.tip())
}

func TestMergeNoFastForward(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.branch("feature")
	tr.checkout("feature")
	tr.put("r3", 2, "gravel")
	feature := tr.commit("add r3")
	tr.checkout("main")

	res, err := tr.Merge(tr.ctx, MergeOptions{FastForward: FastForwardNever}, "feature")
	require.NoError(t, err)
	assert.False(t, res.FastForward)
	c := tr.commitObj(res.Commit)
	assert.Equal(t, []object.Hash{first, feature}, c.Parents)
	assert.Equal(t, "Merge branch 'feature'", c.Message)
	assert.Equal(t, tr.commitObj(feature).TreeHash, c.TreeHash)
}

func TestMergeFastForwardOnlyRefusesDivergence(t *testing.T) {
	tr, main, _ := diverge(t,
		func(tr *testRepo) { tr.put("r3", 2, "gravel") },
		func(tr *testRepo) { tr.put("r4", 1, "dirt") })
	_, err := tr.Merge(tr.ctx, MergeOptions{FastForward: FastForwardOnly}, "feature")
	require.ErrorIs(t, err, ErrNotFastForward)
	assert.Equal(t, main, tr.tip())
}

func TestMergeAutoMergesRecordAttributes(t *testing.T) {
	tr, main, feature := diverge(t,
		func(tr *testRepo) { tr.put("r1", 2, "concrete") },
		func(tr *testRepo) { tr.put("r1", 4, "asphalt") })

	res, err := tr.Merge(tr.ctx, MergeOptions{}, "feature")
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 1, res.Report.Merged)
	c := tr.commitObj(res.Commit)
	assert.Equal(t, []object.Hash{main, feature}, c.Parents)
	assert.EqualValues(t, 4, tr.lanes(c.TreeHash, "r1"))
	assert.Equal(t, "concrete", tr.surface(c.TreeHash, "r1"))

	st, err := tr.Status(tr.ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())
}

func TestMergeConflictContinue(t *testing.T) {
	tr, main, feature := diverge(t,
		func(tr *testRepo) { tr.put("r1", 3, "asphalt") },
		func(tr *testRepo) { tr.put("r1", 4, "asphalt") })

	_, err := tr.Merge(tr.ctx, MergeOptions{Message: "merge feature"}, "feature")
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, OpMerge, ce.Kind)
	require.Len(t, ce.Conflicts, 1)
	assert.Equal(t, "roads/r1", ce.Conflicts[0].Path)
	assert.Equal(t, main, tr.tip())

	mergeHead, err := refs.Resolve(tr.Refs, refs.MergeHead)
	require.NoError(t, err)
	assert.Equal(t, feature, mergeHead)

	// Other operations are refused while the merge is suspended.
	_, err = tr.CherryPick(tr.ctx, "feature")
	require.ErrorIs(t, err, ErrOperationInProgress)
	_, err = tr.Continue(tr.ctx)
	require.ErrorIs(t, err, ErrUnresolvedConflicts)
	_, err = tr.Skip(tr.ctx)
	require.ErrorIs(t, err, ErrCannotSkip)

	require.NoError(t, tr.ResolveConflict(tr.ctx, "roads/r1", ResolveTheirs))
	st, err := tr.Continue(tr.ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, st.Status)

	c := tr.commitObj(tr.tip())
	assert.Equal(t, []object.Hash{main, feature}, c.Parents)
	assert.Equal(t, "merge feature", c.Message)
	assert.EqualValues(t, 3, tr.lanes(c.TreeHash, "r1"))
	_, err = tr.Operation()
	assert.ErrorIs(t, err, ErrNoOperation)
	_, err = tr.Refs.Read(refs.MergeHead)
	assert.ErrorIs(t, err, refs.ErrNotFound)
}

func TestMergeConflictAbort(t *testing.T) {
	tr, main, _ := diverge(t,
		func(tr *testRepo) { tr.put("r1", 3, "asphalt") },
		func(tr *testRepo) { tr.put("r1", 4, "asphalt") })
	headTree := tr.headTree()

	_, err := tr.Merge(tr.ctx, MergeOptions{}, "feature")
	require.Error(t, err)
	st, err := tr.Abort(tr.ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, st.Status)
	assert.Equal(t, main, tr.tip())
	work, err := tr.WorkingTree()
	require.NoError(t, err)
	assert.Equal(t, headTree, work)
	_, err = tr.Abort(tr.ctx)
	assert.ErrorIs(t, err, ErrNoOperation)
}

func TestMergeDeleteModifyConflict(t *testing.T) {
	tr, _, _ := diverge(t,
		func(tr *testRepo) { tr.put("r2", 5, "gravel") },
		func(tr *testRepo) { tr.remove("r2") })

	_, err := tr.Merge(tr.ctx, MergeOptions{}, "feature")
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Conflicts, 1)
	c := ce.Conflicts[0]
	assert.Equal(t, "roads/r2", c.Path)
	assert.True(t, c.Ours.IsNull())
	assert.False(t, c.Theirs.IsNull())
	assert.False(t, c.Ancestor.IsNull())

	conflicts, err := tr.Conflicts()
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	require.NoError(t, tr.ResolveConflict(tr.ctx, "roads/r2", ResolveOurs))
	_, err = tr.Continue(tr.ctx)
	require.NoError(t, err)
	assert.Nil(t, tr.record(tr.headTree(), "r2"))
}

func TestMergeStrategies(t *testing.T) {
	for _, tc := range []struct {
		strategy merge.Strategy
		lanes    int64
	}{
		{merge.StrategyOurs, 4},
		{merge.StrategyTheirs, 3},
	} {
		t.Run(tc.strategy.String(), func(t *testing.T) {
			tr, _, _ := diverge(t,
				func(tr *testRepo) { tr.put("r1", 3, "asphalt") },
				func(tr *testRepo) { tr.put("r1", 4, "asphalt") })
			res, err := tr.Merge(tr.ctx, MergeOptions{Strategy: tc.strategy}, "feature")
			require.NoError(t, err)
			assert.Equal(t, tc.lanes, tr.lanes(tr.commitObj(res.Commit).TreeHash, "r1"))
		})
	}
}

func TestOctopusMerge(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.branch("a")
	tr.branch("b")
	tr.checkout("a")
	tr.put("r3", 1, "dirt")
	a := tr.commit("add r3")
	tr.checkout("b")
	tr.put("r4", 2, "gravel")
	b := tr.commit("add r4")
	tr.checkout("main")

	res, err := tr.Merge(tr.ctx, MergeOptions{}, "a", "b")
	require.NoError(t, err)
	c := tr.commitObj(res.Commit)
	assert.Equal(t, []object.Hash{first, a, b}, c.Parents)
	assert.Equal(t, "Merge branch 'a', branch 'b'", c.Message)
	assert.NotNil(t, tr.record(c.TreeHash, "r3"))
	assert.NotNil(t, tr.record(c.TreeHash, "r4"))
}

func TestOctopusRefusesConflicts(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.branch("a")
	tr.branch("b")
	tr.checkout("a")
	tr.put("r1", 5, "asphalt")
	tr.commit("r1 five lanes")
	tr.checkout("b")
	tr.put("r1", 6, "asphalt")
	tr.commit("r1 six lanes")
	tr.checkout("main")

	_, err := tr.Merge(tr.ctx, MergeOptions{}, "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOctopusConflicts))
	assert.Equal(t, first, tr.tip())
	_, err = tr.Operation()
	assert.ErrorIs(t, err, ErrNoOperation)
}
