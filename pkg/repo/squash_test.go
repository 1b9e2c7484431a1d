package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
)

// linearHistory returns seed plus four commits on main, oldest first.
func linearHistory(t *testing.T) (*testRepo, []object.Hash) {
	t.Helper()
	tr := newTestRepo(t)
	ids := []object.Hash{tr.seed()}
	tr.put("r1", 3, "asphalt")
	ids = append(ids, tr.commit("widen r1"))
	tr.put("r3", 1, "dirt")
	ids = append(ids, tr.commit("add r3"))
	tr.put("r2", 5, "gravel")
	ids = append(ids, tr.commit("widen r2"))
	tr.put("r4", 2, "gravel")
	ids = append(ids, tr.commit("add r4"))
	return tr, ids
}

func TestSquashLinearRange(t *testing.T) {
	tr, ids := linearHistory(t)
	before := tr.headTree()

	tip, err := tr.Squash(tr.ctx, string(ids[1]), string(ids[3]), "")
	require.NoError(t, err)
	assert.Equal(t, tip, tr.tip())
	assert.Equal(t, before, tr.headTree())

	log, err := tr.Log(tr.ctx, "HEAD", 0)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, ids[0], log[2].ID)

	squashed := log[1].Commit
	assert.Equal(t, []object.Hash{ids[0]}, squashed.Parents)
	assert.Equal(t, tr.commitObj(ids[3]).TreeHash, squashed.TreeHash)
	assert.Equal(t, "widen r1", squashed.Message)
	assert.Equal(t, tr.commitObj(ids[3]).Author, squashed.Author)

	replayed := log[0].Commit
	assert.Equal(t, "add r4", replayed.Message)
	assert.Equal(t, []object.Hash{log[1].ID}, replayed.Parents)
	assert.Equal(t, tr.commitObj(ids[4]).TreeHash, replayed.TreeHash)
}

func TestSquashToTipWithMessage(t *testing.T) {
	tr, ids := linearHistory(t)
	tip, err := tr.Squash(tr.ctx, string(ids[2]), "HEAD", "squashed")
	require.NoError(t, err)
	c := tr.commitObj(tip)
	assert.Equal(t, "squashed", c.Message)
	assert.Equal(t, []object.Hash{ids[1]}, c.Parents)
	assert.Equal(t, tr.commitObj(ids[4]).TreeHash, c.TreeHash)
}

func TestSquashValidation(t *testing.T) {
	tr, ids := linearHistory(t)

	_, err := tr.Squash(tr.ctx, string(ids[0]), string(ids[2]), "")
	assert.ErrorIs(t, err, ErrInvalidSquashRange, "since without parents")

	_, err = tr.Squash(tr.ctx, string(ids[3]), string(ids[1]), "")
	assert.ErrorIs(t, err, ErrInvalidSquashRange, "wrong order")

	_, err = tr.CreateBranch("side", string(ids[2]))
	require.NoError(t, err)
	_, err = tr.Squash(tr.ctx, string(ids[1]), string(ids[3]), "")
	assert.ErrorIs(t, err, ErrInvalidSquashRange, "branch starting point inside the range")

	require.NoError(t, tr.DeleteBranch("side"))
	_, err = tr.CreateBranch("later", string(ids[4]))
	require.NoError(t, err)
	_, err = tr.Squash(tr.ctx, string(ids[1]), string(ids[2]), "")
	assert.NoError(t, err, "a branch at HEAD is not a starting point")

	tr.put("r9", 1, "dirt")
	_, err = tr.Squash(tr.ctx, string(ids[1]), "HEAD", "")
	assert.ErrorIs(t, err, ErrDirtyWorkingTree)
}

func TestSquashDetached(t *testing.T) {
	tr, ids := linearHistory(t)
	tr.checkout(string(ids[4]))
	_, err := tr.Squash(tr.ctx, string(ids[1]), string(ids[3]), "")
	assert.ErrorIs(t, err, ErrDetachedHead)
}

func TestSquashKeepsMergedParents(t *testing.T) {
	tr := newTestRepo(t)
	base := tr.seed()
	tr.branch("feature")
	tr.checkout("feature")
	tr.put("r3", 1, "dirt")
	f1 := tr.commit("add r3")
	tr.checkout("main")
	tr.put("r4", 2, "gravel")
	m1 := tr.commit("add r4")
	res, err := tr.Merge(tr.ctx, MergeOptions{}, "feature")
	require.NoError(t, err)
	tr.put("r2", 5, "gravel")
	tr.commit("widen r2")

	tip, err := tr.Squash(tr.ctx, string(m1), string(res.Commit), "")
	require.NoError(t, err)
	replayed := tr.commitObj(tip)
	require.Len(t, replayed.Parents, 1)
	squashed := tr.commitObj(replayed.Parents[0])
	assert.Equal(t, []object.Hash{base, f1}, squashed.Parents)
	assert.Equal(t, "add r4", squashed.Message)
	assert.Equal(t, tr.commitObj(res.Commit).TreeHash, squashed.TreeHash)
}
