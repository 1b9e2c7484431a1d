package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

func TestCommitAndNothingToCommit(t *testing.T) {
	tr := newTestRepo(t)
	_, err := tr.Commit(tr.ctx, CommitOptions{Message: "empty"})
	require.ErrorIs(t, err, ErrNothingToCommit)

	first := tr.seed()
	c := tr.commitObj(first)
	assert.Empty(t, c.Parents)
	assert.Equal(t, "Ada", c.Author.Name)
	assert.Equal(t, "initial roads", c.Message)
	assert.EqualValues(t, 2, tr.lanes(c.TreeHash, "r1"))

	_, err = tr.Commit(tr.ctx, CommitOptions{Message: "again"})
	require.ErrorIs(t, err, ErrNothingToCommit)

	empty, err := tr.Commit(tr.ctx, CommitOptions{Message: "marker", AllowEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, []object.Hash{first}, tr.commitObj(empty).Parents)
	assert.Equal(t, c.TreeHash, tr.commitObj(empty).TreeHash)
}

func TestCommitSigner(t *testing.T) {
	tr := newTestRepo(t)
	tr.put("r1", 2, "asphalt")
	_, err := tr.Add(tr.ctx)
	require.NoError(t, err)
	var signed []byte
	id, err := tr.Commit(tr.ctx, CommitOptions{Message: "signed", Signer: func(payload []byte) (string, error) {
		signed = payload
		return "sig", nil
	}})
	require.NoError(t, err)
	c := tr.commitObj(id)
	assert.Equal(t, "sig", c.Signature)
	assert.Equal(t, object.CommitSigningPayload(c), signed)
}

func TestStatusAndPartialAdd(t *testing.T) {
	tr := newTestRepo(t)
	tr.seed()

	st, err := tr.Status(tr.ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())

	tr.put("r1", 3, "asphalt")
	tr.put("r3", 4, "concrete")
	st, err = tr.Status(tr.ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Staged)
	require.Len(t, st.Unstaged, 2)

	_, err = tr.Add(tr.ctx, "roads/r3")
	require.NoError(t, err)
	st, err = tr.Status(tr.ctx)
	require.NoError(t, err)
	require.Len(t, st.Staged, 1)
	assert.Equal(t, "roads/r3", st.Staged[0].Path())
	assert.Equal(t, diff.Added, st.Staged[0].Type())
	require.Len(t, st.Unstaged, 1)
	assert.Equal(t, "roads/r1", st.Unstaged[0].Path())

	id, err := tr.Commit(tr.ctx, CommitOptions{Message: "add r3"})
	require.NoError(t, err)
	committed := tr.commitObj(id).TreeHash
	assert.EqualValues(t, 2, tr.lanes(committed, "r1"))
	assert.EqualValues(t, 4, tr.lanes(committed, "r3"))

	// Uncommitted work blocks checkout.
	tr.branch("other")
	assert.ErrorIs(t, tr.Checkout(tr.ctx, "other"), ErrDirtyWorkingTree)
}

func TestLogFollowsFirstParents(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.put("r1", 3, "asphalt")
	second := tr.commit("widen r1")
	tr.put("r2", 1, "asphalt")
	third := tr.commit("pave r2")

	log, err := tr.Log(tr.ctx, "HEAD", 0)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, []object.Hash{third, second, first}, []object.Hash{log[0].ID, log[1].ID, log[2].ID})

	log, err = tr.Log(tr.ctx, "main", 1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, third, log[0].ID)

	log, err = tr.Log(tr.ctx, "HEAD", 0, "roads/r1")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, second, log[0].ID)
	assert.Equal(t, first, log[1].ID)
}

func TestBranches(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.branch("feature")
	_, err := tr.CreateBranch("feature", "HEAD")
	require.Error(t, err)
	_, err = tr.CreateBranch("bad name", "HEAD")
	require.Error(t, err)

	list, err := tr.ListBranches()
	require.NoError(t, err)
	assert.Equal(t, []Branch{{Name: "feature", Tip: first}, {Name: "main", Tip: first}}, list)

	require.Error(t, tr.DeleteBranch("main"))
	require.NoError(t, tr.DeleteBranch("feature"))
	require.Error(t, tr.DeleteBranch("feature"))
}

func TestCheckoutBranchAndDetached(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.branch("feature")
	tr.checkout("feature")
	tr.put("r1", 6, "concrete")
	second := tr.commit("rebuild r1")

	tr.checkout("main")
	name, err := tr.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	assert.Equal(t, first, tr.tip())
	work, err := tr.WorkingTree()
	require.NoError(t, err)
	assert.EqualValues(t, 2, tr.lanes(work, "r1"))

	tr.checkout(string(second))
	name, err = tr.CurrentBranch()
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Equal(t, second, tr.tip())

	// Commits on a detached HEAD move HEAD itself.
	tr.put("r2", 2, "gravel")
	third := tr.commit("detached work")
	assert.Equal(t, third, tr.tip())
	feature, err := tr.ResolveCommit("feature")
	require.NoError(t, err)
	assert.Equal(t, second, feature)
}

func TestResetModes(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.put("r1", 3, "asphalt")
	second := tr.commit("widen")
	firstTree := tr.commitObj(first).TreeHash
	secondTree := tr.commitObj(second).TreeHash

	_, err := tr.Reset(tr.ctx, string(first), ResetSoft)
	require.NoError(t, err)
	assert.Equal(t, first, tr.tip())
	staged, err := tr.StagedTree()
	require.NoError(t, err)
	assert.Equal(t, secondTree, staged)

	_, err = tr.Reset(tr.ctx, string(second), ResetSoft)
	require.NoError(t, err)
	_, err = tr.Reset(tr.ctx, string(first), ResetMixed)
	require.NoError(t, err)
	staged, err = tr.StagedTree()
	require.NoError(t, err)
	work, err := tr.WorkingTree()
	require.NoError(t, err)
	assert.Equal(t, firstTree, staged)
	assert.Equal(t, secondTree, work)

	_, err = tr.Reset(tr.ctx, string(first), ResetHard)
	require.NoError(t, err)
	work, err = tr.WorkingTree()
	require.NoError(t, err)
	assert.Equal(t, firstTree, work)
}

func TestTags(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()

	got, err := tr.CreateTag("v1", "HEAD", false)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	_, err = tr.CreateTag("v1", "HEAD", false)
	require.Error(t, err)

	tagID, err := tr.CreateAnnotatedTag("v1-notes", "main", "first release", false)
	require.NoError(t, err)
	tag, err := tr.Objects.ReadTag(tagID)
	require.NoError(t, err)
	assert.Equal(t, first, tag.TargetHash)
	assert.Equal(t, "Ada", tag.Tagger.Name)

	resolved, err := tr.ResolveCommit("v1-notes")
	require.NoError(t, err)
	assert.Equal(t, first, resolved)

	tags, err := tr.ListTags()
	require.NoError(t, err)
	assert.Equal(t, map[string]object.Hash{"v1": first, "v1-notes": tagID}, tags)

	require.NoError(t, tr.DeleteTag("v1"))
	require.Error(t, tr.DeleteTag("v1"))
}

func TestResolveCommitRejectsTrees(t *testing.T) {
	tr := newTestRepo(t)
	tr.seed()
	_, err := tr.ResolveCommit(string(tr.headTree()))
	require.ErrorIs(t, err, ErrNotACommit)
	_, err = tr.ResolveCommit("nope")
	require.Error(t, err)
}
