package repo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/patch"
	"github.com/odvcencio/geogot/pkg/refs"
)

func TestDiffBetweenRevisions(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.put("r1", 3, "asphalt")
	tr.put("r3", 1, "dirt")
	second := tr.commit("changes")

	entries, err := tr.Diff(tr.ctx, string(first), string(second))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "roads/r1", entries[0].Path())
	assert.Equal(t, diff.Modified, entries[0].Type())
	assert.Equal(t, "roads/r3", entries[1].Path())
	assert.Equal(t, diff.Added, entries[1].Type())

	entries, err = tr.Diff(tr.ctx, string(first), string(second), "roads/r3")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	tr.remove("r2")
	entries, err = tr.Diff(tr.ctx, "HEAD", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, diff.Removed, entries[0].Type())
}

func TestFormatAndApplyPatch(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.put("r1", 3, "asphalt")
	tr.put("r3", 1, "dirt")
	second := tr.commit("changes")

	p, err := tr.FormatPatch(tr.ctx, string(first), string(second))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Count())

	var buf bytes.Buffer
	require.NoError(t, patch.Write(&buf, p))
	decoded, err := patch.Read(&buf)
	require.NoError(t, err)

	_, err = tr.Reset(tr.ctx, string(first), ResetHard)
	require.NoError(t, err)
	rejected, err := tr.ApplyPatch(tr.ctx, decoded, false)
	require.NoError(t, err)
	assert.True(t, rejected.IsEmpty())

	work, err := tr.WorkingTree()
	require.NoError(t, err)
	assert.Equal(t, tr.commitObj(second).TreeHash, work)
	// Applying only touches the working tree.
	assert.Equal(t, first, tr.tip())
}

func TestApplyPatchRejects(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.put("r1", 3, "asphalt")
	tr.put("r3", 1, "dirt")
	second := tr.commit("changes")
	p, err := tr.FormatPatch(tr.ctx, string(first), string(second))
	require.NoError(t, err)

	_, err = tr.Reset(tr.ctx, string(first), ResetHard)
	require.NoError(t, err)
	tr.put("r1", 9, "asphalt")
	tr.commit("r1 diverges")
	before, err := tr.WorkingTree()
	require.NoError(t, err)

	_, err = tr.ApplyPatch(tr.ctx, p, false)
	var cae *patch.CannotApplyError
	require.ErrorAs(t, err, &cae)
	assert.Equal(t, "roads/r1", cae.Path)
	work, err := tr.WorkingTree()
	require.NoError(t, err)
	assert.Equal(t, before, work)

	rejected, err := tr.ApplyPatch(tr.ctx, p, true)
	require.NoError(t, err)
	assert.Equal(t, 1, rejected.Count())
	work, err = tr.WorkingTree()
	require.NoError(t, err)
	assert.NotNil(t, tr.record(work, "r3"))
	assert.EqualValues(t, 9, tr.lanes(work, "r1"))
}

func TestVerifyReportsMissingObjects(t *testing.T) {
	tr := newTestRepo(t)
	tr.seed()
	report, err := tr.Verify()
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Positive(t, report.Reachable)

	ghost := object.Hash(strings.Repeat("ab", 32))
	id, err := tr.Objects.WriteCommit(&object.CommitObj{TreeHash: ghost, Message: "broken"})
	require.NoError(t, err)
	require.NoError(t, refs.Set(tr.Refs, refs.HeadsPrefix+"broken", id, "test"))

	report, err = tr.Verify()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []object.Hash{ghost}, report.Missing)
}

func TestReflog(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.put("r1", 3, "asphalt")
	second := tr.commit("widen r1")

	entries, err := tr.Reflog("main", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].NewHash)
	assert.Equal(t, first, entries[0].OldHash)
	assert.Equal(t, first, entries[1].NewHash)
	assert.Contains(t, entries[0].Reason, "widen r1")
}

func TestBlameAttributes(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.seed()
	tr.put("r1", 3, "asphalt")
	widen := tr.commit("widen r1")
	tr.put("r2", 2, "gravel")
	tr.commit("widen r2")
	tr.put("r1", 3, "concrete")
	pave := tr.commit("pave r1")

	blame, err := tr.Blame(tr.ctx, "HEAD", "roads/r1")
	require.NoError(t, err)
	require.Len(t, blame, 3)
	assert.Equal(t, "name", blame[0].Attribute)
	assert.Equal(t, first, blame[0].Commit)
	assert.Equal(t, "lanes", blame[1].Attribute)
	assert.Equal(t, widen, blame[1].Commit)
	assert.EqualValues(t, 3, blame[1].Value.AsInt())
	assert.Equal(t, "surface", blame[2].Attribute)
	assert.Equal(t, pave, blame[2].Commit)
	assert.Equal(t, "pave r1", blame[2].Message)

	_, err = tr.Blame(tr.ctx, "HEAD", "roads/missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
