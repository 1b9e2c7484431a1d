package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// testRepo wraps an in-memory repository with a roads layer whose records
// have three attributes: name, lanes and surface.
type testRepo struct {
	*Repo
	t        *testing.T
	ctx      context.Context
	schemaID object.Hash
}

func tickingClock() func() time.Time {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	cfg := DefaultConfig()
	cfg.User = UserConfig{Name: "Ada", Email: "ada@example.com"}
	r, err := NewInMemory(cfg, WithClock(tickingClock()))
	require.NoError(t, err)
	return wrapRepo(t, r)
}

func wrapRepo(t *testing.T, r *Repo) *testRepo {
	t.Helper()
	id, err := r.Objects.WriteRecordType(&object.RecordTypeObj{Name: "road", Attributes: []object.AttributeDescriptor{
		{Name: "name", Type: "string"},
		{Name: "lanes", Type: "int"},
		{Name: "surface", Type: "string"},
	}})
	require.NoError(t, err)
	return &testRepo{Repo: r, t: t, ctx: context.Background(), schemaID: id}
}

// put writes roads/<name> into the working tree.
func (tr *testRepo) put(name string, lanes int64, surface string) {
	tr.t.Helper()
	_, err := tr.UpdateWorkingTree(tr.ctx, func(ed *tree.Editor) error {
		if _, found, err := ed.Get("roads"); err != nil {
			return err
		} else if !found {
			if err := ed.SetTree("roads", tr.schemaID); err != nil {
				return err
			}
		}
		rec := &object.RecordObj{Values: []object.Value{object.String(name), object.Int(lanes), object.String(surface)}}
		return PutRecord(tr.Objects, ed, "roads/"+name, rec, tr.schemaID, nil)
	})
	require.NoError(tr.t, err)
}

func (tr *testRepo) remove(name string) {
	tr.t.Helper()
	_, err := tr.Remove(tr.ctx, "roads/"+name)
	require.NoError(tr.t, err)
}

// commit stages everything and commits it.
func (tr *testRepo) commit(msg string) object.Hash {
	tr.t.Helper()
	_, err := tr.Add(tr.ctx)
	require.NoError(tr.t, err)
	id, err := tr.Commit(tr.ctx, CommitOptions{Message: msg})
	require.NoError(tr.t, err)
	return id
}

func (tr *testRepo) checkout(rev string) {
	tr.t.Helper()
	require.NoError(tr.t, tr.Checkout(tr.ctx, rev))
}

func (tr *testRepo) branch(name string) {
	tr.t.Helper()
	_, err := tr.CreateBranch(name, "HEAD")
	require.NoError(tr.t, err)
}

func (tr *testRepo) tip() object.Hash {
	tr.t.Helper()
	h, err := tr.Head()
	require.NoError(tr.t, err)
	return h
}

// record returns the record at roads/<name> in treeID, or nil.
func (tr *testRepo) record(treeID object.Hash, name string) *object.RecordObj {
	tr.t.Helper()
	rec, _, found, err := tr.recordAt(treeID, "roads/"+name)
	require.NoError(tr.t, err)
	if !found {
		return nil
	}
	return rec
}

func (tr *testRepo) lanes(treeID object.Hash, name string) int64 {
	tr.t.Helper()
	rec := tr.record(treeID, name)
	require.NotNil(tr.t, rec, name)
	return rec.Get(1).AsInt()
}

func (tr *testRepo) surface(treeID object.Hash, name string) string {
	tr.t.Helper()
	rec := tr.record(treeID, name)
	require.NotNil(tr.t, rec, name)
	return rec.Get(2).AsString()
}

func (tr *testRepo) headTree() object.Hash {
	tr.t.Helper()
	id, err := tr.HeadTree()
	require.NoError(tr.t, err)
	return id
}

func (tr *testRepo) commitObj(id object.Hash) *object.CommitObj {
	tr.t.Helper()
	c, err := tr.Objects.ReadCommit(id)
	require.NoError(tr.t, err)
	return c
}

// seed commits r1 and r2 on main and returns the commit.
func (tr *testRepo) seed() object.Hash {
	tr.t.Helper()
	tr.put("r1", 2, "asphalt")
	tr.put("r2", 1, "gravel")
	return tr.commit("initial roads")
}
