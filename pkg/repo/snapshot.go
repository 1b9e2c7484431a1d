package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
	"github.com/odvcencio/geogot/pkg/tree"
)

// snapshot reads a tree-valued ref; an absent ref is the empty tree.
func (r *Repo) snapshot(name string) (object.Hash, error) {
	ref, err := r.Refs.Read(name)
	switch {
	case errors.Is(err, refs.ErrNotFound):
		return object.EmptyTreeHash, nil
	case err != nil:
		return "", err
	}
	return ref.Target, nil
}

// WorkingTree returns the tree WORK_HEAD points at.
func (r *Repo) WorkingTree() (object.Hash, error) { return r.snapshot(refs.WorkHead) }

// StagedTree returns the tree STAGE_HEAD points at.
func (r *Repo) StagedTree() (object.Hash, error) { return r.snapshot(refs.StageHead) }

// HeadTree returns the tree of the HEAD commit, or the empty tree on an
// unborn branch.
func (r *Repo) HeadTree() (object.Hash, error) {
	tip, err := r.Head()
	if err != nil {
		return "", err
	}
	return r.commitTree(tip)
}

func (r *Repo) setSnapshots(treeID object.Hash, reason string) error {
	if err := refs.Set(r.Refs, refs.StageHead, treeID, reason); err != nil {
		return err
	}
	return refs.Set(r.Refs, refs.WorkHead, treeID, reason)
}

// UpdateWorkingTree edits WORK_HEAD through fn and stores the result.
func (r *Repo) UpdateWorkingTree(ctx context.Context, fn func(*tree.Editor) error) (object.Hash, error) {
	work, err := r.WorkingTree()
	if err != nil {
		return "", err
	}
	ed, err := tree.NewEditor(r.Objects, work)
	if err != nil {
		return "", err
	}
	if err := fn(ed); err != nil {
		return "", err
	}
	if err := cancelled(ctx); err != nil {
		return "", err
	}
	next, err := ed.Build()
	if err != nil {
		return "", err
	}
	if next != work {
		if err := refs.Set(r.Refs, refs.WorkHead, next, "edit"); err != nil {
			return "", err
		}
	}
	return next, nil
}

// PutRecord stores rec under path in the working tree. A non-NULL typeID
// is recorded on the node when it differs from the enclosing tree's.
func PutRecord(store *object.Store, ed *tree.Editor, path string, rec *object.RecordObj, typeID object.Hash, extent *object.Extent) error {
	id, err := store.WriteRecord(rec)
	if err != nil {
		return err
	}
	n := object.Node{Kind: object.NodeRecord, ID: id, Extent: extent}
	if !typeID.IsNull() {
		inherited, err := ed.Inherited(path)
		if err != nil {
			return err
		}
		if inherited != typeID {
			n.MetadataID = typeID
		}
	}
	return ed.Put(path, n)
}

// Remove deletes paths from the working tree. Missing paths are an error.
func (r *Repo) Remove(ctx context.Context, paths ...string) (object.Hash, error) {
	return r.UpdateWorkingTree(ctx, func(ed *tree.Editor) error {
		for _, p := range paths {
			ok, err := ed.Remove(p)
			if err != nil {
				return fmt.Errorf("remove %s: %w", p, err)
			}
			if !ok {
				return fmt.Errorf("remove %s: %w", p, object.ErrNotFound)
			}
		}
		return nil
	})
}

// Add stages working-tree changes. With no paths everything is staged.
// During a conflicted operation, conflicts at or beneath the added paths
// are marked resolved.
func (r *Repo) Add(ctx context.Context, paths ...string) (object.Hash, error) {
	work, err := r.WorkingTree()
	if err != nil {
		return "", err
	}
	staged, err := r.StagedTree()
	if err != nil {
		return "", err
	}
	next := work
	if len(paths) > 0 {
		ap, err := merge.NewApplier(r.Objects, staged)
		if err != nil {
			return "", err
		}
		for e, err := range diff.Trees(ctx, r.Objects, staged, work, diff.WithPathFilter(paths...), diff.WithReportTrees()) {
			if err != nil {
				return "", err
			}
			if err := ap.Unconflicted(e); err != nil {
				return "", err
			}
		}
		if err := ap.Finished(); err != nil {
			return "", err
		}
		next = ap.Result()
	}
	if next != staged {
		if err := refs.Set(r.Refs, refs.StageHead, next, "add"); err != nil {
			return "", err
		}
	}
	if err := r.markResolved(paths); err != nil {
		return "", err
	}
	return next, nil
}

func (r *Repo) markResolved(paths []string) error {
	st, err := r.State.Load()
	if errors.Is(err, ErrNoOperation) {
		return nil
	}
	if err != nil {
		return err
	}
	changed := false
	for i := range st.Conflicts {
		c := &st.Conflicts[i]
		if c.Resolved || !coveredBy(c.Path, paths) {
			continue
		}
		c.Resolved = true
		changed = true
	}
	if !changed {
		return nil
	}
	return r.State.Save(st)
}

func coveredBy(path string, paths []string) bool {
	if len(paths) == 0 {
		return true
	}
	for _, p := range paths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Status summarizes staged and unstaged changes.
type Status struct {
	Staged   []diff.Entry
	Unstaged []diff.Entry
}

// Clean reports whether the working and staged trees match HEAD.
func (s *Status) Clean() bool { return len(s.Staged) == 0 && len(s.Unstaged) == 0 }

// Status diffs HEAD against STAGE_HEAD and STAGE_HEAD against WORK_HEAD.
func (r *Repo) Status(ctx context.Context) (*Status, error) {
	headTree, err := r.HeadTree()
	if err != nil {
		return nil, err
	}
	staged, err := r.StagedTree()
	if err != nil {
		return nil, err
	}
	work, err := r.WorkingTree()
	if err != nil {
		return nil, err
	}
	var st Status
	if st.Staged, err = diff.Collect(diff.Trees(ctx, r.Objects, headTree, staged)); err != nil {
		return nil, err
	}
	if st.Unstaged, err = diff.Collect(diff.Trees(ctx, r.Objects, staged, work)); err != nil {
		return nil, err
	}
	return &st, nil
}

// isClean is a cheap Status: root ids are compared without diffing.
func (r *Repo) isClean() (bool, error) {
	headTree, err := r.HeadTree()
	if err != nil {
		return false, err
	}
	staged, err := r.StagedTree()
	if err != nil {
		return false, err
	}
	work, err := r.WorkingTree()
	if err != nil {
		return false, err
	}
	return headTree == staged && staged == work, nil
}

func (r *Repo) requireClean() error {
	ok, err := r.isClean()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDirtyWorkingTree
	}
	return nil
}
