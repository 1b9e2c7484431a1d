package repo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/patch"
	"github.com/odvcencio/geogot/pkg/refs"
)

// Diff lists the changes between two revisions. An empty newRev compares
// against the working tree.
func (r *Repo) Diff(ctx context.Context, oldRev, newRev string, paths ...string) ([]diff.Entry, error) {
	oldTree, newTree, err := r.diffTrees(oldRev, newRev)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	var opts []diff.Option
	if len(paths) > 0 {
		opts = append(opts, diff.WithPathFilter(paths...))
	}
	entries, err := diff.Collect(diff.Trees(ctx, r.Objects, oldTree, newTree, opts...))
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return entries, nil
}

// FormatPatch captures the changes between two revisions as a patch.
// An empty newRev uses the working tree.
func (r *Repo) FormatPatch(ctx context.Context, oldRev, newRev string, paths ...string) (*patch.Patch, error) {
	oldTree, newTree, err := r.diffTrees(oldRev, newRev)
	if err != nil {
		return nil, fmt.Errorf("format patch: %w", err)
	}
	var opts []diff.Option
	if len(paths) > 0 {
		opts = append(opts, diff.WithPathFilter(paths...))
	}
	p, err := patch.Create(ctx, r.Objects, oldTree, newTree, opts...)
	if err != nil {
		return nil, fmt.Errorf("format patch: %w", err)
	}
	return p, nil
}

func (r *Repo) diffTrees(oldRev, newRev string) (object.Hash, object.Hash, error) {
	oldCommit, err := r.ResolveCommit(oldRev)
	if err != nil {
		return "", "", err
	}
	oldTree, err := r.commitTree(oldCommit)
	if err != nil {
		return "", "", err
	}
	if newRev == "" {
		work, err := r.WorkingTree()
		return oldTree, work, err
	}
	newCommit, err := r.ResolveCommit(newRev)
	if err != nil {
		return "", "", err
	}
	newTree, err := r.commitTree(newCommit)
	return oldTree, newTree, err
}

// ApplyPatch applies p to the working tree. Without partial a patch that
// does not apply cleanly changes nothing and fails with a
// *patch.CannotApplyError. With partial the applicable entries are applied
// and the rest are returned.
func (r *Repo) ApplyPatch(ctx context.Context, p *patch.Patch, partial bool) (*patch.Patch, error) {
	if err := r.checkNoOperation(); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	work, err := r.WorkingTree()
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	next, rejected, err := patch.Apply(ctx, r.Objects, work, p, partial)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	if next != work {
		if err := refs.Set(r.Refs, refs.WorkHead, next, "apply patch"); err != nil {
			return nil, fmt.Errorf("apply: %w", err)
		}
	}
	r.logger.Info("patch applied",
		zap.Int("entries", p.Count()), zap.Int("rejected", rejected.Count()),
		zap.String("working_tree", string(next)))
	return rejected, nil
}
