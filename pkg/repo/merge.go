package repo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// MergeOptions controls Merge.
type MergeOptions struct {
	Message     string
	Strategy    merge.Strategy
	FastForward FastForward // empty uses merge.fast_forward from config
	Signer      CommitSigner
}

// MergeResult describes a completed merge.
type MergeResult struct {
	Commit      object.Hash
	FastForward bool
	UpToDate    bool
	Report      *merge.Report
}

// Merge merges the commits revs name into HEAD. One commit yields a
// fast-forward or a two-parent merge; several commits yield an octopus
// merge, which is refused outright if any pairwise scenario conflicts.
// A two-parent merge with conflicts suspends as an OpMerge operation and
// returns a *ConflictError.
func (r *Repo) Merge(ctx context.Context, opts MergeOptions, revs ...string) (*MergeResult, error) {
	if len(revs) == 0 {
		return nil, errors.New("merge: no commits specified")
	}
	if err := r.checkNoOperation(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.requireClean(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	head, err := r.head()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	var theirs []object.Hash
	for _, rev := range revs {
		id, err := r.ResolveCommit(rev)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if !slices.Contains(theirs, id) {
			theirs = append(theirs, id)
		}
	}
	mode := opts.FastForward
	if mode == "" {
		mode = r.Config.Merge.FastForward
	}
	if opts.Message == "" {
		opts.Message = r.mergeMessage(revs)
	}
	r.logger.Info("merge", zap.Strings("revs", revs), zap.Stringer("strategy", opts.Strategy), zap.String("fast_forward", string(mode)))

	if len(theirs) == 1 {
		return r.mergeOne(ctx, head, theirs[0], mode, opts)
	}
	return r.octopus(ctx, head, theirs, mode, opts)
}

func (r *Repo) mergeOne(ctx context.Context, head headState, theirs object.Hash, mode FastForward, opts MergeOptions) (*MergeResult, error) {
	if head.tip.IsNull() {
		if err := r.advance(head, theirs, "merge: fast-forward"); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		return &MergeResult{Commit: theirs, FastForward: true}, nil
	}
	contained, err := r.graph.IsAncestor(ctx, theirs, head.tip)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if contained {
		return &MergeResult{Commit: head.tip, UpToDate: true}, nil
	}
	ffable, err := r.graph.IsAncestor(ctx, head.tip, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if ffable && mode != FastForwardNever {
		if err := r.advance(head, theirs, "merge: fast-forward"); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		r.logger.Info("merge fast-forward", zap.String("commit", string(theirs)))
		return &MergeResult{Commit: theirs, FastForward: true}, nil
	}
	if mode == FastForwardOnly {
		return nil, fmt.Errorf("merge: %w", ErrNotFastForward)
	}

	trees, err := r.mergeTrees(ctx, head.tip, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	result, conflicts, report, err := merge.Trees(ctx, r.Objects, trees.base, trees.ours, trees.theirs, merge.WithStrategy(opts.Strategy))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if len(conflicts) > 0 {
		st := newOperation(OpMerge, head.branch, head.tip, r.now())
		st.MergeHeads = []object.Hash{theirs}
		st.Message = opts.Message
		st.Strategy = opts.Strategy.String()
		st.BaseTree, st.OursTree, st.TheirsTree = trees.base, trees.ours, trees.theirs
		return &MergeResult{Report: report}, r.suspend(st, theirs, result, conflicts)
	}

	c := r.newCommit(result, []object.Hash{head.tip, theirs}, opts.Message, nil)
	id, err := r.writeCommit(c, opts.Signer)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.advance(head, id, "merge: "+firstLine(opts.Message)); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return &MergeResult{Commit: id, Report: report}, nil
}

// octopusGuard stops a scenario at its first conflict.
type octopusGuard struct {
	*merge.Applier
	theirs object.Hash
}

func (g octopusGuard) Conflicted(c merge.Conflict) error {
	return fmt.Errorf("%w: %s conflicts at %s", ErrOctopusConflicts, g.theirs.Short(), c.Path)
}

func (r *Repo) octopus(ctx context.Context, head headState, theirs []object.Hash, mode FastForward, opts MergeOptions) (*MergeResult, error) {
	if mode == FastForwardOnly {
		return nil, fmt.Errorf("merge: %w", ErrNotFastForward)
	}
	ours := head.tip
	if ours.IsNull() {
		ours, theirs = theirs[0], theirs[1:]
	}
	parents := []object.Hash{ours}
	cur, err := r.commitTree(ours)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report := &merge.Report{}
	for _, t := range theirs {
		contained, err := r.graph.IsAncestor(ctx, t, ours)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if contained {
			continue
		}
		trees, err := r.mergeTrees(ctx, ours, t)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		ap, err := merge.NewApplier(r.Objects, cur)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		rep, err := merge.Scenario(ctx, r.Objects, trees.base, cur, trees.theirs, octopusGuard{Applier: ap, theirs: t}, merge.WithStrategy(opts.Strategy))
		if err != nil {
			if errors.Is(err, ErrOctopusConflicts) {
				r.logger.Warn("octopus merge refused", zap.String("commit", string(t)), zap.Error(err))
			}
			return nil, fmt.Errorf("merge: %w", err)
		}
		report.Conflicts += rep.Conflicts
		report.Unconflicted += rep.Unconflicted
		report.Merged += rep.Merged
		cur = ap.Result()
		parents = append(parents, t)
	}

	switch {
	case len(parents) == 1 && head.tip.IsNull():
		if err := r.advance(head, ours, "merge: fast-forward"); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		return &MergeResult{Commit: ours, FastForward: true, Report: report}, nil
	case len(parents) == 1:
		return &MergeResult{Commit: ours, UpToDate: true, Report: report}, nil
	}
	c := r.newCommit(cur, parents, opts.Message, nil)
	id, err := r.writeCommit(c, opts.Signer)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.advance(head, id, "merge: "+firstLine(opts.Message)); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return &MergeResult{Commit: id, Report: report}, nil
}

type threeTrees struct {
	base, ours, theirs object.Hash
}

// mergeTrees resolves the trees of a three-way merge between two commits
// and their common ancestor.
func (r *Repo) mergeTrees(ctx context.Context, ours, theirs object.Hash) (threeTrees, error) {
	base, ok, err := r.graph.FindCommonAncestor(ctx, ours, theirs)
	if err != nil {
		return threeTrees{}, err
	}
	if !ok {
		return threeTrees{}, fmt.Errorf("%w between %s and %s", ErrNoCommonAncestor, ours.Short(), theirs.Short())
	}
	var t threeTrees
	if t.base, err = r.commitTree(base); err != nil {
		return t, err
	}
	if t.ours, err = r.commitTree(ours); err != nil {
		return t, err
	}
	if t.theirs, err = r.commitTree(theirs); err != nil {
		return t, err
	}
	return t, nil
}

func (r *Repo) mergeMessage(revs []string) string {
	parts := make([]string, 0, len(revs))
	for _, rev := range revs {
		if full, err := refs.FullName(r.Refs, rev); err == nil && strings.HasPrefix(full, refs.HeadsPrefix) {
			parts = append(parts, fmt.Sprintf("branch '%s'", refs.BranchName(full)))
			continue
		}
		parts = append(parts, fmt.Sprintf("commit '%s'", rev))
	}
	return "Merge " + strings.Join(parts, ", ")
}

// suspend persists st as conflicted, points both snapshots at the partial
// result and returns the ConflictError for the step.
func (r *Repo) suspend(st *OperationState, commit, result object.Hash, conflicts []merge.Conflict) error {
	st.Status = StatusConflicted
	st.Current = commit
	st.setConflicts(conflicts)
	if err := r.State.Save(st); err != nil {
		return err
	}
	if err := r.setSnapshots(result, string(st.Kind)); err != nil {
		return err
	}
	if !st.OrigHead.IsNull() {
		if err := refs.Set(r.Refs, refs.OrigHead, st.OrigHead, string(st.Kind)); err != nil {
			return err
		}
	}
	if st.Kind == OpMerge {
		if err := refs.Set(r.Refs, refs.MergeHead, st.MergeHeads[0], "merge"); err != nil {
			return err
		}
	}
	r.logger.Warn("operation suspended on conflicts",
		zap.String("id", st.ID), zap.String("kind", string(st.Kind)),
		zap.String("commit", string(commit)), zap.Int("conflicts", len(conflicts)))
	return &ConflictError{Kind: st.Kind, Commit: commit, Conflicts: conflicts}
}
