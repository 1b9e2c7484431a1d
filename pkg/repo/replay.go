package repo

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
	"github.com/odvcencio/geogot/pkg/tree"
)

// CherryPick replays the changes of one commit on top of HEAD, keeping
// its author and message. A pick that changes nothing fails with
// ErrNothingToCommit.
func (r *Repo) CherryPick(ctx context.Context, rev string) (*OperationState, error) {
	head, c, err := r.prepareReplay(rev)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}
	st := newOperation(OpCherryPick, head.branch, head.tip, r.now())
	st.Remaining = []object.Hash{c}
	return r.run(ctx, st, false)
}

// Revert applies the inverse of each commit in turn, newest change
// first as given, creating one commit per reverted commit.
func (r *Repo) Revert(ctx context.Context, revs ...string) (*OperationState, error) {
	if len(revs) == 0 {
		return nil, errors.New("revert: no commits specified")
	}
	var head headState
	st := (*OperationState)(nil)
	for _, rev := range revs {
		h, c, err := r.prepareReplay(rev)
		if err != nil {
			return nil, fmt.Errorf("revert: %w", err)
		}
		if st == nil {
			head = h
			if head.tip.IsNull() {
				return nil, errors.New("revert: HEAD has no history")
			}
			st = newOperation(OpRevert, head.branch, head.tip, r.now())
		}
		st.Remaining = append(st.Remaining, c)
	}
	return r.run(ctx, st, false)
}

// RebaseOption adjusts a rebase.
type RebaseOption func(*OperationState)

// RebaseSquash folds every replayed commit into a single commit with the
// given message once the rebase completes.
func RebaseSquash(message string) RebaseOption {
	return func(st *OperationState) { st.Message = message }
}

// Rebase replays the current branch's commits that upstream does not
// have on top of onto (upstream when onto is empty). Merge commits are
// not replayed; the changes they bring in from other lines are picked up
// through those lines' own commits. If the branch is an ancestor of
// upstream it is fast-forwarded.
func (r *Repo) Rebase(ctx context.Context, upstream, onto string, opts ...RebaseOption) (*OperationState, error) {
	head, up, err := r.prepareReplay(upstream)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if head.branch == "" {
		return nil, fmt.Errorf("rebase: %w", ErrDetachedHead)
	}
	target := up
	if onto != "" {
		if target, err = r.ResolveCommit(onto); err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
	}
	st := newOperation(OpRebase, head.branch, head.tip, r.now())
	st.Onto = target
	st.Target = target
	for _, opt := range opts {
		opt(st)
	}
	if head.tip.IsNull() {
		return r.finish(st, false)
	}
	base, ok, err := r.graph.FindCommonAncestor(ctx, head.tip, up)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("rebase: %w", ErrNoCommonAncestor)
	}
	switch {
	case base == head.tip:
		r.logger.Info("rebase fast-forward", zap.String("onto", string(target)))
		return r.finish(st, false)
	case base == up && target == up:
		st.Onto = head.tip
		return r.finish(st, false)
	}
	commits, err := r.rebaseCommits(ctx, head.tip, up)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	st.Remaining = commits
	r.logger.Info("rebase", zap.String("id", st.ID), zap.Int("commits", len(commits)), zap.String("onto", string(target)))
	return r.run(ctx, st, false)
}

// rebaseCommits lists the non-merge commits reachable from tip but not
// from upstream, oldest first.
func (r *Repo) rebaseCommits(ctx context.Context, tip, upstream object.Hash) ([]object.Hash, error) {
	all, err := r.graph.Range(ctx, tip, upstream)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, h := range all {
		c, err := r.graph.Commit(h)
		if err != nil {
			return nil, err
		}
		if len(c.Parents) > 1 {
			r.logger.Debug("rebase skips merge commit", zap.String("commit", string(h)))
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (r *Repo) prepareReplay(rev string) (headState, object.Hash, error) {
	if err := r.checkNoOperation(); err != nil {
		return headState{}, "", err
	}
	if err := r.requireClean(); err != nil {
		return headState{}, "", err
	}
	head, err := r.head()
	if err != nil {
		return headState{}, "", err
	}
	c, err := r.ResolveCommit(rev)
	if err != nil {
		return headState{}, "", err
	}
	return head, c, nil
}

// run replays st.Remaining in order. It returns the finished state, or
// the suspended state together with a *ConflictError.
func (r *Repo) run(ctx context.Context, st *OperationState, resumed bool) (*OperationState, error) {
	st.Status = StatusInProgress
	for len(st.Remaining) > 0 {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		c := st.Remaining[0]
		trees, err := r.replayTrees(st, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Kind, err)
		}
		result, conflicts, _, err := merge.Trees(ctx, r.Objects, trees.base, trees.ours, trees.theirs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Kind, err)
		}
		st.Remaining = st.Remaining[1:]
		if len(conflicts) > 0 {
			st.BaseTree, st.OursTree, st.TheirsTree = trees.base, trees.ours, trees.theirs
			return st, r.suspend(st, c, result, conflicts)
		}
		if err := r.commitStep(st, c, result); err != nil {
			return nil, fmt.Errorf("%s: %w", st.Kind, err)
		}
	}
	if st.Created == 0 && !resumed && st.Kind != OpRebase {
		return nil, fmt.Errorf("%s: %w", st.Kind, ErrNothingToCommit)
	}
	return r.finish(st, resumed)
}

// replayTrees returns the three trees replaying c onto st.Onto merges.
// Reverts swap the commit and its parent so the change runs backwards.
func (r *Repo) replayTrees(st *OperationState, c object.Hash) (threeTrees, error) {
	commit, err := r.graph.Commit(c)
	if err != nil {
		return threeTrees{}, err
	}
	parent, err := r.commitTree(commit.FirstParent())
	if err != nil {
		return threeTrees{}, err
	}
	onto, err := r.commitTree(st.Onto)
	if err != nil {
		return threeTrees{}, err
	}
	if st.Kind == OpRevert {
		return threeTrees{base: commit.TreeHash, ours: onto, theirs: parent}, nil
	}
	return threeTrees{base: parent, ours: onto, theirs: commit.TreeHash}, nil
}

// commitStep records the replay of c as a commit with tree treeID on top
// of st.Onto. A step that changes nothing is dropped.
func (r *Repo) commitStep(st *OperationState, c, treeID object.Hash) error {
	ontoTree, err := r.commitTree(st.Onto)
	if err != nil {
		return err
	}
	if treeID == ontoTree {
		r.logger.Info("dropping empty replay step", zap.String("kind", string(st.Kind)), zap.String("commit", string(c)))
		return nil
	}
	orig, err := r.graph.Commit(c)
	if err != nil {
		return err
	}
	var parents []object.Hash
	if !st.Onto.IsNull() {
		parents = []object.Hash{st.Onto}
	}
	var nc *object.CommitObj
	if st.Kind == OpRevert {
		nc = r.newCommit(treeID, parents, revertMessage(orig, c), nil)
	} else {
		nc = r.newCommit(treeID, parents, orig.Message, &orig.Author)
	}
	id, err := r.writeCommit(nc, nil)
	if err != nil {
		return err
	}
	r.logger.Debug("replayed commit", zap.String("kind", string(st.Kind)), zap.String("from", string(c)), zap.String("to", string(id)))
	st.Onto = id
	st.Created++
	return nil
}

func revertMessage(c *object.CommitObj, id object.Hash) string {
	return fmt.Sprintf("Revert '%s'\nThis reverts %s", c.Message, id)
}

// finish moves the operation's branch from OrigHead to Onto, resets the
// snapshots and drops the persisted state.
func (r *Repo) finish(st *OperationState, persisted bool) (*OperationState, error) {
	head := headState{branch: st.Branch, tip: st.OrigHead}
	if st.Kind == OpRebase && st.Message != "" && st.Created > 0 {
		if err := r.squashReplayed(st); err != nil {
			return nil, fmt.Errorf("%s: %w", st.Kind, err)
		}
	}
	if st.Onto.IsNull() {
		if err := r.setSnapshots(object.EmptyTreeHash, string(st.Kind)); err != nil {
			return nil, err
		}
	} else if err := r.advance(head, st.Onto, fmt.Sprintf("%s: finished", st.Kind)); err != nil {
		return nil, fmt.Errorf("%s: %w", st.Kind, err)
	}
	if persisted {
		if err := r.clearOperation(); err != nil {
			return nil, err
		}
	}
	st.Status = StatusDone
	st.clearStep()
	r.logger.Info("operation finished", zap.String("id", st.ID), zap.String("kind", string(st.Kind)),
		zap.String("head", string(st.Onto)), zap.Int("created", st.Created))
	return st, nil
}

// squashReplayed replaces the commits a rebase created with one commit
// on top of the rebase target.
func (r *Repo) squashReplayed(st *OperationState) error {
	treeID, err := r.commitTree(st.Onto)
	if err != nil {
		return err
	}
	var parents []object.Hash
	if !st.Target.IsNull() {
		parents = []object.Hash{st.Target}
	}
	id, err := r.writeCommit(r.newCommit(treeID, parents, st.Message, nil), nil)
	if err != nil {
		return err
	}
	r.logger.Info("squashed rebase", zap.String("id", st.ID), zap.Int("commits", st.Created), zap.String("to", string(id)))
	st.Onto = id
	st.Created = 1
	return nil
}

func (r *Repo) clearOperation() error {
	if err := r.State.Clear(); err != nil {
		return err
	}
	if err := r.Refs.Delete(refs.MergeHead, ""); err != nil && !errors.Is(err, refs.ErrNotFound) {
		return err
	}
	return nil
}

func (r *Repo) loadOperation() (*OperationState, error) {
	return r.State.Load()
}

// Continue resumes a suspended operation once its conflicts are resolved.
// The resolved step is committed from STAGE_HEAD.
func (r *Repo) Continue(ctx context.Context) (*OperationState, error) {
	st, err := r.loadOperation()
	if err != nil {
		return nil, fmt.Errorf("continue: %w", err)
	}
	if n := len(st.Unresolved()); n > 0 {
		return nil, fmt.Errorf("continue: %w: %d remaining", ErrUnresolvedConflicts, n)
	}
	staged, err := r.StagedTree()
	if err != nil {
		return nil, fmt.Errorf("continue: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("continuing operation", zap.String("id", st.ID), zap.String("kind", string(st.Kind)))

	if st.Kind == OpMerge {
		var parents []object.Hash
		if !st.OrigHead.IsNull() {
			parents = append(parents, st.OrigHead)
		}
		parents = append(parents, st.MergeHeads...)
		id, err := r.writeCommit(r.newCommit(staged, parents, st.Message, nil), nil)
		if err != nil {
			return nil, fmt.Errorf("continue: %w", err)
		}
		st.Onto = id
		st.Created++
		return r.finish(st, true)
	}
	if !st.Current.IsNull() {
		if err := r.commitStep(st, st.Current, staged); err != nil {
			return nil, fmt.Errorf("continue: %w", err)
		}
	}
	st.clearStep()
	return r.run(ctx, st, true)
}

// Skip drops the commit a suspended replay stopped on and replays the
// rest. Merges cannot be skipped.
func (r *Repo) Skip(ctx context.Context) (*OperationState, error) {
	st, err := r.loadOperation()
	if err != nil {
		return nil, fmt.Errorf("skip: %w", err)
	}
	if st.Kind == OpMerge {
		return nil, fmt.Errorf("skip: %w: %s", ErrCannotSkip, st.Kind)
	}
	r.logger.Info("skipping commit", zap.String("id", st.ID), zap.String("commit", string(st.Current)))
	st.clearStep()
	return r.run(ctx, st, true)
}

// Abort discards a suspended operation and restores the branch and both
// snapshots to where the operation started.
func (r *Repo) Abort(ctx context.Context) (*OperationState, error) {
	st, err := r.loadOperation()
	if err != nil {
		return nil, fmt.Errorf("abort: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	name := headState{branch: st.Branch}.refName()
	if !st.OrigHead.IsNull() {
		cur, err := r.Refs.Read(name)
		if err != nil || cur.IsSymbolic() || cur.Target != st.OrigHead {
			if err := r.restoreRef(name, st.OrigHead); err != nil {
				return nil, fmt.Errorf("abort: %w", err)
			}
		}
	}
	treeID, err := r.commitTree(st.OrigHead)
	if err != nil {
		return nil, fmt.Errorf("abort: %w", err)
	}
	if err := r.setSnapshots(treeID, "abort"); err != nil {
		return nil, fmt.Errorf("abort: %w", err)
	}
	if err := r.clearOperation(); err != nil {
		return nil, fmt.Errorf("abort: %w", err)
	}
	st.Status = StatusAborted
	r.logger.Info("operation aborted", zap.String("id", st.ID), zap.String("kind", string(st.Kind)))
	return st, nil
}

func (r *Repo) restoreRef(name string, target object.Hash) error {
	if name == refs.Head {
		return r.detach(target, "abort")
	}
	return refs.Set(r.Refs, name, target, "abort")
}

// Resolution picks how ResolveConflict settles a path.
type Resolution int

const (
	// ResolveStaged accepts whatever STAGE_HEAD holds at the path.
	ResolveStaged Resolution = iota
	// ResolveOurs takes the path from the side being replayed onto.
	ResolveOurs
	// ResolveTheirs takes the path from the commit being merged or replayed.
	ResolveTheirs
)

// ResolveConflict settles one conflict of the suspended operation.
func (r *Repo) ResolveConflict(ctx context.Context, path string, how Resolution) error {
	st, err := r.loadOperation()
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	idx := -1
	for i, c := range st.Conflicts {
		if c.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("resolve: no conflict at %s", path)
	}
	if how != ResolveStaged {
		side := st.OursTree
		if how == ResolveTheirs {
			side = st.TheirsTree
		}
		if err := r.takeSide(ctx, side, path); err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
	}
	st.Conflicts[idx].Resolved = true
	return r.State.Save(st)
}

// takeSide copies path from the tree side into both snapshots, removing
// it when side lacks it.
func (r *Repo) takeSide(ctx context.Context, side object.Hash, path string) error {
	n, inherited, found, err := tree.Find(r.Objects, side, path)
	if errors.Is(err, tree.ErrNotATree) {
		found, err = false, nil
	}
	if err != nil {
		return err
	}
	staged, err := r.StagedTree()
	if err != nil {
		return err
	}
	ed, err := tree.NewEditor(r.Objects, staged)
	if err != nil {
		return err
	}
	cur, curFound, err := ed.Get(path)
	if err != nil && !errors.Is(err, tree.ErrNotATree) {
		return err
	}
	switch {
	case !found:
		if _, err := ed.Remove(path); err != nil {
			return err
		}
	case n.IsTree() && curFound && cur.IsTree():
		if err := ed.SetTree(path, n.MetadataID); err != nil {
			return err
		}
	default:
		if !n.IsTree() && n.MetadataID.IsNull() {
			local, err := ed.Inherited(path)
			if err != nil {
				return err
			}
			if local != inherited {
				n.MetadataID = inherited
			}
		}
		if err := ed.Put(path, n); err != nil {
			return err
		}
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	next, err := ed.Build()
	if err != nil {
		return err
	}
	return r.setSnapshots(next, "resolve")
}

// Conflicts lists the conflicts of the suspended operation.
func (r *Repo) Conflicts() ([]ConflictState, error) {
	st, err := r.loadOperation()
	if err != nil {
		return nil, err
	}
	return st.Conflicts, nil
}
