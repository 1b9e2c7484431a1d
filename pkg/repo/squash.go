package repo

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/history"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// Squash collapses the first-parent run since..until of the current
// branch into one commit carrying until's tree, then rewrites the commits
// after until on top of it. The squashed commit keeps every parent from
// outside the run, so squashing merges preserves their merged lines.
// An empty message reuses since's message.
func (r *Repo) Squash(ctx context.Context, since, until, message string) (object.Hash, error) {
	if err := r.checkNoOperation(); err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	head, err := r.head()
	if err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	if head.branch == "" {
		return "", fmt.Errorf("squash: %w", ErrDetachedHead)
	}
	if err := r.requireClean(); err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	sinceID, err := r.ResolveCommit(since)
	if err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	untilID, err := r.ResolveCommit(until)
	if err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	plan, err := r.planSquash(ctx, head, sinceID, untilID)
	if err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	if message == "" {
		message = plan.since.Message
	}

	author := plan.until.Author
	squashed := r.newCommit(plan.until.TreeHash, plan.parents, message, &author)
	newID, err := r.writeCommit(squashed, nil)
	if err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	replaced := map[object.Hash]object.Hash{untilID: newID}
	tip := newID
	for _, id := range plan.after {
		if err := cancelled(ctx); err != nil {
			return "", err
		}
		c, err := r.graph.Commit(id)
		if err != nil {
			return "", fmt.Errorf("squash: %w", err)
		}
		rewritten := *c
		rewritten.Parents = make([]object.Hash, len(c.Parents))
		for i, p := range c.Parents {
			if np, ok := replaced[p]; ok {
				p = np
			}
			rewritten.Parents[i] = p
		}
		rewritten.Committer = r.identity()
		rewritten.Signature = ""
		if tip, err = r.writeCommit(&rewritten, nil); err != nil {
			return "", fmt.Errorf("squash: %w", err)
		}
		replaced[id] = tip
	}
	if err := r.advance(head, tip, "squash: "+firstLine(message)); err != nil {
		return "", fmt.Errorf("squash: %w", err)
	}
	r.logger.Info("squash",
		zap.String("since", string(sinceID)), zap.String("until", string(untilID)),
		zap.Int("squashed", plan.squashed), zap.Int("rewritten", len(plan.after)),
		zap.String("head", string(tip)))
	return tip, nil
}

type squashPlan struct {
	since, until *object.CommitObj
	parents      []object.Hash
	after        []object.Hash // oldest first
	squashed     int
}

func (r *Repo) planSquash(ctx context.Context, head headState, sinceID, untilID object.Hash) (*squashPlan, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSquashRange, fmt.Sprintf(format, args...))
	}
	since, err := r.graph.Commit(sinceID)
	if err != nil {
		return nil, err
	}
	until, err := r.graph.Commit(untilID)
	if err != nil {
		return nil, err
	}
	if len(since.Parents) == 0 {
		return nil, invalid("%s has no parents", sinceID.Short())
	}
	ordered, err := r.graph.IsAncestor(ctx, sinceID, untilID)
	if err != nil {
		return nil, err
	}
	if !ordered {
		return nil, invalid("%s is not an ancestor of %s", sinceID.Short(), untilID.Short())
	}
	after, err := r.graph.FirstParentRange(ctx, head.tip, untilID)
	if errors.Is(err, history.ErrNotReachable) {
		return nil, invalid("%s is not on the first-parent history of %s", untilID.Short(), refs.BranchName(head.branch))
	}
	if err != nil {
		return nil, err
	}
	run, err := r.graph.FirstParentRange(ctx, untilID, since.FirstParent())
	if errors.Is(err, history.ErrNotReachable) || (err == nil && (len(run) == 0 || run[0] != sinceID)) {
		return nil, invalid("cannot reach %s from %s through first parents", sinceID.Short(), untilID.Short())
	}
	if err != nil {
		return nil, err
	}

	tips, err := r.branchTips()
	if err != nil {
		return nil, err
	}
	children, err := r.graph.ChildCounts(ctx, tips)
	if err != nil {
		return nil, err
	}
	branches, err := r.Refs.List(refs.HeadsPrefix)
	if err != nil {
		return nil, err
	}
	startsBranch := func(id object.Hash, c *object.CommitObj) bool {
		if children[id] > 1 {
			return true
		}
		for _, b := range branches {
			if b.Target == id && b.Target != head.tip && len(c.Parents) < 2 {
				return true
			}
		}
		return false
	}

	plan := &squashPlan{since: since, until: until, after: after, squashed: len(run)}
	var firsts, seconds []object.Hash
	for _, id := range run {
		c, err := r.graph.Commit(id)
		if err != nil {
			return nil, err
		}
		if startsBranch(id, c) {
			return nil, invalid("the commits to squash include a branch starting point at %s", id.Short())
		}
		firsts = append(firsts, c.Parents[0])
		seconds = append(seconds, c.Parents[1:]...)
	}
	for _, id := range after {
		c, err := r.graph.Commit(id)
		if err != nil {
			return nil, err
		}
		if startsBranch(id, c) {
			return nil, invalid("the commits after the squashed range include a branch starting point at %s", id.Short())
		}
	}
	for _, p := range append(firsts, seconds...) {
		if !slices.Contains(run, p) && !slices.Contains(plan.parents, p) {
			plan.parents = append(plan.parents, p)
		}
	}
	return plan, nil
}
