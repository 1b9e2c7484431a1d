package repo

import (
	"context"
	"fmt"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// ResetMode selects what Reset rewrites besides HEAD.
type ResetMode int

const (
	// ResetSoft moves HEAD only.
	ResetSoft ResetMode = iota
	// ResetMixed moves HEAD and STAGE_HEAD.
	ResetMixed
	// ResetHard moves HEAD, STAGE_HEAD and WORK_HEAD.
	ResetHard
)

// Reset moves the current branch (or detached HEAD) to rev.
func (r *Repo) Reset(ctx context.Context, rev string, mode ResetMode) (object.Hash, error) {
	if err := r.checkNoOperation(); err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	target, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	head, err := r.head()
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	treeID, err := r.commitTree(target)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return "", err
	}
	if target != head.tip {
		if err := r.Refs.CompareAndSwap(head.refName(), head.tip, target, "reset: moving to "+rev); err != nil {
			return "", fmt.Errorf("reset: %w", err)
		}
	}
	switch mode {
	case ResetHard:
		err = r.setSnapshots(treeID, "reset")
	case ResetMixed:
		err = refs.Set(r.Refs, refs.StageHead, treeID, "reset")
	}
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	return target, nil
}
