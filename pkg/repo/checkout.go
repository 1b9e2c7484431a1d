package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// Checkout switches HEAD to a branch, or detaches it at any other
// revision, and resets both snapshots to the target tree. Uncommitted
// changes block the switch.
func (r *Repo) Checkout(ctx context.Context, rev string) error {
	if err := r.checkNoOperation(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.requireClean(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	target, err := r.ResolveCommit(rev)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	treeID, err := r.commitTree(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}

	branch := rev
	if !strings.HasPrefix(branch, refs.HeadsPrefix) {
		branch = refs.HeadsPrefix + rev
	}
	if ref, err := r.Refs.Read(branch); err == nil && !ref.IsSymbolic() {
		if err := r.Refs.SetSymbolic(refs.Head, branch); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
	} else if err := r.detach(target, "checkout: moving to "+rev); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.setSnapshots(treeID, "checkout"); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	r.logger.Info("checkout", zap.String("rev", rev), zap.String("commit", string(target)))
	return nil
}

// detach points HEAD directly at target.
func (r *Repo) detach(target object.Hash, reason string) error {
	if err := r.Refs.Delete(refs.Head, ""); err != nil && !errors.Is(err, refs.ErrNotFound) {
		return err
	}
	return r.Refs.CompareAndSwap(refs.Head, "", target, reason)
}
