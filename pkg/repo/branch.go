package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// CreateBranch creates refs/heads/<name> at the commit rev resolves to.
// Returns an error if the branch already exists.
func (r *Repo) CreateBranch(name, rev string) (object.Hash, error) {
	refName := refs.HeadsPrefix + name
	if err := refs.ValidateName(refName); err != nil {
		return "", fmt.Errorf("create branch: %w", err)
	}
	target, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("create branch %q: %w", name, err)
	}
	if err := r.Refs.CompareAndSwap(refName, "", target, "branch: created from "+rev); err != nil {
		if errors.Is(err, refs.ErrCASMismatch) {
			return "", fmt.Errorf("create branch: branch %q already exists", name)
		}
		return "", fmt.Errorf("create branch %q: %w", name, err)
	}
	return target, nil
}

// DeleteBranch removes refs/heads/<name>. The checked-out branch cannot be
// deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	if err := r.Refs.Delete(refs.HeadsPrefix+name, ""); err != nil {
		if errors.Is(err, refs.ErrNotFound) {
			return fmt.Errorf("delete branch: branch %q does not exist", name)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// Branch is a branch name with its tip.
type Branch struct {
	Name string
	Tip  object.Hash
}

// ListBranches returns the branches sorted by name.
func (r *Repo) ListBranches() ([]Branch, error) {
	list, err := r.Refs.List(refs.HeadsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	out := make([]Branch, 0, len(list))
	for _, ref := range list {
		out = append(out, Branch{Name: refs.BranchName(ref.Name), Tip: ref.Target})
	}
	return out, nil
}

// branchTips returns every branch tip plus HEAD.
func (r *Repo) branchTips() ([]object.Hash, error) {
	branches, err := r.ListBranches()
	if err != nil {
		return nil, err
	}
	tips := make([]object.Hash, 0, len(branches)+1)
	for _, b := range branches {
		tips = append(tips, b.Tip)
	}
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	if !head.IsNull() {
		tips = append(tips, head)
	}
	return tips, nil
}
