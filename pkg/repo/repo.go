// Package repo is the repository layer: snapshots, commits, branches, and
// the merge and replay operations built on the tree, diff and merge
// engines.
package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/history"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// Repo is an opened repository.
type Repo struct {
	Dir     string // .geogot directory; empty for in-memory repositories
	Objects *object.Store
	Refs    refs.Store
	State   StateStore
	Config  *Config

	graph   *history.Graph
	logger  *zap.Logger
	now     func() time.Time
	closers []io.Closer
}

// Option configures a Repo when it is opened.
type Option func(*Repo)

// WithLogger sets the logger. Without it the level in config.toml decides.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repo) { r.logger = l }
}

// WithClock replaces the time source used for commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

func newRepo(objects *object.Store, rs refs.Store, state StateStore, cfg *Config, opts []Option) *Repo {
	r := &Repo{
		Objects: objects,
		Refs:    rs,
		State:   state,
		Config:  cfg,
		graph:   history.NewGraph(objects),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases the storage backends.
func (r *Repo) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i].Close())
	}
	r.closers = nil
	return err
}

// Logger returns the repository's logger.
func (r *Repo) Logger() *zap.Logger { return r.logger }

// Graph returns the commit graph over the object store.
func (r *Repo) Graph() *history.Graph { return r.graph }

// headState is where HEAD points: a branch (possibly unborn) or a detached
// commit.
type headState struct {
	branch string
	tip    object.Hash
}

func (h headState) refName() string {
	if h.branch == "" {
		return refs.Head
	}
	return h.branch
}

func (r *Repo) head() (headState, error) {
	ref, err := r.Refs.Read(refs.Head)
	if err != nil {
		return headState{}, fmt.Errorf("read HEAD: %w", err)
	}
	if !ref.IsSymbolic() {
		return headState{tip: ref.Target}, nil
	}
	branch, err := refs.Symref(r.Refs, refs.Head)
	if err != nil {
		return headState{}, err
	}
	tip, err := r.Refs.Read(branch)
	switch {
	case errors.Is(err, refs.ErrNotFound):
		return headState{branch: branch}, nil
	case err != nil:
		return headState{}, err
	}
	return headState{branch: branch, tip: tip.Target}, nil
}

// Head returns the commit HEAD resolves to, NULL on an unborn branch.
func (r *Repo) Head() (object.Hash, error) {
	h, err := r.head()
	return h.tip, err
}

// CurrentBranch returns the short name of the checked-out branch, or ""
// when HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	h, err := r.head()
	if err != nil {
		return "", err
	}
	return refs.BranchName(h.branch), nil
}

// ResolveCommit resolves a ref name or commit id to a commit, peeling
// annotated tags.
func (r *Repo) ResolveCommit(rev string) (object.Hash, error) {
	id, err := refs.Resolve(r.Refs, rev)
	if errors.Is(err, refs.ErrNotFound) || errors.Is(err, refs.ErrInvalidName) {
		id = object.Hash(rev)
		if ok, herr := r.Objects.Has(id); herr != nil || !ok {
			return "", fmt.Errorf("resolve %q: %w", rev, refs.ErrNotFound)
		}
	} else if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, err)
	}
	for range 8 {
		obj, err := r.Objects.Read(id)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", rev, err)
		}
		switch o := obj.(type) {
		case *object.CommitObj:
			return id, nil
		case *object.TagObj:
			id = o.TargetHash
		default:
			return "", fmt.Errorf("resolve %q: %w: %s is a %s", rev, ErrNotACommit, id.Short(), obj.Type())
		}
	}
	return "", fmt.Errorf("resolve %q: tags nested too deep", rev)
}

// TreeOf returns the root tree of the commit rev names.
func (r *Repo) TreeOf(rev string) (object.Hash, error) {
	c, err := r.ResolveCommit(rev)
	if err != nil {
		return "", err
	}
	return r.commitTree(c)
}

// commitTree returns the tree of commit c; NULL yields the empty tree.
func (r *Repo) commitTree(c object.Hash) (object.Hash, error) {
	if c.IsNull() {
		return object.EmptyTreeHash, nil
	}
	commit, err := r.Objects.ReadCommit(c)
	if err != nil {
		return "", err
	}
	return commit.TreeHash, nil
}

// identity returns the configured user stamped with the current time.
func (r *Repo) identity() object.Person {
	now := r.now()
	_, offset := now.Zone()
	name := r.Config.User.Name
	if name == "" {
		name = "unknown"
	}
	return object.Person{Name: name, Email: r.Config.User.Email, When: now.Unix(), TZOffset: offset / 60}
}

func (r *Repo) checkNoOperation() error {
	st, err := r.State.Load()
	switch {
	case errors.Is(err, ErrNoOperation):
		return nil
	case err != nil:
		return err
	}
	return fmt.Errorf("%w: %s %s", ErrOperationInProgress, st.Kind, st.Status)
}

// Operation returns the suspended operation, or ErrNoOperation.
func (r *Repo) Operation() (*OperationState, error) {
	return r.State.Load()
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}
	return nil
}
