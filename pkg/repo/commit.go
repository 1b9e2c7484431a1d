package repo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitOptions controls Commit.
type CommitOptions struct {
	Message    string
	Author     *object.Person // defaults to the configured user
	Signer     CommitSigner
	AllowEmpty bool
}

// Commit records STAGE_HEAD as a new commit on top of HEAD.
func (r *Repo) Commit(ctx context.Context, opts CommitOptions) (object.Hash, error) {
	if err := r.checkNoOperation(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	head, err := r.head()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	staged, err := r.StagedTree()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	parentTree, err := r.commitTree(head.tip)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if staged == parentTree && !opts.AllowEmpty {
		return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
	}
	if err := cancelled(ctx); err != nil {
		return "", err
	}

	var parents []object.Hash
	if !head.tip.IsNull() {
		parents = append(parents, head.tip)
	}
	c := r.newCommit(staged, parents, opts.Message, opts.Author)
	id, err := r.writeCommit(c, opts.Signer)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if err := r.Refs.CompareAndSwap(head.refName(), head.tip, id, "commit: "+firstLine(opts.Message)); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug("commit", zap.String("id", string(id)), zap.String("ref", head.refName()))
	return id, nil
}

func (r *Repo) newCommit(treeID object.Hash, parents []object.Hash, message string, author *object.Person) *object.CommitObj {
	committer := r.identity()
	a := committer
	if author != nil {
		a = *author
	}
	return &object.CommitObj{
		TreeHash:  treeID,
		Parents:   parents,
		Author:    a,
		Committer: committer,
		Message:   message,
	}
}

func (r *Repo) writeCommit(c *object.CommitObj, signer CommitSigner) (object.Hash, error) {
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		c.Signature = signature
	}
	id, err := r.Objects.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return id, nil
}

// advance moves HEAD's branch (or detached HEAD) from expected to next and
// resets both snapshots to next's tree.
func (r *Repo) advance(head headState, next object.Hash, reason string) error {
	if next != head.tip {
		if err := r.Refs.CompareAndSwap(head.refName(), head.tip, next, reason); err != nil {
			return err
		}
	}
	treeID, err := r.commitTree(next)
	if err != nil {
		return err
	}
	return r.setSnapshots(treeID, reason)
}

// LogEntry is one commit in a Log listing.
type LogEntry struct {
	ID     object.Hash
	Commit *object.CommitObj
}

// Log follows first parents from rev, newest first, returning at most
// limit commits (all when limit is zero). With paths only commits that
// change one of them are listed.
func (r *Repo) Log(ctx context.Context, rev string, limit int, paths ...string) ([]LogEntry, error) {
	start, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	var out []LogEntry
	for cur := start; !cur.IsNull(); {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		c, err := r.graph.Commit(cur)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", cur, err)
		}
		keep := true
		if len(paths) > 0 {
			keep, err = r.touches(ctx, c, paths)
			if err != nil {
				return nil, fmt.Errorf("log: %w", err)
			}
		}
		if keep {
			out = append(out, LogEntry{ID: cur, Commit: c})
		}
		cur = c.FirstParent()
	}
	return out, nil
}

// touches reports whether c changes anything under paths relative to its
// first parent.
func (r *Repo) touches(ctx context.Context, c *object.CommitObj, paths []string) (bool, error) {
	parentTree, err := r.commitTree(c.FirstParent())
	if err != nil {
		return false, err
	}
	for _, err := range diff.Trees(ctx, r.Objects, parentTree, c.TreeHash, diff.WithPathFilter(paths...)) {
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
