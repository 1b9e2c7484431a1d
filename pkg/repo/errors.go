package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
)

var (
	ErrNothingToCommit     = errors.New("nothing to commit")
	ErrNotFastForward      = errors.New("not possible to fast-forward")
	ErrOctopusConflicts    = errors.New("cannot merge more than two commits when conflicts exist")
	ErrInvalidSquashRange  = errors.New("invalid squash range")
	ErrOperationInProgress = errors.New("an operation is in progress")
	ErrNoOperation         = errors.New("no operation in progress")
	ErrUnresolvedConflicts = errors.New("unresolved conflicts")
	ErrCannotSkip          = errors.New("operation cannot skip")
	ErrDetachedHead        = errors.New("HEAD is detached")
	ErrDirtyWorkingTree    = errors.New("working tree has uncommitted changes")
	ErrNoCommonAncestor    = errors.New("no common ancestor")
	ErrNotACommit          = errors.New("not a commit")
	ErrNotInitialized      = errors.New("not a geogot repository")
)

// ConflictError reports a merge or replay step that stopped on conflicts.
// The operation is suspended and can be continued, skipped or aborted.
type ConflictError struct {
	Kind      OperationKind
	Commit    object.Hash
	Conflicts []merge.Conflict
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d conflict(s)", e.Kind, len(e.Conflicts))
	if !e.Commit.IsNull() {
		fmt.Fprintf(&b, " applying %s", e.Commit.Short())
	}
	for i, c := range e.Conflicts {
		if i == 25 {
			fmt.Fprintf(&b, "\n... and %d more", len(e.Conflicts)-i)
			break
		}
		fmt.Fprintf(&b, "\nCONFLICT: %s", c.Path)
	}
	return b.String()
}
