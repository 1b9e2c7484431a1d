package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/repo"
)

// reportOperation prints the outcome of a replay or merge step. A
// *repo.ConflictError is listed path by path with the ways to proceed.
func reportOperation(out io.Writer, st *repo.OperationState, err error) error {
	var ce *repo.ConflictError
	if errors.As(err, &ce) {
		printConflicts(out, ce.Conflicts)
		fmt.Fprintf(out, "%s stopped", ce.Kind)
		if !ce.Commit.IsNull() {
			fmt.Fprintf(out, " at %s", short(ce.Commit))
		}
		fmt.Fprintln(out, "; resolve the conflicts, then run 'geogot continue'")
		if ce.Kind != repo.OpMerge {
			fmt.Fprintln(out, "use 'geogot skip' to drop this commit or 'geogot abort' to give up")
		} else {
			fmt.Fprintln(out, "use 'geogot abort' to give up")
		}
		return err
	}
	if err != nil {
		return err
	}
	switch st.Status {
	case repo.StatusAborted:
		fmt.Fprintf(out, "%s aborted; HEAD restored to %s\n", st.Kind, short(st.OrigHead))
	default:
		fmt.Fprintf(out, "%s complete: %d commit(s) created, HEAD at %s\n", st.Kind, st.Created, short(st.Onto))
	}
	return nil
}

func printConflicts(out io.Writer, cs []merge.Conflict) {
	for _, c := range cs {
		fmt.Fprintf(out, "CONFLICT %s (%s)\n", c.Path, conflictKind(c.Ancestor.IsNull(), c.Ours.IsNull(), c.Theirs.IsNull()))
	}
}

func conflictKind(noBase, noOurs, noTheirs bool) string {
	switch {
	case noOurs:
		return "deleted by us"
	case noTheirs:
		return "deleted by them"
	case noBase:
		return "added by both"
	default:
		return "modified by both"
	}
}
