package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/repo"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged and unstaged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				out := cmd.OutOrStdout()
				branch, err := r.CurrentBranch()
				if err != nil {
					return err
				}
				if branch == "" {
					head, err := r.Head()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "HEAD detached at %s\n", short(head))
				} else {
					fmt.Fprintf(out, "On branch %s\n", branch)
				}

				op, err := r.Operation()
				switch {
				case errors.Is(err, repo.ErrNoOperation):
				case err != nil:
					return err
				default:
					fmt.Fprintf(out, "%s %s: %d unresolved conflict(s)\n", op.Kind, op.Status, len(op.Unresolved()))
				}

				st, err := r.Status(cmd.Context())
				if err != nil {
					return err
				}
				if st.Clean() {
					fmt.Fprintln(out, "nothing to commit, working tree clean")
					return nil
				}
				printSection(out, "Changes to be committed:", st.Staged)
				printSection(out, "Changes not staged for commit:", st.Unstaged)
				return nil
			})
		},
	}
}

func printSection(out io.Writer, title string, entries []diff.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(out, title)
	fmt.Fprint(out, diff.FormatEntries(entries))
}
