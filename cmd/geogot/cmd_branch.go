package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				out := cmd.OutOrStdout()
				if deleteBranch != "" {
					if err := r.DeleteBranch(deleteBranch); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
					return nil
				}

				if len(args) > 0 {
					start := "HEAD"
					if len(args) == 2 {
						start = args[1]
					}
					tip, err := r.CreateBranch(args[0], start)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "created branch '%s' at %s\n", args[0], short(tip))
					return nil
				}

				branches, err := r.ListBranches()
				if err != nil {
					return err
				}
				current, _ := r.CurrentBranch()
				for _, b := range branches {
					marker := " "
					if b.Name == current {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s %s\n", marker, b.Name, short(b.Tip))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	return cmd
}
