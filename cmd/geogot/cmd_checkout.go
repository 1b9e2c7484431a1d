package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newCheckoutCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|commit>",
		Short: "Switch branches or detach HEAD at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				if create {
					if _, err := r.CreateBranch(args[0], "HEAD"); err != nil {
						return err
					}
				}
				if err := r.Checkout(cmd.Context(), args[0]); err != nil {
					return err
				}
				if branch, _ := r.CurrentBranch(); branch != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "switched to branch '%s'\n", branch)
					return nil
				}
				head, err := r.Head()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s\n", short(head))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&create, "branch", "b", false, "create the branch at HEAD first")
	return cmd
}
