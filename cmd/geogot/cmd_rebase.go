package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newRebaseCmd() *cobra.Command {
	var onto, squash string

	cmd := &cobra.Command{
		Use:   "rebase <upstream>",
		Short: "Replay the current branch's commits on top of another commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				var opts []repo.RebaseOption
				if squash != "" {
					opts = append(opts, repo.RebaseSquash(squash))
				}
				st, err := r.Rebase(cmd.Context(), args[0], onto, opts...)
				return reportOperation(cmd.OutOrStdout(), st, err)
			})
		},
	}

	cmd.Flags().StringVar(&onto, "onto", "", "replay onto this commit instead of upstream")
	cmd.Flags().StringVar(&squash, "squash", "", "fold the replayed commits into one commit with this message")
	return cmd
}
