package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <commit>...",
		Short: "Record new commits undoing existing ones, in the order given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				st, err := r.Revert(cmd.Context(), args...)
				return reportOperation(cmd.OutOrStdout(), st, err)
			})
		},
	}
}
