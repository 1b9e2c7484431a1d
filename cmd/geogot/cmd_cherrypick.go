package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newCherryPickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cherry-pick <commit>",
		Short: "Apply the changes of an existing commit on top of HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				st, err := r.CherryPick(cmd.Context(), args[0])
				return reportOperation(cmd.OutOrStdout(), st, err)
			})
		},
	}
}
