package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Commit the resolved step and resume the suspended operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				st, err := r.Continue(cmd.Context())
				return reportOperation(cmd.OutOrStdout(), st, err)
			})
		},
	}
}

func newSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Drop the conflicted commit and resume the suspended operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				st, err := r.Skip(cmd.Context())
				return reportOperation(cmd.OutOrStdout(), st, err)
			})
		},
	}
}

func newAbortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abandon the suspended operation and restore HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				st, err := r.Abort(cmd.Context())
				return reportOperation(cmd.OutOrStdout(), st, err)
			})
		},
	}
}
