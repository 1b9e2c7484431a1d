package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newSquashCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "squash <since> <until>",
		Short: "Collapse a first-parent run of commits into one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				tip, err := r.Squash(cmd.Context(), args[0], args[1], message)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "squashed %s..%s; HEAD at %s\n", args[0], args[1], short(tip))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message for the squashed commit (default: the oldest commit's)")
	return cmd
}
