package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [path]...",
		Short: "Stage working-tree changes (all when no path is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				staged, err := r.Add(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "staged tree %s\n", short(staged))
				return nil
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove records or trees from the working tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				if _, err := r.Remove(cmd.Context(), args...); err != nil {
					return err
				}
				for _, p := range args {
					fmt.Fprintf(cmd.OutOrStdout(), "rm '%s'\n", p)
				}
				return nil
			})
		},
	}
}
