package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newResetCmd() *cobra.Command {
	var soft, hard bool

	cmd := &cobra.Command{
		Use:   "reset [revision]",
		Short: "Move HEAD to a commit, optionally resetting staged and working trees",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if soft && hard {
				return fmt.Errorf("--soft and --hard are mutually exclusive")
			}
			mode := repo.ResetMixed
			switch {
			case soft:
				mode = repo.ResetSoft
			case hard:
				mode = repo.ResetHard
			}
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			return withRepo(func(r *repo.Repo) error {
				target, err := r.Reset(cmd.Context(), rev, mode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s\n", short(target))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&soft, "soft", false, "move HEAD only")
	cmd.Flags().BoolVar(&hard, "hard", false, "also reset the staged and working trees")
	return cmd
}
