package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/repo"
)

func newMergeCmd() *cobra.Command {
	var message, strategy, keyPath string
	var ffOnly, noFF, sign bool

	cmd := &cobra.Command{
		Use:   "merge <commit>...",
		Short: "Join one or more histories into the current branch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ffOnly && noFF {
				return fmt.Errorf("--ff-only and --no-ff are mutually exclusive")
			}
			s, err := merge.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			opts := repo.MergeOptions{Message: message, Strategy: s}
			switch {
			case ffOnly:
				opts.FastForward = repo.FastForwardOnly
			case noFF:
				opts.FastForward = repo.FastForwardNever
			}
			if sign || keyPath != "" {
				signer, _, err := newSSHCommitSigner(keyPath)
				if err != nil {
					return err
				}
				opts.Signer = signer
			}

			return withRepo(func(r *repo.Repo) error {
				out := cmd.OutOrStdout()
				res, err := r.Merge(cmd.Context(), opts, args...)
				if err != nil {
					return reportOperation(out, nil, err)
				}
				switch {
				case res.UpToDate:
					fmt.Fprintln(out, "already up to date")
				case res.FastForward:
					fmt.Fprintf(out, "fast-forward to %s\n", short(res.Commit))
				default:
					fmt.Fprintf(out, "merged into %s", short(res.Commit))
					if res.Report != nil {
						fmt.Fprintf(out, " (%d path(s) changed, %d record(s) auto-merged)", res.Report.Unconflicted, res.Report.Merged)
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "merge commit message")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "conflict strategy (default, ours, theirs)")
	cmd.Flags().BoolVar(&ffOnly, "ff-only", false, "refuse anything but a fast-forward")
	cmd.Flags().BoolVar(&noFF, "no-ff", false, "always create a merge commit")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the merge commit with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key used for signing")
	return cmd
}
