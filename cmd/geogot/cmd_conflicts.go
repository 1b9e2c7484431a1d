package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newConflictsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List the conflicts of the suspended operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				cs, err := r.Conflicts()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, c := range cs {
					if c.Resolved && !all {
						continue
					}
					state := "unresolved"
					if c.Resolved {
						state = "resolved"
					}
					fmt.Fprintf(out, "%s\t%s\tbase=%s ours=%s theirs=%s\n", state, c.Path,
						short(c.Ancestor), short(c.Ours), short(c.Theirs))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include resolved conflicts")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var ours, theirs bool

	cmd := &cobra.Command{
		Use:   "resolve <path>...",
		Short: "Mark conflicts resolved, optionally taking one side",
		Long: "Without --ours or --theirs the staged version of each path is accepted as\n" +
			"the resolution; stage edits with 'geogot add' first.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ours && theirs {
				return fmt.Errorf("--ours and --theirs are mutually exclusive")
			}
			how := repo.ResolveStaged
			switch {
			case ours:
				how = repo.ResolveOurs
			case theirs:
				how = repo.ResolveTheirs
			}
			return withRepo(func(r *repo.Repo) error {
				for _, p := range args {
					if err := r.ResolveConflict(cmd.Context(), p, how); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", p)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&ours, "ours", false, "take our version")
	cmd.Flags().BoolVar(&theirs, "theirs", false, "take their version")
	return cmd
}
