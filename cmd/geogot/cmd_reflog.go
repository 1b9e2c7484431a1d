package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newReflogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show the update history of a ref (default: the current branch)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				name := "HEAD"
				if len(args) == 1 {
					name = args[0]
				}
				entries, err := r.Reflog(name, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					when := time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339)
					fmt.Fprintf(out, "%s %s -> %s %s\n", when, short(e.OldHash), short(e.NewHash), e.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 20, "limit the number of entries (0 for all)")
	return cmd
}
