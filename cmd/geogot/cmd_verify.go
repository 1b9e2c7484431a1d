package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every object reachable from refs is present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				report, err := r.Verify()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !report.OK() {
					for _, h := range report.Missing {
						fmt.Fprintf(out, "missing %s\n", h)
					}
					return fmt.Errorf("verify: %d missing object(s)", len(report.Missing))
				}
				fmt.Fprintf(out, "ok: verified %d object(s) from %d root(s)\n", report.Reachable, report.Roots)
				return nil
			})
		},
	}
}
