package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newBlameCmd() *cobra.Command {
	var rev string

	cmd := &cobra.Command{
		Use:   "blame <record-path>",
		Short: "Show which commit last changed each attribute of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				lines, err := r.Blame(cmd.Context(), rev, args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, l := range lines {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", short(l.Commit), l.Author.Name, l.Attribute, l.Value, firstLine(l.Message))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&rev, "revision", "r", "HEAD", "commit to blame from")
	return cmd
}
