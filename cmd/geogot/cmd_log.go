package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var oneline, showSignature bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [revision] [-- path...]",
		Short: "Show first-parent commit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := "HEAD"
			var paths []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				paths = args[dash:]
				args = args[:dash]
			}
			if len(args) > 1 {
				return fmt.Errorf("log takes at most one revision")
			}
			if len(args) == 1 {
				rev = args[0]
			}

			return withRepo(func(r *repo.Repo) error {
				entries, err := r.Log(cmd.Context(), rev, limit, paths...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					c := e.Commit
					if oneline {
						fmt.Fprintf(out, "%s %s\n", short(e.ID), firstLine(c.Message))
						continue
					}
					fmt.Fprintf(out, "commit %s\n", e.ID)
					if len(c.Parents) > 1 {
						fmt.Fprint(out, "Merge:")
						for _, p := range c.Parents {
							fmt.Fprintf(out, " %s", short(p))
						}
						fmt.Fprintln(out)
					}
					if showSignature {
						if fp, err := verifyCommitSignature(c); err != nil {
							fmt.Fprintf(out, "Signature: %v\n", err)
						} else {
							fmt.Fprintf(out, "Signature: good (%s)\n", fp)
						}
					}
					fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
					fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Author.When, 0).UTC().Format("2006-01-02 15:04:05"))
					fmt.Fprintln(out)
					fmt.Fprintf(out, "    %s\n", c.Message)
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().BoolVar(&showSignature, "show-signature", false, "verify commit signatures")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits")
	return cmd
}
