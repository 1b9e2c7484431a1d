package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newTagCmd() *cobra.Command {
	var message, deleteTag string
	var force bool

	cmd := &cobra.Command{
		Use:   "tag [name [revision]]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				out := cmd.OutOrStdout()
				if deleteTag != "" {
					if err := r.DeleteTag(deleteTag); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted tag '%s'\n", deleteTag)
					return nil
				}
				if len(args) == 0 {
					tags, err := r.ListTags()
					if err != nil {
						return err
					}
					names := make([]string, 0, len(tags))
					for name := range tags {
						names = append(names, name)
					}
					slices.Sort(names)
					for _, name := range names {
						fmt.Fprintf(out, "%s %s\n", name, short(tags[name]))
					}
					return nil
				}

				rev := "HEAD"
				if len(args) == 2 {
					rev = args[1]
				}
				var err error
				if message != "" {
					_, err = r.CreateAnnotatedTag(args[0], rev, message, force)
				} else {
					_, err = r.CreateTag(args[0], rev, force)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tagged '%s'\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "create an annotated tag with this message")
	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	return cmd
}
