package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/dataset"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/repo"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [revision]",
		Short: "Write the records of a commit (default: the working tree) as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				var root object.Hash
				var err error
				if len(args) == 0 {
					root, err = r.WorkingTree()
				} else {
					root, err = r.TreeOf(args[0])
				}
				if err != nil {
					return err
				}
				d, err := dataset.Export(cmd.Context(), r.Objects, root)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				return dataset.Write(out, d)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
