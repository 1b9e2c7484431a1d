package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/dataset"
	"github.com/odvcencio/geogot/pkg/repo"
	"github.com/odvcencio/geogot/pkg/tree"
)

func newImportCmd() *cobra.Command {
	var stage bool

	cmd := &cobra.Command{
		Use:   "import <dataset.yaml>...",
		Short: "Load YAML record layers into the working tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repo) error {
				total := 0
				for _, path := range args {
					d, err := readDataset(path)
					if err != nil {
						return err
					}
					_, err = r.UpdateWorkingTree(cmd.Context(), func(ed *tree.Editor) error {
						n, err := d.Apply(r.Objects, ed)
						total += n
						return err
					})
					if err != nil {
						return fmt.Errorf("import %s: %w", path, err)
					}
				}
				if stage {
					if _, err := r.Add(cmd.Context()); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s)\n", total)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&stage, "add", false, "stage the imported records")
	return cmd
}

func readDataset(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := dataset.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
