package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/logging"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/repo"
)

const version = "geogot 0.1.0-dev"

// logLevel overrides core.log_level from the repository config when set.
var logLevel string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geogot",
		Short:         "Version control for geospatial feature datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, none)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newCherryPickCmd())
	root.AddCommand(newRebaseCmd())
	root.AddCommand(newRevertCmd())
	root.AddCommand(newSquashCmd())
	root.AddCommand(newContinueCmd())
	root.AddCommand(newSkipCmd())
	root.AddCommand(newAbortCmd())
	root.AddCommand(newConflictsCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newFormatPatchCmd())
	root.AddCommand(newApplyCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newBlameCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// openRepo opens the repository containing the working directory.
func openRepo() (*repo.Repo, error) {
	root, err := repo.FindRoot(".")
	if err != nil {
		return nil, err
	}
	var opts []repo.Option
	if logLevel != "" {
		logger, err := logging.New(logLevel)
		if err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
		opts = append(opts, repo.WithLogger(logger))
	}
	return repo.Open(root, opts...)
}

// withRepo runs fn against the opened repository and closes it afterwards.
func withRepo(fn func(r *repo.Repo) error) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

func short(h object.Hash) string {
	if h.IsNull() {
		return "(none)"
	}
	return h.Short()
}
