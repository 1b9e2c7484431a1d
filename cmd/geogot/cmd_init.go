package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newInitCmd() *cobra.Command {
	var backend, branch, name, email string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty geogot repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			cfg := repo.DefaultConfig()
			cfg.Storage.Backend = backend
			if branch != "" {
				cfg.Core.DefaultBranch = branch
			}
			if logLevel != "" {
				cfg.Core.LogLevel = logLevel
			}
			cfg.User = repo.UserConfig{Name: name, Email: email}
			if cfg.User.Name == "" {
				cfg.User.Name = os.Getenv("USER")
			}

			r, err := repo.Init(abs, cfg)
			if err != nil {
				return err
			}
			defer r.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty geogot repository in %s%c\n", r.Dir, filepath.Separator)
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", repo.BackendFiles, "storage backend (files, bolt)")
	cmd.Flags().StringVarP(&branch, "initial-branch", "b", "", "name of the initial branch")
	cmd.Flags().StringVar(&name, "user", "", "author name (default: $USER)")
	cmd.Flags().StringVar(&email, "email", "", "author email")
	return cmd
}
