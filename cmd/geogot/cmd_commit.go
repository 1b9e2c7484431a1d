package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var message, keyPath string
	var sign, allowEmpty, all bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes to the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			opts := repo.CommitOptions{Message: message, AllowEmpty: allowEmpty}
			if sign || keyPath != "" {
				signer, _, err := newSSHCommitSigner(keyPath)
				if err != nil {
					return err
				}
				opts.Signer = signer
			}

			return withRepo(func(r *repo.Repo) error {
				if all {
					if _, err := r.Add(cmd.Context()); err != nil {
						return err
					}
				}
				h, err := r.Commit(cmd.Context(), opts)
				if err != nil {
					return err
				}
				branch, _ := r.CurrentBranch()
				if branch == "" {
					branch = "detached HEAD"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, short(h), firstLine(message))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "stage every working-tree change first")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "record a commit even if nothing changed")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key used for signing (default: ~/.ssh/id_*)")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
