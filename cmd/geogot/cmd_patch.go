package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/patch"
	"github.com/odvcencio/geogot/pkg/repo"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func newFormatPatchCmd() *cobra.Command {
	var output string
	var compress bool

	cmd := &cobra.Command{
		Use:   "format-patch <old> [new] [-- path...]",
		Short: "Write the changes between two commits (new defaults to the working tree) as a patch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var paths []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				paths = args[dash:]
				args = args[:dash]
			}
			if len(args) == 0 || len(args) > 2 {
				return fmt.Errorf("format-patch takes one or two revisions")
			}
			newRev := ""
			if len(args) == 2 {
				newRev = args[1]
			}

			return withRepo(func(r *repo.Repo) error {
				p, err := r.FormatPatch(cmd.Context(), args[0], newRev, paths...)
				if err != nil {
					return err
				}
				var out io.Writer = cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				if compress {
					return patch.WriteCompressed(out, p)
				}
				return patch.Write(out, p)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVarP(&compress, "compress", "z", false, "zstd-compress the patch")
	return cmd
}

func newApplyCmd() *cobra.Command {
	var partial bool
	var rejectFile string

	cmd := &cobra.Command{
		Use:   "apply <patch-file>",
		Short: "Apply a patch to the working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPatchFile(args[0])
			if err != nil {
				return err
			}
			return withRepo(func(r *repo.Repo) error {
				out := cmd.OutOrStdout()
				rejected, err := r.ApplyPatch(cmd.Context(), p, partial)
				var cae *patch.CannotApplyError
				if errors.As(err, &cae) {
					fmt.Fprintf(out, "patch does not apply at %s: %s\n", cae.Path, cae.Reason)
					return err
				}
				if err != nil {
					return err
				}
				applied := p.Count()
				if rejected != nil && !rejected.IsEmpty() {
					applied -= rejected.Count()
					fmt.Fprintf(out, "%d change(s) rejected\n", rejected.Count())
					if rejectFile != "" {
						f, err := os.Create(rejectFile)
						if err != nil {
							return err
						}
						defer f.Close()
						if err := patch.Write(f, rejected); err != nil {
							return err
						}
					}
				}
				fmt.Fprintf(out, "applied %d change(s)\n", applied)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&partial, "partial", false, "apply what fits and report the rest")
	cmd.Flags().StringVar(&rejectFile, "reject", "", "with --partial, write rejected changes to this file")
	return cmd
}

// readPatchFile reads a plain or zstd-compressed patch.
func readPatchFile(path string) (*patch.Patch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	br := bufio.NewReader(f)
	head, err := br.Peek(len(zstdMagic))
	if err == nil && bytes.Equal(head, zstdMagic) {
		return patch.ReadCompressed(br)
	}
	return patch.Read(br)
}
