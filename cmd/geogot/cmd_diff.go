package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/repo"
)

func newDiffCmd() *cobra.Command {
	var records bool

	cmd := &cobra.Command{
		Use:   "diff [old [new]] [-- path...]",
		Short: "Show changes between commits or against the working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			var paths []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				paths = args[dash:]
				args = args[:dash]
			}
			oldRev, newRev := "HEAD", ""
			switch len(args) {
			case 0:
			case 1:
				oldRev = args[0]
			case 2:
				oldRev, newRev = args[0], args[1]
			default:
				return fmt.Errorf("diff takes at most two revisions")
			}

			return withRepo(func(r *repo.Repo) error {
				entries, err := r.Diff(cmd.Context(), oldRev, newRev, paths...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !records {
					fmt.Fprint(out, diff.FormatEntries(entries))
					return nil
				}
				for _, e := range entries {
					if e.IsTree() {
						continue
					}
					rd, err := recordDiff(r.Objects, e)
					if err != nil {
						return err
					}
					fmt.Fprint(out, diff.FormatRecordDiff(rd))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&records, "records", false, "show attribute-level changes")
	return cmd
}

// recordDiff compares the record versions of e. A missing side is treated
// as an empty record of the other side's type.
func recordDiff(store *object.Store, e diff.Entry) (diff.RecordDiff, error) {
	oldRec, oldType, err := readTyped(store, e.Old)
	if err != nil {
		return diff.RecordDiff{}, err
	}
	newRec, newType, err := readTyped(store, e.New)
	if err != nil {
		return diff.RecordDiff{}, err
	}
	if oldRec == nil {
		oldRec, oldType = &object.RecordObj{}, newType
	}
	if newRec == nil {
		newRec, newType = &object.RecordObj{}, oldType
	}
	return diff.Records(e.Path(), oldRec, oldType, newRec, newType), nil
}

func readTyped(store *object.Store, ref *diff.NodeRef) (*object.RecordObj, *object.RecordTypeObj, error) {
	if ref == nil || ref.Node.IsTree() {
		return nil, nil, nil
	}
	rec, err := store.ReadRecord(ref.Node.ID)
	if err != nil {
		return nil, nil, err
	}
	md := ref.MetadataID()
	if md.IsNull() {
		return rec, &object.RecordTypeObj{}, nil
	}
	rt, err := store.ReadRecordType(md)
	if err != nil {
		return nil, nil, err
	}
	return rec, rt, nil
}
