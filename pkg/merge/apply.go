package merge

import (
	"context"
	"fmt"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// Applier is a Consumer that writes a scenario's outcome onto ours.
// Conflicts are collected; conflicted paths keep ours' content.
type Applier struct {
	store     *object.Store
	editor    *tree.Editor
	Conflicts []Conflict
	result    object.Hash
}

// NewApplier prepares to apply scenario events onto the tree ours.
func NewApplier(store *object.Store, ours object.Hash) (*Applier, error) {
	ed, err := tree.NewEditor(store, ours)
	if err != nil {
		return nil, err
	}
	return &Applier{store: store, editor: ed}, nil
}

func (a *Applier) Conflicted(c Conflict) error {
	a.Conflicts = append(a.Conflicts, c)
	return nil
}

func (a *Applier) Unconflicted(e diff.Entry) error {
	path := e.Path()
	if e.New == nil {
		if _, err := a.editor.Remove(path); err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
		return nil
	}
	if !e.New.Node.IsTree() {
		return a.put(path, e.New.Node)
	}
	cur, found, err := a.editor.Get(path)
	if err != nil {
		return fmt.Errorf("apply %s: %w", path, err)
	}
	if !found || !cur.IsTree() {
		// Place the whole subtree; entries beneath it restate its content.
		return a.put(path, e.New.Node)
	}
	if err := a.editor.SetTree(path, e.New.Node.MetadataID); err != nil {
		return fmt.Errorf("apply %s: %w", path, err)
	}
	return nil
}

func (a *Applier) Merged(m MergedRecord) error {
	if _, err := a.store.WriteRecord(m.Record); err != nil {
		return err
	}
	return a.put(m.Path, m.Node)
}

func (a *Applier) Finished() error {
	id, err := a.editor.Build()
	if err != nil {
		return err
	}
	a.result = id
	return nil
}

// Result returns the merged tree id once Finished has run.
func (a *Applier) Result() object.Hash { return a.result }

func (a *Applier) put(path string, n object.Node) error {
	if err := a.editor.Put(path, n); err != nil {
		return fmt.Errorf("apply %s: %w", path, err)
	}
	return nil
}

// Trees merges theirs into ours relative to ancestor and returns the
// merged tree together with any conflicts.
func Trees(ctx context.Context, store *object.Store, ancestor, ours, theirs object.Hash, opts ...Option) (object.Hash, []Conflict, *Report, error) {
	ap, err := NewApplier(store, ours)
	if err != nil {
		return "", nil, nil, err
	}
	report, err := Scenario(ctx, store, ancestor, ours, theirs, ap, opts...)
	if err != nil {
		return "", nil, nil, err
	}
	return ap.Result(), ap.Conflicts, report, nil
}
