package patch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// CannotApplyError reports a patch whose preconditions do not hold on the
// target tree. Rejected holds every failing entry.
type CannotApplyError struct {
	Path     string
	Reason   string
	Rejected *Patch
}

func (e *CannotApplyError) Error() string {
	return fmt.Sprintf("cannot apply patch: %s: %s (%d entries rejected)", e.Path, e.Reason, e.Rejected.Count())
}

// Apply replays p onto root. Every entry is verified against root before
// anything is written:
//
//   - an added record or tree must not already exist;
//   - a removed or modified record must still hold the patch's prior id;
//   - a modified or removed tree must still carry the prior schema id.
//
// Without partial any failure aborts with a *CannotApplyError and nothing
// is applied. With partial the passing entries are applied and the failing
// ones are returned as the rejected patch.
func Apply(ctx context.Context, store *object.Store, root object.Hash, p *Patch, partial bool) (object.Hash, *Patch, error) {
	v := &verifier{ctx: ctx, store: store, root: root, p: p, rejected: &Patch{Types: p.Types}}
	if err := v.run(); err != nil {
		return "", nil, err
	}
	if !v.rejected.IsEmpty() && !partial {
		return "", nil, &CannotApplyError{Path: v.firstPath, Reason: v.firstReason, Rejected: v.rejected}
	}
	if v.accepted.IsEmpty() {
		return root, v.rejected, nil
	}
	id, err := v.accepted.write(ctx, store, root)
	if err != nil {
		return "", nil, err
	}
	return id, v.rejected, nil
}

type verifier struct {
	ctx      context.Context
	store    *object.Store
	root     object.Hash
	p        *Patch
	accepted Patch
	rejected *Patch

	removedRecords map[string]bool
	removedTrees   map[string]bool
	firstPath      string
	firstReason    string
}

func (v *verifier) reject(path, reason string) {
	if v.firstPath == "" {
		v.firstPath, v.firstReason = path, reason
	}
}

// lookup resolves path in the snapshot. A record occupying one of the
// path's parents is reported through blocker.
func (v *verifier) lookup(path string) (n object.Node, inherited object.Hash, found bool, blocker string, err error) {
	n, inherited, found, err = tree.Find(v.store, v.root, path)
	if !errors.Is(err, tree.ErrNotATree) {
		return n, inherited, found, "", err
	}
	names := tree.SplitPath(path)
	for i := 1; i < len(names); i++ {
		prefix := strings.Join(names[:i], "/")
		pn, _, ok, perr := tree.Find(v.store, v.root, prefix)
		if perr != nil {
			return object.Node{}, "", false, "", perr
		}
		if ok && !pn.IsTree() {
			return object.Node{}, "", false, prefix, nil
		}
	}
	return object.Node{}, "", false, "", err
}

func (v *verifier) run() error {
	v.removedRecords = make(map[string]bool)
	v.removedTrees = make(map[string]bool)
	for _, r := range v.p.Removed {
		v.removedRecords[r.Path] = true
	}
	for _, t := range v.p.AlteredTrees {
		if t.Change == diff.Removed {
			v.removedTrees[t.Path] = true
		}
	}

	for _, r := range v.p.Removed {
		if err := v.ctx.Err(); err != nil {
			return err
		}
		n, _, found, _, err := v.lookup(r.Path)
		if err != nil {
			return err
		}
		switch {
		case !found || n.IsTree():
			v.reject(r.Path, "record to remove is missing")
		case n.ID != r.ID():
			v.reject(r.Path, "record to remove has changed")
		default:
			v.accepted.Removed = append(v.accepted.Removed, r)
			continue
		}
		v.rejected.Removed = append(v.rejected.Removed, r)
	}

	for _, r := range v.p.Added {
		if err := v.ctx.Err(); err != nil {
			return err
		}
		ok, err := v.free(r.Path)
		if err != nil {
			return err
		}
		if !ok {
			v.reject(r.Path, "record to add already exists")
			v.rejected.Added = append(v.rejected.Added, r)
			continue
		}
		v.accepted.Added = append(v.accepted.Added, r)
	}

	for _, m := range v.p.Modified {
		if err := v.ctx.Err(); err != nil {
			return err
		}
		n, inherited, found, _, err := v.lookup(m.Path)
		if err != nil {
			return err
		}
		effective := n.MetadataID
		if effective.IsNull() {
			effective = inherited
		}
		switch {
		case !found || n.IsTree():
			v.reject(m.Path, "record to modify is missing")
		case n.ID != m.OldID:
			v.reject(m.Path, "record to modify has changed")
		case effective != m.OldTypeID:
			v.reject(m.Path, "record to modify has a different schema")
		default:
			v.accepted.Modified = append(v.accepted.Modified, m)
			continue
		}
		v.rejected.Modified = append(v.rejected.Modified, m)
	}

	for _, t := range v.p.AlteredTrees {
		if err := v.ctx.Err(); err != nil {
			return err
		}
		reason, err := v.checkTree(t)
		if err != nil {
			return err
		}
		if reason != "" {
			v.reject(t.Path, reason)
			v.rejected.AlteredTrees = append(v.rejected.AlteredTrees, t)
			continue
		}
		v.accepted.AlteredTrees = append(v.accepted.AlteredTrees, t)
	}

	// A tree can only go once everything beneath it went too.
	v.accepted.AlteredTrees = slices.DeleteFunc(v.accepted.AlteredTrees, func(t TreeChange) bool {
		if t.Change != diff.Removed || !v.rejected.touches(t.Path) {
			return false
		}
		v.reject(t.Path, "entries beneath the tree were rejected")
		v.rejected.AlteredTrees = append(v.rejected.AlteredTrees, t)
		return true
	})
	v.accepted.Types = v.p.Types
	return nil
}

// free reports whether a new entry may be placed at path: nothing occupies
// it, or the patch removes whatever does.
func (v *verifier) free(path string) (bool, error) {
	n, _, found, blocker, err := v.lookup(path)
	if err != nil {
		return false, err
	}
	if blocker != "" {
		return v.removedRecords[blocker], nil
	}
	if !found {
		return true, nil
	}
	if n.IsTree() {
		return v.removedTrees[path], nil
	}
	return v.removedRecords[path], nil
}

func (v *verifier) checkTree(t TreeChange) (string, error) {
	if t.Change == diff.Added {
		ok, err := v.free(t.Path)
		if err != nil || ok {
			return "", err
		}
		return "tree to add already exists", nil
	}
	n, _, found, _, err := v.lookup(t.Path)
	if err != nil {
		return "", err
	}
	switch {
	case !found || !n.IsTree():
		return "tree is missing", nil
	case n.MetadataID != t.OldType:
		return "tree schema has changed", nil
	}
	return "", nil
}

// touches reports whether any entry of p lies strictly beneath path.
func (p *Patch) touches(path string) bool {
	prefix := path + "/"
	under := func(s string) bool { return strings.HasPrefix(s, prefix) }
	for _, r := range p.Added {
		if under(r.Path) {
			return true
		}
	}
	for _, r := range p.Removed {
		if under(r.Path) {
			return true
		}
	}
	for _, m := range p.Modified {
		if under(m.Path) {
			return true
		}
	}
	for _, t := range p.AlteredTrees {
		if under(t.Path) {
			return true
		}
	}
	return false
}

// write applies a verified patch. Records are removed first so that kind
// changes free their path, then trees are created or re-typed outermost
// first, records are added and modified, and removed trees go last,
// innermost first.
func (p *Patch) write(ctx context.Context, store *object.Store, root object.Hash) (object.Hash, error) {
	for _, rt := range p.Types {
		if _, err := store.WriteRecordType(rt); err != nil {
			return "", err
		}
	}
	ed, err := tree.NewEditor(store, root)
	if err != nil {
		return "", err
	}

	for _, r := range p.Removed {
		if _, err := ed.Remove(r.Path); err != nil {
			return "", fmt.Errorf("remove %s: %w", r.Path, err)
		}
	}

	trees := slices.Clone(p.AlteredTrees)
	slices.SortStableFunc(trees, func(a, b TreeChange) int { return diff.ComparePaths(a.Path, b.Path) })
	for _, t := range trees {
		if t.Change == diff.Removed {
			continue
		}
		if err := ed.SetTree(t.Path, t.NewType); err != nil {
			return "", fmt.Errorf("tree %s: %w", t.Path, err)
		}
	}

	for _, r := range p.Added {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id, err := store.WriteRecord(r.Record)
		if err != nil {
			return "", err
		}
		if err := placeRecord(ed, r.Path, object.Node{Kind: object.NodeRecord, ID: id, Extent: r.Extent}, r.TypeID); err != nil {
			return "", err
		}
	}

	for _, m := range p.Modified {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, found, err := ed.Get(m.Path)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("modify %s: %w", m.Path, object.ErrNotFound)
		}
		rec, err := store.ReadRecord(n.ID)
		if err != nil {
			return "", err
		}
		fromType, err := p.recordType(store, m.OldTypeID)
		if err != nil {
			return "", err
		}
		toType, err := p.recordType(store, m.NewTypeID)
		if err != nil {
			return "", err
		}
		next, err := m.Apply(rec, fromType, toType)
		if err != nil {
			return "", err
		}
		id, err := store.WriteRecord(next)
		if err != nil {
			return "", err
		}
		if err := placeRecord(ed, m.Path, object.Node{Kind: object.NodeRecord, ID: id, Extent: m.NewExtent}, m.NewTypeID); err != nil {
			return "", err
		}
	}

	for i := len(trees) - 1; i >= 0; i-- {
		t := trees[i]
		if t.Change != diff.Removed {
			continue
		}
		n, found, err := ed.Get(t.Path)
		if err != nil {
			return "", err
		}
		if found && n.IsTree() {
			if _, err := ed.Remove(t.Path); err != nil {
				return "", err
			}
		}
	}
	return ed.Build()
}

// placeRecord puts a record node, recording its schema only when it
// differs from the one its parent tree supplies.
func placeRecord(ed *tree.Editor, path string, n object.Node, typeID object.Hash) error {
	inherited, err := ed.Inherited(path)
	if err != nil {
		return err
	}
	if typeID != inherited {
		n.MetadataID = typeID
	}
	if err := ed.Put(path, n); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}
