// Package patch captures the difference between two trees as a portable
// set of record and tree changes that can be verified and replayed onto
// another snapshot.
package patch

import (
	"maps"
	"slices"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

// RecordInfo is a whole record added or removed at Path. TypeID is the
// record's effective schema.
type RecordInfo struct {
	Path   string
	Record *object.RecordObj
	TypeID object.Hash
	Extent *object.Extent
}

// ID returns the record's object id.
func (r RecordInfo) ID() object.Hash { return object.ID(r.Record) }

func (r RecordInfo) equal(o RecordInfo) bool {
	return r.Path == o.Path && r.ID() == o.ID() && r.TypeID == o.TypeID && extentEqual(r.Extent, o.Extent)
}

// TreeChange records a subtree being created, removed or given a new
// schema. OldType and NewType are the tree's own metadata ids.
type TreeChange struct {
	Path    string
	Change  diff.ChangeType
	OldType object.Hash
	NewType object.Hash
}

// Reversed returns the change that undoes t.
func (t TreeChange) Reversed() TreeChange {
	r := TreeChange{Path: t.Path, Change: t.Change, OldType: t.NewType, NewType: t.OldType}
	switch t.Change {
	case diff.Added:
		r.Change = diff.Removed
	case diff.Removed:
		r.Change = diff.Added
	}
	return r
}

// Patch is an ordered set of changes. Types holds every record type the
// patch refers to so it can be applied to a store that lacks them.
type Patch struct {
	Added        []RecordInfo
	Removed      []RecordInfo
	Modified     []diff.RecordDiff
	AlteredTrees []TreeChange
	Types        map[object.Hash]*object.RecordTypeObj
}

// Count returns the number of entries across all four lists.
func (p *Patch) Count() int {
	return len(p.Added) + len(p.Removed) + len(p.Modified) + len(p.AlteredTrees)
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool { return p.Count() == 0 }

// Reversed returns the patch that undoes p: additions become removals,
// every attribute diff is inverted and tree changes swap direction.
func (p *Patch) Reversed() *Patch {
	r := &Patch{
		Added:   slices.Clone(p.Removed),
		Removed: slices.Clone(p.Added),
		Types:   maps.Clone(p.Types),
	}
	for _, m := range p.Modified {
		r.Modified = append(r.Modified, m.Reversed())
	}
	for _, t := range p.AlteredTrees {
		r.AlteredTrees = append(r.AlteredTrees, t.Reversed())
	}
	return r
}

// Equal compares both patches entry by entry, order included.
func (p *Patch) Equal(o *Patch) bool {
	if p == nil || o == nil {
		return p.isNilOrEmpty() && o.isNilOrEmpty()
	}
	return slices.EqualFunc(p.Added, o.Added, RecordInfo.equal) &&
		slices.EqualFunc(p.Removed, o.Removed, RecordInfo.equal) &&
		slices.EqualFunc(p.Modified, o.Modified, diff.RecordDiff.Equal) &&
		slices.Equal(p.AlteredTrees, o.AlteredTrees)
}

func (p *Patch) isNilOrEmpty() bool { return p == nil || p.IsEmpty() }

func (p *Patch) addType(store *object.Store, id object.Hash) error {
	if id.IsNull() {
		return nil
	}
	if _, ok := p.Types[id]; ok {
		return nil
	}
	rt, err := store.ReadRecordType(id)
	if err != nil {
		return err
	}
	if p.Types == nil {
		p.Types = make(map[object.Hash]*object.RecordTypeObj)
	}
	p.Types[id] = rt
	return nil
}

func (p *Patch) recordType(store *object.Store, id object.Hash) (*object.RecordTypeObj, error) {
	if id.IsNull() {
		return &object.RecordTypeObj{}, nil
	}
	if rt, ok := p.Types[id]; ok {
		return rt, nil
	}
	return store.ReadRecordType(id)
}

func extentEqual(a, b *object.Extent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
