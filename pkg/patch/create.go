package patch

import (
	"context"
	"fmt"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

// Create builds the patch that turns the tree old into the tree new.
func Create(ctx context.Context, store *object.Store, oldTree, newTree object.Hash, opts ...diff.Option) (*Patch, error) {
	p := &Patch{}
	opts = append(opts, diff.WithReportTrees())
	for e, err := range diff.Trees(ctx, store, oldTree, newTree, opts...) {
		if err != nil {
			return nil, err
		}
		if err := p.add(store, e); err != nil {
			return nil, fmt.Errorf("patch %s: %w", e.Path(), err)
		}
	}
	return p, nil
}

func (p *Patch) add(store *object.Store, e diff.Entry) error {
	if e.IsTree() {
		return p.addTree(store, e)
	}
	switch e.Type() {
	case diff.Added:
		info, err := recordInfo(store, e.New)
		if err != nil {
			return err
		}
		p.Added = append(p.Added, info)
		return p.addType(store, info.TypeID)
	case diff.Removed:
		info, err := recordInfo(store, e.Old)
		if err != nil {
			return err
		}
		p.Removed = append(p.Removed, info)
		return p.addType(store, info.TypeID)
	}

	oldRec, err := store.ReadRecord(e.Old.Node.ID)
	if err != nil {
		return err
	}
	newRec, err := store.ReadRecord(e.New.Node.ID)
	if err != nil {
		return err
	}
	oldTypeID, newTypeID := e.Old.MetadataID(), e.New.MetadataID()
	if err := p.addType(store, oldTypeID); err != nil {
		return err
	}
	if err := p.addType(store, newTypeID); err != nil {
		return err
	}
	oldType, err := p.recordType(store, oldTypeID)
	if err != nil {
		return err
	}
	newType, err := p.recordType(store, newTypeID)
	if err != nil {
		return err
	}
	d := diff.Records(e.Path(), oldRec, oldType, newRec, newType)
	d.OldExtent, d.NewExtent = e.Old.Node.Extent, e.New.Node.Extent
	p.Modified = append(p.Modified, d)
	return nil
}

// addTree handles a tree entry. In a kind change the record side is a
// separate entry, so the tree side is always a creation or removal.
func (p *Patch) addTree(store *object.Store, e diff.Entry) error {
	t := TreeChange{Path: e.Path(), Change: e.Type()}
	switch {
	case e.Old != nil && e.Old.Node.IsTree() && e.New != nil && e.New.Node.IsTree():
		if e.Old.Node.MetadataID == e.New.Node.MetadataID {
			return nil
		}
		t.OldType, t.NewType = e.Old.Node.MetadataID, e.New.Node.MetadataID
	case e.New != nil:
		t.Change = diff.Added
		t.NewType = e.New.Node.MetadataID
	default:
		t.Change = diff.Removed
		t.OldType = e.Old.Node.MetadataID
	}
	p.AlteredTrees = append(p.AlteredTrees, t)
	if err := p.addType(store, t.OldType); err != nil {
		return err
	}
	return p.addType(store, t.NewType)
}

func recordInfo(store *object.Store, ref *diff.NodeRef) (RecordInfo, error) {
	rec, err := store.ReadRecord(ref.Node.ID)
	if err != nil {
		return RecordInfo{}, err
	}
	return RecordInfo{Path: ref.Path, Record: rec, TypeID: ref.MetadataID(), Extent: ref.Node.Extent}, nil
}
