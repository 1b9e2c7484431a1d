// Package diff compares trees and records.
package diff

import (
	"github.com/odvcencio/geogot/pkg/object"
)

// ChangeType classifies what happened to a path between two trees.
type ChangeType int

const (
	Added    ChangeType = iota // Path exists only in the new tree.
	Removed                    // Path exists only in the old tree.
	Modified                   // Path exists in both trees with different content.
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// NodeRef locates a node within a root tree. DefaultMetadataID is the
// schema inherited from the nearest enclosing tree.
type NodeRef struct {
	Path              string
	Node              object.Node
	DefaultMetadataID object.Hash
}

// MetadataID returns the node's own metadata id or the inherited default.
func (r *NodeRef) MetadataID() object.Hash {
	if r == nil {
		return object.NullHash
	}
	if !r.Node.MetadataID.IsNull() {
		return r.Node.MetadataID
	}
	return r.DefaultMetadataID
}

// ID returns the referenced object id, or NULL for a nil ref.
func (r *NodeRef) ID() object.Hash {
	if r == nil {
		return object.NullHash
	}
	return r.Node.ID
}

// Entry is one change between two trees. Old is nil for additions and New
// is nil for removals.
type Entry struct {
	Old *NodeRef
	New *NodeRef
}

// Type classifies the entry.
func (e Entry) Type() ChangeType {
	switch {
	case e.Old == nil:
		return Added
	case e.New == nil:
		return Removed
	default:
		return Modified
	}
}

// Path returns the entry's path; old and new paths always agree because
// renames are not detected.
func (e Entry) Path() string {
	if e.New != nil {
		return e.New.Path
	}
	return e.Old.Path
}

func (e Entry) OldID() object.Hash { return e.Old.ID() }
func (e Entry) NewID() object.Hash { return e.New.ID() }

// IsTree reports whether the entry describes a subtree. For kind changes
// the new side decides.
func (e Entry) IsTree() bool {
	if e.New != nil {
		return e.New.Node.IsTree()
	}
	return e.Old.Node.IsTree()
}

// Equal reports whether two entries describe the same change.
func (e Entry) Equal(o Entry) bool {
	return refEqual(e.Old, o.Old) && refEqual(e.New, o.New)
}

func refEqual(a, b *NodeRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Path == b.Path && a.Node.Equal(b.Node) && a.MetadataID() == b.MetadataID()
}
