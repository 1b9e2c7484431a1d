// Package tree builds and reads the bucketed Merkle trees that hold a
// dataset's records.
//
// A tree at depth d stays flat while it has at most object.SplitLimit(d)
// entries. Past that it splits into object.Fanout(d) buckets keyed by byte
// d of each name's FNV-1a hash, and each bucket is itself a tree at depth
// d+1. Placement depends only on names, so the same entry set always
// produces the same tree id regardless of insertion order.
package tree

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrInvalidName is returned for entry names that cannot be stored.
var ErrInvalidName = errors.New("invalid node name")

// ValidateName rejects names that would break path addressing.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Builder is a mutable view over one tree level. It is not safe for
// concurrent use.
type Builder struct {
	store *object.Store
	depth int

	// Flat mode holds entries directly; bucket mode delegates to slots.
	nodes   map[string]object.Node
	buckets map[int]*bucketSlot

	orig   *object.TreeObj
	origID object.Hash
	dirty  bool
}

type bucketSlot struct {
	orig    object.Bucket
	builder *Builder
}

func (s *bucketSlot) count() int {
	if s.builder != nil {
		return s.builder.Len()
	}
	return int(s.orig.Count)
}

// NewBuilder returns a builder for an empty root tree.
func NewBuilder(store *object.Store) *Builder {
	return &Builder{store: store, nodes: make(map[string]object.Node)}
}

// Load returns a builder seeded with the tree stored under id. Bucket
// subtrees are read lazily as edits reach them.
func Load(store *object.Store, id object.Hash) (*Builder, error) {
	tr, err := store.ReadTree(id)
	if err != nil {
		return nil, fmt.Errorf("tree builder load: %w", err)
	}
	return FromTree(store, tr, 0), nil
}

// FromTree returns a builder seeded with tr at the given bucket depth.
func FromTree(store *object.Store, tr *object.TreeObj, depth int) *Builder {
	b := &Builder{store: store, depth: depth, orig: tr, origID: object.ID(tr)}
	if tr.IsBucketed() {
		b.buckets = make(map[int]*bucketSlot, len(tr.Buckets))
		for _, bk := range tr.Buckets {
			b.buckets[bk.Index] = &bucketSlot{orig: bk}
		}
		return b
	}
	b.nodes = make(map[string]object.Node, len(tr.Nodes))
	for _, n := range tr.Nodes {
		b.nodes[n.Name] = n
	}
	return b
}

func (b *Builder) bucketed() bool { return b.buckets != nil }

// Len returns the number of entries held at this level.
func (b *Builder) Len() int {
	if !b.bucketed() {
		return len(b.nodes)
	}
	n := 0
	for _, s := range b.buckets {
		n += s.count()
	}
	return n
}

func (b *Builder) slot(idx int, create bool) (*bucketSlot, error) {
	s, ok := b.buckets[idx]
	if !ok {
		if !create {
			return nil, nil
		}
		s = &bucketSlot{orig: object.Bucket{Index: idx}}
		b.buckets[idx] = s
	}
	if s.builder == nil {
		if s.orig.ID.IsNull() {
			s.builder = &Builder{store: b.store, depth: b.depth + 1, nodes: make(map[string]object.Node)}
		} else {
			tr, err := b.store.ReadTree(s.orig.ID)
			if err != nil {
				return nil, fmt.Errorf("tree builder: load bucket %d at depth %d: %w", idx, b.depth, err)
			}
			s.builder = FromTree(b.store, tr, b.depth+1)
		}
	}
	return s, nil
}

// Put inserts or replaces the entry with n.Name.
func (b *Builder) Put(n object.Node) error {
	if err := ValidateName(n.Name); err != nil {
		return err
	}
	b.dirty = true
	if !b.bucketed() {
		b.nodes[n.Name] = n
		if len(b.nodes) > object.SplitLimit(b.depth) && b.depth < object.MaxDepth {
			return b.split()
		}
		return nil
	}
	s, err := b.slot(object.BucketIndex(n.Name, b.depth), true)
	if err != nil {
		return err
	}
	return s.builder.Put(n)
}

func (b *Builder) split() error {
	nodes := b.nodes
	b.nodes = nil
	b.buckets = make(map[int]*bucketSlot)
	for _, name := range slices.Sorted(maps.Keys(nodes)) {
		s, err := b.slot(object.BucketIndex(name, b.depth), true)
		if err != nil {
			return err
		}
		if err := s.builder.Put(nodes[name]); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the named entry and reports whether it existed. Buckets
// are left in place until Build.
func (b *Builder) Remove(name string) (bool, error) {
	if !b.bucketed() {
		if _, ok := b.nodes[name]; !ok {
			return false, nil
		}
		delete(b.nodes, name)
		b.dirty = true
		return true, nil
	}
	s, err := b.slot(object.BucketIndex(name, b.depth), false)
	if err != nil || s == nil {
		return false, err
	}
	removed, err := s.builder.Remove(name)
	if removed {
		b.dirty = true
	}
	return removed, err
}

// Get returns the named entry.
func (b *Builder) Get(name string) (object.Node, bool, error) {
	if !b.bucketed() {
		n, ok := b.nodes[name]
		return n, ok, nil
	}
	s, err := b.slot(object.BucketIndex(name, b.depth), false)
	if err != nil || s == nil {
		return object.Node{}, false, err
	}
	return s.builder.Get(name)
}

// collect appends every entry beneath this level, loading all buckets.
func (b *Builder) collect(out []object.Node) ([]object.Node, error) {
	if !b.bucketed() {
		for _, n := range b.nodes {
			out = append(out, n)
		}
		return out, nil
	}
	var err error
	for idx := range b.buckets {
		s, serr := b.slot(idx, false)
		if serr != nil {
			return nil, serr
		}
		if out, err = s.builder.collect(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Build writes the tree and every modified bucket beneath it, returning the
// tree and its id. A bucketed level whose entry count fell to its split
// limit or below is folded back into a flat list first.
func (b *Builder) Build() (*object.TreeObj, object.Hash, error) {
	if !b.dirty && b.orig != nil {
		return b.orig, b.origID, nil
	}
	if b.bucketed() && b.Len() <= object.SplitLimit(b.depth) {
		nodes, err := b.collect(nil)
		if err != nil {
			return nil, "", err
		}
		b.buckets = nil
		b.nodes = make(map[string]object.Node, len(nodes))
		for _, n := range nodes {
			b.nodes[n.Name] = n
		}
	}

	var tr *object.TreeObj
	var err error
	if b.bucketed() {
		tr, err = b.buildBuckets()
	} else {
		tr, err = b.buildFlat()
	}
	if err != nil {
		return nil, "", err
	}
	id, err := b.store.WriteTree(tr)
	if err != nil {
		return nil, "", fmt.Errorf("tree builder: write: %w", err)
	}
	b.orig, b.origID, b.dirty = tr, id, false
	return tr, id, nil
}

func (b *Builder) buildFlat() (*object.TreeObj, error) {
	tr := &object.TreeObj{Nodes: make([]object.Node, 0, len(b.nodes))}
	for _, n := range b.nodes {
		tr.Nodes = append(tr.Nodes, n)
	}
	tr.Nodes = object.SortedNodes(tr.Nodes)
	for _, n := range tr.Nodes {
		if !n.IsTree() {
			tr.Size++
			continue
		}
		sub, err := b.store.ReadTree(n.ID)
		if err != nil {
			return nil, fmt.Errorf("tree builder: size of subtree %q: %w", n.Name, err)
		}
		tr.Size += sub.Size
	}
	return tr, nil
}

func (b *Builder) buildBuckets() (*object.TreeObj, error) {
	tr := &object.TreeObj{}
	for _, idx := range slices.Sorted(maps.Keys(b.buckets)) {
		s := b.buckets[idx]
		if s.builder == nil {
			tr.Buckets = append(tr.Buckets, s.orig)
			tr.Size += s.orig.Size
			continue
		}
		count := s.builder.Len()
		if count == 0 {
			delete(b.buckets, idx)
			continue
		}
		sub, id, err := s.builder.Build()
		if err != nil {
			return nil, err
		}
		s.orig = object.Bucket{Index: idx, ID: id, Count: uint64(count), Size: sub.Size, Extent: ExtentOf(sub)}
		tr.Buckets = append(tr.Buckets, s.orig)
		tr.Size += sub.Size
	}
	return tr, nil
}

// ExtentOf returns the union of the extents recorded at the top level of
// tr, or nil when none are set.
func ExtentOf(tr *object.TreeObj) *object.Extent {
	var ext *object.Extent
	for _, n := range tr.Nodes {
		if n.Extent != nil {
			ext = ext.Union(n.Extent)
		}
	}
	for _, bk := range tr.Buckets {
		if bk.Extent != nil {
			ext = ext.Union(bk.Extent)
		}
	}
	return ext
}
