package tree

import (
	"fmt"
	"maps"
	"slices"

	"github.com/odvcencio/geogot/pkg/object"
)

// Editor applies path-addressed edits to a nested tree and rebuilds only
// the levels that were touched.
type Editor struct {
	store *object.Store
	root  *dirState
}

type dirState struct {
	node     object.Node
	builder  *Builder
	children map[string]*dirState
	dirty    bool
}

// NewEditor starts editing the tree stored under root. A NULL root edits
// an empty tree.
func NewEditor(store *object.Store, root object.Hash) (*Editor, error) {
	b, err := Load(store, root)
	if err != nil {
		return nil, err
	}
	return &Editor{
		store: store,
		root:  &dirState{node: object.Node{Kind: object.NodeTree, ID: root}, builder: b, children: map[string]*dirState{}},
	}, nil
}

// dir returns the state for the directory at names, optionally creating
// missing levels. Without create it returns nil when the directory is
// absent or a record occupies its path.
func (e *Editor) dir(names []string, create bool) (*dirState, error) {
	cur := e.root
	for i, name := range names {
		next, ok := cur.children[name]
		if !ok {
			n, found, err := cur.builder.Get(name)
			if err != nil {
				return nil, err
			}
			switch {
			case found && !n.IsTree() && !create:
				return nil, nil
			case found && !n.IsTree():
				return nil, fmt.Errorf("%w: %s", ErrNotATree, joinNames(names[:i+1]))
			case found:
				b, err := Load(e.store, n.ID)
				if err != nil {
					return nil, err
				}
				next = &dirState{node: n, builder: b, children: map[string]*dirState{}}
			case create:
				if err := ValidateName(name); err != nil {
					return nil, err
				}
				next = &dirState{
					node:     object.Node{Name: name, Kind: object.NodeTree},
					builder:  NewBuilder(e.store),
					children: map[string]*dirState{},
					dirty:    true,
				}
			default:
				return nil, nil
			}
			cur.children[name] = next
		}
		cur = next
	}
	return cur, nil
}

func (e *Editor) markDirty(names []string) {
	cur := e.root
	cur.dirty = true
	for _, name := range names {
		cur = cur.children[name]
		if cur == nil {
			return
		}
		cur.dirty = true
	}
}

func joinNames(names []string) string {
	path := ""
	for _, n := range names {
		path = JoinPath(path, n)
	}
	return path
}

// Put stores node at path, creating intermediate trees as needed. The
// node's name is taken from the last path element.
func (e *Editor) Put(path string, node object.Node) error {
	names := SplitPath(path)
	if len(names) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidName)
	}
	parent, err := e.dir(names[:len(names)-1], true)
	if err != nil {
		return err
	}
	last := names[len(names)-1]
	node.Name = last
	if err := parent.builder.Put(node); err != nil {
		return err
	}
	delete(parent.children, last)
	e.markDirty(names[:len(names)-1])
	return nil
}

// Remove deletes the entry at path and reports whether it existed.
func (e *Editor) Remove(path string) (bool, error) {
	names := SplitPath(path)
	if len(names) == 0 {
		return false, fmt.Errorf("%w: empty path", ErrInvalidName)
	}
	parent, err := e.dir(names[:len(names)-1], false)
	if err != nil || parent == nil {
		return false, err
	}
	last := names[len(names)-1]
	removed, err := parent.builder.Remove(last)
	if err != nil {
		return false, err
	}
	delete(parent.children, last)
	if removed {
		e.markDirty(names[:len(names)-1])
	}
	return removed, nil
}

// SetTree ensures a tree exists at path and sets its metadata id.
func (e *Editor) SetTree(path string, metadataID object.Hash) error {
	names := SplitPath(path)
	if len(names) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidName)
	}
	d, err := e.dir(names, true)
	if err != nil {
		return err
	}
	d.node.MetadataID = metadataID
	e.markDirty(names)
	return nil
}

// Get returns the entry at path as currently edited. Tree nodes with
// pending edits beneath them report their pre-edit id.
func (e *Editor) Get(path string) (object.Node, bool, error) {
	names := SplitPath(path)
	if len(names) == 0 {
		return e.root.node, true, nil
	}
	parent, err := e.dir(names[:len(names)-1], false)
	if err != nil || parent == nil {
		return object.Node{}, false, err
	}
	last := names[len(names)-1]
	if child, ok := parent.children[last]; ok {
		return child.node, true, nil
	}
	return parent.builder.Get(last)
}

// Inherited returns the metadata id a record at path inherits from its
// enclosing trees as currently edited.
func (e *Editor) Inherited(path string) (object.Hash, error) {
	names := SplitPath(path)
	var md object.Hash
	for i := 1; i < len(names); i++ {
		d, err := e.dir(names[:i], false)
		if err != nil || d == nil {
			return md, err
		}
		if !d.node.MetadataID.IsNull() {
			md = d.node.MetadataID
		}
	}
	return md, nil
}

// Build writes every touched level and returns the new root tree id.
func (e *Editor) Build() (object.Hash, error) {
	_, id, err := e.build(e.root)
	if err != nil {
		return "", err
	}
	e.root.node.ID = id
	return id, nil
}

func (e *Editor) build(d *dirState) (*object.TreeObj, object.Hash, error) {
	for _, name := range slices.Sorted(maps.Keys(d.children)) {
		child := d.children[name]
		if !child.dirty {
			continue
		}
		sub, id, err := e.build(child)
		if err != nil {
			return nil, "", err
		}
		child.node.ID = id
		child.node.Extent = ExtentOf(sub)
		if err := d.builder.Put(child.node); err != nil {
			return nil, "", err
		}
		child.dirty = false
	}
	return d.builder.Build()
}
