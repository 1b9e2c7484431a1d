package tree

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrNotATree is returned when a path descends through a record.
var ErrNotATree = errors.New("not a tree")

// SplitPath splits a slash-separated path into names.
func SplitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// JoinPath appends name to a parent path.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Lookup finds the direct entry name in tr, following the deterministic
// bucket path from the given depth.
func Lookup(store *object.Store, tr *object.TreeObj, name string, depth int) (object.Node, bool, error) {
	for tr.IsBucketed() {
		idx := object.BucketIndex(name, depth)
		i, ok := slices.BinarySearchFunc(tr.Buckets, idx, func(b object.Bucket, t int) int { return b.Index - t })
		if !ok {
			return object.Node{}, false, nil
		}
		sub, err := store.ReadTree(tr.Buckets[i].ID)
		if err != nil {
			return object.Node{}, false, fmt.Errorf("tree lookup %q: %w", name, err)
		}
		tr = sub
		depth++
	}
	i, ok := slices.BinarySearchFunc(tr.Nodes, name, func(n object.Node, t string) int {
		return object.CompareNames(n.Name, t)
	})
	if !ok {
		return object.Node{}, false, nil
	}
	return tr.Nodes[i], true, nil
}

// Find resolves a slash-separated path from the root tree id. The second
// result is the metadata id inherited from the nearest enclosing tree,
// used when the node itself carries none.
func Find(store *object.Store, root object.Hash, path string) (object.Node, object.Hash, bool, error) {
	names := SplitPath(path)
	if len(names) == 0 {
		return object.Node{Kind: object.NodeTree, ID: root}, "", true, nil
	}
	tr, err := store.ReadTree(root)
	if err != nil {
		return object.Node{}, "", false, err
	}
	var inherited object.Hash
	for i, name := range names {
		n, ok, err := Lookup(store, tr, name, 0)
		if err != nil || !ok {
			return object.Node{}, "", false, err
		}
		if i == len(names)-1 {
			return n, inherited, true, nil
		}
		if !n.IsTree() {
			return object.Node{}, "", false, fmt.Errorf("%w: %s", ErrNotATree, strings.Join(names[:i+1], "/"))
		}
		if !n.MetadataID.IsNull() {
			inherited = n.MetadataID
		}
		if tr, err = store.ReadTree(n.ID); err != nil {
			return object.Node{}, "", false, err
		}
	}
	return object.Node{}, "", false, nil
}

// Walk calls fn for every direct entry of the tree in canonical order,
// descending through buckets but not into subtrees.
func Walk(ctx context.Context, store *object.Store, id object.Hash, fn func(object.Node) error) error {
	tr, err := store.ReadTree(id)
	if err != nil {
		return err
	}
	return walkTree(ctx, store, tr, fn)
}

func walkTree(ctx context.Context, store *object.Store, tr *object.TreeObj, fn func(object.Node) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, n := range tr.Nodes {
		if err := fn(n); err != nil {
			return err
		}
	}
	for _, b := range tr.Buckets {
		sub, err := store.ReadTree(b.ID)
		if err != nil {
			return fmt.Errorf("tree walk bucket %d: %w", b.Index, err)
		}
		if err := walkTree(ctx, store, sub, fn); err != nil {
			return err
		}
	}
	return nil
}

// WalkRecords calls fn with the path and effective metadata id of every
// record beneath the tree, recursing into subtrees.
func WalkRecords(ctx context.Context, store *object.Store, id object.Hash, fn func(path string, n object.Node, metadata object.Hash) error) error {
	return walkRecords(ctx, store, id, "", "", fn)
}

func walkRecords(ctx context.Context, store *object.Store, id object.Hash, prefix string, inherited object.Hash, fn func(string, object.Node, object.Hash) error) error {
	return Walk(ctx, store, id, func(n object.Node) error {
		path := JoinPath(prefix, n.Name)
		if n.IsTree() {
			md := inherited
			if !n.MetadataID.IsNull() {
				md = n.MetadataID
			}
			return walkRecords(ctx, store, n.ID, path, md, fn)
		}
		md := n.MetadataID
		if md.IsNull() {
			md = inherited
		}
		return fn(path, n, md)
	})
}
