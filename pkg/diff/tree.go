package diff

import (
	"context"
	"iter"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// Option configures a tree diff.
type Option func(*options)

type options struct {
	filters     []string
	reportTrees bool
}

// WithPathFilter restricts the diff to the given paths and everything
// beneath them.
func WithPathFilter(paths ...string) Option {
	return func(o *options) {
		for _, p := range paths {
			if p = strings.Trim(p, "/"); p != "" {
				o.filters = append(o.filters, p)
			}
		}
	}
}

// WithReportTrees makes the diff emit entries for changed subtrees in
// addition to the records beneath them.
func WithReportTrees() Option {
	return func(o *options) { o.reportTrees = true }
}

// Trees lazily enumerates the changes from oldTree to newTree in canonical
// order: siblings follow object.CompareNames and a tree entry precedes the
// entries beneath it (see ComparePaths). Subtrees and buckets with equal
// ids on both sides are skipped without being read, so diffing a tree
// against itself costs O(1). The sequence stops with the context's error
// when ctx is cancelled.
func Trees(ctx context.Context, store *object.Store, oldTree, newTree object.Hash, opts ...Option) iter.Seq2[Entry, error] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return func(yield func(Entry, error) bool) {
		w := &walker{ctx: ctx, store: store, opts: o, yield: yield}
		w.subtrees(oldTree, newTree, dirContext{})
	}
}

// Collect drains a diff sequence into a slice.
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var out []Entry
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Count returns the number of entries a diff would produce.
func Count(ctx context.Context, store *object.Store, oldTree, newTree object.Hash, opts ...Option) (int, error) {
	n := 0
	for _, err := range Trees(ctx, store, oldTree, newTree, opts...) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// ComparePaths orders slash-separated paths the way Trees emits them.
func ComparePaths(a, b string) int {
	for {
		if a == b {
			return 0
		}
		if a == "" {
			return -1
		}
		if b == "" {
			return 1
		}
		ha, ra, _ := strings.Cut(a, "/")
		hb, rb, _ := strings.Cut(b, "/")
		if c := object.CompareNames(ha, hb); c != 0 {
			return c
		}
		a, b = ra, rb
	}
}

type dirContext struct {
	prefix string
	oldMD  object.Hash
	newMD  object.Hash
}

func (d dirContext) child(n *object.Node, oldMD, newMD object.Hash) dirContext {
	return dirContext{prefix: tree.JoinPath(d.prefix, n.Name), oldMD: oldMD, newMD: newMD}
}

type walker struct {
	ctx     context.Context
	store   *object.Store
	opts    options
	yield   func(Entry, error) bool
	stopped bool
}

func (w *walker) fail(err error) bool {
	if !w.stopped {
		w.stopped = true
		w.yield(Entry{}, err)
	}
	return false
}

func (w *walker) emit(e Entry) bool {
	if w.stopped {
		return false
	}
	if !w.yield(e, nil) {
		w.stopped = true
		return false
	}
	return true
}

// descend reports whether anything at or beneath path can pass the filter.
func (w *walker) descend(path string) bool {
	if len(w.opts.filters) == 0 {
		return true
	}
	for _, f := range w.opts.filters {
		if underPath(path, f) || underPath(f, path) {
			return true
		}
	}
	return false
}

// selected reports whether an entry at path passes the filter.
func (w *walker) selected(path string) bool {
	if len(w.opts.filters) == 0 {
		return true
	}
	for _, f := range w.opts.filters {
		if underPath(path, f) {
			return true
		}
	}
	return false
}

func underPath(path, parent string) bool {
	return path == parent || strings.HasPrefix(path, parent+"/")
}

func (w *walker) readTree(id object.Hash) (*object.TreeObj, bool) {
	if id.IsNull() {
		return &object.TreeObj{}, true
	}
	tr, err := w.store.ReadTree(id)
	if err != nil {
		return nil, w.fail(err)
	}
	return tr, true
}

func (w *walker) subtrees(oldID, newID object.Hash, dir dirContext) bool {
	if oldID == newID {
		return true
	}
	oldTree, ok := w.readTree(oldID)
	if !ok {
		return false
	}
	newTree, ok := w.readTree(newID)
	if !ok {
		return false
	}
	return w.level(oldTree, newTree, 0, dir)
}

// level compares two views of the same named tree at one bucket depth.
func (w *walker) level(oldTree, newTree *object.TreeObj, depth int, dir dirContext) bool {
	if err := w.ctx.Err(); err != nil {
		return w.fail(err)
	}
	if !oldTree.IsBucketed() && !newTree.IsBucketed() {
		return w.flat(oldTree.Nodes, newTree.Nodes, dir)
	}

	oldSides := partition(oldTree, depth)
	newSides := partition(newTree, depth)
	for idx := 0; idx < object.Fanout(depth); idx++ {
		o, n := oldSides[idx], newSides[idx]
		if o.id != "" && o.id == n.id {
			continue
		}
		if o.empty() && n.empty() {
			continue
		}
		ot, ok := w.side(o)
		if !ok {
			return false
		}
		nt, ok := w.side(n)
		if !ok {
			return false
		}
		if !w.level(ot, nt, depth+1, dir) {
			return false
		}
	}
	return true
}

// bucketSide is either a stored bucket (id) or a group of nodes taken from
// a flat tree that is being compared against a bucketed one.
type bucketSide struct {
	id    object.Hash
	nodes []object.Node
}

func (s bucketSide) empty() bool { return s.id == "" && len(s.nodes) == 0 }

func partition(tr *object.TreeObj, depth int) map[int]bucketSide {
	out := make(map[int]bucketSide)
	if tr.IsBucketed() {
		for _, b := range tr.Buckets {
			out[b.Index] = bucketSide{id: b.ID}
		}
		return out
	}
	for _, n := range tr.Nodes {
		idx := object.BucketIndex(n.Name, depth)
		s := out[idx]
		s.nodes = append(s.nodes, n)
		out[idx] = s
	}
	return out
}

func (w *walker) side(s bucketSide) (*object.TreeObj, bool) {
	if s.id != "" {
		return w.readTree(s.id)
	}
	return &object.TreeObj{Nodes: s.nodes}, true
}

func (w *walker) flat(oldNodes, newNodes []object.Node, dir dirContext) bool {
	i, j := 0, 0
	for i < len(oldNodes) || j < len(newNodes) {
		if err := w.ctx.Err(); err != nil {
			return w.fail(err)
		}
		var o, n *object.Node
		switch {
		case i == len(oldNodes):
			n = &newNodes[j]
			j++
		case j == len(newNodes):
			o = &oldNodes[i]
			i++
		default:
			c := object.CompareNames(oldNodes[i].Name, newNodes[j].Name)
			switch {
			case c < 0:
				o = &oldNodes[i]
				i++
			case c > 0:
				n = &newNodes[j]
				j++
			default:
				o, n = &oldNodes[i], &newNodes[j]
				i++
				j++
			}
		}
		if !w.pair(o, n, dir) {
			return false
		}
	}
	return true
}

func inheritedMD(n *object.Node, parent object.Hash) object.Hash {
	if n != nil && !n.MetadataID.IsNull() {
		return n.MetadataID
	}
	return parent
}

func (w *walker) ref(n *object.Node, path string, md object.Hash) *NodeRef {
	if n == nil {
		return nil
	}
	return &NodeRef{Path: path, Node: *n, DefaultMetadataID: md}
}

// pair handles one name present on at least one side.
func (w *walker) pair(o, n *object.Node, dir dirContext) bool {
	name := ""
	if o != nil {
		name = o.Name
	} else {
		name = n.Name
	}
	path := tree.JoinPath(dir.prefix, name)
	if !w.descend(path) {
		return true
	}

	switch {
	case o != nil && n != nil && o.Kind == n.Kind:
		if o.Equal(*n) {
			return true
		}
		if !o.IsTree() {
			return w.emitIf(path, Entry{Old: w.ref(o, path, dir.oldMD), New: w.ref(n, path, dir.newMD)})
		}
		if o.ID == n.ID && o.MetadataID == n.MetadataID {
			return true
		}
		if w.opts.reportTrees && !w.emitIf(path, Entry{Old: w.ref(o, path, dir.oldMD), New: w.ref(n, path, dir.newMD)}) {
			return false
		}
		return w.subtrees(o.ID, n.ID, dir.child(n, inheritedMD(o, dir.oldMD), inheritedMD(n, dir.newMD)))

	case o != nil && n != nil:
		// Kind change: the record side is reported next to the tree entry so
		// that paths stay in non-decreasing order.
		if o.IsTree() {
			if w.opts.reportTrees && !w.emitIf(path, Entry{Old: w.ref(o, path, dir.oldMD)}) {
				return false
			}
			if !w.emitIf(path, Entry{New: w.ref(n, path, dir.newMD)}) {
				return false
			}
			return w.subtrees(o.ID, object.NullHash, dir.child(o, inheritedMD(o, dir.oldMD), dir.newMD))
		}
		if !w.emitIf(path, Entry{Old: w.ref(o, path, dir.oldMD)}) {
			return false
		}
		if w.opts.reportTrees && !w.emitIf(path, Entry{New: w.ref(n, path, dir.newMD)}) {
			return false
		}
		return w.subtrees(object.NullHash, n.ID, dir.child(n, dir.oldMD, inheritedMD(n, dir.newMD)))

	case o != nil:
		e := Entry{Old: w.ref(o, path, dir.oldMD)}
		if !o.IsTree() {
			return w.emitIf(path, e)
		}
		if w.opts.reportTrees && !w.emitIf(path, e) {
			return false
		}
		return w.subtrees(o.ID, object.NullHash, dir.child(o, inheritedMD(o, dir.oldMD), dir.newMD))

	default:
		e := Entry{New: w.ref(n, path, dir.newMD)}
		if !n.IsTree() {
			return w.emitIf(path, e)
		}
		if w.opts.reportTrees && !w.emitIf(path, e) {
			return false
		}
		return w.subtrees(object.NullHash, n.ID, dir.child(n, dir.oldMD, inheritedMD(n, dir.newMD)))
	}
}

func (w *walker) emitIf(path string, e Entry) bool {
	if !w.selected(path) {
		return !w.stopped
	}
	return w.emit(e)
}
