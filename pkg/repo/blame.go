package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// ErrRecordNotFound indicates that no record exists at the blamed path.
var ErrRecordNotFound = errors.New("record not found")

// AttributeBlame attributes the current value of one attribute to the
// commit that last changed it.
type AttributeBlame struct {
	Attribute string
	Value     object.Value
	Commit    object.Hash
	Author    object.Person
	Message   string
}

// Blame walks the first-parent history of rev and returns, for every
// attribute of the record at path, the most recent commit that changed
// it. Attributes are listed in schema order.
func (r *Repo) Blame(ctx context.Context, rev, path string) ([]AttributeBlame, error) {
	start, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("blame: %w", err)
	}
	head, err := r.graph.Commit(start)
	if err != nil {
		return nil, fmt.Errorf("blame: %w", err)
	}
	rec, typ, ok, err := r.recordAt(head.TreeHash, path)
	if err != nil {
		return nil, fmt.Errorf("blame: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("blame: %w: %s", ErrRecordNotFound, path)
	}

	out := make([]AttributeBlame, len(typ.Attributes))
	pending := make(map[string]int, len(typ.Attributes))
	for i, attr := range typ.Attributes {
		out[i] = AttributeBlame{Attribute: attr.Name, Value: rec.Get(i)}
		pending[attr.Name] = i
	}
	attribute := func(name string, id object.Hash, c *object.CommitObj) {
		i, ok := pending[name]
		if !ok {
			return
		}
		out[i].Commit, out[i].Author, out[i].Message = id, c.Author, c.Message
		delete(pending, name)
	}

	for id, c := start, head; len(pending) > 0; {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		parent := c.FirstParent()
		parentTree, err := r.commitTree(parent)
		if err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
		curRec, curType, _, err := r.recordAt(c.TreeHash, path)
		if err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
		oldRec, oldType, existed, err := r.recordAt(parentTree, path)
		if err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
		if !existed {
			for name := range pending {
				attribute(name, id, c)
			}
			break
		}
		for _, a := range diff.Records(path, oldRec, oldType, curRec, curType).Attributes {
			attribute(a.Name, id, c)
		}
		id = parent
		if c, err = r.graph.Commit(id); err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
	}
	return out, nil
}

// recordAt loads the record at path in treeID along with its effective
// record type.
func (r *Repo) recordAt(treeID object.Hash, path string) (*object.RecordObj, *object.RecordTypeObj, bool, error) {
	n, inherited, found, err := tree.Find(r.Objects, treeID, path)
	if errors.Is(err, tree.ErrNotATree) {
		return nil, nil, false, nil
	}
	if err != nil || !found || n.IsTree() {
		return nil, nil, false, err
	}
	rec, err := r.Objects.ReadRecord(n.ID)
	if err != nil {
		return nil, nil, false, err
	}
	typeID := n.MetadataID
	if typeID.IsNull() {
		typeID = inherited
	}
	typ := &object.RecordTypeObj{}
	if !typeID.IsNull() {
		if typ, err = r.Objects.ReadRecordType(typeID); err != nil {
			return nil, nil, false, err
		}
	}
	return rec, typ, true, nil
}
