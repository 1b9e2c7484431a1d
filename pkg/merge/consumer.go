// Package merge evaluates three-way merge scenarios between trees.
package merge

import (
	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

// Conflict is a path both sides changed incompatibly. For schema conflicts
// the ids are metadata ids; otherwise they are node ids. NULL means the
// path was absent on that side.
type Conflict struct {
	Path     string
	Ancestor object.Hash
	Ours     object.Hash
	Theirs   object.Hash
}

// MergedRecord is a record synthesized from both sides' attribute changes.
// Node carries the record's id, metadata and extent as it should be placed
// at Path.
type MergedRecord struct {
	Path   string
	Record *object.RecordObj
	Node   object.Node
}

// Consumer receives scenario events in canonical path order. Returning an
// error from any callback stops the scenario with that error.
type Consumer interface {
	Conflicted(Conflict) error
	Unconflicted(diff.Entry) error
	Merged(MergedRecord) error
	Finished() error
}

// Report aggregates what a scenario emitted.
type Report struct {
	Conflicts    int
	Unconflicted int
	Merged       int
	Dispositions map[Disposition]int
}

// HasConflicts reports whether any conflict was emitted.
func (r *Report) HasConflicts() bool { return r.Conflicts > 0 }

func (r *Report) note(d Disposition) {
	if r.Dispositions == nil {
		r.Dispositions = make(map[Disposition]int)
	}
	r.Dispositions[d]++
}

// Collector is a Consumer that records every event.
type Collector struct {
	ConflictList     []Conflict
	UnconflictedList []diff.Entry
	MergedList       []MergedRecord
	Done             bool
}

func (c *Collector) Conflicted(x Conflict) error {
	c.ConflictList = append(c.ConflictList, x)
	return nil
}

func (c *Collector) Unconflicted(e diff.Entry) error {
	c.UnconflictedList = append(c.UnconflictedList, e)
	return nil
}

func (c *Collector) Merged(m MergedRecord) error {
	c.MergedList = append(c.MergedList, m)
	return nil
}

func (c *Collector) Finished() error {
	c.Done = true
	return nil
}
