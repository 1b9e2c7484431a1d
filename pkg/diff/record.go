package diff

import (
	"errors"
	"fmt"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrRecordMismatch is returned when a record diff does not match the record
// it is applied to.
var ErrRecordMismatch = errors.New("record does not match diff")

// AttributeDiff is the change of one named attribute. A Null Old value means
// the attribute was added (or was null); a Null New value means it was
// removed (or nulled).
type AttributeDiff struct {
	Name string
	Type string
	Old  object.Value
	New  object.Value
}

// Change classifies the attribute change.
func (d AttributeDiff) Change() ChangeType {
	switch {
	case d.Old.IsNull():
		return Added
	case d.New.IsNull():
		return Removed
	default:
		return Modified
	}
}

// Reversed swaps old and new.
func (d AttributeDiff) Reversed() AttributeDiff {
	d.Old, d.New = d.New, d.Old
	return d
}

// Conflicts reports whether both diffs change the same attribute to
// different values.
func (d AttributeDiff) Conflicts(o AttributeDiff) bool {
	return d.Name == o.Name && !d.New.Equal(o.New)
}

func (d AttributeDiff) equal(o AttributeDiff) bool {
	return d.Name == o.Name && d.Type == o.Type && d.Old.Equal(o.Old) && d.New.Equal(o.New)
}

// RecordDiff describes how one record changed at a path, attribute by
// attribute.
type RecordDiff struct {
	Path       string
	OldID      object.Hash
	NewID      object.Hash
	OldTypeID  object.Hash
	NewTypeID  object.Hash
	OldExtent  *object.Extent
	NewExtent  *object.Extent
	Attributes []AttributeDiff
}

// Records compares two versions of a record. Attributes are matched by name
// so schema changes appear as added and removed attributes; the result
// lists attributes in the new schema's order followed by removed ones.
func Records(path string, oldRec *object.RecordObj, oldType *object.RecordTypeObj, newRec *object.RecordObj, newType *object.RecordTypeObj) RecordDiff {
	d := RecordDiff{
		Path:      path,
		OldID:     object.ID(oldRec),
		NewID:     object.ID(newRec),
		OldTypeID: object.ID(oldType),
		NewTypeID: object.ID(newType),
	}
	for i, attr := range newType.Attributes {
		newVal := newRec.Get(i)
		oldVal := object.Null()
		if j := oldType.Index(attr.Name); j >= 0 {
			oldVal = oldRec.Get(j)
		}
		if !oldVal.Equal(newVal) {
			d.Attributes = append(d.Attributes, AttributeDiff{Name: attr.Name, Type: attr.Type, Old: oldVal, New: newVal})
		}
	}
	for j, attr := range oldType.Attributes {
		if newType.Index(attr.Name) >= 0 {
			continue
		}
		if oldVal := oldRec.Get(j); !oldVal.IsNull() {
			d.Attributes = append(d.Attributes, AttributeDiff{Name: attr.Name, Type: attr.Type, Old: oldVal, New: object.Null()})
		}
	}
	return d
}

// Reversed returns the diff that undoes d.
func (d RecordDiff) Reversed() RecordDiff {
	r := RecordDiff{
		Path:      d.Path,
		OldID:     d.NewID,
		NewID:     d.OldID,
		OldTypeID: d.NewTypeID,
		NewTypeID: d.OldTypeID,
		OldExtent: d.NewExtent,
		NewExtent: d.OldExtent,
	}
	for _, a := range d.Attributes {
		r.Attributes = append(r.Attributes, a.Reversed())
	}
	return r
}

// Attribute returns the diff for the named attribute.
func (d RecordDiff) Attribute(name string) (AttributeDiff, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDiff{}, false
}

// Conflicts reports whether d and o change some attribute to different
// values. Attributes changed by only one side, or changed identically by
// both, do not conflict.
func (d RecordDiff) Conflicts(o RecordDiff) bool {
	for _, a := range d.Attributes {
		if b, ok := o.Attribute(a.Name); ok && a.Conflicts(b) {
			return true
		}
	}
	return false
}

// Equal compares every field, extents included.
func (d RecordDiff) Equal(o RecordDiff) bool {
	if d.Path != o.Path || d.OldID != o.OldID || d.NewID != o.NewID ||
		d.OldTypeID != o.OldTypeID || d.NewTypeID != o.NewTypeID ||
		!extentEqual(d.OldExtent, o.OldExtent) || !extentEqual(d.NewExtent, o.NewExtent) ||
		len(d.Attributes) != len(o.Attributes) {
		return false
	}
	for i := range d.Attributes {
		if !d.Attributes[i].equal(o.Attributes[i]) {
			return false
		}
	}
	return true
}

func extentEqual(a, b *object.Extent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Matches reports whether rec, laid out by typ, holds every attribute's old
// value.
func (d RecordDiff) Matches(rec *object.RecordObj, typ *object.RecordTypeObj) bool {
	for _, a := range d.Attributes {
		cur := object.Null()
		if i := typ.Index(a.Name); i >= 0 {
			cur = rec.Get(i)
		}
		if !cur.Equal(a.Old) {
			return false
		}
	}
	return true
}

// Patch overlays the diff's new values onto rec, converting it from layout
// fromType to layout toType. Attributes the diff does not mention keep
// their current values.
func (d RecordDiff) Patch(rec *object.RecordObj, fromType, toType *object.RecordTypeObj) *object.RecordObj {
	out := &object.RecordObj{Values: make([]object.Value, len(toType.Attributes))}
	for i, attr := range toType.Attributes {
		if a, ok := d.Attribute(attr.Name); ok {
			out.Values[i] = a.New
			continue
		}
		if j := fromType.Index(attr.Name); j >= 0 {
			out.Values[i] = rec.Get(j)
		} else {
			out.Values[i] = object.Null()
		}
	}
	return out
}

// Apply verifies rec against the diff and returns the patched record.
func (d RecordDiff) Apply(rec *object.RecordObj, fromType, toType *object.RecordTypeObj) (*object.RecordObj, error) {
	if !d.Matches(rec, fromType) {
		return nil, fmt.Errorf("%s: %w", d.Path, ErrRecordMismatch)
	}
	return d.Patch(rec, fromType, toType), nil
}
