package diff

import (
	"fmt"
	"strings"
)

// FormatEntries produces a one-line-per-change summary:
//
//	+ roads/r1          (added)
//	~ roads/r2          (modified)
//	- roads/r3          (removed)
//	~ roads/            (modified tree)
func FormatEntries(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		path := e.Path()
		label := e.Type().String()
		if e.IsTree() {
			path += "/"
			label += " tree"
		}
		fmt.Fprintf(&b, "%s %s     (%s)\n", marker(e.Type()), path, label)
	}
	return b.String()
}

// FormatRecordDiff renders attribute-level changes:
//
//	--- a/roads/r1
//	+++ b/roads/r1
//	-lanes: int 2
//	+lanes: int 3
func FormatRecordDiff(d RecordDiff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", d.Path)
	fmt.Fprintf(&b, "+++ b/%s\n", d.Path)
	for _, a := range d.Attributes {
		if !a.Old.IsNull() {
			fmt.Fprintf(&b, "-%s: %s\n", a.Name, a.Old)
		}
		if !a.New.IsNull() {
			fmt.Fprintf(&b, "+%s: %s\n", a.Name, a.New)
		}
	}
	return b.String()
}

func marker(c ChangeType) string {
	switch c {
	case Added:
		return "+"
	case Removed:
		return "-"
	default:
		return "~"
	}
}
