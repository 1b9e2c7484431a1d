package merge

import "fmt"

// Disposition describes how a path touched by a merge was settled.
type Disposition int

const (
	OursOnly       Disposition = iota // ours changed, theirs unchanged
	TheirsOnly                        // theirs changed, ours unchanged
	BothSame                          // both changed identically
	AutoMerged                        // both changed disjoint attributes
	Conflicting                       // both changed differently
	DeleteVsModify                    // one removed, the other modified
	SchemaConflict                    // both changed a tree's schema differently
	Overridden                        // both changed; strategy picked a side
)

func (d Disposition) String() string {
	switch d {
	case OursOnly:
		return "OursOnly"
	case TheirsOnly:
		return "TheirsOnly"
	case BothSame:
		return "BothSame"
	case AutoMerged:
		return "AutoMerged"
	case Conflicting:
		return "Conflicting"
	case DeleteVsModify:
		return "DeleteVsModify"
	case SchemaConflict:
		return "SchemaConflict"
	case Overridden:
		return "Overridden"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// IsConflict reports whether the disposition needs manual resolution.
func (d Disposition) IsConflict() bool {
	return d == Conflicting || d == DeleteVsModify || d == SchemaConflict
}

// Strategy picks a side for paths both branches changed.
type Strategy int

const (
	StrategyDefault Strategy = iota // auto-merge records, report conflicts
	StrategyOurs                    // keep ours for every path both sides touched
	StrategyTheirs                  // take theirs for every path both sides touched
)

func (s Strategy) String() string {
	switch s {
	case StrategyOurs:
		return "ours"
	case StrategyTheirs:
		return "theirs"
	default:
		return "default"
	}
}

// ParseStrategy maps "ours", "theirs" or "" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "default":
		return StrategyDefault, nil
	case "ours":
		return StrategyOurs, nil
	case "theirs":
		return StrategyTheirs, nil
	}
	return StrategyDefault, fmt.Errorf("unknown merge strategy %q", s)
}
