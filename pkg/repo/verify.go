package repo

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// VerifyReport is the outcome of a reachability check.
type VerifyReport struct {
	Roots     int
	Reachable int
	Missing   []object.Hash
}

// OK reports whether every reachable object is present.
func (v *VerifyReport) OK() bool { return len(v.Missing) == 0 }

// Verify walks every object reachable from refs and the snapshots and
// reports ids the store lacks.
func (r *Repo) Verify() (*VerifyReport, error) {
	list, err := r.Refs.List("")
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	var roots []object.Hash
	for _, ref := range list {
		if !ref.IsSymbolic() {
			roots = append(roots, ref.Target)
		}
	}
	if tip, err := r.Head(); err == nil && !tip.IsNull() {
		roots = append(roots, tip)
	}
	slices.Sort(roots)
	roots = slices.Compact(roots)

	set, missing, err := r.Objects.ReachableSet(roots)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	slices.Sort(missing)
	report := &VerifyReport{Roots: len(roots), Reachable: len(set), Missing: missing}
	if !report.OK() {
		r.logger.Warn("missing objects", zap.Int("count", len(missing)))
	}
	return report, nil
}

// Reflog returns the recorded transitions of a ref, newest first. Stores
// that keep no history return nothing.
func (r *Repo) Reflog(name string, limit int) ([]refs.ReflogEntry, error) {
	rl, ok := r.Refs.(refs.Reflogger)
	if !ok {
		return nil, nil
	}
	full, err := refs.FullName(r.Refs, name)
	if err != nil {
		full = name
	}
	entries, err := rl.Reflog(full, limit)
	if err != nil {
		return nil, fmt.Errorf("reflog %s: %w", name, err)
	}
	return entries, nil
}
