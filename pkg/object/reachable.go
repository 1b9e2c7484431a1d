package object

import (
	"fmt"
	"sort"
	"strings"
)

// ReachableSet returns all object ids reachable from roots by following
// object references. Missing objects are reported in the second return
// value instead of failing the walk; the empty tree is never missing.
func (s *Store) ReachableSet(roots []Hash) (map[Hash]struct{}, []Hash, error) {
	roots = uniqueNormalizedHashes(roots)
	out := make(map[Hash]struct{}, len(roots))
	var missing []Hash

	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h.IsNull() {
			continue
		}
		if _, ok := out[h]; ok {
			continue
		}
		out[h] = struct{}{}
		if h == EmptyTreeHash {
			continue
		}
		ok, err := s.Has(h)
		if err != nil {
			return nil, nil, fmt.Errorf("reachable set has %s: %w", h, err)
		}
		if !ok {
			missing = append(missing, h)
			continue
		}
		obj, err := s.Read(h)
		if err != nil {
			return nil, nil, fmt.Errorf("reachable set read %s: %w", h, err)
		}
		stack = append(stack, References(obj)...)
	}
	return out, missing, nil
}

// References lists the ids an object points at.
func References(obj Object) []Hash {
	switch o := obj.(type) {
	case *CommitObj:
		refs := make([]Hash, 0, 1+len(o.Parents))
		refs = append(refs, o.TreeHash)
		return append(refs, o.Parents...)
	case *TreeObj:
		refs := make([]Hash, 0, 2*len(o.Nodes)+len(o.Buckets))
		for _, n := range o.Nodes {
			refs = append(refs, n.ID)
			if !n.MetadataID.IsNull() {
				refs = append(refs, n.MetadataID)
			}
		}
		for _, b := range o.Buckets {
			refs = append(refs, b.ID)
		}
		return refs
	case *TagObj:
		return []Hash{o.TargetHash}
	case *RecordObj, *RecordTypeObj:
		return nil
	default:
		return nil
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.TrimSpace(string(h)))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
