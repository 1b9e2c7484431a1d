package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrNotReachable is returned when a first-parent walk never meets its stop
// commit.
var ErrNotReachable = errors.New("commit not reachable through first parents")

// FirstParentRange returns the commits from 'from' back to, but excluding,
// 'stop' along first parents, oldest first. A NULL stop walks to the root.
func (g *Graph) FirstParentRange(ctx context.Context, from, stop object.Hash) ([]object.Hash, error) {
	maxSteps, _ := traversalLimits()
	var out []object.Hash
	for cur := from; cur != stop; {
		if cur.IsNull() {
			if stop.IsNull() {
				break
			}
			return nil, fmt.Errorf("history: %s from %s: %w", stop.Short(), from.Short(), ErrNotReachable)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(out) >= maxSteps {
			return nil, stepsLimitError(maxSteps)
		}
		out = append(out, cur)
		commit, err := g.Commit(cur)
		if err != nil {
			return nil, err
		}
		cur = commit.FirstParent()
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ChildCounts counts, for every commit reachable from tips, how many
// reachable commits list it as a parent.
func (g *Graph) ChildCounts(ctx context.Context, tips []object.Hash) (map[object.Hash]int, error) {
	maxSteps, _ := traversalLimits()
	counts := make(map[object.Hash]int)
	seen := make(map[object.Hash]struct{})
	stack := make([]object.Hash, 0, len(tips))
	for _, t := range tips {
		if !t.IsNull() {
			stack = append(stack, t)
		}
	}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		if len(seen) > maxSteps {
			return nil, stepsLimitError(maxSteps)
		}
		if len(seen)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		commit, err := g.Commit(h)
		if err != nil {
			return nil, err
		}
		for _, p := range commit.Parents {
			counts[p]++
			stack = append(stack, p)
		}
	}
	return counts, nil
}

// Range returns the commits reachable from 'from' that are not reachable
// from exclude, parents before children. Parents are visited in listed
// order, so the result is stable for a given history. A NULL exclude
// returns all of from's history.
func (g *Graph) Range(ctx context.Context, from, exclude object.Hash) ([]object.Hash, error) {
	maxSteps, _ := traversalLimits()
	hidden, err := g.ancestorSet(ctx, exclude, maxSteps)
	if err != nil {
		return nil, err
	}

	type frame struct {
		id      object.Hash
		parents []object.Hash
		next    int
	}
	var (
		out     []object.Hash
		stack   []frame
		visited = make(map[object.Hash]struct{})
	)
	push := func(h object.Hash) error {
		if h.IsNull() {
			return nil
		}
		if _, ok := hidden[h]; ok {
			return nil
		}
		if _, ok := visited[h]; ok {
			return nil
		}
		visited[h] = struct{}{}
		if len(visited) > maxSteps {
			return stepsLimitError(maxSteps)
		}
		commit, err := g.Commit(h)
		if err != nil {
			return err
		}
		stack = append(stack, frame{id: h, parents: commit.Parents})
		return nil
	}
	if err := push(from); err != nil {
		return nil, err
	}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.parents) {
			p := top.parents[top.next]
			top.next++
			if err := push(p); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, top.id)
		stack = stack[:len(stack)-1]
		if len(out)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// ancestorSet returns tip and every commit reachable from it.
func (g *Graph) ancestorSet(ctx context.Context, tip object.Hash, maxSteps int) (map[object.Hash]struct{}, error) {
	seen := make(map[object.Hash]struct{})
	if tip.IsNull() {
		return seen, nil
	}
	stack := []object.Hash{tip}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		if len(seen) > maxSteps {
			return nil, stepsLimitError(maxSteps)
		}
		if len(seen)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		commit, err := g.Commit(h)
		if err != nil {
			return nil, err
		}
		for _, p := range commit.Parents {
			if !p.IsNull() {
				stack = append(stack, p)
			}
		}
	}
	return seen, nil
}
