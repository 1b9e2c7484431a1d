package history

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/odvcencio/geogot/pkg/object"
)

const (
	maxTraversalSteps = 1_000_000
	maxTraversalDepth = 1_000_000
)

// These vars allow tests to tighten safety limits without affecting
// production defaults.
var (
	traversalStepsLimit = maxTraversalSteps
	traversalDepthLimit = maxTraversalDepth
)

func traversalLimits() (maxSteps int, maxDepth int) {
	return normalizeLimit(traversalStepsLimit, maxTraversalSteps), normalizeLimit(traversalDepthLimit, maxTraversalDepth)
}

func normalizeLimit(limit, hardMax int) int {
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func stepsLimitError(limit int) error {
	return fmt.Errorf("history: traversal exceeded maximum steps (%d)", limit)
}

func depthLimitError(limit int) error {
	return fmt.Errorf("history: traversal exceeded maximum depth (%d)", limit)
}

type depthItem struct {
	hash  object.Hash
	depth int
}

// FindCommonAncestor returns the best common ancestor of a and b following
// every parent edge. Among all common ancestors it picks the one with the
// highest generation number, which is never a strict ancestor of another
// common ancestor; ties go to the lexicographically smallest id. found is
// false when the histories are disjoint.
func (g *Graph) FindCommonAncestor(ctx context.Context, a, b object.Hash) (object.Hash, bool, error) {
	if a.IsNull() || b.IsNull() {
		return "", false, nil
	}
	if a == b {
		return a, true, nil
	}
	if cached, ok := g.loadAncestor(a, b); ok {
		return cached.base, cached.found, nil
	}

	genA, err := g.Generation(ctx, a)
	if err != nil {
		return "", false, err
	}
	genB, err := g.Generation(ctx, b)
	if err != nil {
		return "", false, err
	}

	// Fast path: one side already contains the other.
	checks := []struct {
		anc, desc   object.Hash
		genAnc, gen uint64
	}{{a, b, genA, genB}, {b, a, genB, genA}}
	for _, c := range checks {
		ok, err := g.isAncestorWithGeneration(ctx, c.anc, c.desc, c.genAnc, c.gen)
		if err != nil {
			return "", false, err
		}
		if ok {
			g.storeAncestor(a, b, c.anc, true)
			return c.anc, true, nil
		}
	}

	base, found, err := g.searchWithPruning(ctx, a, b, genA, genB)
	if err != nil {
		return "", false, err
	}
	g.storeAncestor(a, b, base, found)
	return base, found, nil
}

// IsAncestor reports whether ancestor is reachable from descendant. A
// commit is its own ancestor.
func (g *Graph) IsAncestor(ctx context.Context, ancestor, descendant object.Hash) (bool, error) {
	if ancestor.IsNull() || descendant.IsNull() {
		return false, nil
	}
	genA, err := g.Generation(ctx, ancestor)
	if err != nil {
		return false, err
	}
	genD, err := g.Generation(ctx, descendant)
	if err != nil {
		return false, err
	}
	return g.isAncestorWithGeneration(ctx, ancestor, descendant, genA, genD)
}

func (g *Graph) isAncestorWithGeneration(ctx context.Context, ancestor, descendant object.Hash, ancestorGeneration, descendantGeneration uint64) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	if ancestorGeneration >= descendantGeneration {
		return false, nil
	}

	maxSteps, maxDepth := traversalLimits()
	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []depthItem{{hash: descendant}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps > maxSteps {
			return false, stepsLimitError(maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if item.hash == ancestor {
			return true, nil
		}

		curGeneration, err := g.Generation(ctx, item.hash)
		if err != nil {
			return false, err
		}
		if curGeneration <= ancestorGeneration {
			continue
		}

		commit, err := g.Commit(item.hash)
		if err != nil {
			return false, err
		}
		for _, p := range commit.Parents {
			if p.IsNull() {
				continue
			}
			if _, seen := visited[p]; seen {
				continue
			}
			parentGeneration, err := g.Generation(ctx, p)
			if err != nil {
				return false, err
			}
			if parentGeneration < ancestorGeneration {
				continue
			}
			childDepth := item.depth + 1
			if childDepth > maxDepth {
				return false, depthLimitError(maxDepth)
			}
			visited[p] = struct{}{}
			queue = append(queue, depthItem{hash: p, depth: childDepth})
		}
	}
	return false, nil
}

// searchWithPruning walks both histories highest-generation first. A commit
// reached from both sides is a candidate; the walk stops once neither queue
// can produce a commit at or above the best candidate's generation.
func (g *Graph) searchWithPruning(ctx context.Context, a, b object.Hash, genA, genB uint64) (object.Hash, bool, error) {
	maxSteps, maxDepth := traversalLimits()

	type side struct {
		queue   generationHeap
		visited map[object.Hash]int
	}
	left := &side{queue: generationHeap{{hash: a, generation: genA}}, visited: map[object.Hash]int{a: 0}}
	right := &side{queue: generationHeap{{hash: b, generation: genB}}, visited: map[object.Hash]int{b: 0}}
	heap.Init(&left.queue)
	heap.Init(&right.queue)

	best := object.NullHash
	var bestGeneration uint64
	steps := 0

	for left.queue.Len() > 0 || right.queue.Len() > 0 {
		if !best.IsNull() {
			topL, okL := left.queue.Peek()
			topR, okR := right.queue.Peek()
			if (!okL || topL.generation < bestGeneration) && (!okR || topR.generation < bestGeneration) {
				break
			}
		}

		cur, other := left, right
		switch {
		case left.queue.Len() == 0:
			cur, other = right, left
		case right.queue.Len() == 0:
		default:
			topL, topR := left.queue[0], right.queue[0]
			if topL.generation < topR.generation || (topL.generation == topR.generation && topL.hash > topR.hash) {
				cur, other = right, left
			}
		}
		item := heap.Pop(&cur.queue).(queueItem)

		steps++
		if steps > maxSteps {
			return "", false, stepsLimitError(maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if !best.IsNull() && item.generation < bestGeneration {
			continue
		}
		itemDepth := cur.visited[item.hash]
		if itemDepth > maxDepth {
			return "", false, depthLimitError(maxDepth)
		}
		if _, seen := other.visited[item.hash]; seen {
			best, bestGeneration = chooseBetterAncestor(best, bestGeneration, item.hash, item.generation)
		}

		commit, err := g.Commit(item.hash)
		if err != nil {
			return "", false, err
		}
		for _, p := range commit.Parents {
			if p.IsNull() {
				continue
			}
			parentGeneration, err := g.Generation(ctx, p)
			if err != nil {
				return "", false, err
			}
			if !best.IsNull() && parentGeneration < bestGeneration {
				continue
			}
			if _, seen := cur.visited[p]; seen {
				continue
			}
			childDepth := itemDepth + 1
			if childDepth > maxDepth {
				return "", false, depthLimitError(maxDepth)
			}
			cur.visited[p] = childDepth
			heap.Push(&cur.queue, queueItem{hash: p, generation: parentGeneration})
			if _, seen := other.visited[p]; seen {
				best, bestGeneration = chooseBetterAncestor(best, bestGeneration, p, parentGeneration)
			}
		}
	}

	if best.IsNull() {
		return "", false, nil
	}
	return best, true, nil
}

func chooseBetterAncestor(best object.Hash, bestGeneration uint64, candidate object.Hash, candidateGeneration uint64) (object.Hash, uint64) {
	if best.IsNull() {
		return candidate, candidateGeneration
	}
	if candidateGeneration > bestGeneration {
		return candidate, candidateGeneration
	}
	if candidateGeneration < bestGeneration {
		return best, bestGeneration
	}
	if candidate < best {
		return candidate, candidateGeneration
	}
	return best, bestGeneration
}
