// Package history answers ancestry questions over the commit graph.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrCycle is returned when the commit graph is not acyclic, which only
// happens with a corrupt store.
var ErrCycle = errors.New("commit graph cycle")

// CommitReader loads commits by id. *object.Store satisfies it.
type CommitReader interface {
	ReadCommit(h object.Hash) (*object.CommitObj, error)
}

type ancestorCacheKey struct {
	left  object.Hash
	right object.Hash
}

type ancestorCacheEntry struct {
	base  object.Hash
	found bool
}

// Graph caches commits, generation numbers and common-ancestor answers.
// Commits are immutable, so cached answers never go stale. A Graph is safe
// for concurrent use.
type Graph struct {
	reader CommitReader

	mu          sync.RWMutex
	commits     map[object.Hash]*object.CommitObj
	generations map[object.Hash]uint64
	ancestors   map[ancestorCacheKey]ancestorCacheEntry
}

// NewGraph returns a Graph reading commits from reader.
func NewGraph(reader CommitReader) *Graph {
	return &Graph{
		reader:      reader,
		commits:     make(map[object.Hash]*object.CommitObj),
		generations: make(map[object.Hash]uint64),
		ancestors:   make(map[ancestorCacheKey]ancestorCacheEntry),
	}
}

func canonicalCacheKey(a, b object.Hash) ancestorCacheKey {
	if a <= b {
		return ancestorCacheKey{left: a, right: b}
	}
	return ancestorCacheKey{left: b, right: a}
}

func (g *Graph) loadAncestor(a, b object.Hash) (ancestorCacheEntry, bool) {
	g.mu.RLock()
	entry, ok := g.ancestors[canonicalCacheKey(a, b)]
	g.mu.RUnlock()
	return entry, ok
}

func (g *Graph) storeAncestor(a, b, base object.Hash, found bool) {
	g.mu.Lock()
	g.ancestors[canonicalCacheKey(a, b)] = ancestorCacheEntry{base: base, found: found}
	g.mu.Unlock()
}

func (g *Graph) cacheSizes() (commits, generations, ancestors int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.commits), len(g.generations), len(g.ancestors)
}

// Commit reads a commit through the cache.
func (g *Graph) Commit(h object.Hash) (*object.CommitObj, error) {
	g.mu.RLock()
	cached, ok := g.commits[h]
	g.mu.RUnlock()
	if ok {
		return cached, nil
	}

	commit, err := g.reader.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("history: read commit %s: %w", h, err)
	}

	g.mu.Lock()
	if existing, exists := g.commits[h]; exists {
		g.mu.Unlock()
		return existing, nil
	}
	g.commits[h] = commit
	g.mu.Unlock()
	return commit, nil
}

func (g *Graph) loadGeneration(h object.Hash) (uint64, bool) {
	g.mu.RLock()
	gen, ok := g.generations[h]
	g.mu.RUnlock()
	return gen, ok
}

func (g *Graph) storeGeneration(h object.Hash, gen uint64) {
	g.mu.Lock()
	g.generations[h] = gen
	g.mu.Unlock()
}

// Generation returns 1 + the maximum generation of h's parents; root
// commits have generation 1. The walk is iterative so that long linear
// histories do not grow the call stack.
func (g *Graph) Generation(ctx context.Context, h object.Hash) (uint64, error) {
	if h.IsNull() {
		return 0, nil
	}
	if gen, ok := g.loadGeneration(h); ok {
		return gen, nil
	}

	type frame struct {
		hash     object.Hash
		expanded bool
	}
	stack := []frame{{hash: h}}
	visiting := make(map[object.Hash]bool)
	steps := 0
	maxSteps, _ := traversalLimits()

	for len(stack) > 0 {
		steps++
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if steps > 2*maxSteps {
			return 0, stepsLimitError(maxSteps)
		}

		top := &stack[len(stack)-1]
		if _, ok := g.loadGeneration(top.hash); ok {
			stack = stack[:len(stack)-1]
			continue
		}
		commit, err := g.Commit(top.hash)
		if err != nil {
			return 0, err
		}

		if !top.expanded {
			if visiting[top.hash] {
				return 0, fmt.Errorf("history: %w detected at %s", ErrCycle, top.hash)
			}
			visiting[top.hash] = true
			top.expanded = true
			for _, p := range commit.Parents {
				if p.IsNull() {
					continue
				}
				if _, ok := g.loadGeneration(p); ok {
					continue
				}
				if visiting[p] {
					return 0, fmt.Errorf("history: %w detected at %s", ErrCycle, p)
				}
				stack = append(stack, frame{hash: p})
			}
			continue
		}

		var maxParent uint64
		for _, p := range commit.Parents {
			if p.IsNull() {
				continue
			}
			pg, ok := g.loadGeneration(p)
			if !ok {
				return 0, fmt.Errorf("history: %w detected at %s", ErrCycle, p)
			}
			maxParent = max(maxParent, pg)
		}
		g.storeGeneration(top.hash, maxParent+1)
		delete(visiting, top.hash)
		stack = stack[:len(stack)-1]
	}

	gen, _ := g.loadGeneration(h)
	return gen, nil
}
