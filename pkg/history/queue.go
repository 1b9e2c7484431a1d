package history

import "github.com/odvcencio/geogot/pkg/object"

type queueItem struct {
	hash       object.Hash
	generation uint64
}

// generationHeap pops the highest generation first; equal generations pop
// in id order so traversal is reproducible.
type generationHeap []queueItem

func (h generationHeap) Len() int { return len(h) }

func (h generationHeap) Less(i, j int) bool {
	if h[i].generation == h[j].generation {
		return h[i].hash < h[j].hash
	}
	return h[i].generation > h[j].generation
}

func (h generationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *generationHeap) Push(x any) {
	*h = append(*h, x.(queueItem))
}

func (h *generationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h generationHeap) Peek() (queueItem, bool) {
	if len(h) == 0 {
		return queueItem{}, false
	}
	return h[0], true
}
