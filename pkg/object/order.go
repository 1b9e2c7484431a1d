package object

import (
	"hash/fnv"
	"strings"
)

// MaxDepth bounds bucket nesting: one level per byte of the 64-bit name hash.
const MaxDepth = 8

// NameHash is the 64-bit FNV-1a hash of a node name. Bucket placement at
// depth d is taken from byte d of this value, most significant first.
func NameHash(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// Fanout is the number of buckets a tree at the given depth splits into.
func Fanout(depth int) int {
	switch {
	case depth < 3:
		return 32
	case depth < 5:
		return 8
	case depth < 7:
		return 4
	default:
		return 2
	}
}

// SplitLimit is the number of entries a flat tree at the given depth may hold
// before it splits into buckets.
func SplitLimit(depth int) int {
	if depth < 3 {
		return 512
	}
	return 256
}

// BucketIndex returns the bucket a name falls into at depth.
func BucketIndex(name string, depth int) int {
	return bucketOf(NameHash(name), depth)
}

func bucketOf(h uint64, depth int) int {
	if depth >= MaxDepth {
		return 0
	}
	b := int(h >> (56 - 8*uint(depth)) & 0xff)
	return b * Fanout(depth) / 256
}

// CompareNames orders names canonically: by bucket index at every depth,
// then byte-wise for hash collisions. Sorting by this order groups entries
// the same way bucketing does, so a flat list and a bucketed tree enumerate
// in the same sequence.
func CompareNames(a, b string) int {
	if a == b {
		return 0
	}
	ha, hb := NameHash(a), NameHash(b)
	for d := 0; d < MaxDepth; d++ {
		ba, bb := bucketOf(ha, d), bucketOf(hb, d)
		if ba != bb {
			if ba < bb {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}
