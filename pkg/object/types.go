package object

import "errors"

// Hash is a 64-character hex-encoded SHA-256 digest. The empty Hash is the
// NULL id and never names a stored object.
type Hash string

// NullHash is the absent object id.
const NullHash Hash = ""

// IsNull reports whether h is the NULL id.
func (h Hash) IsNull() bool { return h == NullHash }

// Short returns an abbreviated form for display.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeCommit     ObjectType = "commit"
	TypeTree       ObjectType = "tree"
	TypeRecord     ObjectType = "record"
	TypeRecordType ObjectType = "recordtype"
	TypeTag        ObjectType = "tag"
)

var (
	// ErrNotFound is returned when an id is absent from a store.
	ErrNotFound = errors.New("object not found")
	// ErrMalformed wraps every decoding failure.
	ErrMalformed = errors.New("malformed object")
	// ErrTypeMismatch is returned by typed reads when the stored kind differs.
	ErrTypeMismatch = errors.New("object type mismatch")
)

// Object is the closed set of storable kinds: *CommitObj, *TreeObj,
// *RecordObj, *RecordTypeObj and *TagObj.
type Object interface {
	Type() ObjectType
	sealed()
}

func (*CommitObj) Type() ObjectType     { return TypeCommit }
func (*TreeObj) Type() ObjectType       { return TypeTree }
func (*RecordObj) Type() ObjectType     { return TypeRecord }
func (*RecordTypeObj) Type() ObjectType { return TypeRecordType }
func (*TagObj) Type() ObjectType        { return TypeTag }

func (*CommitObj) sealed()     {}
func (*TreeObj) sealed()       {}
func (*RecordObj) sealed()     {}
func (*RecordTypeObj) sealed() {}
func (*TagObj) sealed()        {}

// NodeKind tags a tree entry as a subtree or a record.
type NodeKind uint8

const (
	NodeRecord NodeKind = iota
	NodeTree
)

func (k NodeKind) String() string {
	switch k {
	case NodeTree:
		return "tree"
	case NodeRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Extent is an axis-aligned bounding box carried by nodes and buckets.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Union returns the smallest extent covering both a and b. Nil operands are
// ignored.
func (a *Extent) Union(b *Extent) *Extent {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		c := *b
		return &c
	case b == nil:
		c := *a
		return &c
	}
	return &Extent{
		MinX: min(a.MinX, b.MinX),
		MinY: min(a.MinY, b.MinY),
		MaxX: max(a.MaxX, b.MaxX),
		MaxY: max(a.MaxY, b.MaxY),
	}
}

// Node is one named entry of a tree. MetadataID, when set, names the
// RecordType governing the entry and overrides the parent's default.
type Node struct {
	Name       string
	Kind       NodeKind
	ID         Hash
	MetadataID Hash
	Extent     *Extent
}

// IsTree reports whether the node references a subtree.
func (n Node) IsTree() bool { return n.Kind == NodeTree }

// Equal compares every field of two nodes, extents included.
func (n Node) Equal(o Node) bool {
	if n.Name != o.Name || n.Kind != o.Kind || n.ID != o.ID || n.MetadataID != o.MetadataID {
		return false
	}
	return extentEqual(n.Extent, o.Extent)
}

func extentEqual(a, b *Extent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Bucket references a child tree holding every entry whose name hashes to
// Index at the owning tree's depth. Count is the number of named entries in
// the bucket; Size is the aggregate record count of the bucket tree.
type Bucket struct {
	Index  int
	ID     Hash
	Count  uint64
	Size   uint64
	Extent *Extent
}

// TreeObj is either flat (Nodes) or bucketed (Buckets), never both. Size is
// the aggregate number of records beneath the tree, nested subtrees included.
type TreeObj struct {
	Size    uint64
	Nodes   []Node
	Buckets []Bucket
}

// IsBucketed reports whether the tree delegates its entries to buckets.
func (t *TreeObj) IsBucketed() bool { return len(t.Buckets) > 0 }

// IsEmpty reports whether the tree has no entries at all.
func (t *TreeObj) IsEmpty() bool { return len(t.Nodes) == 0 && len(t.Buckets) == 0 }

// AttributeDescriptor names one attribute of a RecordType. Type is an opaque
// semantic type name such as "string" or "geometry".
type AttributeDescriptor struct {
	Name string
	Type string
}

// RecordTypeObj is a schema: a name plus ordered attribute descriptors.
type RecordTypeObj struct {
	Name       string
	Attributes []AttributeDescriptor
}

// Index returns the position of the named attribute or -1.
func (rt *RecordTypeObj) Index(name string) int {
	for i, a := range rt.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// RecordObj holds attribute values positionally aligned with its RecordType.
type RecordObj struct {
	Values []Value
}

// Get returns the value at position i, or Null when out of range.
func (r *RecordObj) Get(i int) Value {
	if i < 0 || i >= len(r.Values) {
		return Null()
	}
	return r.Values[i]
}

// Person identifies an author or committer at a point in time. TZOffset is
// in minutes east of UTC.
type Person struct {
	Name     string
	Email    string
	When     int64
	TZOffset int
}

// CommitObj points at a root tree and its parent commits.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    Person
	Committer Person
	Message   string
	Signature string
}

// FirstParent returns the first parent or NullHash for a root commit.
func (c *CommitObj) FirstParent() Hash {
	if len(c.Parents) == 0 {
		return NullHash
	}
	return c.Parents[0]
}

// TagObj is an annotated tag.
type TagObj struct {
	TargetHash Hash
	TargetType ObjectType
	Name       string
	Tagger     Person
	Message    string
}
