package object

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePerson() Person {
	return Person{Name: "Ada Lovelace", Email: "ada@example.com", When: 1700000000, TZOffset: -330}
}

func TestCommitRoundTrip(t *testing.T) {
	c := &CommitObj{
		TreeHash:  HashBytes([]byte("tree")),
		Parents:   []Hash{HashBytes([]byte("p1")), HashBytes([]byte("p2"))},
		Author:    samplePerson(),
		Committer: Person{Name: "Bot", Email: "bot@example.com", When: 1700000100},
		Message:   "add roads\n\nwith details",
		Signature: "sshsig-v1:abc",
	}
	got, err := UnmarshalCommit(MarshalCommit(c))
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, ID(c), ID(got))
}

func TestPersonSurvivesAnyText(t *testing.T) {
	for _, who := range []Person{
		{Name: "multi\nline", Email: "a@b"},
		{Name: "Ann <ann@x> 1 +0000", Email: "odd> <mail"},
		{Name: "", Email: "", When: -5, TZOffset: 90},
		{Name: `quote " and \ slash`, Email: "tab\there"},
	} {
		c := &CommitObj{TreeHash: EmptyTreeHash, Author: who, Committer: samplePerson(), Message: "m"}
		obj, err := Decode(TypeCommit, MarshalCommit(c))
		require.NoError(t, err, who.Name)
		assert.Equal(t, c, obj)

		tag := &TagObj{TargetHash: EmptyTreeHash, TargetType: TypeTree, Name: "t", Tagger: who}
		got, err := UnmarshalTag(MarshalTag(tag))
		require.NoError(t, err)
		assert.Equal(t, who, got.Tagger)
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &CommitObj{TreeHash: EmptyTreeHash, Author: samplePerson(), Committer: samplePerson(), Signature: "sig"}
	unsigned := *c
	unsigned.Signature = ""
	assert.Equal(t, MarshalCommit(&unsigned), CommitSigningPayload(c))
	assert.Equal(t, "sig", c.Signature)
}

func TestTreeEncodingIsOrderIndependent(t *testing.T) {
	a := Node{Name: "alpha", Kind: NodeRecord, ID: HashBytes([]byte("a"))}
	b := Node{Name: "beta gamma", Kind: NodeTree, ID: HashBytes([]byte("b")), MetadataID: HashBytes([]byte("m")),
		Extent: &Extent{MinX: -1.5, MinY: 0, MaxX: 2, MaxY: 3.25}}
	c := Node{Name: "ç", Kind: NodeRecord, ID: HashBytes([]byte("c"))}

	t1 := &TreeObj{Size: 3, Nodes: []Node{a, b, c}}
	t2 := &TreeObj{Size: 3, Nodes: []Node{c, a, b}}
	assert.Equal(t, MarshalTree(t1), MarshalTree(t2))
	assert.Equal(t, ID(t1), ID(t2))

	got, err := UnmarshalTree(MarshalTree(t2))
	require.NoError(t, err)
	assert.Equal(t, SortedNodes(t1.Nodes), got.Nodes)
	assert.Equal(t, uint64(3), got.Size)
}

func TestBucketedTreeRoundTrip(t *testing.T) {
	tr := &TreeObj{Size: 1200, Buckets: []Bucket{
		{Index: 7, ID: HashBytes([]byte("7")), Count: 600, Size: 600},
		{Index: 2, ID: HashBytes([]byte("2")), Count: 580, Size: 600, Extent: &Extent{MaxX: 1, MaxY: 1}},
	}}
	got, err := UnmarshalTree(MarshalTree(tr))
	require.NoError(t, err)
	require.Len(t, got.Buckets, 2)
	assert.Equal(t, 2, got.Buckets[0].Index)
	assert.Equal(t, 7, got.Buckets[1].Index)
	assert.True(t, got.IsBucketed())
}

func TestEmptyTreeHashIsStable(t *testing.T) {
	assert.Equal(t, EmptyTreeHash, ID(&TreeObj{}))
	tr, err := UnmarshalTree(MarshalTree(&TreeObj{}))
	require.NoError(t, err)
	assert.True(t, tr.IsEmpty())
}

func TestRecordRoundTrip(t *testing.T) {
	r := &RecordObj{Values: []Value{
		Null(), Bool(true), Int(-42), Float(3.5), Float(math.Inf(-1)),
		String("line\nbreak \"quoted\""), Bytes([]byte{0, 1, 0xff}),
	}}
	got, err := UnmarshalRecord(MarshalRecord(r))
	require.NoError(t, err)
	require.Len(t, got.Values, len(r.Values))
	for i := range r.Values {
		assert.Truef(t, r.Values[i].Equal(got.Values[i]), "value %d: %s != %s", i, r.Values[i], got.Values[i])
	}
	assert.Equal(t, ID(r), ID(got))
}

func TestRecordTypeRoundTrip(t *testing.T) {
	rt := &RecordTypeObj{Name: "roads", Attributes: []AttributeDescriptor{
		{Name: "name", Type: "string"},
		{Name: "lanes count", Type: "int"},
		{Name: "geom", Type: "geometry"},
	}}
	got, err := UnmarshalRecordType(MarshalRecordType(rt))
	require.NoError(t, err)
	assert.Equal(t, rt, got)
	assert.Equal(t, 1, got.Index("lanes count"))
	assert.Equal(t, -1, got.Index("missing"))
}

func TestTagRoundTrip(t *testing.T) {
	tag := &TagObj{TargetHash: HashBytes([]byte("c")), TargetType: TypeCommit, Name: "v1.0", Tagger: samplePerson(), Message: "release"}
	got, err := UnmarshalTag(MarshalTag(tag))
	require.NoError(t, err)
	assert.Equal(t, tag, got)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		typ  ObjectType
		data string
	}{
		{"commit without separator", TypeCommit, "tree abc"},
		{"commit bad author", TypeCommit, "tree abc\nauthor nobody\n\nmsg"},
		{"tree without size", TypeTree, "node record \"a\" h - -\n"},
		{"tree mixed", TypeTree, "size 1\nnode record \"a\" h - -\nbucket 1 h 1 1 -\n"},
		{"record bad kind", TypeRecord, "decimal 1.0\n"},
		{"unknown type", ObjectType("blob"), "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj, err := Decode(tc.typ, []byte(tc.data))
			require.Error(t, err)
			assert.Nil(t, obj)
			assert.True(t, errors.Is(err, ErrMalformed), "error %v should wrap ErrMalformed", err)
		})
	}
}

func TestValueEquality(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.True(t, Float(math.NaN()).Equal(Float(math.NaN())))
	assert.False(t, Float(0).Equal(Float(math.Copysign(0, -1))))
	assert.True(t, Bytes([]byte("x")).Equal(Bytes([]byte("x"))))

	var v Value
	require.NoError(t, v.UnmarshalText([]byte(`string "hello world"`)))
	assert.Equal(t, "hello world", v.AsString())
}

func TestCompareNamesMatchesBucketOrder(t *testing.T) {
	names := []string{"a", "b", "road-1", "road-2", "zz", "", "日本"}
	for _, x := range names {
		for _, y := range names {
			c := CompareNames(x, y)
			assert.Equal(t, -c, CompareNames(y, x))
			if c < 0 {
				assert.LessOrEqual(t, BucketIndex(x, 0), BucketIndex(y, 0))
			}
		}
	}
}
