package object

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Encode returns the canonical byte encoding of obj. Logically equal objects
// always encode identically; tree nodes are written in canonical name order
// and buckets in index order regardless of their order in memory.
func Encode(obj Object) []byte {
	switch o := obj.(type) {
	case *CommitObj:
		return MarshalCommit(o)
	case *TreeObj:
		return MarshalTree(o)
	case *RecordObj:
		return MarshalRecord(o)
	case *RecordTypeObj:
		return MarshalRecordType(o)
	case *TagObj:
		return MarshalTag(o)
	default:
		panic(fmt.Sprintf("object: encode unsupported type %T", obj))
	}
}

// Decode parses data as an object of the given kind.
func Decode(objType ObjectType, data []byte) (Object, error) {
	var (
		obj Object
		err error
	)
	switch objType {
	case TypeCommit:
		obj, err = nonNil(UnmarshalCommit(data))
	case TypeTree:
		obj, err = nonNil(UnmarshalTree(data))
	case TypeRecord:
		obj, err = nonNil(UnmarshalRecord(data))
	case TypeRecordType:
		obj, err = nonNil(UnmarshalRecordType(data))
	case TypeTag:
		obj, err = nonNil(UnmarshalTag(data))
	default:
		return nil, fmt.Errorf("%w: unknown object type %q", ErrMalformed, objType)
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func nonNil[T Object](obj T, err error) (Object, error) {
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func malformed(kind, format string, args ...any) error {
	return fmt.Errorf("unmarshal %s: %w: %s", kind, ErrMalformed, fmt.Sprintf(format, args...))
}

func hashOrDash(h Hash) string {
	if h == "" {
		return "-"
	}
	return string(h)
}

func dashOrHash(s string) Hash {
	if s == "-" {
		return Hash("")
	}
	return Hash(s)
}

func splitHeader(kind string, data []byte) (string, string, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return "", "", malformed(kind, "missing header/message separator")
	}
	return string(data[:idx]), string(data[idx+2:]), nil
}

// ---------------------------------------------------------------------------
// Person
// ---------------------------------------------------------------------------

// FormatPerson renders `"Name" "email" unix +hhmm` with Go quoting, so any
// name or email survives the line-based headers.
func FormatPerson(p Person) string {
	return fmt.Sprintf("%s %s %d %s", strconv.Quote(p.Name), strconv.Quote(p.Email), p.When, formatTimezoneOffset(p.TZOffset))
}

// ParsePerson is the inverse of FormatPerson.
func ParsePerson(s string) (Person, error) {
	var p Person
	rest := s
	for _, field := range []*string{&p.Name, &p.Email} {
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return Person{}, fmt.Errorf("%w: person %q", ErrMalformed, s)
		}
		*field, _ = strconv.Unquote(quoted)
		rest, _ = strings.CutPrefix(rest[len(quoted):], " ")
	}
	when, tz, ok := strings.Cut(rest, " ")
	if !ok {
		return Person{}, fmt.Errorf("%w: person %q missing timezone", ErrMalformed, s)
	}
	ts, err := strconv.ParseInt(when, 10, 64)
	if err != nil {
		return Person{}, fmt.Errorf("%w: person timestamp %q", ErrMalformed, when)
	}
	p.When = ts
	offset, err := parseTimezoneOffset(tz)
	if err != nil {
		return Person{}, err
	}
	p.TZOffset = offset
	return p, nil
}

func formatTimezoneOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("%c%02d%02d", sign, minutes/60, minutes%60)
}

func parseTimezoneOffset(s string) (int, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("%w: timezone %q", ErrMalformed, s)
	}
	hh, err1 := strconv.Atoi(s[1:3])
	mm, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil {
		return 0, fmt.Errorf("%w: timezone %q", ErrMalformed, s)
	}
	offset := hh*60 + mm
	if s[0] == '-' {
		offset = -offset
	}
	return offset, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more)
//	author P
//	committer P
//	signature S  (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", hashOrDash(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", FormatPerson(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", FormatPerson(c.Committer))
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	header, message, err := splitHeader("commit", data)
	if err != nil {
		return nil, err
	}
	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, malformed("commit", "malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = dashOrHash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			if c.Author, err = ParsePerson(val); err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
		case "committer":
			if c.Committer, err = ParsePerson(val); err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
		case "signature":
			c.Signature = val
		default:
			return nil, malformed("commit", "unknown header key %q", key)
		}
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj:
//
//	size N
//	node KIND NAME ID METADATA EXTENT   (flat trees)
//	bucket INDEX ID COUNT SIZE EXTENT   (bucketed trees)
//
// NAME is Go-quoted; absent ids and extents are "-".
func MarshalTree(tr *TreeObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "size %d\n", tr.Size)
	for _, n := range SortedNodes(tr.Nodes) {
		fmt.Fprintf(&buf, "node %s %s %s %s %s\n",
			n.Kind, strconv.Quote(n.Name), hashOrDash(n.ID), hashOrDash(n.MetadataID), formatExtent(n.Extent))
	}
	buckets := slices.Clone(tr.Buckets)
	slices.SortFunc(buckets, func(a, b Bucket) int { return a.Index - b.Index })
	for _, b := range buckets {
		fmt.Fprintf(&buf, "bucket %d %s %d %d %s\n", b.Index, hashOrDash(b.ID), b.Count, b.Size, formatExtent(b.Extent))
	}
	return buf.Bytes()
}

// SortedNodes returns a copy of nodes in canonical name order.
func SortedNodes(nodes []Node) []Node {
	sorted := slices.Clone(nodes)
	slices.SortFunc(sorted, func(a, b Node) int { return CompareNames(a.Name, b.Name) })
	return sorted
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, malformed("tree", "empty payload")
	}
	for i, line := range strings.Split(text, "\n") {
		key, rest, _ := strings.Cut(line, " ")
		if i == 0 {
			if key != "size" {
				return nil, malformed("tree", "missing size header")
			}
			size, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				return nil, malformed("tree", "bad size %q", rest)
			}
			tr.Size = size
			continue
		}
		switch key {
		case "node":
			n, err := parseNode(rest)
			if err != nil {
				return nil, err
			}
			tr.Nodes = append(tr.Nodes, n)
		case "bucket":
			b, err := parseBucket(rest)
			if err != nil {
				return nil, err
			}
			tr.Buckets = append(tr.Buckets, b)
		default:
			return nil, malformed("tree", "unknown entry %q", line)
		}
	}
	if len(tr.Nodes) > 0 && len(tr.Buckets) > 0 {
		return nil, malformed("tree", "tree holds both nodes and buckets")
	}
	return tr, nil
}

func parseNode(s string) (Node, error) {
	kind, rest, ok := strings.Cut(s, " ")
	if !ok {
		return Node{}, malformed("tree", "malformed node %q", s)
	}
	var n Node
	switch kind {
	case "tree":
		n.Kind = NodeTree
	case "record":
		n.Kind = NodeRecord
	default:
		return Node{}, malformed("tree", "unknown node kind %q", kind)
	}
	quoted, err := strconv.QuotedPrefix(rest)
	if err != nil {
		return Node{}, malformed("tree", "node name in %q", s)
	}
	n.Name, _ = strconv.Unquote(quoted)
	fields := strings.Fields(rest[len(quoted):])
	if len(fields) != 3 {
		return Node{}, malformed("tree", "malformed node %q", s)
	}
	n.ID = dashOrHash(fields[0])
	n.MetadataID = dashOrHash(fields[1])
	if n.Extent, err = parseExtent(fields[2]); err != nil {
		return Node{}, err
	}
	return n, nil
}

func parseBucket(s string) (Bucket, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return Bucket{}, malformed("tree", "malformed bucket %q", s)
	}
	idx, err := strconv.Atoi(fields[0])
	if err != nil {
		return Bucket{}, malformed("tree", "bucket index %q", fields[0])
	}
	count, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return Bucket{}, malformed("tree", "bucket count %q", fields[2])
	}
	size, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return Bucket{}, malformed("tree", "bucket size %q", fields[3])
	}
	ext, err := parseExtent(fields[4])
	if err != nil {
		return Bucket{}, err
	}
	return Bucket{Index: idx, ID: dashOrHash(fields[1]), Count: count, Size: size, Extent: ext}, nil
}

func formatExtent(e *Extent) string {
	if e == nil {
		return "-"
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return f(e.MinX) + "," + f(e.MinY) + "," + f(e.MaxX) + "," + f(e.MaxY)
}

func parseExtent(s string) (*Extent, error) {
	if s == "-" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: extent %q", ErrMalformed, s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: extent %q", ErrMalformed, s)
		}
		vals[i] = v
	}
	return &Extent{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}

// ---------------------------------------------------------------------------
// RecordObj
// ---------------------------------------------------------------------------

// MarshalRecord writes one canonical value per line.
func MarshalRecord(r *RecordObj) []byte {
	var buf bytes.Buffer
	for _, v := range r.Values {
		buf.WriteString(v.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// UnmarshalRecord parses a RecordObj from its serialized form.
func UnmarshalRecord(data []byte) (*RecordObj, error) {
	r := &RecordObj{}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return r, nil
	}
	for _, line := range strings.Split(text, "\n") {
		v, err := ParseValue(line)
		if err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		r.Values = append(r.Values, v)
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// RecordTypeObj
// ---------------------------------------------------------------------------

// MarshalRecordType serializes a schema:
//
//	name "N"
//	attribute "NAME" "TYPE"   (one per attribute, in order)
func MarshalRecordType(rt *RecordTypeObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "name %s\n", strconv.Quote(rt.Name))
	for _, a := range rt.Attributes {
		fmt.Fprintf(&buf, "attribute %s %s\n", strconv.Quote(a.Name), strconv.Quote(a.Type))
	}
	return buf.Bytes()
}

// UnmarshalRecordType parses a RecordTypeObj from its serialized form.
func UnmarshalRecordType(data []byte) (*RecordTypeObj, error) {
	rt := &RecordTypeObj{}
	text := strings.TrimSuffix(string(data), "\n")
	for i, line := range strings.Split(text, "\n") {
		key, rest, _ := strings.Cut(line, " ")
		switch {
		case i == 0 && key == "name":
			name, err := strconv.Unquote(rest)
			if err != nil {
				return nil, malformed("recordtype", "name %s", rest)
			}
			rt.Name = name
		case i > 0 && key == "attribute":
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, malformed("recordtype", "attribute %s", rest)
			}
			name, _ := strconv.Unquote(quoted)
			typ, err := strconv.Unquote(strings.TrimPrefix(rest[len(quoted):], " "))
			if err != nil {
				return nil, malformed("recordtype", "attribute %s", rest)
			}
			rt.Attributes = append(rt.Attributes, AttributeDescriptor{Name: name, Type: typ})
		default:
			return nil, malformed("recordtype", "unexpected line %q", line)
		}
	}
	return rt, nil
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated tag:
//
//	object H
//	type T
//	tag "N"
//	tagger P
//
//	message
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.TargetHash)
	fmt.Fprintf(&buf, "type %s\n", t.TargetType)
	fmt.Fprintf(&buf, "tag %s\n", strconv.Quote(t.Name))
	fmt.Fprintf(&buf, "tagger %s\n", FormatPerson(t.Tagger))
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a TagObj from its serialized form.
func UnmarshalTag(data []byte) (*TagObj, error) {
	header, message, err := splitHeader("tag", data)
	if err != nil {
		return nil, err
	}
	t := &TagObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, malformed("tag", "malformed header line %q", line)
		}
		switch key {
		case "object":
			t.TargetHash = Hash(val)
		case "type":
			t.TargetType = ObjectType(val)
		case "tag":
			if t.Name, err = strconv.Unquote(val); err != nil {
				return nil, malformed("tag", "name %s", val)
			}
		case "tagger":
			if t.Tagger, err = ParsePerson(val); err != nil {
				return nil, fmt.Errorf("unmarshal tag: tagger: %w", err)
			}
		default:
			return nil, malformed("tag", "unknown header key %q", key)
		}
	}
	return t, nil
}
