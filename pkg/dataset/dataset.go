// Package dataset reads and writes YAML descriptions of typed record
// layers so data can be brought into and out of a repository's trees.
package dataset

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// ErrInvalid reports a dataset that does not describe valid records.
var ErrInvalid = errors.New("invalid dataset")

// Dataset is a set of record types and layers of records that use them.
type Dataset struct {
	Types  []Type  `yaml:"types"`
	Layers []Layer `yaml:"layers"`
}

// Type is a named schema.
type Type struct {
	Name       string      `yaml:"name"`
	Attributes []Attribute `yaml:"attributes"`
}

type Attribute struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Layer is a tree of records sharing one type.
type Layer struct {
	Path    string   `yaml:"path"`
	Type    string   `yaml:"type"`
	Records []Record `yaml:"records"`
}

// Record is one record keyed by ID within its layer. Values absent from
// the map are null.
type Record struct {
	ID     string               `yaml:"id"`
	Extent []float64            `yaml:"extent,omitempty,flow"`
	Values map[string]yaml.Node `yaml:"values"`
}

// Read decodes a YAML dataset.
func Read(r io.Reader) (*Dataset, error) {
	var d Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &d, nil
}

// Write encodes d as YAML.
func Write(w io.Writer, d *Dataset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// Apply writes every type and record of d into the editor. Each layer
// becomes a tree carrying its type id; existing records at the same paths
// are replaced. It returns the number of records written.
func (d *Dataset) Apply(store *object.Store, ed *tree.Editor) (int, error) {
	types := make(map[string]*object.RecordTypeObj, len(d.Types))
	ids := make(map[string]object.Hash, len(d.Types))
	for _, t := range d.Types {
		if _, dup := types[t.Name]; dup || t.Name == "" {
			return 0, fmt.Errorf("%w: type %q defined twice or unnamed", ErrInvalid, t.Name)
		}
		rt := &object.RecordTypeObj{Name: t.Name}
		for _, a := range t.Attributes {
			rt.Attributes = append(rt.Attributes, object.AttributeDescriptor{Name: a.Name, Type: a.Type})
		}
		id, err := store.WriteRecordType(rt)
		if err != nil {
			return 0, err
		}
		types[t.Name], ids[t.Name] = rt, id
	}

	written := 0
	for _, l := range d.Layers {
		if tree.SplitPath(l.Path) == nil {
			return written, fmt.Errorf("%w: layer without a path", ErrInvalid)
		}
		rt, ok := types[l.Type]
		if !ok {
			return written, fmt.Errorf("%w: layer %q uses unknown type %q", ErrInvalid, l.Path, l.Type)
		}
		if err := ed.SetTree(l.Path, ids[l.Type]); err != nil {
			return written, fmt.Errorf("layer %s: %w", l.Path, err)
		}
		for _, rec := range l.Records {
			obj, err := rec.toObject(rt)
			if err != nil {
				return written, fmt.Errorf("%w: %s/%s: %v", ErrInvalid, l.Path, rec.ID, err)
			}
			extent, err := rec.extent()
			if err != nil {
				return written, fmt.Errorf("%w: %s/%s: %v", ErrInvalid, l.Path, rec.ID, err)
			}
			id, err := store.WriteRecord(obj)
			if err != nil {
				return written, err
			}
			if err := ed.Put(tree.JoinPath(l.Path, rec.ID), object.Node{Kind: object.NodeRecord, ID: id, Extent: extent}); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func (r Record) extent() (*object.Extent, error) {
	switch len(r.Extent) {
	case 0:
		return nil, nil
	case 4:
		return &object.Extent{MinX: r.Extent[0], MinY: r.Extent[1], MaxX: r.Extent[2], MaxY: r.Extent[3]}, nil
	}
	return nil, fmt.Errorf("extent needs 4 numbers, got %d", len(r.Extent))
}

func (r Record) toObject(rt *object.RecordTypeObj) (*object.RecordObj, error) {
	if r.ID == "" || strings.Contains(r.ID, "/") {
		return nil, fmt.Errorf("bad record id %q", r.ID)
	}
	for name := range r.Values {
		if rt.Index(name) < 0 {
			return nil, fmt.Errorf("attribute %q is not part of type %s", name, rt.Name)
		}
	}
	out := &object.RecordObj{Values: make([]object.Value, len(rt.Attributes))}
	for i, attr := range rt.Attributes {
		node, ok := r.Values[attr.Name]
		if !ok {
			continue
		}
		v, err := decodeValue(&node, attr.Type)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", attr.Name, err)
		}
		out.Values[i] = v
	}
	return out, nil
}

// decodeValue converts a YAML scalar according to the attribute's type
// name. Unknown type names are kept as strings.
func decodeValue(n *yaml.Node, typ string) (object.Value, error) {
	if n.Tag == "!!null" {
		return object.Null(), nil
	}
	switch typ {
	case "int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return object.Value{}, err
		}
		return object.Int(i), nil
	case "float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return object.Value{}, err
		}
		return object.Float(f), nil
	case "bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return object.Value{}, err
		}
		return object.Bool(b), nil
	case "bytes":
		var s string
		if err := n.Decode(&s); err != nil {
			return object.Value{}, err
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return object.Value{}, err
		}
		return object.Bytes(raw), nil
	default:
		var s string
		if err := n.Decode(&s); err != nil {
			return object.Value{}, err
		}
		return object.String(s), nil
	}
}

func encodeValue(v object.Value) (yaml.Node, bool) {
	var n yaml.Node
	var err error
	switch v.Kind() {
	case object.KindNull:
		return n, false
	case object.KindBool:
		err = n.Encode(v.AsBool())
	case object.KindInt:
		err = n.Encode(v.AsInt())
	case object.KindFloat:
		err = n.Encode(v.AsFloat())
	case object.KindBytes:
		err = n.Encode(hex.EncodeToString(v.AsBytes()))
	default:
		err = n.Encode(v.AsString())
	}
	return n, err == nil
}

// Export collects every record under root into a dataset. Records are
// grouped into layers by their parent tree and type.
func Export(ctx context.Context, store *object.Store, root object.Hash) (*Dataset, error) {
	d := &Dataset{}
	typeNames := map[object.Hash]string{}
	types := map[object.Hash]*object.RecordTypeObj{}
	layers := map[string]int{}

	err := tree.WalkRecords(ctx, store, root, func(path string, n object.Node, md object.Hash) error {
		if md.IsNull() {
			return fmt.Errorf("%w: record %s has no type", ErrInvalid, path)
		}
		rt, ok := types[md]
		if !ok {
			var err error
			if rt, err = store.ReadRecordType(md); err != nil {
				return err
			}
			name := rt.Name
			if slices.ContainsFunc(d.Types, func(t Type) bool { return t.Name == name }) {
				name = name + "-" + md.Short()
			}
			t := Type{Name: name}
			for _, a := range rt.Attributes {
				t.Attributes = append(t.Attributes, Attribute{Name: a.Name, Type: a.Type})
			}
			d.Types = append(d.Types, t)
			types[md], typeNames[md] = rt, name
		}
		rec, err := store.ReadRecord(n.ID)
		if err != nil {
			return err
		}
		dir, id := splitParent(path)
		key := dir + "\x00" + string(md)
		idx, ok := layers[key]
		if !ok {
			idx = len(d.Layers)
			layers[key] = idx
			d.Layers = append(d.Layers, Layer{Path: dir, Type: typeNames[md]})
		}
		out := Record{ID: id, Values: map[string]yaml.Node{}}
		if e := n.Extent; e != nil {
			out.Extent = []float64{e.MinX, e.MinY, e.MaxX, e.MaxY}
		}
		for i, a := range rt.Attributes {
			if node, ok := encodeValue(rec.Get(i)); ok {
				out.Values[a.Name] = node
			}
		}
		d.Layers[idx].Records = append(d.Layers[idx].Records, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func splitParent(path string) (string, string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
