package patch

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

const formatVersion = 1

// ErrFormat reports a patch file that cannot be decoded.
var ErrFormat = errors.New("invalid patch file")

type document struct {
	Version  int           `yaml:"version"`
	Types    []typeDoc     `yaml:"types,omitempty"`
	Trees    []treeDoc     `yaml:"trees,omitempty"`
	Removed  []recordDoc   `yaml:"removed,omitempty"`
	Added    []recordDoc   `yaml:"added,omitempty"`
	Modified []modifiedDoc `yaml:"modified,omitempty"`
}

type typeDoc struct {
	ID         object.Hash `yaml:"id"`
	Name       string      `yaml:"name"`
	Attributes [][2]string `yaml:"attributes,flow"`
}

type treeDoc struct {
	Path    string      `yaml:"path"`
	Change  string      `yaml:"change"`
	OldType object.Hash `yaml:"old_type,omitempty"`
	NewType object.Hash `yaml:"new_type,omitempty"`
}

type recordDoc struct {
	Path   string      `yaml:"path"`
	Type   object.Hash `yaml:"type,omitempty"`
	Extent []float64   `yaml:"extent,omitempty,flow"`
	Values []string    `yaml:"values,flow"`
}

type attributeDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Old  string `yaml:"old"`
	New  string `yaml:"new"`
}

type modifiedDoc struct {
	Path       string         `yaml:"path"`
	OldID      object.Hash    `yaml:"old_id"`
	NewID      object.Hash    `yaml:"new_id"`
	OldType    object.Hash    `yaml:"old_type,omitempty"`
	NewType    object.Hash    `yaml:"new_type,omitempty"`
	OldExtent  []float64      `yaml:"old_extent,omitempty,flow"`
	NewExtent  []float64      `yaml:"new_extent,omitempty,flow"`
	Attributes []attributeDoc `yaml:"attributes,omitempty"`
}

// Write encodes p as YAML.
func Write(w io.Writer, p *Patch) error {
	doc := document{Version: formatVersion}
	for _, id := range slices.Sorted(maps.Keys(p.Types)) {
		rt := p.Types[id]
		td := typeDoc{ID: id, Name: rt.Name}
		for _, a := range rt.Attributes {
			td.Attributes = append(td.Attributes, [2]string{a.Name, a.Type})
		}
		doc.Types = append(doc.Types, td)
	}
	for _, t := range p.AlteredTrees {
		doc.Trees = append(doc.Trees, treeDoc{Path: t.Path, Change: t.Change.String(), OldType: t.OldType, NewType: t.NewType})
	}
	for _, r := range p.Removed {
		doc.Removed = append(doc.Removed, encodeRecord(r))
	}
	for _, r := range p.Added {
		doc.Added = append(doc.Added, encodeRecord(r))
	}
	for _, m := range p.Modified {
		md := modifiedDoc{
			Path: m.Path, OldID: m.OldID, NewID: m.NewID,
			OldType: m.OldTypeID, NewType: m.NewTypeID,
			OldExtent: encodeExtent(m.OldExtent), NewExtent: encodeExtent(m.NewExtent),
		}
		for _, a := range m.Attributes {
			md.Attributes = append(md.Attributes, attributeDoc{Name: a.Name, Type: a.Type, Old: a.Old.String(), New: a.New.String()})
		}
		doc.Modified = append(doc.Modified, md)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// Read decodes a patch written by Write. Type ids are checked against
// their content.
func Read(r io.Reader) (*Patch, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, doc.Version)
	}

	p := &Patch{}
	for _, td := range doc.Types {
		rt := &object.RecordTypeObj{Name: td.Name}
		for _, a := range td.Attributes {
			rt.Attributes = append(rt.Attributes, object.AttributeDescriptor{Name: a[0], Type: a[1]})
		}
		if got := object.ID(rt); got != td.ID {
			return nil, fmt.Errorf("%w: type %s hashes to %s", ErrFormat, td.ID.Short(), got.Short())
		}
		if p.Types == nil {
			p.Types = make(map[object.Hash]*object.RecordTypeObj)
		}
		p.Types[td.ID] = rt
	}
	for _, td := range doc.Trees {
		c, err := parseChange(td.Change)
		if err != nil {
			return nil, err
		}
		p.AlteredTrees = append(p.AlteredTrees, TreeChange{Path: td.Path, Change: c, OldType: td.OldType, NewType: td.NewType})
	}
	var err error
	if p.Removed, err = decodeRecords(doc.Removed); err != nil {
		return nil, err
	}
	if p.Added, err = decodeRecords(doc.Added); err != nil {
		return nil, err
	}
	for _, md := range doc.Modified {
		d := diff.RecordDiff{
			Path: md.Path, OldID: md.OldID, NewID: md.NewID,
			OldTypeID: md.OldType, NewTypeID: md.NewType,
		}
		if d.OldExtent, err = decodeExtent(md.OldExtent); err != nil {
			return nil, err
		}
		if d.NewExtent, err = decodeExtent(md.NewExtent); err != nil {
			return nil, err
		}
		for _, a := range md.Attributes {
			oldVal, err := object.ParseValue(a.Old)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrFormat, md.Path, err)
			}
			newVal, err := object.ParseValue(a.New)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrFormat, md.Path, err)
			}
			d.Attributes = append(d.Attributes, diff.AttributeDiff{Name: a.Name, Type: a.Type, Old: oldVal, New: newVal})
		}
		p.Modified = append(p.Modified, d)
	}
	return p, nil
}

// WriteCompressed writes p as zstd-compressed YAML.
func WriteCompressed(w io.Writer, p *Patch) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := Write(zw, p); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadCompressed reverses WriteCompressed.
func ReadCompressed(r io.Reader) (*Patch, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return Read(zr)
}

func encodeRecord(r RecordInfo) recordDoc {
	rd := recordDoc{Path: r.Path, Type: r.TypeID, Extent: encodeExtent(r.Extent), Values: []string{}}
	for _, v := range r.Record.Values {
		rd.Values = append(rd.Values, v.String())
	}
	return rd
}

func decodeRecords(docs []recordDoc) ([]RecordInfo, error) {
	var out []RecordInfo
	for _, rd := range docs {
		rec := &object.RecordObj{}
		for _, s := range rd.Values {
			v, err := object.ParseValue(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrFormat, rd.Path, err)
			}
			rec.Values = append(rec.Values, v)
		}
		ext, err := decodeExtent(rd.Extent)
		if err != nil {
			return nil, err
		}
		out = append(out, RecordInfo{Path: rd.Path, Record: rec, TypeID: rd.Type, Extent: ext})
	}
	return out, nil
}

func encodeExtent(e *object.Extent) []float64 {
	if e == nil {
		return nil
	}
	return []float64{e.MinX, e.MinY, e.MaxX, e.MaxY}
}

func decodeExtent(v []float64) (*object.Extent, error) {
	switch len(v) {
	case 0:
		return nil, nil
	case 4:
		return &object.Extent{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
	}
	return nil, fmt.Errorf("%w: extent needs 4 values, got %d", ErrFormat, len(v))
}

func parseChange(s string) (diff.ChangeType, error) {
	for _, c := range []diff.ChangeType{diff.Added, diff.Removed, diff.Modified} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown change %q", ErrFormat, s)
}
