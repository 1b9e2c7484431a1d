package merge

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

// Option configures a scenario.
type Option func(*scenario)

// WithStrategy settles paths changed by both sides in favour of one side
// instead of auto-merging or reporting conflicts.
func WithStrategy(s Strategy) Option {
	return func(sc *scenario) { sc.strategy = s }
}

// Scenario merges the changes ancestor→theirs into ours. Both diffs are
// walked in canonical order and zipped by path:
//
//   - paths only ours changed are already in ours and produce no event;
//   - paths only theirs changed are reported Unconflicted;
//   - identical changes on both sides are reported Unconflicted;
//   - records both sides modified are merged attribute by attribute, and
//     their extents three-way, when their schemas agree and no attribute
//     or extent was set to different values;
//   - everything else is Conflicted. A conflict on a subtree suppresses
//     the entries beneath it.
//
// Finished is called once after the last event unless an error occurred.
func Scenario(ctx context.Context, store *object.Store, ancestor, ours, theirs object.Hash, consumer Consumer, opts ...Option) (*Report, error) {
	sc := &scenario{ctx: ctx, store: store, consumer: consumer, report: &Report{}}
	for _, opt := range opts {
		opt(sc)
	}

	oursStream := newStream(diff.Trees(ctx, store, ancestor, ours, diff.WithReportTrees()))
	defer oursStream.stop()
	theirsStream := newStream(diff.Trees(ctx, store, ancestor, theirs, diff.WithReportTrees()))
	defer theirsStream.stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		og, err := oursStream.group()
		if err != nil {
			return nil, err
		}
		tg, err := theirsStream.group()
		if err != nil {
			return nil, err
		}
		if og == nil && tg == nil {
			break
		}

		var c int
		switch {
		case og == nil:
			c = 1
		case tg == nil:
			c = -1
		default:
			c = diff.ComparePaths(og[0].Path(), tg[0].Path())
		}

		switch {
		case c < 0:
			oursStream.consume()
			sc.report.note(OursOnly)
		case c > 0:
			theirsStream.consume()
			sc.report.note(TheirsOnly)
			for _, e := range tg {
				if err := sc.unconflicted(e); err != nil {
					return nil, err
				}
			}
		default:
			oursStream.consume()
			theirsStream.consume()
			suppress, err := sc.both(og, tg)
			if err != nil {
				return nil, err
			}
			if suppress {
				path := og[0].Path()
				if err := oursStream.skipUnder(path); err != nil {
					return nil, err
				}
				if err := theirsStream.skipUnder(path); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := consumer.Finished(); err != nil {
		return nil, err
	}
	return sc.report, nil
}

type scenario struct {
	ctx      context.Context
	store    *object.Store
	consumer Consumer
	strategy Strategy
	report   *Report
}

func (sc *scenario) unconflicted(e diff.Entry) error {
	sc.report.Unconflicted++
	return sc.consumer.Unconflicted(e)
}

func (sc *scenario) conflicted(c Conflict, d Disposition) error {
	sc.report.note(d)
	sc.report.Conflicts++
	return sc.consumer.Conflicted(c)
}

func (sc *scenario) merged(m MergedRecord) error {
	sc.report.note(AutoMerged)
	sc.report.Merged++
	return sc.consumer.Merged(m)
}

// override settles a path both sides changed according to the strategy.
// It reports false when no strategy is active.
func (sc *scenario) override(tg []diff.Entry) (bool, error) {
	switch sc.strategy {
	case StrategyOurs:
		sc.report.note(Overridden)
		return true, nil
	case StrategyTheirs:
		sc.report.note(Overridden)
		for _, e := range tg {
			if err := sc.unconflicted(e); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return false, nil
}

func groupsEqual(a, b []diff.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// both settles a path changed on both sides. The boolean result asks the
// caller to drop the entries beneath the path.
func (sc *scenario) both(og, tg []diff.Entry) (bool, error) {
	o, t := og[0], tg[0]
	path := o.Path()

	if groupsEqual(og, tg) {
		sc.report.note(BothSame)
		for _, e := range tg {
			if err := sc.unconflicted(e); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	kindChange := len(og) > 1 || len(tg) > 1
	if kindChange || o.Type() != t.Type() {
		if done, err := sc.override(tg); done {
			return true, err
		}
		d := Conflicting
		if o.Type() == diff.Removed || t.Type() == diff.Removed {
			d = DeleteVsModify
		}
		c := Conflict{Path: path, Ancestor: o.OldID(), Ours: og[len(og)-1].NewID(), Theirs: tg[len(tg)-1].NewID()}
		return true, sc.conflicted(c, d)
	}

	switch o.Type() {
	case diff.Removed:
		// Covered by groupsEqual unless the removed nodes differ, which
		// cannot happen for a shared ancestor.
		sc.report.note(BothSame)
		return false, sc.unconflicted(t)
	case diff.Added:
		if o.IsTree() != t.IsTree() {
			if done, err := sc.override(tg); done {
				return true, err
			}
			return true, sc.conflicted(Conflict{Path: path, Ours: o.NewID(), Theirs: t.NewID()}, Conflicting)
		}
		if o.IsTree() {
			return false, sc.treeSchema(o, t)
		}
		if done, err := sc.override(tg); done {
			return false, err
		}
		return false, sc.conflicted(Conflict{Path: path, Ours: o.NewID(), Theirs: t.NewID()}, Conflicting)
	default:
		if o.IsTree() {
			return false, sc.treeSchema(o, t)
		}
		if done, err := sc.override(tg); done {
			return false, err
		}
		return false, sc.mergeRecords(o, t)
	}
}

// treeSchema compares the schema ids of a subtree both sides added or
// modified. Entries beneath it are settled individually.
func (sc *scenario) treeSchema(o, t diff.Entry) error {
	var anc object.Hash
	if o.Old != nil {
		anc = o.Old.Node.MetadataID
	}
	oMD, tMD := o.New.Node.MetadataID, t.New.Node.MetadataID
	switch {
	case oMD == tMD:
		return nil
	case oMD == anc && o.Old != nil:
		sc.report.note(TheirsOnly)
		return sc.unconflicted(t)
	case tMD == anc && t.Old != nil:
		sc.report.note(OursOnly)
		return nil
	}
	if done, err := sc.override([]diff.Entry{t}); done {
		return err
	}
	return sc.conflicted(Conflict{Path: o.Path(), Ancestor: anc, Ours: oMD, Theirs: tMD}, SchemaConflict)
}

func (sc *scenario) readTyped(ref *diff.NodeRef) (*object.RecordObj, *object.RecordTypeObj, error) {
	rec, err := sc.store.ReadRecord(ref.Node.ID)
	if err != nil {
		return nil, nil, err
	}
	md := ref.MetadataID()
	if md.IsNull() {
		return rec, &object.RecordTypeObj{}, nil
	}
	rt, err := sc.store.ReadRecordType(md)
	if err != nil {
		return nil, nil, err
	}
	return rec, rt, nil
}

// mergeRecords attempts an attribute-level merge of a record both sides
// modified.
func (sc *scenario) mergeRecords(o, t diff.Entry) error {
	path := o.Path()
	conflict := Conflict{Path: path, Ancestor: o.OldID(), Ours: o.NewID(), Theirs: t.NewID()}

	oursMD, theirsMD := o.New.MetadataID(), t.New.MetadataID()
	if oursMD != theirsMD || oursMD.IsNull() {
		return sc.conflicted(conflict, Conflicting)
	}
	extent, ok := mergeExtents(o.Old.Node.Extent, o.New.Node.Extent, t.New.Node.Extent)
	if !ok {
		return sc.conflicted(conflict, Conflicting)
	}

	ancRec, ancType, err := sc.readTyped(o.Old)
	if err != nil {
		return fmt.Errorf("merge %s: ancestor: %w", path, err)
	}
	oursRec, oursType, err := sc.readTyped(o.New)
	if err != nil {
		return fmt.Errorf("merge %s: ours: %w", path, err)
	}
	theirsRec, theirsType, err := sc.readTyped(t.New)
	if err != nil {
		return fmt.Errorf("merge %s: theirs: %w", path, err)
	}

	oursDiff := diff.Records(path, ancRec, ancType, oursRec, oursType)
	theirsDiff := diff.Records(path, ancRec, ancType, theirsRec, theirsType)
	if oursDiff.Conflicts(theirsDiff) {
		return sc.conflicted(conflict, Conflicting)
	}

	mergedRec := theirsDiff.Patch(oursRec, oursType, oursType)
	node := o.New.Node
	node.ID = object.ID(mergedRec)
	node.Extent = extent
	switch {
	case node.Equal(o.New.Node):
		sc.report.note(OursOnly)
		return nil
	case node.ID == t.NewID() && extentsEqual(extent, t.New.Node.Extent):
		sc.report.note(TheirsOnly)
		return sc.unconflicted(t)
	}
	return sc.merged(MergedRecord{Path: path, Record: mergedRec, Node: node})
}

// mergeExtents applies the three-way rule to a record's extent: a change
// on one side wins, the same change on both is kept, and different
// changes on both sides conflict.
func mergeExtents(anc, ours, theirs *object.Extent) (*object.Extent, bool) {
	switch {
	case extentsEqual(ours, theirs), extentsEqual(theirs, anc):
		return ours, true
	case extentsEqual(ours, anc):
		return theirs, true
	}
	return nil, false
}

func extentsEqual(a, b *object.Extent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// stream reads a diff sequence one path group at a time.
type stream struct {
	next    func() (diff.Entry, error, bool)
	stop    func()
	peeked  []diff.Entry
	pending *diff.Entry
	done    bool
}

func newStream(seq iter.Seq2[diff.Entry, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{next: next, stop: stop}
}

func (s *stream) pull() (*diff.Entry, error) {
	if s.pending != nil {
		e := s.pending
		s.pending = nil
		return e, nil
	}
	if s.done {
		return nil, nil
	}
	e, err, ok := s.next()
	if !ok {
		s.done = true
		return nil, nil
	}
	if err != nil {
		s.done = true
		return nil, err
	}
	return &e, nil
}

// group returns the consecutive entries sharing the next path without
// consuming them. It returns nil at the end of the stream.
func (s *stream) group() ([]diff.Entry, error) {
	if s.peeked != nil {
		return s.peeked, nil
	}
	first, err := s.pull()
	if err != nil || first == nil {
		return nil, err
	}
	g := []diff.Entry{*first}
	for {
		e, err := s.pull()
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}
		if e.Path() != first.Path() {
			s.pending = e
			break
		}
		g = append(g, *e)
	}
	s.peeked = g
	return g, nil
}

func (s *stream) consume() { s.peeked = nil }

// skipUnder discards upcoming entries strictly beneath path.
func (s *stream) skipUnder(path string) error {
	prefix := path + "/"
	for {
		g, err := s.group()
		if err != nil || g == nil {
			return err
		}
		if !strings.HasPrefix(g[0].Path(), prefix) {
			return nil
		}
		s.consume()
	}
}
