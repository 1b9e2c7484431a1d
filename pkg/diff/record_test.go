package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
)

var roadType = &object.RecordTypeObj{Name: "roads", Attributes: []object.AttributeDescriptor{
	{Name: "name", Type: "string"},
	{Name: "lanes", Type: "int"},
	{Name: "surface", Type: "string"},
}}

func road(name string, lanes int64, surface string) *object.RecordObj {
	return &object.RecordObj{Values: []object.Value{object.String(name), object.Int(lanes), object.String(surface)}}
}

func TestRecordsAttributeDiff(t *testing.T) {
	d := Records("roads/r1", road("Main", 2, "asphalt"), roadType, road("Main", 3, "asphalt"), roadType)
	require.Len(t, d.Attributes, 1)
	assert.Equal(t, "lanes", d.Attributes[0].Name)
	assert.Equal(t, Modified, d.Attributes[0].Change())
	assert.Equal(t, object.ID(road("Main", 3, "asphalt")), d.NewID)
	assert.Equal(t, d.OldTypeID, d.NewTypeID)
}

func TestRecordsAcrossSchemaChange(t *testing.T) {
	newType := &object.RecordTypeObj{Name: "roads", Attributes: []object.AttributeDescriptor{
		{Name: "name", Type: "string"},
		{Name: "speed", Type: "int"},
	}}
	oldRec := road("Main", 2, "asphalt")
	newRec := &object.RecordObj{Values: []object.Value{object.String("Main"), object.Int(50)}}
	d := Records("r", oldRec, roadType, newRec, newType)

	changes := map[string]ChangeType{}
	for _, a := range d.Attributes {
		changes[a.Name] = a.Change()
	}
	assert.Equal(t, map[string]ChangeType{"speed": Added, "lanes": Removed, "surface": Removed}, changes)

	patched, err := d.Apply(oldRec, roadType, newType)
	require.NoError(t, err)
	assert.Equal(t, object.ID(newRec), object.ID(patched))

	back, err := d.Reversed().Apply(newRec, newType, roadType)
	require.NoError(t, err)
	assert.Equal(t, object.ID(oldRec), object.ID(back))
}

func TestRecordDiffReversedTwiceIsIdentity(t *testing.T) {
	d := Records("roads/r1", road("Main", 2, "asphalt"), roadType, road("Elm", 3, "gravel"), roadType)
	d.NewExtent = &object.Extent{MaxX: 1, MaxY: 1}
	assert.True(t, d.Reversed().Reversed().Equal(d))
	assert.False(t, d.Reversed().Equal(d))
}

func TestRecordDiffConflicts(t *testing.T) {
	anc := road("Main", 2, "asphalt")
	ours := Records("r", anc, roadType, road("Main", 3, "asphalt"), roadType)
	theirsDisjoint := Records("r", anc, roadType, road("Main", 2, "gravel"), roadType)
	theirsSame := Records("r", anc, roadType, road("Main", 3, "gravel"), roadType)
	theirsClash := Records("r", anc, roadType, road("Main", 4, "asphalt"), roadType)

	assert.False(t, ours.Conflicts(theirsDisjoint))
	assert.False(t, ours.Conflicts(theirsSame))
	assert.True(t, ours.Conflicts(theirsClash))
	assert.True(t, theirsClash.Conflicts(ours))
}

func TestRecordDiffApplyMismatch(t *testing.T) {
	d := Records("roads/r1", road("Main", 2, "asphalt"), roadType, road("Main", 3, "asphalt"), roadType)
	_, err := d.Apply(road("Main", 5, "asphalt"), roadType, roadType)
	assert.ErrorIs(t, err, ErrRecordMismatch)
}

func TestFormatRecordDiff(t *testing.T) {
	d := Records("roads/r1", road("Main", 2, "asphalt"), roadType, road("Main", 3, "asphalt"), roadType)
	out := FormatRecordDiff(d)
	assert.True(t, strings.HasPrefix(out, "--- a/roads/r1\n+++ b/roads/r1\n"))
	assert.Contains(t, out, "-lanes: int 2\n+lanes: int 3\n")
}
