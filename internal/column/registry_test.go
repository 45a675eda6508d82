package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/gridx/internal/value"
)

func testDefs() []Definition {
	return []Definition{
		{Key: "doorRef", Label: "Door Ref", Kind: Plain, Editable: true, Aliases: []string{"ref", "door_ref"}},
		{Key: "width", Label: "Width", Kind: Plain, Editable: true},
		{Key: "fireRating", Label: "Fire Rating", Kind: Dropdown, Editable: true, LookupTable: "FireRatings"},
		{Key: "area", Label: "Area", Kind: Formula, Formula: "MULTIPLY(${width}, ${height})"},
		{Key: "price", Label: "Price", Kind: Formula, Formula: "${area} * 2", AllowOverride: true},
		{Key: "notes", Label: "Notes", Kind: Plain, Editable: false},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(testDefs())
	require.NoError(t, err)

	_, err = NewRegistry([]Definition{{Key: ""}})
	assert.Error(t, err, "empty key")

	_, err = NewRegistry([]Definition{{Key: "a"}, {Key: "a"}})
	assert.Error(t, err, "duplicate key")

	_, err = NewRegistry([]Definition{{Key: "a", Kind: "mystery"}})
	assert.Error(t, err, "unknown kind")

	_, err = NewRegistry([]Definition{{Key: "f", Kind: Formula, Editable: true}})
	assert.Error(t, err, "editable formula without allowOverride")

	_, err = NewRegistry([]Definition{{Key: "d", Kind: Dropdown, Editable: true}})
	assert.Error(t, err, "dropdown without table")

	_, err = NewRegistry([]Definition{{Key: "a"}, {Key: "b", Aliases: []string{"a"}}})
	assert.Error(t, err, "alias shadowing a key")
}

func TestRegistryOrdering(t *testing.T) {
	reg, err := NewRegistry(testDefs())
	require.NoError(t, err)

	assert.Equal(t, []string{"doorRef", "width", "fireRating", "area", "price", "notes"}, reg.Keys())
	i, ok := reg.Index("fireRating")
	require.True(t, ok)
	assert.Equal(t, 2, i)
	key, ok := reg.KeyAt(4)
	require.True(t, ok)
	assert.Equal(t, "price", key)
	_, ok = reg.KeyAt(99)
	assert.False(t, ok)
}

func TestRegistryWriteGates(t *testing.T) {
	reg, err := NewRegistry(testDefs())
	require.NoError(t, err)

	assert.True(t, reg.CanWrite("doorRef"))
	assert.True(t, reg.CanWrite("fireRating"))
	assert.False(t, reg.CanWrite("area"), "formula without override permission")
	assert.True(t, reg.CanWrite("price"), "formula with override permission")
	assert.False(t, reg.CanWrite("notes"), "non-editable plain column")
	assert.False(t, reg.CanWrite("ghost"), "unregistered column")

	assert.False(t, reg.IsOverrideWrite("doorRef"))
	assert.False(t, reg.IsOverrideWrite("area"))
	assert.True(t, reg.IsOverrideWrite("price"))
}

func TestRegistryAliases(t *testing.T) {
	reg, err := NewRegistry(testDefs())
	require.NoError(t, err)

	assert.Equal(t, "doorRef", reg.Resolve("doorRef"))
	assert.Equal(t, "doorRef", reg.Resolve("door_ref"))
	assert.Equal(t, "doorRef", reg.Resolve("ref"))
	assert.Equal(t, "", reg.Resolve("nothing"))
}

func TestLoadYAML(t *testing.T) {
	doc := []byte(`
columns:
  - key: doorRef
    label: Door Ref
    kind: plain
    editable: true
    default: unassigned
  - key: linePrice
    label: Line Price
    kind: formula
    formula: MULTIPLY(${qty}, ${unitPrice})
    allowOverride: true
`)
	reg, err := LoadYAML(doc)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	d, ok := reg.Get("doorRef")
	require.True(t, ok)
	assert.Equal(t, value.String("unassigned"), d.Default)

	f, ok := reg.Get("linePrice")
	require.True(t, ok)
	assert.Equal(t, Formula, f.Kind)
	assert.True(t, f.AllowOverride)

	_, err = LoadYAML([]byte("columns: []"))
	assert.Error(t, err, "no columns")

	_, err = LoadYAML([]byte("{not yaml"))
	assert.Error(t, err)
}
