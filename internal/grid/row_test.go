package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/gridx/internal/backend"
	"github.com/oakwood-commons/gridx/internal/column"
	"github.com/oakwood-commons/gridx/internal/value"
)

func hydrationRegistry(t *testing.T) *column.Registry {
	t.Helper()
	reg, err := column.NewRegistry([]column.Definition{
		{Key: "doorRef", Kind: column.Plain, Editable: true, Aliases: []string{"ref", "door_ref"}},
		{Key: "qty", Kind: column.Plain, Editable: true, Default: value.Number(1)},
		{Key: "finish", Kind: column.Plain, Editable: true},
		{Key: "linePrice", Kind: column.Formula, Formula: "MULTIPLY(${qty}, 10)", AllowOverride: true},
		{Key: "area", Kind: column.Formula, Formula: "SUM(${qty})"},
	})
	require.NoError(t, err)
	return reg
}

func TestHydrate(t *testing.T) {
	reg := hydrationRegistry(t)
	rec := backend.RowRecord{
		ID: "row-1",
		Values: map[string]value.Value{
			"door_ref":  value.String("D-101"),
			"linePrice": value.Number(99),
		},
		RawData: map[string]value.Value{
			"finish": value.String("ash veneer"),
		},
		GridMeta: map[string]bool{
			OverrideKey("linePrice"): true,
			OverrideKey("area"):      true, // column no longer permits overrides
		},
	}

	r := Hydrate(rec, reg)
	assert.Equal(t, "row-1", r.ID)
	assert.Equal(t, value.String("D-101"), r.Value("doorRef"), "alias fills the canonical key")
	assert.Equal(t, value.Number(1), r.Value("qty"), "default applies to empty plain cells")
	assert.Equal(t, value.String("ash veneer"), r.Value("finish"), "raw import data fills gaps")
	assert.Equal(t, value.Number(99), r.Value("linePrice"))
	assert.True(t, r.Overridden("linePrice"))
	assert.Equal(t, StateOverride, r.State("linePrice"))
	assert.False(t, r.Overridden("area"), "stale flag on a non-override column is dropped")
	assert.Equal(t, StateFormula, r.State("area"))
}

func TestHydrateEmptyRecord(t *testing.T) {
	reg := hydrationRegistry(t)
	r := Hydrate(backend.RowRecord{ID: "row-2"}, reg)

	// Every registry column is present even when the record carries nothing.
	for _, key := range reg.Keys() {
		if key == "qty" {
			assert.Equal(t, value.Number(1), r.Value(key))
			continue
		}
		assert.True(t, r.Value(key).IsNull(), "column %q", key)
	}
	// Defaults never apply to calculated columns.
	assert.True(t, r.Value("linePrice").IsNull())
}

func TestRowCloneIsolation(t *testing.T) {
	reg := hydrationRegistry(t)
	r := Hydrate(backend.RowRecord{ID: "row-3"}, reg)

	next := r.Clone()
	require.True(t, next.setCell("qty", value.Number(7)))
	require.True(t, next.setOverride("linePrice", true))

	assert.Equal(t, value.Number(1), r.Value("qty"), "original row untouched")
	assert.False(t, r.Overridden("linePrice"))
	assert.Equal(t, value.Number(7), next.Value("qty"))
	assert.True(t, next.Overridden("linePrice"))
}

func TestRowSetCellChangeDetection(t *testing.T) {
	reg := hydrationRegistry(t)
	r := Hydrate(backend.RowRecord{ID: "row-4"}, reg)

	assert.True(t, r.setCell("qty", value.Number(5)))
	assert.False(t, r.setCell("qty", value.Number(5)), "same value is not a change")
	assert.True(t, r.setCell("qty", value.String("5")), "same display, different kind, still a change")
	assert.False(t, r.setOverride("linePrice", false))
	assert.True(t, r.setOverride("linePrice", true))
	assert.False(t, r.setOverride("linePrice", true))
}
