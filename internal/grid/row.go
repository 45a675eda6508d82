// Package grid implements the editing-state engine of the fire-door order
// grid: hydrated rows with per-cell override state, rectangular selection,
// clipboard copy/paste/fill-down, and the session facade that ties formula
// evaluation and persistence together.
package grid

import (
	"github.com/oakwood-commons/gridx/internal/backend"
	"github.com/oakwood-commons/gridx/internal/column"
	"github.com/oakwood-commons/gridx/internal/formula"
	"github.com/oakwood-commons/gridx/internal/value"
)

// OverrideKey returns the side-channel key that persists the override flag
// for a column, e.g. "override:doorPrice".
func OverrideKey(columnKey string) string {
	return "override:" + columnKey
}

// CellState distinguishes a formula-derived cell from a manually overridden
// one. Only cells of allowOverride formula columns carry meaningful state.
type CellState int

const (
	// StateFormula: the display value is the live formula result.
	StateFormula CellState = iota
	// StateOverride: a manual value is in effect and suppresses the formula.
	StateOverride
)

// Row is one grid row: stored cell values plus the override flags for
// formula columns. Rows are treated copy-on-write by the session; mutating
// methods exist only on freshly cloned rows.
type Row struct {
	ID        string
	cells     map[string]value.Value
	overrides map[string]bool
}

// Hydrate shapes a backend record into a Row for the given registry: every
// registry column gets an entry (null allowed), aliases and raw import data
// fill gaps, and configured defaults apply to empty non-calculated cells.
// Override flags are restored only for columns that still permit overrides.
func Hydrate(rec backend.RowRecord, reg *column.Registry) *Row {
	r := &Row{
		ID:        rec.ID,
		cells:     make(map[string]value.Value, reg.Len()),
		overrides: make(map[string]bool),
	}
	for _, def := range reg.Definitions() {
		v := hydrateCell(rec, def)
		if v.IsEmpty() && !def.IsCalculated() && !def.Default.IsNull() {
			v = def.Default
		}
		r.cells[def.Key] = v

		if def.Kind == column.Formula && def.AllowOverride && rec.GridMeta[OverrideKey(def.Key)] {
			r.overrides[def.Key] = true
		}
	}
	return r
}

// hydrateCell picks the stored value for one column: the canonical key
// first, then aliases, then the same search through the raw import data.
func hydrateCell(rec backend.RowRecord, def column.Definition) value.Value {
	if v, ok := rec.Values[def.Key]; ok && !v.IsNull() {
		return v
	}
	for _, a := range def.Aliases {
		if v, ok := rec.Values[a]; ok && !v.IsNull() {
			return v
		}
	}
	if v, ok := rec.RawData[def.Key]; ok && !v.IsNull() {
		return v
	}
	for _, a := range def.Aliases {
		if v, ok := rec.RawData[a]; ok && !v.IsNull() {
			return v
		}
	}
	return value.Null()
}

// Value returns the stored value for a column key. For a non-overridden
// formula column this is the raw stored cell, not the computed display
// value; display reads go through the session.
func (r *Row) Value(key string) value.Value {
	return r.cells[key]
}

// Overridden reports whether a manual override is in effect for the column.
func (r *Row) Overridden(key string) bool {
	return r.overrides[key]
}

// State returns the cell state for an allowOverride formula column.
func (r *Row) State(key string) CellState {
	if r.overrides[key] {
		return StateOverride
	}
	return StateFormula
}

// Fields snapshots the row's stored values for formula and lookup
// resolution.
func (r *Row) Fields() formula.Fields {
	out := make(formula.Fields, len(r.cells))
	for k, v := range r.cells {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy. The session clones a row before any mutation
// so previous snapshots stay valid for diffing.
func (r *Row) Clone() *Row {
	next := &Row{
		ID:        r.ID,
		cells:     make(map[string]value.Value, len(r.cells)),
		overrides: make(map[string]bool, len(r.overrides)),
	}
	for k, v := range r.cells {
		next.cells[k] = v
	}
	for k, v := range r.overrides {
		next.overrides[k] = v
	}
	return next
}

// setCell writes a stored value and returns whether it changed.
func (r *Row) setCell(key string, v value.Value) bool {
	old, had := r.cells[key]
	if had && value.Equal(old, v) && old.Kind() == v.Kind() {
		return false
	}
	r.cells[key] = v
	return true
}

// setOverride flips the override flag and returns whether it changed.
func (r *Row) setOverride(key string, on bool) bool {
	if r.overrides[key] == on {
		return false
	}
	if on {
		r.overrides[key] = true
	} else {
		delete(r.overrides, key)
	}
	return true
}
