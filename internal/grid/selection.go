package grid

import (
	"github.com/oakwood-commons/gridx/internal/column"
)

// CellAddr addresses one cell by row index and column key.
type CellAddr struct {
	Row int
	Col string
}

// Selection is an anchor/focus rectangle over cells. The anchor is where the
// selection started (click); the focus is where it currently extends
// (shift-click or drag).
type Selection struct {
	Anchor CellAddr
	Focus  CellAddr
}

// NewSelection returns a single-cell selection.
func NewSelection(addr CellAddr) Selection {
	return Selection{Anchor: addr, Focus: addr}
}

// Extend moves the focus, keeping the anchor.
func (s Selection) Extend(focus CellAddr) Selection {
	s.Focus = focus
	return s
}

// Rect is a selection normalized against the stable column order:
// inclusive row and column-index bounds.
type Rect struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
}

// Normalize resolves the selection to a Rect using the registry's stable
// column ordering. It reports false when either column key is not
// selectable.
func (s Selection) Normalize(reg *column.Registry) (Rect, bool) {
	a, ok := reg.Index(s.Anchor.Col)
	if !ok {
		return Rect{}, false
	}
	f, ok := reg.Index(s.Focus.Col)
	if !ok {
		return Rect{}, false
	}
	r := Rect{
		StartRow: min(s.Anchor.Row, s.Focus.Row),
		EndRow:   max(s.Anchor.Row, s.Focus.Row),
		StartCol: min(a, f),
		EndCol:   max(a, f),
	}
	return r, true
}

// Contains is the pure range-membership test the renderer uses to paint
// selected cells.
func (s Selection) Contains(reg *column.Registry, rowIndex int, columnKey string) bool {
	rect, ok := s.Normalize(reg)
	if !ok {
		return false
	}
	c, ok := reg.Index(columnKey)
	if !ok {
		return false
	}
	return rowIndex >= rect.StartRow && rowIndex <= rect.EndRow &&
		c >= rect.StartCol && c <= rect.EndCol
}

// EditingContext is the explicit editing state the UI passes into clipboard
// operations: the active cell and the current selection, if any. Paste
// targets the selection anchor when a selection exists, else the active
// cell.
type EditingContext struct {
	Active    CellAddr
	Selection *Selection
}

// PasteOrigin returns the top-left cell a paste lands on.
func (e EditingContext) PasteOrigin() CellAddr {
	if e.Selection != nil {
		return e.Selection.Anchor
	}
	return e.Active
}
