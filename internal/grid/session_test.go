package grid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/gridx/internal/backend"
	"github.com/oakwood-commons/gridx/internal/column"
	"github.com/oakwood-commons/gridx/internal/config"
	"github.com/oakwood-commons/gridx/internal/lookup"
	"github.com/oakwood-commons/gridx/internal/value"
)

const testImport = "import-7"

func sessionRegistry(t *testing.T) *column.Registry {
	t.Helper()
	reg, err := column.NewRegistry([]column.Definition{
		{Key: "doorRef", Kind: column.Plain, Editable: true, Aliases: []string{"ref"}},
		{Key: "qty", Kind: column.Plain, Editable: true},
		{Key: "unitPrice", Kind: column.Plain, Editable: true},
		{Key: "fireRating", Kind: column.Dropdown, Editable: true, LookupTable: "FireRatings"},
		{Key: "linePrice", Kind: column.Formula, Formula: "MULTIPLY(${qty}, ${unitPrice})", AllowOverride: true},
		{Key: "coreThickness", Kind: column.Formula, Formula: "LOOKUP(FireRatings, rating=${fireRating}, thickness)"},
		{Key: "importRef", Kind: column.Plain, Editable: false},
	})
	require.NoError(t, err)
	return reg
}

func sessionLookups(t *testing.T) *lookup.Set {
	t.Helper()
	s, err := lookup.NewSet([]lookup.Table{
		{
			Name:    "FireRatings",
			Columns: []string{"rating", "thickness"},
			Rows: []lookup.Row{
				{"rating": value.String("FD30"), "thickness": value.Number(44)},
				{"rating": value.String("FD60"), "thickness": value.Number(54)},
			},
		},
	})
	require.NoError(t, err)
	return s
}

func seedRows() []backend.RowRecord {
	return []backend.RowRecord{
		{
			ID: "row-a",
			Values: map[string]value.Value{
				"doorRef":    value.String("D-101"),
				"qty":        value.Number(2),
				"unitPrice":  value.Number(10),
				"fireRating": value.String("FD30"),
			},
		},
		{
			ID: "row-b",
			Values: map[string]value.Value{
				"qty":        value.Number(5),
				"unitPrice":  value.Number(3),
				"fireRating": value.String("FD60"),
				"linePrice":  value.Number(99),
			},
			GridMeta: map[string]bool{OverrideKey("linePrice"): true},
		},
	}
}

// openTestSession builds a session over a seeded fake backend with a short
// debounce window. mutate, when non-nil, adjusts the options before Open.
func openTestSession(t *testing.T, mutate func(*Options)) (*Session, *backend.Fake) {
	t.Helper()
	fake := backend.NewFake()
	fake.SeedImport(testImport, seedRows())
	opts := Options{
		Client:   fake,
		ImportID: testImport,
		Registry: sessionRegistry(t),
		Lookups:  sessionLookups(t),
		Settings: config.Settings{
			DebounceWindow:    25 * time.Millisecond,
			MaxAutoExpandRows: 500,
			RequestTimeout:    5 * time.Second,
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, fake
}

func mustCell(t *testing.T, s *Session, row int, key string) value.Value {
	t.Helper()
	v, err := s.CellValue(row, key)
	require.NoError(t, err)
	return v
}

func TestOpenFetchesConfigsAndTables(t *testing.T) {
	fake := backend.NewFake()
	fake.SeedFieldConfigs([]backend.FieldConfig{
		{Key: "qty", Label: "Qty", Kind: "plain", Editable: true},
		{Key: "unitPrice", Label: "Unit Price", Kind: "plain", Editable: true},
		{Key: "linePrice", Label: "Line Price", Kind: "formula", Formula: "MULTIPLY(${qty}, ${unitPrice})", AllowOverride: true},
	})
	fake.SeedLookupTables([]backend.TableRecord{
		{Name: "FireRatings", Columns: []string{"rating", "thickness"}, Rows: []map[string]any{
			{"rating": "FD30", "thickness": 44},
		}},
	})
	fake.SeedImport(testImport, []backend.RowRecord{
		{ID: "row-1", Values: map[string]value.Value{"qty": value.Number(4), "unitPrice": value.Number(2.5)}},
	})

	s, err := Open(context.Background(), Options{Client: fake, ImportID: testImport})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"qty", "unitPrice", "linePrice"}, s.Registry().Keys())
	assert.Equal(t, 1, s.RowCount())
	assert.Equal(t, value.Number(10), mustCell(t, s, 0, "linePrice"))
}

func TestCellValueFormulaAndOverride(t *testing.T) {
	s, _ := openTestSession(t, nil)

	assert.Equal(t, value.Number(20), mustCell(t, s, 0, "linePrice"), "live formula result")
	assert.Equal(t, value.Number(44), mustCell(t, s, 0, "coreThickness"), "lookup-backed formula")
	st, err := s.CellState(0, "linePrice")
	require.NoError(t, err)
	assert.Equal(t, StateFormula, st)

	assert.Equal(t, value.Number(99), mustCell(t, s, 1, "linePrice"), "override suppresses the formula")
	st, err = s.CellState(1, "linePrice")
	require.NoError(t, err)
	assert.Equal(t, StateOverride, st)

	_, err = s.CellValue(9, "qty")
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = s.CellValue(0, "ghost")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestSetCellGates(t *testing.T) {
	s, _ := openTestSession(t, nil)

	assert.ErrorIs(t, s.SetCell(0, "coreThickness", value.Number(50)), ErrNotEditable)
	assert.ErrorIs(t, s.SetCell(0, "importRef", value.String("x")), ErrNotEditable)
	assert.ErrorIs(t, s.SetCell(0, "ghost", value.Number(1)), ErrUnknownColumn)
	assert.ErrorIs(t, s.SetCell(42, "qty", value.Number(1)), ErrRowOutOfRange)
}

func TestOverrideRoundTrip(t *testing.T) {
	s, fake := openTestSession(t, nil)

	require.NoError(t, s.SetCell(0, "linePrice", value.Number(55)))
	assert.Equal(t, value.Number(55), mustCell(t, s, 0, "linePrice"))
	st, err := s.CellState(0, "linePrice")
	require.NoError(t, err)
	assert.Equal(t, StateOverride, st)

	s.Flush()
	patches := fake.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, "row-a", patches[0].ID)
	assert.Equal(t, value.Number(55), patches[0].Changes["linePrice"])
	assert.Equal(t, value.Bool(true), patches[0].Changes[OverrideKey("linePrice")])

	// Reverting restores the live formula result, not a cached copy of it.
	require.NoError(t, s.ResetOverride(0, "linePrice"))
	assert.Equal(t, value.Number(20), mustCell(t, s, 0, "linePrice"))
	st, err = s.CellState(0, "linePrice")
	require.NoError(t, err)
	assert.Equal(t, StateFormula, st)

	s.Flush()
	patches = fake.Patches()
	require.Len(t, patches, 2)
	assert.True(t, patches[1].Changes["linePrice"].IsNull())
	assert.True(t, patches[1].Changes[OverrideKey("linePrice")].IsNull())

	// Editing an input now moves the display value again.
	require.NoError(t, s.SetCell(0, "qty", value.Number(3)))
	assert.Equal(t, value.Number(30), mustCell(t, s, 0, "linePrice"))
}

func TestSetCellEmptyClearsOverride(t *testing.T) {
	s, fake := openTestSession(t, nil)

	require.NoError(t, s.SetCell(1, "linePrice", value.Null()))
	assert.Equal(t, value.Number(15), mustCell(t, s, 1, "linePrice"), "back to the formula")

	s.Flush()
	patches := fake.Patches()
	require.Len(t, patches, 1)
	assert.True(t, patches[0].Changes["linePrice"].IsNull())
	assert.True(t, patches[0].Changes[OverrideKey("linePrice")].IsNull())
}

func TestSetCellNoChangeNoPatch(t *testing.T) {
	s, fake := openTestSession(t, nil)

	require.NoError(t, s.SetCell(0, "qty", value.Number(2)))
	s.Flush()
	assert.Empty(t, fake.Patches(), "writing the current value queues nothing")
}

func TestDebounceCoalescing(t *testing.T) {
	s, fake := openTestSession(t, nil)

	require.NoError(t, s.SetCell(0, "qty", value.Number(7)))
	require.NoError(t, s.SetCell(0, "unitPrice", value.Number(8)))
	require.NoError(t, s.SetCell(0, "qty", value.Number(9)))

	require.Eventually(t, func() bool {
		return len(fake.Patches()) == 1
	}, 2*time.Second, 5*time.Millisecond, "rapid edits coalesce into one patch")
	// The window has elapsed; nothing else may arrive.
	time.Sleep(75 * time.Millisecond)

	patches := fake.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, "row-a", patches[0].ID)
	assert.Equal(t, map[string]value.Value{
		"qty":       value.Number(9),
		"unitPrice": value.Number(8),
	}, patches[0].Changes, "last write per column wins")
}

func TestDebouncePerRowIndependence(t *testing.T) {
	s, fake := openTestSession(t, nil)

	require.NoError(t, s.SetCell(0, "qty", value.Number(7)))
	require.NoError(t, s.SetCell(1, "qty", value.Number(8)))
	s.Flush()

	patches := fake.Patches()
	require.Len(t, patches, 2, "each row flushes its own patch")
	ids := map[string]bool{patches[0].ID: true, patches[1].ID: true}
	assert.True(t, ids["row-a"] && ids["row-b"])
}

func TestCopy(t *testing.T) {
	s, _ := openTestSession(t, nil)

	sel := NewSelection(CellAddr{Row: 0, Col: "doorRef"}).Extend(CellAddr{Row: 1, Col: "unitPrice"})
	text, err := s.Copy(EditingContext{Selection: &sel})
	require.NoError(t, err)
	assert.Equal(t, "D-101\t2\t10\n\t5\t3", text, "null serializes as empty")

	// Formula columns copy their display values.
	sel = NewSelection(CellAddr{Row: 0, Col: "linePrice"}).Extend(CellAddr{Row: 1, Col: "linePrice"})
	text, err = s.Copy(EditingContext{Selection: &sel})
	require.NoError(t, err)
	assert.Equal(t, "20\n99", text)

	// No selection: the active cell alone.
	text, err = s.Copy(EditingContext{Active: CellAddr{Row: 1, Col: "qty"}})
	require.NoError(t, err)
	assert.Equal(t, "5", text)
}

func TestPasteNumericCoercion(t *testing.T) {
	s, fake := openTestSession(t, nil)

	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "qty"}}
	require.NoError(t, s.Paste(context.Background(), ectx, "42\t9.5"))
	assert.Equal(t, value.Number(42), mustCell(t, s, 0, "qty"))
	assert.Equal(t, value.Number(9.5), mustCell(t, s, 0, "unitPrice"))

	ectx = EditingContext{Active: CellAddr{Row: 0, Col: "doorRef"}}
	require.NoError(t, s.Paste(context.Background(), ectx, "42a"))
	assert.Equal(t, value.String("42a"), mustCell(t, s, 0, "doorRef"), "non-numeric text stays a string")

	bulks := fake.BulkPatches()
	require.Len(t, bulks, 2)
	assert.Equal(t, value.Number(42), bulks[0][0].Changes["qty"])
	assert.Equal(t, value.String("42a"), bulks[1][0].Changes["doorRef"])
}

func TestPasteIdempotence(t *testing.T) {
	s, fake := openTestSession(t, nil)

	sel := NewSelection(CellAddr{Row: 0, Col: "doorRef"}).Extend(CellAddr{Row: 1, Col: "fireRating"})
	text, err := s.Copy(EditingContext{Selection: &sel})
	require.NoError(t, err)

	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "doorRef"}}
	require.NoError(t, s.Paste(context.Background(), ectx, text))
	assert.Empty(t, fake.BulkPatches(), "pasting unchanged data issues no writes")
	s.Flush()
	assert.Empty(t, fake.Patches())
}

func TestPasteRowExpansion(t *testing.T) {
	s, fake := openTestSession(t, nil)
	require.Equal(t, 2, s.RowCount())

	// A five-line block pasted at the top needs three rows the grid does not
	// have yet.
	block := "1\t10\n2\t20\n3\t30\n4\t40\n5\t50"
	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "qty"}}
	require.NoError(t, s.Paste(context.Background(), ectx, block))

	assert.Equal(t, 5, s.RowCount())
	assert.Equal(t, value.Number(4), mustCell(t, s, 3, "qty"))
	assert.Equal(t, value.Number(50), mustCell(t, s, 4, "unitPrice"))
	assert.Equal(t, value.Number(250), mustCell(t, s, 4, "linePrice"), "formulas work on created rows")

	id, err := s.RowID(4)
	require.NoError(t, err)
	assert.Equal(t, "row-3", id, "exactly three rows created")

	bulks := fake.BulkPatches()
	require.Len(t, bulks, 1)
	assert.Len(t, bulks[0], 5, "all five rows changed in one batch")
}

func TestPasteExpansionCap(t *testing.T) {
	s, fake := openTestSession(t, func(o *Options) {
		o.Settings.MaxAutoExpandRows = 2
	})

	block := "1\n2\n3\n4\n5"
	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "qty"}}
	err := s.Paste(context.Background(), ectx, block)
	assert.ErrorIs(t, err, ErrTooManyRows)
	assert.Equal(t, 2, s.RowCount())
	assert.Empty(t, fake.BulkPatches())
}

func TestPasteSkipsNonWritableColumns(t *testing.T) {
	s, fake := openTestSession(t, nil)

	// Block spans linePrice (override allowed), coreThickness (formula, no
	// override), and importRef (read-only).
	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "linePrice"}}
	require.NoError(t, s.Paste(context.Background(), ectx, "50\t60\t70"))

	assert.Equal(t, value.Number(50), mustCell(t, s, 0, "linePrice"))
	assert.Equal(t, value.Number(44), mustCell(t, s, 0, "coreThickness"), "pure formula column untouched")
	assert.True(t, mustCell(t, s, 0, "importRef").IsNull(), "read-only column untouched")

	bulks := fake.BulkPatches()
	require.Len(t, bulks, 1)
	changes := bulks[0][0].Changes
	assert.NotContains(t, changes, "coreThickness")
	assert.NotContains(t, changes, "importRef")
	assert.Equal(t, value.Bool(true), changes[OverrideKey("linePrice")])
}

func TestPasteConfirmDeclined(t *testing.T) {
	asked := 0
	s, fake := openTestSession(t, func(o *Options) {
		o.ConfirmOverwrite = func(cells int) bool {
			asked++
			assert.Equal(t, 2, cells)
			return false
		}
	})

	// Two rows of fireRating + linePrice: declining drops only the linePrice
	// cells, the dropdown-column cells still land.
	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "fireRating"}}
	require.NoError(t, s.Paste(context.Background(), ectx, "FD60\t777\nFD30\t888"))

	assert.Equal(t, 1, asked, "one confirmation per paste")
	assert.Equal(t, value.String("FD60"), mustCell(t, s, 0, "fireRating"))
	assert.Equal(t, value.String("FD30"), mustCell(t, s, 1, "fireRating"))
	assert.Equal(t, value.Number(20), mustCell(t, s, 0, "linePrice"), "formula, not 777")
	assert.Equal(t, value.Number(99), mustCell(t, s, 1, "linePrice"), "existing override untouched")

	bulks := fake.BulkPatches()
	require.Len(t, bulks, 1)
	for _, u := range bulks[0] {
		assert.NotContains(t, u.Changes, "linePrice")
	}
}

func TestPasteConfirmAccepted(t *testing.T) {
	s, _ := openTestSession(t, func(o *Options) {
		o.ConfirmOverwrite = func(int) bool { return true }
	})

	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "linePrice"}}
	require.NoError(t, s.Paste(context.Background(), ectx, "123"))
	assert.Equal(t, value.Number(123), mustCell(t, s, 0, "linePrice"))
	st, err := s.CellState(0, "linePrice")
	require.NoError(t, err)
	assert.Equal(t, StateOverride, st)
}

func TestPasteRowCreationFailureAborts(t *testing.T) {
	s, fake := openTestSession(t, nil)
	fake.FailBulkCreate = errors.New("backend down")

	ectx := EditingContext{Active: CellAddr{Row: 0, Col: "qty"}}
	err := s.Paste(context.Background(), ectx, "1\n2\n3\n4")
	require.Error(t, err)

	assert.Equal(t, 2, s.RowCount(), "no partial expansion")
	assert.Empty(t, fake.BulkPatches(), "no cell written before creation succeeded")
	assert.Equal(t, value.Number(2), mustCell(t, s, 0, "qty"), "existing rows untouched")
}

func TestFillDown(t *testing.T) {
	s, fake := openTestSession(t, nil)
	require.NoError(t, s.AddRows(context.Background(), 1))
	require.Equal(t, 3, s.RowCount())

	sel := NewSelection(CellAddr{Row: 0, Col: "qty"}).Extend(CellAddr{Row: 2, Col: "fireRating"})
	require.NoError(t, s.FillDown(context.Background(), sel))

	for i := 1; i < 3; i++ {
		assert.Equal(t, value.Number(2), mustCell(t, s, i, "qty"), "row %d", i)
		assert.Equal(t, value.Number(10), mustCell(t, s, i, "unitPrice"), "row %d", i)
		assert.Equal(t, value.String("FD30"), mustCell(t, s, i, "fireRating"), "row %d", i)
	}

	bulks := fake.BulkPatches()
	require.Len(t, bulks, 1)
	assert.Len(t, bulks[0], 2, "one batch covering the two changed rows")
}

func TestFillDownSkipsNonWritable(t *testing.T) {
	s, fake := openTestSession(t, nil)

	sel := NewSelection(CellAddr{Row: 0, Col: "coreThickness"}).Extend(CellAddr{Row: 1, Col: "coreThickness"})
	require.NoError(t, s.FillDown(context.Background(), sel))
	assert.Empty(t, fake.BulkPatches())
	assert.Equal(t, value.Number(54), mustCell(t, s, 1, "coreThickness"), "still the row's own lookup")
}

func TestDeleteRows(t *testing.T) {
	s, fake := openTestSession(t, nil)

	require.NoError(t, s.DeleteRows(context.Background(), []string{"row-b"}))
	assert.Equal(t, 1, s.RowCount())
	id, err := s.RowID(0)
	require.NoError(t, err)
	assert.Equal(t, "row-a", id)

	deletes := fake.Deletes()
	require.Len(t, deletes, 1)
	assert.Equal(t, []string{"row-b"}, deletes[0])
}

func TestSaveFailureSurfacesToSink(t *testing.T) {
	var mu sync.Mutex
	var ops []string
	s, fake := openTestSession(t, func(o *Options) {
		o.OnError = func(op string, err error) {
			mu.Lock()
			defer mu.Unlock()
			ops = append(ops, op)
		}
	})
	fake.FailPatch = errors.New("500")

	require.NoError(t, s.SetCell(0, "qty", value.Number(9)))
	s.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"save"}, ops)
	assert.Equal(t, value.Number(9), mustCell(t, s, 0, "qty"), "optimistic edit stays")
}

func TestCloseDropsPending(t *testing.T) {
	s, fake := openTestSession(t, nil)

	require.NoError(t, s.SetCell(0, "qty", value.Number(9)))
	s.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fake.Patches(), "a dismissed grid does not keep writing")
}
