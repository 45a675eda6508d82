package grid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/gridx/internal/backend"
	"github.com/oakwood-commons/gridx/internal/column"
	"github.com/oakwood-commons/gridx/internal/config"
	"github.com/oakwood-commons/gridx/internal/formula"
	"github.com/oakwood-commons/gridx/internal/lookup"
	"github.com/oakwood-commons/gridx/internal/persist"
	"github.com/oakwood-commons/gridx/internal/value"
	"github.com/oakwood-commons/gridx/pkg/logger"
)

var (
	// ErrNotEditable rejects direct writes to non-writable columns,
	// including formula columns without override permission.
	ErrNotEditable = errors.New("column is not editable")
	// ErrRowOutOfRange rejects cell addresses beyond the current row set.
	ErrRowOutOfRange = errors.New("row index out of range")
	// ErrUnknownColumn rejects cell addresses with unregistered keys.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrTooManyRows rejects pastes that would auto-expand past the cap.
	ErrTooManyRows = errors.New("paste exceeds row expansion limit")
)

// Options configure a grid session.
type Options struct {
	Client   backend.Client
	ImportID string

	// Registry and Lookups may be nil, in which case Open fetches field
	// configs and lookup tables from the backend.
	Registry *column.Registry
	Lookups  *lookup.Set

	// Settings falls back to config.Default() when zero.
	Settings config.Settings

	Logger *logr.Logger

	// OnError receives persistence failures for the UI's error banner.
	OnError persist.ErrorSink

	// ConfirmOverwrite is asked once per paste that touches formula columns
	// with override permission; cells is how many such cells the paste
	// would overwrite. Declining drops only those cells. Nil accepts.
	ConfirmOverwrite func(cells int) bool
}

// Session is the editing-state engine for one import's grid: hydrated rows,
// formula evaluation on display reads, override tracking, clipboard
// operations, and coalesced persistence. All methods are safe for the
// UI's concurrent timers and callbacks; shared row state is guarded and
// the row slice is copy-on-write so diffs against previous snapshots stay
// valid.
type Session struct {
	importID string
	reg      *column.Registry
	lookups  *lookup.Set
	eval     *formula.Evaluator
	coord    *persist.Coordinator
	life     *persist.Lifecycle
	settings config.Settings
	client   backend.Client
	log      *logr.Logger
	confirm  func(int) bool

	mu   sync.Mutex
	rows []*Row
}

// Open fetches whatever Options leaves nil (field configs, lookup tables),
// loads and hydrates the import's line items, and starts the persistence
// coordinator.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("open grid session: nil backend client")
	}
	if opts.ImportID == "" {
		return nil, fmt.Errorf("open grid session: empty import id")
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetNoopLogger()
	}
	settings := opts.Settings
	if settings.DebounceWindow == 0 {
		settings = config.Default()
	}

	reg := opts.Registry
	if reg == nil {
		fields, err := opts.Client.FetchFieldConfigs(ctx)
		if err != nil {
			return nil, fmt.Errorf("open grid session: %w", err)
		}
		reg, err = RegistryFromConfigs(fields)
		if err != nil {
			return nil, fmt.Errorf("open grid session: %w", err)
		}
	}

	lookups := opts.Lookups
	if lookups == nil {
		records, err := opts.Client.FetchLookupTables(ctx)
		if err != nil {
			return nil, fmt.Errorf("open grid session: %w", err)
		}
		lookups, err = SetFromRecords(records)
		if err != nil {
			return nil, fmt.Errorf("open grid session: %w", err)
		}
	}

	items, err := opts.Client.FetchLineItems(ctx, opts.ImportID)
	if err != nil {
		return nil, fmt.Errorf("open grid session: %w", err)
	}
	rows := make([]*Row, len(items))
	for i, rec := range items {
		rows[i] = Hydrate(rec, reg)
	}

	confirm := opts.ConfirmOverwrite
	if confirm == nil {
		confirm = func(int) bool { return true }
	}

	s := &Session{
		importID: opts.ImportID,
		reg:      reg,
		lookups:  lookups,
		eval:     formula.NewEvaluator(lookups, log),
		coord:    persist.NewCoordinator(opts.Client, settings.DebounceWindow, settings.RequestTimeout, opts.OnError, log),
		life:     persist.NewLifecycle(opts.Client, opts.ImportID, log),
		settings: settings,
		client:   opts.Client,
		log:      log,
		confirm:  confirm,
		rows:     rows,
	}
	log.V(1).Info("grid session opened", "import", opts.ImportID, "rows", len(rows), "columns", reg.Len())
	return s, nil
}

// RegistryFromConfigs converts backend field-config records into a column
// registry.
func RegistryFromConfigs(fields []backend.FieldConfig) (*column.Registry, error) {
	defs := make([]column.Definition, 0, len(fields))
	for _, f := range fields {
		defs = append(defs, column.Definition{
			Key:           f.Key,
			Label:         f.Label,
			Kind:          column.Kind(f.Kind),
			Editable:      f.Editable,
			Required:      f.Required,
			Formula:       f.Formula,
			AllowOverride: f.AllowOverride,
			LookupTable:   f.LookupTable,
			Default:       value.FromAny(f.Default),
			Aliases:       f.Aliases,
		})
	}
	return column.NewRegistry(defs)
}

// SetFromRecords converts backend lookup-table records into a lookup set.
func SetFromRecords(records []backend.TableRecord) (*lookup.Set, error) {
	tables := make([]lookup.Table, 0, len(records))
	for _, rec := range records {
		t := lookup.Table{Name: rec.Name, Columns: rec.Columns}
		for _, raw := range rec.Rows {
			row := make(lookup.Row, len(raw))
			for k, v := range raw {
				row[k] = value.FromAny(v)
			}
			t.Rows = append(t.Rows, row)
		}
		tables = append(tables, t)
	}
	return lookup.NewSet(tables)
}

// Registry returns the session's column registry.
func (s *Session) Registry() *column.Registry {
	return s.reg
}

// RowCount returns the current number of rows.
func (s *Session) RowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// RowID returns the backend id of the row at index.
func (s *Session) RowID(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.rows) {
		return "", ErrRowOutOfRange
	}
	return s.rows[index].ID, nil
}

// row returns the live row pointer for an index under the lock.
func (s *Session) row(index int) (*Row, error) {
	if index < 0 || index >= len(s.rows) {
		return nil, ErrRowOutOfRange
	}
	return s.rows[index], nil
}

// CellValue is the display read: stored value for plain and dropdown
// columns and for overridden formula cells, the live formula result for
// everything calculated. Formula results are recomputed on every read.
func (s *Session) CellValue(rowIndex int, key string) (value.Value, error) {
	s.mu.Lock()
	r, err := s.row(rowIndex)
	if err != nil {
		s.mu.Unlock()
		return value.Null(), err
	}
	def, ok := s.reg.Get(key)
	if !ok {
		s.mu.Unlock()
		return value.Null(), ErrUnknownColumn
	}
	stored := r.Value(key)
	overridden := r.Overridden(key)
	fields := r.Fields()
	s.mu.Unlock()

	if def.Kind == column.Formula && !overridden {
		return s.eval.Evaluate(def.Formula, fields), nil
	}
	return stored, nil
}

// CellState returns Formula or Override for the cell. Non-formula columns
// always report StateFormula's zero value; only allowOverride columns carry
// meaningful state.
func (s *Session) CellState(rowIndex int, key string) (CellState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(rowIndex)
	if err != nil {
		return StateFormula, err
	}
	return r.State(key), nil
}

// SetCell applies one direct cell edit: gating, override transitions, and a
// debounced save of whatever actually changed. The local edit is optimistic;
// a later save failure surfaces through OnError without reverting it.
func (s *Session) SetCell(rowIndex int, key string, v value.Value) error {
	if !s.reg.Has(key) {
		return ErrUnknownColumn
	}
	if !s.reg.CanWrite(key) {
		return ErrNotEditable
	}

	s.mu.Lock()
	r, err := s.row(rowIndex)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next := r.Clone()
	changes := make(map[string]value.Value)
	s.applyCellWrite(next, key, v, changes)
	if len(changes) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.replaceRowLocked(rowIndex, next)
	s.mu.Unlock()

	s.coord.QueueRowChanges(next.ID, changes)
	return nil
}

// ResetOverride reverts an overridden formula cell to its live formula
// result: the flag and the stored manual value both clear.
func (s *Session) ResetOverride(rowIndex int, key string) error {
	if !s.reg.IsOverrideWrite(key) {
		return ErrNotEditable
	}
	s.mu.Lock()
	r, err := s.row(rowIndex)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !r.Overridden(key) {
		s.mu.Unlock()
		return nil
	}
	next := r.Clone()
	next.setCell(key, value.Null())
	next.setOverride(key, false)
	s.replaceRowLocked(rowIndex, next)
	s.mu.Unlock()

	s.coord.QueueRowChanges(next.ID, map[string]value.Value{
		key:              value.Null(),
		OverrideKey(key): value.Null(),
	})
	return nil
}

// applyCellWrite performs the override state machine on a cloned row and
// accumulates the resulting backend changes, including the override flag
// co-update. Writing empty to an override column clears the override.
func (s *Session) applyCellWrite(row *Row, key string, v value.Value, changes map[string]value.Value) {
	if s.reg.IsOverrideWrite(key) {
		if v.IsEmpty() {
			if row.setCell(key, value.Null()) {
				changes[key] = value.Null()
			}
			if row.setOverride(key, false) {
				changes[OverrideKey(key)] = value.Null()
			}
			return
		}
		if row.setCell(key, v) {
			changes[key] = v
		}
		if row.setOverride(key, true) {
			changes[OverrideKey(key)] = value.Bool(true)
		}
		return
	}
	if row.setCell(key, v) {
		changes[key] = v
	}
}

// replaceRowLocked swaps one row in a fresh slice. Copy-on-write keeps
// previously handed-out snapshots intact for diffing.
func (s *Session) replaceRowLocked(index int, next *Row) {
	rows := make([]*Row, len(s.rows))
	copy(rows, s.rows)
	rows[index] = next
	s.rows = rows
}

// Copy serializes the selection (or the active cell) into the clipboard
// text block: display values, tab-separated, row-major.
func (s *Session) Copy(ectx EditingContext) (string, error) {
	sel := ectx.Selection
	if sel == nil {
		single := NewSelection(ectx.Active)
		sel = &single
	}
	rect, ok := sel.Normalize(s.reg)
	if !ok {
		return "", ErrUnknownColumn
	}
	s.mu.Lock()
	last := len(s.rows) - 1
	s.mu.Unlock()
	if rect.StartRow > last {
		return "", ErrRowOutOfRange
	}
	endRow := min(rect.EndRow, last)

	block := make([][]value.Value, 0, endRow-rect.StartRow+1)
	for i := rect.StartRow; i <= endRow; i++ {
		line := make([]value.Value, 0, rect.EndCol-rect.StartCol+1)
		for c := rect.StartCol; c <= rect.EndCol; c++ {
			key, _ := s.reg.KeyAt(c)
			v, err := s.CellValue(i, key)
			if err != nil {
				return "", err
			}
			line = append(line, v)
		}
		block = append(block, line)
	}
	return serializeBlock(block), nil
}

// Paste applies a clipboard block starting at the editing context's paste
// origin. Row shortfall is created first and is a hard prerequisite: if
// creation fails the paste aborts before any cell is written. Non-writable
// columns are skipped; formula columns with override permission count as
// override writes and are confirmed once for the whole paste. The batch
// excludes rows where nothing actually changed, so re-pasting identical
// data produces no outgoing patches.
func (s *Session) Paste(ctx context.Context, ectx EditingContext, text string) error {
	block := parseBlock(text)
	if len(block) == 0 {
		return nil
	}
	origin := ectx.PasteOrigin()
	originCol, ok := s.reg.Index(origin.Col)
	if !ok {
		return ErrUnknownColumn
	}
	if origin.Row < 0 {
		return ErrRowOutOfRange
	}

	if err := s.ensureRows(ctx, origin.Row+len(block)); err != nil {
		return err
	}

	// Plan writes against the expanded row set.
	var writes []cellWrite
	overrideCells := 0
	for i, line := range block {
		for j, text := range line {
			key, ok := s.reg.KeyAt(originCol + j)
			if !ok {
				continue // block wider than the grid
			}
			if !s.reg.CanWrite(key) {
				continue
			}
			w := cellWrite{
				rowIndex:   origin.Row + i,
				key:        key,
				val:        value.Coerce(text),
				isOverride: s.reg.IsOverrideWrite(key),
			}
			if w.isOverride {
				overrideCells++
			}
			writes = append(writes, w)
		}
	}

	if overrideCells > 0 && !s.confirm(overrideCells) {
		// Declined: keep the paste, drop only the formula-column cells.
		kept := writes[:0]
		for _, w := range writes {
			if !w.isOverride {
				kept = append(kept, w)
			}
		}
		writes = kept
	}

	updates := s.applyWrites(writes)
	return s.coord.SaveBatch(ctx, updates)
}

// FillDown copies the top row's display value in each selected writable
// column down through the rest of the selection, as one batch save.
func (s *Session) FillDown(ctx context.Context, sel Selection) error {
	rect, ok := sel.Normalize(s.reg)
	if !ok {
		return ErrUnknownColumn
	}
	s.mu.Lock()
	last := len(s.rows) - 1
	s.mu.Unlock()
	if rect.StartRow < 0 || rect.StartRow > last {
		return ErrRowOutOfRange
	}
	endRow := min(rect.EndRow, last)
	if endRow <= rect.StartRow {
		return nil // nothing below the top row
	}

	var writes []cellWrite
	for c := rect.StartCol; c <= rect.EndCol; c++ {
		key, _ := s.reg.KeyAt(c)
		if !s.reg.CanWrite(key) {
			continue
		}
		top, err := s.CellValue(rect.StartRow, key)
		if err != nil {
			return err
		}
		isOverride := s.reg.IsOverrideWrite(key)
		for i := rect.StartRow + 1; i <= endRow; i++ {
			writes = append(writes, cellWrite{rowIndex: i, key: key, val: top, isOverride: isOverride})
		}
	}

	updates := s.applyWrites(writes)
	return s.coord.SaveBatch(ctx, updates)
}

// applyWrites applies planned writes copy-on-write and returns the batch
// updates for rows that actually changed.
func (s *Session) applyWrites(writes []cellWrite) []backend.RowUpdate {
	if len(writes) == 0 {
		return nil
	}
	byRow := make(map[int][]cellWrite)
	for _, w := range writes {
		byRow[w.rowIndex] = append(byRow[w.rowIndex], w)
	}
	indexes := make([]int, 0, len(byRow))
	for i := range byRow {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	s.mu.Lock()
	defer s.mu.Unlock()

	var updates []backend.RowUpdate
	rows := make([]*Row, len(s.rows))
	copy(rows, s.rows)
	for _, i := range indexes {
		if i < 0 || i >= len(rows) {
			continue
		}
		next := rows[i].Clone()
		changes := make(map[string]value.Value)
		for _, w := range byRow[i] {
			s.applyCellWrite(next, w.key, w.val, changes)
		}
		if len(changes) == 0 {
			continue
		}
		rows[i] = next
		updates = append(updates, backend.RowUpdate{ID: next.ID, Changes: changes})
	}
	s.rows = rows
	return updates
}

// ensureRows grows the row set to at least minCount via the lifecycle
// manager, hydrating and appending created rows in backend order. Creation
// failure aborts the caller's operation before any cell write.
func (s *Session) ensureRows(ctx context.Context, minCount int) error {
	s.mu.Lock()
	current := len(s.rows)
	s.mu.Unlock()
	shortfall := minCount - current
	if shortfall <= 0 {
		return nil
	}
	if shortfall > s.settings.MaxAutoExpandRows {
		return fmt.Errorf("%w: need %d new rows, cap is %d", ErrTooManyRows, shortfall, s.settings.MaxAutoExpandRows)
	}
	created, err := s.life.EnsureRowCount(ctx, current, minCount)
	if err != nil {
		s.log.Error(err, "row expansion failed", "import", s.importID, "needed", shortfall)
		return err
	}
	hydrated := make([]*Row, len(created))
	for i, rec := range created {
		hydrated[i] = Hydrate(rec, s.reg)
	}
	s.mu.Lock()
	rows := make([]*Row, 0, len(s.rows)+len(hydrated))
	rows = append(rows, s.rows...)
	rows = append(rows, hydrated...)
	s.rows = rows
	s.mu.Unlock()
	return nil
}

// AddRows appends count empty rows to the import.
func (s *Session) AddRows(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	s.mu.Lock()
	current := len(s.rows)
	s.mu.Unlock()
	return s.ensureRows(ctx, current+count)
}

// DeleteRows removes the identified rows remotely, then locally. The caller
// clears any selection referencing them.
func (s *Session) DeleteRows(ctx context.Context, ids []string) error {
	if err := s.life.BulkDelete(ctx, ids); err != nil {
		s.log.Error(err, "row deletion failed", "import", s.importID)
		return err
	}
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	s.mu.Lock()
	rows := make([]*Row, 0, len(s.rows))
	for _, r := range s.rows {
		if !doomed[r.ID] {
			rows = append(rows, r)
		}
	}
	s.rows = rows
	s.mu.Unlock()
	return nil
}

// Flush forces out every pending debounced patch.
func (s *Session) Flush() {
	s.coord.Flush()
}

// Close tears the session down: pending timers stop and un-flushed patches
// are dropped, matching the UI contract that a dismissed grid does not keep
// writing.
func (s *Session) Close() {
	s.coord.Close()
	s.log.V(1).Info("grid session closed", "import", s.importID)
}
