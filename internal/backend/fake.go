package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/oakwood-commons/gridx/internal/value"
)

// Fake is an in-memory Client used by tests and offline tooling. It records
// every mutating call so tests can assert on coalescing and batching
// behavior, and can be told to fail specific operations.
type Fake struct {
	mu sync.Mutex

	rows    map[string][]RowRecord // importID -> rows
	fields  []FieldConfig
	tables  []TableRecord
	nextID  int
	patches []RowUpdate   // every PatchRow recorded as a single-row update
	bulks   [][]RowUpdate // every PatchBulk payload
	deletes [][]string

	// FailPatch, FailBulkCreate, and FailBulkDelete make the matching call
	// return this error when set.
	FailPatch      error
	FailBulkCreate error
	FailBulkDelete error
}

// NewFake returns an empty fake backend.
func NewFake() *Fake {
	return &Fake{rows: make(map[string][]RowRecord)}
}

var _ Client = (*Fake)(nil)

// SeedImport installs rows for an import id.
func (f *Fake) SeedImport(importID string, rows []RowRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[importID] = append([]RowRecord(nil), rows...)
}

// SeedFieldConfigs installs the field-config records.
func (f *Fake) SeedFieldConfigs(fields []FieldConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = append([]FieldConfig(nil), fields...)
}

// SeedLookupTables installs the lookup-table records.
func (f *Fake) SeedLookupTables(tables []TableRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables = append([]TableRecord(nil), tables...)
}

// Patches returns every single-row patch recorded so far.
func (f *Fake) Patches() []RowUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RowUpdate(nil), f.patches...)
}

// BulkPatches returns every bulk patch payload recorded so far.
func (f *Fake) BulkPatches() [][]RowUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]RowUpdate, len(f.bulks))
	for i, b := range f.bulks {
		out[i] = append([]RowUpdate(nil), b...)
	}
	return out
}

// Deletes returns every bulk-delete id set recorded so far.
func (f *Fake) Deletes() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.deletes))
	for i, d := range f.deletes {
		out[i] = append([]string(nil), d...)
	}
	return out
}

func (f *Fake) FetchLineItems(ctx context.Context, importID string) ([]RowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RowRecord(nil), f.rows[importID]...), nil
}

func (f *Fake) PatchRow(ctx context.Context, rowID string, changes map[string]value.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPatch != nil {
		return f.FailPatch
	}
	f.patches = append(f.patches, RowUpdate{ID: rowID, Changes: cloneChanges(changes)})
	f.applyLocked(rowID, changes)
	return nil
}

func (f *Fake) PatchBulk(ctx context.Context, updates []RowUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPatch != nil {
		return f.FailPatch
	}
	recorded := make([]RowUpdate, len(updates))
	for i, u := range updates {
		recorded[i] = RowUpdate{ID: u.ID, Changes: cloneChanges(u.Changes)}
		f.applyLocked(u.ID, u.Changes)
	}
	f.bulks = append(f.bulks, recorded)
	return nil
}

func (f *Fake) BulkCreate(ctx context.Context, importID string, count int) ([]RowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBulkCreate != nil {
		return nil, f.FailBulkCreate
	}
	created := make([]RowRecord, 0, count)
	for i := 0; i < count; i++ {
		f.nextID++
		created = append(created, RowRecord{
			ID:     fmt.Sprintf("row-%d", f.nextID),
			Values: map[string]value.Value{},
		})
	}
	f.rows[importID] = append(f.rows[importID], created...)
	return append([]RowRecord(nil), created...), nil
}

func (f *Fake) BulkDelete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBulkDelete != nil {
		return f.FailBulkDelete
	}
	f.deletes = append(f.deletes, append([]string(nil), ids...))
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	for importID, rows := range f.rows {
		kept := rows[:0]
		for _, r := range rows {
			if !doomed[r.ID] {
				kept = append(kept, r)
			}
		}
		f.rows[importID] = kept
	}
	return nil
}

func (f *Fake) FetchFieldConfigs(ctx context.Context) ([]FieldConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FieldConfig(nil), f.fields...), nil
}

func (f *Fake) SaveFieldConfig(ctx context.Context, cfg FieldConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.fields {
		if existing.Key == cfg.Key {
			f.fields[i] = cfg
			return nil
		}
	}
	f.fields = append(f.fields, cfg)
	return nil
}

func (f *Fake) FetchLookupTables(ctx context.Context) ([]TableRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TableRecord(nil), f.tables...), nil
}

// applyLocked mirrors a patch onto the stored rows so reload-style tests see
// persisted state. Override keys land in GridMeta; null clears.
func (f *Fake) applyLocked(rowID string, changes map[string]value.Value) {
	for _, rows := range f.rows {
		for i := range rows {
			if rows[i].ID != rowID {
				continue
			}
			if rows[i].Values == nil {
				rows[i].Values = map[string]value.Value{}
			}
			for k, v := range changes {
				if meta, ok := overrideMetaKey(k); ok {
					if rows[i].GridMeta == nil {
						rows[i].GridMeta = map[string]bool{}
					}
					if v.IsNull() {
						delete(rows[i].GridMeta, meta)
					} else {
						rows[i].GridMeta[meta] = true
					}
					continue
				}
				rows[i].Values[k] = v
			}
			return
		}
	}
}

// overrideMetaKey reports whether a change key is an override side-channel
// key, returning it unchanged for GridMeta storage.
func overrideMetaKey(key string) (string, bool) {
	const prefix = "override:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key, true
	}
	return "", false
}

func cloneChanges(changes map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(changes))
	for k, v := range changes {
		out[k] = v
	}
	return out
}
