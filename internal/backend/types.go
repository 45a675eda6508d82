// Package backend defines the engine's view of the quoting platform's API:
// the line-item, field-config, and lookup-table endpoints of one import, a
// concrete HTTP client, and an in-memory fake for tests and offline use.
package backend

import (
	"context"
	"fmt"

	"github.com/oakwood-commons/gridx/internal/value"
)

// RowRecord is a line item as the backend stores it: an id, the cell values,
// the override side-channel, and the raw import data the row was created
// from (used as a fallback during hydration).
type RowRecord struct {
	ID       string                 `json:"id"`
	Values   map[string]value.Value `json:"values"`
	GridMeta map[string]bool        `json:"gridMeta,omitempty"`
	RawData  map[string]value.Value `json:"rawData,omitempty"`
}

// RowUpdate is one row's changes inside a bulk patch. Changes use the same
// key space as RowRecord.Values plus the override: side-channel keys; a null
// value clears the key.
type RowUpdate struct {
	ID      string                 `json:"id"`
	Changes map[string]value.Value `json:"changes"`
}

// FieldConfig is the per-column configuration record.
type FieldConfig struct {
	Key           string   `json:"key"`
	Label         string   `json:"label"`
	Kind          string   `json:"kind"`
	Editable      bool     `json:"editable"`
	Required      bool     `json:"required"`
	Formula       string   `json:"formula,omitempty"`
	AllowOverride bool     `json:"allowOverride,omitempty"`
	LookupTable   string   `json:"lookupTable,omitempty"`
	Default       any      `json:"default,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
}

// TableRecord is a lookup table as served by the backend.
type TableRecord struct {
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Client is the collaborator contract the engine persists through. Every
// call is context-bound; the engine never blocks on the backend outside one.
type Client interface {
	// FetchLineItems returns the ordered rows of an import.
	FetchLineItems(ctx context.Context, importID string) ([]RowRecord, error)
	// PatchRow applies one row's coalesced changes.
	PatchRow(ctx context.Context, rowID string, changes map[string]value.Value) error
	// PatchBulk applies a multi-row batch in one call.
	PatchBulk(ctx context.Context, updates []RowUpdate) error
	// BulkCreate appends count empty rows to the import and returns them.
	BulkCreate(ctx context.Context, importID string, count int) ([]RowRecord, error)
	// BulkDelete removes the identified rows.
	BulkDelete(ctx context.Context, ids []string) error
	// FetchFieldConfigs returns the column configuration records.
	FetchFieldConfigs(ctx context.Context) ([]FieldConfig, error)
	// SaveFieldConfig upserts one column configuration record.
	SaveFieldConfig(ctx context.Context, cfg FieldConfig) error
	// FetchLookupTables returns the reference tables.
	FetchLookupTables(ctx context.Context) ([]TableRecord, error)
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}
