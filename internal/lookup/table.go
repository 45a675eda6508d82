// Package lookup holds the reference tables behind dropdown columns and
// LOOKUP() formula calls, and resolves first-match queries against them.
// Tables are read-only from the engine's perspective; a separate
// configuration flow owns their contents.
package lookup

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/gridx/internal/value"
)

// activeKey is the per-row flag excluding a row from resolution when it is
// explicitly false. Absent means active.
const activeKey = "isActive"

// Row is one record of a reference table.
type Row map[string]value.Value

// Active reports whether the row participates in resolution. Only an
// explicit false excludes it.
func (r Row) Active() bool {
	v, ok := r[activeKey]
	if !ok || v.IsNull() {
		return true
	}
	switch v.Kind() {
	case value.KindBool:
		return v.Boolean()
	case value.KindString:
		return !strings.EqualFold(strings.TrimSpace(v.Str()), "false")
	case value.KindNumber:
		return v.Num() != 0
	}
	return true
}

// Table is a named reference dataset with an ordered column list and rows in
// stored order. Row order is significant: resolution is first-match.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Set is the collection of tables available to one grid session.
type Set struct {
	byName map[string]*Table
	order  []string
}

// NewSet builds a set from tables, rejecting duplicate names.
func NewSet(tables []Table) (*Set, error) {
	s := &Set{byName: make(map[string]*Table, len(tables))}
	for i := range tables {
		t := tables[i]
		if t.Name == "" {
			return nil, fmt.Errorf("lookup table %d: empty name", i)
		}
		if _, dup := s.byName[t.Name]; dup {
			return nil, fmt.Errorf("lookup table %q: duplicate name", t.Name)
		}
		s.byName[t.Name] = &t
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// EmptySet returns a set with no tables; every resolution misses.
func EmptySet() *Set {
	return &Set{byName: map[string]*Table{}}
}

// Get returns the named table.
func (s *Set) Get(name string) (*Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Names returns the table names in registration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// fileTable is the YAML shape of one reference table.
type fileTable struct {
	Name    string           `yaml:"name"`
	Columns []string         `yaml:"columns"`
	Rows    []map[string]any `yaml:"rows"`
}

type setFile struct {
	Tables []fileTable `yaml:"tables"`
}

// LoadYAML builds a set from a YAML document, the fixture-friendly mirror of
// the backend's lookup-table payload.
func LoadYAML(data []byte) (*Set, error) {
	var file setFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode lookup tables: %w", err)
	}
	tables := make([]Table, 0, len(file.Tables))
	for _, ft := range file.Tables {
		t := Table{Name: ft.Name, Columns: ft.Columns}
		for _, raw := range ft.Rows {
			row := make(Row, len(raw))
			for k, v := range raw {
				row[k] = value.FromAny(v)
			}
			t.Rows = append(t.Rows, row)
		}
		tables = append(tables, t)
	}
	return NewSet(tables)
}
