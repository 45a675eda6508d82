// Package column defines the immutable column registry for a grid session:
// per-column kind, behavior flags, formula text, lookup-table binding,
// aliases, and default values. The registry is resolved once per session and
// passed by reference to the engine; nothing in the editing path mutates it.
package column

import (
	"fmt"

	"github.com/oakwood-commons/gridx/internal/value"
)

// Kind is the semantic kind of a column.
type Kind string

const (
	// Plain columns store whatever the user types.
	Plain Kind = "plain"
	// Formula columns display a computed value unless overridden.
	Formula Kind = "formula"
	// Dropdown columns constrain input to values from a lookup table.
	Dropdown Kind = "dropdown"
)

// Definition describes one grid column.
type Definition struct {
	Key      string
	Label    string
	Kind     Kind
	Editable bool
	Required bool

	// Formula and AllowOverride apply to Kind == Formula.
	Formula       string
	AllowOverride bool

	// LookupTable names the reference table backing a Dropdown column.
	LookupTable string

	// Default is applied to empty non-calculated cells during hydration.
	Default value.Value

	// Aliases are alternate keys this column appears under in raw import
	// data.
	Aliases []string
}

// IsCalculated reports whether the column's display value is computed.
func (d Definition) IsCalculated() bool {
	return d.Kind == Formula
}

// Registry is the ordered, immutable set of column definitions for one grid.
// Definition order is the stable column ordering used for selection
// normalization and clipboard serialization.
type Registry struct {
	defs    []Definition
	byKey   map[string]int
	byAlias map[string]string
}

// NewRegistry validates the definitions and builds a registry. It rejects
// duplicate keys, aliases that shadow keys, and formula columns flagged
// editable without override permission (direct edits to those are rejected
// by contract, so the flag combination is a configuration bug).
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		defs:    make([]Definition, len(defs)),
		byKey:   make(map[string]int, len(defs)),
		byAlias: make(map[string]string),
	}
	copy(r.defs, defs)
	for i, d := range r.defs {
		if d.Key == "" {
			return nil, fmt.Errorf("column %d: empty key", i)
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("column %q: duplicate key", d.Key)
		}
		if d.Kind == "" {
			r.defs[i].Kind = Plain
		}
		switch r.defs[i].Kind {
		case Plain, Formula, Dropdown:
		default:
			return nil, fmt.Errorf("column %q: unknown kind %q", d.Key, d.Kind)
		}
		if r.defs[i].Kind == Formula && d.Editable && !d.AllowOverride {
			return nil, fmt.Errorf("column %q: formula column may be editable only with allowOverride", d.Key)
		}
		if r.defs[i].Kind == Dropdown && d.LookupTable == "" {
			return nil, fmt.Errorf("column %q: dropdown column needs a lookup table", d.Key)
		}
		r.byKey[d.Key] = i
	}
	// Aliases resolve after all keys are known so shadowing is detectable.
	for _, d := range r.defs {
		for _, a := range d.Aliases {
			if _, isKey := r.byKey[a]; isKey {
				return nil, fmt.Errorf("column %q: alias %q shadows a column key", d.Key, a)
			}
			if prev, dup := r.byAlias[a]; dup && prev != d.Key {
				return nil, fmt.Errorf("alias %q claimed by both %q and %q", a, prev, d.Key)
			}
			r.byAlias[a] = d.Key
		}
	}
	return r, nil
}

// Len returns the number of columns.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Get returns the definition for a key.
func (r *Registry) Get(key string) (Definition, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Has reports whether key names a registered column.
func (r *Registry) Has(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

// Keys returns the column keys in stable definition order. The returned
// slice is a copy.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.defs))
	for i, d := range r.defs {
		keys[i] = d.Key
	}
	return keys
}

// Definitions returns the definitions in stable order. The returned slice is
// a copy.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Index returns the position of key in the stable column order.
func (r *Registry) Index(key string) (int, bool) {
	i, ok := r.byKey[key]
	return i, ok
}

// KeyAt returns the column key at position i in the stable order.
func (r *Registry) KeyAt(i int) (string, bool) {
	if i < 0 || i >= len(r.defs) {
		return "", false
	}
	return r.defs[i].Key, true
}

// CanWrite reports whether a direct write to the column is accepted: plain
// and dropdown columns when editable, formula columns only with override
// permission.
func (r *Registry) CanWrite(key string) bool {
	d, ok := r.Get(key)
	if !ok {
		return false
	}
	if d.Kind == Formula {
		return d.AllowOverride
	}
	return d.Editable
}

// IsOverrideWrite reports whether a write to the column lands as a manual
// override of a formula value.
func (r *Registry) IsOverrideWrite(key string) bool {
	d, ok := r.Get(key)
	return ok && d.Kind == Formula && d.AllowOverride
}

// Resolve maps a raw-data key to its canonical column key, following
// aliases. Returns the empty string when the key matches nothing.
func (r *Registry) Resolve(raw string) string {
	if _, ok := r.byKey[raw]; ok {
		return raw
	}
	if key, ok := r.byAlias[raw]; ok {
		return key
	}
	return ""
}
