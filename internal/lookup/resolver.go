package lookup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oakwood-commons/gridx/internal/value"
)

// Fields supplies the current row's values for placeholder substitution.
type Fields map[string]value.Value

// fieldRef matches ${fieldName} placeholders inside condition values.
var fieldRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Clause is one key=value condition after placeholder substitution and
// unquoting.
type Clause struct {
	Key   string
	Value string
}

// ParseConditions splits an &-joined condition string into clauses. Values
// may be single- or double-quoted; quotes are stripped. Clauses without an
// '=' are rejected.
func ParseConditions(conditions string) ([]Clause, error) {
	trimmed := strings.TrimSpace(conditions)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "&")
	clauses := make([]Clause, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.Index(part, "=")
		if eq < 0 {
			return nil, fmt.Errorf("condition %q: missing '='", part)
		}
		key := strings.TrimSpace(part[:eq])
		if key == "" {
			return nil, fmt.Errorf("condition %q: empty key", part)
		}
		clauses = append(clauses, Clause{Key: key, Value: unquote(strings.TrimSpace(part[eq+1:]))})
	}
	return clauses, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// substituteFields replaces ${field} placeholders with the row's display
// text for that field. Unknown fields substitute as empty text.
func substituteFields(conditions string, row Fields) string {
	return fieldRef.ReplaceAllStringFunc(conditions, func(m string) string {
		name := fieldRef.FindStringSubmatch(m)[1]
		if v, ok := row[name]; ok {
			return v.String()
		}
		return ""
	})
}

// Resolve finds the first active row of the named table matching every
// clause of conditions and returns its returnField value. Conditions may
// reference the current row through ${field} placeholders, which resolve
// before parsing. Equality is numeric-aware when both sides read as numbers,
// case-insensitive string comparison otherwise. A missing table, malformed
// conditions, or no matching row all resolve to null: a lookup miss is a
// valid absent value, not an error.
func (s *Set) Resolve(tableName, conditions, returnField string, row Fields) value.Value {
	table, ok := s.Get(tableName)
	if !ok {
		return value.Null()
	}
	clauses, err := ParseConditions(substituteFields(conditions, row))
	if err != nil {
		return value.Null()
	}
	for _, candidate := range table.Rows {
		if !candidate.Active() {
			continue
		}
		if rowMatches(candidate, clauses) {
			v, ok := candidate[returnField]
			if !ok {
				return value.Null()
			}
			return v
		}
	}
	return value.Null()
}

// rowMatches reports whether every clause equals the candidate's value for
// the clause key. First-match semantics live in Resolve's scan order, so
// this test is deliberately free of any scoring.
func rowMatches(candidate Row, clauses []Clause) bool {
	for _, c := range clauses {
		cell, ok := candidate[c.Key]
		if !ok {
			cell = value.Null()
		}
		if !value.Equal(cell, value.Coerce(c.Value)) {
			return false
		}
	}
	return true
}
