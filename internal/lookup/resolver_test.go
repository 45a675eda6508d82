package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/gridx/internal/value"
)

func hingeSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet([]Table{
		{
			Name:    "Hinges",
			Columns: []string{"type", "grade", "price"},
			Rows: []Row{
				{"type": value.String("A"), "grade": value.Number(7), "price": value.Number(5)},
				{"type": value.String("A"), "grade": value.Number(7), "price": value.Number(9)},
				{"type": value.String("B"), "grade": value.Number(11), "price": value.Number(12)},
				{"type": value.String("C"), "price": value.Number(20), "isActive": value.Bool(false)},
				{"type": value.String("C"), "price": value.Number(25)},
			},
		},
	})
	require.NoError(t, err)
	return s
}

func TestResolveFirstMatchWins(t *testing.T) {
	s := hingeSet(t)
	// Two rows match type=A; the earlier one must win every time.
	for i := 0; i < 10; i++ {
		got := s.Resolve("Hinges", "type=A", "price", nil)
		assert.Equal(t, value.Number(5), got)
	}
}

func TestResolveSkipsInactiveRows(t *testing.T) {
	s := hingeSet(t)
	got := s.Resolve("Hinges", "type=C", "price", nil)
	assert.Equal(t, value.Number(25), got, "isActive:false row must be skipped")
}

func TestResolveMultipleClauses(t *testing.T) {
	s := hingeSet(t)
	assert.Equal(t, value.Number(12), s.Resolve("Hinges", "type=B&grade=11", "price", nil))
	assert.Equal(t, value.Null(), s.Resolve("Hinges", "type=B&grade=7", "price", nil))
}

func TestResolveNumericAwareEquality(t *testing.T) {
	s := hingeSet(t)
	// grade stored as number, condition written as text.
	assert.Equal(t, value.Number(5), s.Resolve("Hinges", "type=A&grade=7", "price", nil))
	// case-insensitive string comparison
	assert.Equal(t, value.Number(5), s.Resolve("Hinges", "type=a", "price", nil))
}

func TestResolveFieldPlaceholders(t *testing.T) {
	s := hingeSet(t)
	row := Fields{"hingeType": value.String("B")}
	assert.Equal(t, value.Number(12), s.Resolve("Hinges", "type=${hingeType}", "price", row))

	// Unknown placeholder resolves to empty text and misses.
	assert.Equal(t, value.Null(), s.Resolve("Hinges", "type=${missing}", "price", row))
}

func TestResolveQuotedValues(t *testing.T) {
	s := hingeSet(t)
	assert.Equal(t, value.Number(5), s.Resolve("Hinges", `type="A"`, "price", nil))
	assert.Equal(t, value.Number(5), s.Resolve("Hinges", "type='A'", "price", nil))
}

func TestResolveMisses(t *testing.T) {
	s := hingeSet(t)
	assert.Equal(t, value.Null(), s.Resolve("NoSuchTable", "type=A", "price", nil), "missing table")
	assert.Equal(t, value.Null(), s.Resolve("Hinges", "type=Z", "price", nil), "no matching row")
	assert.Equal(t, value.Null(), s.Resolve("Hinges", "type=A", "weight", nil), "missing return field")
	assert.Equal(t, value.Null(), s.Resolve("Hinges", "garbage", "price", nil), "malformed conditions")
}

func TestParseConditions(t *testing.T) {
	clauses, err := ParseConditions("a=1 & b='two words' & c=\"x\"")
	require.NoError(t, err)
	require.Len(t, clauses, 3)
	assert.Equal(t, Clause{Key: "a", Value: "1"}, clauses[0])
	assert.Equal(t, Clause{Key: "b", Value: "two words"}, clauses[1])
	assert.Equal(t, Clause{Key: "c", Value: "x"}, clauses[2])

	_, err = ParseConditions("novalue")
	assert.Error(t, err)

	clauses, err = ParseConditions("   ")
	require.NoError(t, err)
	assert.Empty(t, clauses)
}

func TestRowActive(t *testing.T) {
	assert.True(t, Row{}.Active())
	assert.True(t, Row{"isActive": value.Null()}.Active())
	assert.True(t, Row{"isActive": value.Bool(true)}.Active())
	assert.False(t, Row{"isActive": value.Bool(false)}.Active())
	assert.False(t, Row{"isActive": value.String("false")}.Active())
	assert.False(t, Row{"isActive": value.Number(0)}.Active())
}

func TestLoadYAML(t *testing.T) {
	doc := []byte(`
tables:
  - name: Hinges
    columns: [type, price]
    rows:
      - {type: A, price: 5}
      - {type: A, price: 9}
`)
	s, err := LoadYAML(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hinges"}, s.Names())
	assert.Equal(t, value.Number(5), s.Resolve("Hinges", "type=A", "price", nil))
}
