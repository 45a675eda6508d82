// Package value defines the scalar cell value used throughout the grid
// engine: null, number, string, or boolean. Rows, lookup tables, formulas,
// and the clipboard all traffic in this one type so that coercion and
// equality rules live in a single place.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
)

// Value is an immutable tagged scalar. The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// Null returns the null Value.
func Null() Value {
	return Value{kind: KindNull}
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsEmpty reports whether the value is null or an empty/blank string. Empty
// is the condition that clears an override flag.
func (v Value) IsEmpty() bool {
	if v.kind == KindNull {
		return true
	}
	return v.kind == KindString && strings.TrimSpace(v.str) == ""
}

// Num returns the float payload of a numeric value. It is only meaningful
// when Kind() == KindNumber.
func (v Value) Num() float64 {
	return v.num
}

// Str returns the string payload. Only meaningful when Kind() == KindString.
func (v Value) Str() string {
	return v.str
}

// Boolean returns the bool payload. Only meaningful when Kind() == KindBool.
func (v Value) Boolean() bool {
	return v.b
}

// AsNumber attempts a numeric reading of the value: numbers as-is, booleans
// as 0/1, numeric-looking strings parsed, null as no-number.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Truthy reports the boolean reading used by formula conditionals: null and
// empty string are false, zero is false, everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		return v.str != ""
	}
	return false
}

// String renders the value the way a cell displays it: null as the empty
// string, integers without a trailing ".0".
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindNumber:
		return formatNumber(v.num)
	case KindString:
		return v.str
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	}
	return ""
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// numericText matches text that pastes as a number rather than a string.
var numericText = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Coerce converts pasted or imported text into a Value: text matching a
// plain decimal number becomes a number, empty text becomes null, anything
// else stays a string.
func Coerce(text string) Value {
	if text == "" {
		return Null()
	}
	if numericText.MatchString(text) {
		f, err := strconv.ParseFloat(text, 64)
		if err == nil {
			return Number(f)
		}
	}
	return String(text)
}

// Equal compares two values the way lookup conditions and paste diffs do:
// if both sides read as numbers they compare numerically, otherwise their
// display forms compare case-insensitively. Null only equals null or the
// empty string.
func Equal(a, b Value) bool {
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if aok && bok {
		return an == bn
	}
	return strings.EqualFold(a.String(), b.String())
}

// FromAny converts a decoded JSON (or YAML) scalar into a Value. Unsupported
// shapes collapse to their string rendering rather than erroring, matching
// the tolerance of the import pipeline.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case bool:
		return Bool(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToAny converts a Value to the plain Go scalar used for JSON encoding.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	}
	return nil
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON decodes any JSON scalar into the value. Arrays and objects
// are rejected; cells are scalar by construction.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case []any, map[string]any:
		return fmt.Errorf("cell value must be a scalar, got %T", raw)
	}
	*v = FromAny(raw)
	return nil
}
