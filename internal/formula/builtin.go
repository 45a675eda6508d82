package formula

import (
	"fmt"
	"math"
	"strings"

	"github.com/oakwood-commons/gridx/internal/value"
)

// Builtins is the fixed, explicitly-registered function table of the formula
// language. There is no way to extend it at runtime; an unknown name is a
// structured error.
type Builtins struct{}

// NewBuiltins returns the builtin function table.
func NewBuiltins() *Builtins {
	return &Builtins{}
}

// Call invokes a builtin by (case-insensitive) name.
func (b *Builtins) Call(name string, args []value.Value) (value.Value, error) {
	switch strings.ToUpper(name) {
	case "AND":
		return b.and(args)
	case "OR":
		return b.or(args)
	case "IF":
		return b.ifFn(args)
	case "SUM":
		return b.sum(args)
	case "MULTIPLY":
		return b.multiply(args)
	case "DIVIDE":
		return b.divide(args)
	case "SUBTRACT":
		return b.subtract(args)
	case "MAX":
		return b.max(args)
	case "MIN":
		return b.min(args)
	case "ROUND":
		return b.round(args)
	case "CEIL":
		return b.ceil(args)
	case "FLOOR":
		return b.floor(args)
	case "CONCAT":
		return b.concat(args)
	case "LENGTH":
		return b.length(args)
	default:
		return value.Null(), fmt.Errorf("unknown function")
	}
}

// asNumber reads an argument numerically, treating null and non-numeric text
// as 0. Formulas are null-lenient throughout: a lookup miss or empty field
// must not poison an aggregate.
func asNumber(v value.Value) float64 {
	if f, ok := v.AsNumber(); ok {
		return f
	}
	return 0
}

// safeDivide implements the division rule shared by DIVIDE and the '/'
// operator: 0 instead of an error on divide-by-zero or a non-finite result.
func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

func (b *Builtins) and(args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.Truthy() {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

func (b *Builtins) or(args []value.Value) (value.Value, error) {
	for _, a := range args {
		if a.Truthy() {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func (b *Builtins) ifFn(args []value.Value) (value.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return value.Null(), fmt.Errorf("expects 2 or 3 arguments, got %d", len(args))
	}
	if args[0].Truthy() {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return value.Null(), nil
}

func (b *Builtins) sum(args []value.Value) (value.Value, error) {
	total := 0.0
	for _, a := range args {
		total += asNumber(a)
	}
	return value.Number(total), nil
}

func (b *Builtins) multiply(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(0), nil
	}
	product := 1.0
	for _, a := range args {
		product *= asNumber(a)
	}
	return value.Number(product), nil
}

func (b *Builtins) divide(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), fmt.Errorf("expects 2 arguments, got %d", len(args))
	}
	return value.Number(safeDivide(asNumber(args[0]), asNumber(args[1]))), nil
}

func (b *Builtins) subtract(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), fmt.Errorf("expects 2 arguments, got %d", len(args))
	}
	return value.Number(asNumber(args[0]) - asNumber(args[1])), nil
}

func (b *Builtins) max(args []value.Value) (value.Value, error) {
	best := math.Inf(-1)
	seen := false
	for _, a := range args {
		if f, ok := a.AsNumber(); ok {
			seen = true
			best = math.Max(best, f)
		}
	}
	if !seen {
		return value.Number(0), nil
	}
	return value.Number(best), nil
}

func (b *Builtins) min(args []value.Value) (value.Value, error) {
	best := math.Inf(1)
	seen := false
	for _, a := range args {
		if f, ok := a.AsNumber(); ok {
			seen = true
			best = math.Min(best, f)
		}
	}
	if !seen {
		return value.Number(0), nil
	}
	return value.Number(best), nil
}

// round rounds half away from zero, to the given number of decimals
// (default 0).
func (b *Builtins) round(args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Null(), fmt.Errorf("expects 1 or 2 arguments, got %d", len(args))
	}
	n := asNumber(args[0])
	decimals := 0.0
	if len(args) == 2 {
		decimals = asNumber(args[1])
	}
	p := math.Pow(10, math.Trunc(decimals))
	return value.Number(math.Round(n*p) / p), nil
}

func (b *Builtins) ceil(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	return value.Number(math.Ceil(asNumber(args[0]))), nil
}

func (b *Builtins) floor(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	return value.Number(math.Floor(asNumber(args[0]))), nil
}

// concat joins the display text of every argument, skipping nulls.
func (b *Builtins) concat(args []value.Value) (value.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		if a.IsNull() {
			continue
		}
		sb.WriteString(a.String())
	}
	return value.String(sb.String()), nil
}

func (b *Builtins) length(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	return value.Number(float64(len([]rune(args[0].String())))), nil
}
