package formula

import (
	"strings"

	"github.com/oakwood-commons/gridx/internal/value"
)

// Node is one node of a parsed formula. Walking the tree with Eval replaces
// the string-built-and-executed expressions of earlier grid generations;
// there is no code execution, only interpretation against the builtin table.
type Node interface {
	Eval(env *Env) (value.Value, error)
	Pos() int
}

// Env carries what evaluation needs: the builtin function table. Field and
// lookup references are already gone by parse time, substituted textually.
type Env struct {
	Builtins *Builtins
}

// LiteralNode is a number, string, boolean, or null literal.
type LiteralNode struct {
	Value    value.Value
	Position int
}

func (n *LiteralNode) Eval(env *Env) (value.Value, error) {
	return n.Value, nil
}

func (n *LiteralNode) Pos() int {
	return n.Position
}

// IdentifierNode is a bare word that survived field substitution. It always
// fails evaluation: every legitimate reference was replaced before parsing,
// so whatever remains is a typo or an unknown field.
type IdentifierNode struct {
	Name     string
	Position int
}

func (n *IdentifierNode) Eval(env *Env) (value.Value, error) {
	return value.Null(), errAt(n.Position, "unknown identifier %q", n.Name)
}

func (n *IdentifierNode) Pos() int {
	return n.Position
}

// UnaryNode is a prefix +/- applied to an operand.
type UnaryNode struct {
	Op       string
	Operand  Node
	Position int
}

func (n *UnaryNode) Eval(env *Env) (value.Value, error) {
	v, err := n.Operand.Eval(env)
	if err != nil {
		return value.Null(), err
	}
	f, ok := v.AsNumber()
	if !ok {
		return value.Null(), errAt(n.Position, "unary %q needs a number", n.Op)
	}
	if n.Op == "-" {
		f = -f
	}
	return value.Number(f), nil
}

func (n *UnaryNode) Pos() int {
	return n.Position
}

// BinaryNode is an infix arithmetic or comparison operation.
type BinaryNode struct {
	Op       string
	Left     Node
	Right    Node
	Position int
}

func (n *BinaryNode) Eval(env *Env) (value.Value, error) {
	left, err := n.Left.Eval(env)
	if err != nil {
		return value.Null(), err
	}
	right, err := n.Right.Eval(env)
	if err != nil {
		return value.Null(), err
	}

	switch n.Op {
	case "=", "==":
		return value.Bool(value.Equal(left, right)), nil
	case "!=":
		return value.Bool(!value.Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		return compare(n.Op, left, right), nil
	}

	// Arithmetic. Null reads as 0, mirroring the substitution rule for
	// empty fields; a non-numeric operand is a structured error.
	lf, lok := numericOperand(left)
	rf, rok := numericOperand(right)
	if !lok || !rok {
		return value.Null(), errAt(n.Position, "operator %q needs numeric operands", n.Op)
	}
	switch n.Op {
	case "+":
		return value.Number(lf + rf), nil
	case "-":
		return value.Number(lf - rf), nil
	case "*":
		return value.Number(lf * rf), nil
	case "/":
		return value.Number(safeDivide(lf, rf)), nil
	case "%":
		if rf == 0 {
			return value.Number(0), nil
		}
		return value.Number(float64(int64(lf) % int64(rf))), nil
	}
	return value.Null(), errAt(n.Position, "unknown operator %q", n.Op)
}

func (n *BinaryNode) Pos() int {
	return n.Position
}

func numericOperand(v value.Value) (float64, bool) {
	if v.IsNull() {
		return 0, true
	}
	return v.AsNumber()
}

// compare orders two values numerically when both read as numbers, else by
// case-insensitive string comparison, the same rule lookup matching uses.
func compare(op string, left, right value.Value) value.Value {
	var cmp int
	lf, lok := left.AsNumber()
	rf, rok := right.AsNumber()
	if lok && rok {
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(strings.ToLower(left.String()), strings.ToLower(right.String()))
	}
	switch op {
	case "<":
		return value.Bool(cmp < 0)
	case "<=":
		return value.Bool(cmp <= 0)
	case ">":
		return value.Bool(cmp > 0)
	default:
		return value.Bool(cmp >= 0)
	}
}

// CallNode is a call to a registered builtin function.
type CallNode struct {
	Name     string
	Args     []Node
	Position int
}

func (n *CallNode) Eval(env *Env) (value.Value, error) {
	args := make([]value.Value, len(n.Args))
	for i, arg := range n.Args {
		v, err := arg.Eval(env)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}
	result, err := env.Builtins.Call(n.Name, args)
	if err != nil {
		return value.Null(), errAt(n.Position, "%s: %v", n.Name, err)
	}
	return result, nil
}

func (n *CallNode) Pos() int {
	return n.Position
}
