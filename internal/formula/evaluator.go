package formula

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/gridx/internal/lookup"
	"github.com/oakwood-commons/gridx/internal/value"
	"github.com/oakwood-commons/gridx/pkg/logger"
)

// Fields is the current row's values keyed by column key.
type Fields = lookup.Fields

// Evaluator evaluates column formulas against a row and a lookup set.
// Evaluation is a pure function of its inputs: results are recomputed on
// every display read and never cached, because any referenced cell may have
// changed between reads.
type Evaluator struct {
	lookups  *lookup.Set
	builtins *Builtins
	log      *logr.Logger
}

// NewEvaluator builds an evaluator over the given lookup set. A nil set
// resolves every LOOKUP to null; a nil logger discards.
func NewEvaluator(lookups *lookup.Set, log *logr.Logger) *Evaluator {
	if lookups == nil {
		lookups = lookup.EmptySet()
	}
	if log == nil {
		log = logger.GetNoopLogger()
	}
	return &Evaluator{lookups: lookups, builtins: NewBuiltins(), log: log}
}

// Evaluate runs the full pipeline on a formula string: LOOKUP calls are
// resolved textually first, then ${field} references substitute, then bare
// identifiers matching numeric field keys substitute, and the residue is
// parsed and walked. Any failure is logged and yields null — a broken
// formula blanks its cell, it never breaks the grid.
func (e *Evaluator) Evaluate(formulaText string, row Fields) value.Value {
	if strings.TrimSpace(formulaText) == "" {
		return value.Null()
	}
	expr := e.resolveLookups(formulaText, row)
	expr = substituteFieldRefs(expr, row)
	expr = substituteBareFields(expr, row)

	node, err := Parse(expr)
	if err != nil {
		e.log.V(1).Info("formula parse failed", "formula", formulaText, "expanded", expr, "err", err.Error())
		return value.Null()
	}
	result, err := node.Eval(&Env{Builtins: e.builtins})
	if err != nil {
		e.log.V(1).Info("formula evaluation failed", "formula", formulaText, "expanded", expr, "err", err.Error())
		return value.Null()
	}
	return result
}

// resolveLookups replaces every well-formed LOOKUP(table, conditions,
// returnField) call with the literal form of its resolution. The scan
// respects nested parentheses and quoted arguments containing commas or
// parentheses. An unbalanced call is left in place verbatim and the rest of
// the text passes through; the parser deals with whatever remains.
func (e *Evaluator) resolveLookups(src string, row Fields) string {
	var out strings.Builder
	rest := src
	for {
		idx := findLookupCall(rest)
		if idx < 0 {
			out.WriteString(rest)
			return out.String()
		}
		out.WriteString(rest[:idx])
		body, end, ok := scanBalanced(rest, idx+len(lookupWord))
		if !ok {
			// Unbalanced call: keep the text as written, non-fatal.
			out.WriteString(rest[idx:])
			return out.String()
		}
		out.WriteString(e.resolveCall(body, row))
		rest = rest[end:]
	}
}

const lookupWord = "LOOKUP"

// findLookupCall returns the index of the next LOOKUP( occurrence standing
// alone as a word, or -1.
func findLookupCall(s string) int {
	from := 0
	for {
		i := strings.Index(s[from:], lookupWord)
		if i < 0 {
			return -1
		}
		i += from
		before := byte(0)
		if i > 0 {
			before = s[i-1]
		}
		afterIdx := i + len(lookupWord)
		if !isWordByte(before) && afterIdx < len(s) && s[afterIdx] == '(' {
			return i
		}
		from = i + len(lookupWord)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// scanBalanced scans s from the '(' at open, returning the argument text
// between the balanced parentheses and the index just past the closing ')'.
// Quoted regions (single or double) hide parentheses and commas from the
// scan.
func scanBalanced(s string, open int) (body string, end int, ok bool) {
	if open >= len(s) || s[open] != '(' {
		return "", 0, false
	}
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[open+1 : i], i + 1, true
			}
		}
	}
	return "", 0, false
}

// splitArgs splits argument text on top-level commas, honoring quotes and
// nested parentheses.
func splitArgs(body string) []string {
	var args []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, body[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, body[start:])
	return args
}

// resolveCall resolves one LOOKUP argument body to a literal. A call that
// does not have exactly three arguments is unresolved and becomes null.
func (e *Evaluator) resolveCall(body string, row Fields) string {
	args := splitArgs(body)
	if len(args) != 3 {
		e.log.V(1).Info("malformed LOOKUP call", "args", len(args), "body", body)
		return "null"
	}
	table := unquoteArg(args[0])
	conditions := unquoteArg(args[1])
	returnField := unquoteArg(args[2])
	return literal(e.lookups.Resolve(table, conditions, returnField, row))
}

func unquoteArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// literal renders a value as formula source text: numbers bare, booleans as
// keywords, strings double-quoted with doubled internal quotes, null as the
// null keyword.
func literal(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindNumber:
		return v.String()
	case value.KindBool:
		return v.String()
	default:
		return `"` + strings.ReplaceAll(v.String(), `"`, `""`) + `"`
	}
}

// fieldRef matches ${fieldName} references in formula text.
var fieldRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteFieldRefs replaces ${field} references with literals: numbers
// bare, null or empty as 0, anything else as a quoted string.
func substituteFieldRefs(expr string, row Fields) string {
	return fieldRef.ReplaceAllStringFunc(expr, func(m string) string {
		name := fieldRef.FindStringSubmatch(m)[1]
		v, ok := row[name]
		if !ok || v.IsEmpty() {
			return "0"
		}
		if v.Kind() == value.KindNumber {
			return v.String()
		}
		return `"` + strings.ReplaceAll(v.String(), `"`, `""`) + `"`
	})
}

// substituteBareFields replaces whole-word occurrences of numeric field keys
// with their values. Kept for formulas written before the ${field} syntax;
// only fields currently holding numbers participate.
func substituteBareFields(expr string, row Fields) string {
	keys := make([]string, 0, len(row))
	for k, v := range row {
		if v.Kind() == value.KindNumber && identName.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		expr = re.ReplaceAllString(expr, row[k].String())
	}
	return expr
}

var identName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
