// Package formula implements the column formula language of the order grid:
// a tokenizer, a recursive-descent parser into a small typed AST, and an
// evaluator over a fixed builtin function table. Formulas reference the
// current row through ${field} placeholders and reference tables through
// LOOKUP(table, conditions, returnField) calls, both of which are resolved
// textually before parsing.
package formula

// TokenType classifies lexical tokens.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenNull
	TokenIdentifier
	TokenFunction
	TokenBinaryOp
	TokenUnaryPrefixOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenError
)

// Token is a lexical token with its byte position in the input, kept for
// structured error reporting.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charUnderscore = '_'
	charExclaim    = '!'
)
