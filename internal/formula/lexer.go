package formula

import (
	"strings"
)

// Lexer tokenizes formula expressions after lookup and field substitution.
type Lexer struct {
	input      string
	runes      []rune // UTF-8 aware representation
	pos        int
	parenDepth int
	tokens     []Token
}

// NewLexer creates a lexer for the given expression text.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		runes: []rune(input),
	}
}

// Tokenize scans the whole input. It returns the token stream ending in an
// EOF token, or an *Error describing the first lexical problem, including
// unbalanced parentheses and unclosed strings.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.runes) {
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			break
		}
		tok := l.nextToken()
		if tok.Type == TokenError {
			return nil, &Error{Pos: tok.Pos, Reason: tok.Value}
		}
		l.tokens = append(l.tokens, tok)
	}
	if l.parenDepth > 0 {
		return nil, &Error{Pos: l.pos, Reason: "unbalanced parentheses: missing closing parenthesis"}
	}
	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlphaNumeric(ch rune) bool {
	return isAlpha(ch) || isDigit(ch)
}

func (l *Lexer) nextToken() Token {
	startPos := l.pos
	ch := l.current()

	if ch == charQuote || ch == charApostrophe {
		return l.scanString(ch)
	}

	if isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unbalanced parentheses: too many closing parentheses", Pos: startPos}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charPlus, charMinus:
		l.pos++
		if l.isUnaryContext() {
			return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
	case charAsterisk, charSlash, charPercent:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
	case charEqual:
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "==", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "=", Pos: startPos}
	case charExclaim:
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "!=", Pos: startPos}
		}
		return Token{Type: TokenError, Value: "unexpected '!'", Pos: startPos}
	case charLess:
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "<", Pos: startPos}
	case charGreater:
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: ">", Pos: startPos}
	}

	if isAlpha(ch) || ch == charUnderscore {
		return l.scanIdentifier()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

// isUnaryContext reports whether a +/- at the current point is a sign rather
// than a binary operator: at the start of input, after another operator,
// after a comma, or after an opening parenthesis.
func (l *Lexer) isUnaryContext() bool {
	if len(l.tokens) == 0 {
		return true
	}
	switch l.tokens[len(l.tokens)-1].Type {
	case TokenBinaryOp, TokenUnaryPrefixOp, TokenComma, TokenLeftParen:
		return true
	default:
		return false
	}
}

// scanNumber scans an integer or decimal literal.
func (l *Lexer) scanNumber() Token {
	startPos := l.pos
	for isDigit(l.current()) {
		l.pos++
	}
	if l.current() == charPeriod && isDigit(l.peek(1)) {
		l.pos++ // consume '.'
		for isDigit(l.current()) {
			l.pos++
		}
	}
	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos}
}

// scanString scans a quoted string literal. A doubled quote character is an
// escape for the quote itself, matching the literal form the evaluator emits
// when substituting field values.
func (l *Lexer) scanString(quote rune) Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == quote {
			if l.peek(1) == quote {
				result = append(result, quote)
				l.pos += 2
				continue
			}
			l.pos++ // consume closing quote
			return Token{Type: TokenString, Value: string(result), Pos: startPos}
		}
		result = append(result, ch)
		l.pos++
	}
	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanIdentifier scans identifiers, function names, and the true/false/null
// keywords. An identifier directly followed by '(' is a function name.
func (l *Lexer) scanIdentifier() Token {
	startPos := l.pos
	for isAlphaNumeric(l.current()) || l.current() == charUnderscore {
		l.pos++
	}
	word := l.substring(startPos, l.pos)

	switch strings.ToLower(word) {
	case "true", "false":
		return Token{Type: TokenBoolean, Value: strings.ToLower(word), Pos: startPos}
	case "null":
		return Token{Type: TokenNull, Value: "null", Pos: startPos}
	}

	if l.current() == charLParen {
		return Token{Type: TokenFunction, Value: strings.ToUpper(word), Pos: startPos}
	}
	return Token{Type: TokenIdentifier, Value: word, Pos: startPos}
}
