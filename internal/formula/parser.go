package formula

import (
	"strconv"

	"github.com/oakwood-commons/gridx/internal/value"
)

// Parser parses a token stream into an AST. Grammar, loosest binding first:
//
//	comparison  := additive (("=" | "==" | "!=" | "<" | "<=" | ">" | ">=") additive)*
//	additive    := multiplicative (("+" | "-") multiplicative)*
//	multiplicative := unary (("*" | "/" | "%") unary)*
//	unary       := ("+" | "-") unary | primary
//	primary     := number | string | boolean | null | identifier
//	             | FUNCTION "(" [comparison ("," comparison)*] ")"
//	             | "(" comparison ")"
type Parser struct {
	tokens []Token
	pos    int
}

// Parse tokenizes and parses an expression in one step.
func Parse(input string) (Node, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, errAt(tok.Pos, "unexpected token %q", tok.Value)
	}
	return node, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Type != TokenBinaryOp {
			return left, nil
		}
		switch tok.Value {
		case "=", "==", "!=", "<", "<=", ">", ">=":
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok.Value, Left: left, Right: right, Position: tok.Pos}
	}
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Type != TokenBinaryOp || (tok.Value != "+" && tok.Value != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok.Value, Left: left, Right: right, Position: tok.Pos}
	}
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Type != TokenBinaryOp || (tok.Value != "*" && tok.Value != "/" && tok.Value != "%") {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: tok.Value, Left: left, Right: right, Position: tok.Pos}
	}
}

func (p *Parser) parseUnary() (Node, error) {
	tok := p.current()
	if tok.Type == TokenUnaryPrefixOp {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: tok.Value, Operand: operand, Position: tok.Pos}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.advance()
	switch tok.Type {
	case TokenNumber:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, errAt(tok.Pos, "invalid number %q", tok.Value)
		}
		return &LiteralNode{Value: value.Number(f), Position: tok.Pos}, nil
	case TokenString:
		return &LiteralNode{Value: value.String(tok.Value), Position: tok.Pos}, nil
	case TokenBoolean:
		return &LiteralNode{Value: value.Bool(tok.Value == "true"), Position: tok.Pos}, nil
	case TokenNull:
		return &LiteralNode{Value: value.Null(), Position: tok.Pos}, nil
	case TokenIdentifier:
		return &IdentifierNode{Name: tok.Value, Position: tok.Pos}, nil
	case TokenFunction:
		return p.parseCall(tok)
	case TokenLeftParen:
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.Type != TokenRightParen {
			return nil, errAt(closing.Pos, "expected ')'")
		}
		return inner, nil
	case TokenEOF:
		return nil, errAt(tok.Pos, "unexpected end of formula")
	default:
		return nil, errAt(tok.Pos, "unexpected token %q", tok.Value)
	}
}

func (p *Parser) parseCall(name Token) (Node, error) {
	if open := p.advance(); open.Type != TokenLeftParen {
		return nil, errAt(open.Pos, "expected '(' after %s", name.Value)
	}
	call := &CallNode{Name: name.Value, Position: name.Pos}
	if p.current().Type == TokenRightParen {
		p.advance()
		return call, nil
	}
	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		tok := p.advance()
		switch tok.Type {
		case TokenComma:
			continue
		case TokenRightParen:
			return call, nil
		default:
			return nil, errAt(tok.Pos, "expected ',' or ')' in %s arguments", name.Value)
		}
	}
}
