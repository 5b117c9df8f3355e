package expr

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// node - узел AST. Набор узлов закрыт: литералы, ссылки на колонки,
// унарный минус и бинарные операции.
type node interface {
	eval(env Lookup) (any, error)
}

type literalNode struct{ value any }

type rowRefNode struct{ column string }

type negNode struct{ operand node }

type binaryNode struct {
	op          tokenKind
	left, right node
	pos         int
}

// rowVariable - единственная переменная, видимая выражению
const rowVariable = "row"

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected %s, got %q", what, t.text)}
	}
	return t, nil
}

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.kind, left: left, right: right, pos: t.pos}
	}
}

// term := unary (('*'|'/'|'%') unary)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash && t.kind != tokPercent {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.kind, left: left, right: right, pos: t.pos}
	}
}

// unary := '-' unary | primary
func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		d, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid number %q", t.text)}
		}
		return &literalNode{value: d}, nil
	case tokString:
		return &literalNode{value: t.text}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokHash:
		ident, err := p.expect(tokIdent, "variable name after '#'")
		if err != nil {
			return nil, err
		}
		return p.parseRowRef(ident)
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null":
			return &literalNode{value: nil}, nil
		}
		return p.parseRowRef(t)
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
}

// rowref := ('#row' | 'row') ('[' string ']' | '.' ident)
func (p *parser) parseRowRef(ident token) (node, error) {
	if ident.text != rowVariable {
		return nil, &SyntaxError{Pos: ident.pos, Msg: fmt.Sprintf("unknown variable %q (only %q is available)", ident.text, rowVariable)}
	}
	switch p.peek().kind {
	case tokLBracket:
		p.next()
		key, err := p.expect(tokString, "quoted column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return &rowRefNode{column: key.text}, nil
	case tokDot:
		p.next()
		name, err := p.expect(tokIdent, "column name")
		if err != nil {
			return nil, err
		}
		return &rowRefNode{column: name.text}, nil
	}
	t := p.peek()
	return nil, &SyntaxError{Pos: t.pos, Msg: "row must be followed by ['column'] or .column"}
}
