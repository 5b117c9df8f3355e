package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-migrator/pkg/rules"
)

// ErrDivisionByZero - деление или остаток от деления на ноль
var ErrDivisionByZero = errors.New("division by zero")

// Lookup - доступ на чтение к строке, над которой вычисляется выражение.
// Реализуется extract.Row.
type Lookup interface {
	Get(name string) (any, bool)
}

// Program - скомпилированное выражение. Неизменяемо, безопасно для конкурентного использования.
type Program struct {
	src  string
	root node
}

// Compile разбирает src. Пустой текст дает программу, возвращающую nil.
func Compile(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return &Program{src: src, root: &literalNode{value: nil}}, nil
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q after expression", t.text)}
	}
	return &Program{src: src, root: root}, nil
}

// String возвращает исходный текст
func (p *Program) String() string { return p.src }

// Eval вычисляет программу над строкой
func (p *Program) Eval(row Lookup) (any, error) {
	return p.root.eval(row)
}

// Eval компилирует и сразу вычисляет src
func Eval(src string, row Lookup) (any, error) {
	prog, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return prog.Eval(row)
}

func (n *literalNode) eval(Lookup) (any, error) { return n.value, nil }

// отсутствующая колонка дает null, как и значение NULL
func (n *rowRefNode) eval(env Lookup) (any, error) {
	if env == nil {
		return nil, nil
	}
	v, _ := env.Get(n.column)
	return v, nil
}

func (n *negNode) eval(env Lookup) (any, error) {
	v, err := n.operand.eval(env)
	if err != nil || v == nil {
		return nil, err
	}
	d, err := toNumber(v)
	if err != nil {
		return nil, err
	}
	return d.Neg(), nil
}

func (n *binaryNode) eval(env Lookup) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}

	if n.op == tokPlus && (isString(l) || isString(r)) {
		// числа, пришедшие текстом (MySQL DECIMAL), складываются как числа
		a, errA := toNumber(l)
		b, errB := toNumber(r)
		if l != nil && r != nil && errA == nil && errB == nil {
			return a.Add(b), nil
		}
		return rules.ToString(l) + rules.ToString(r), nil
	}
	if l == nil || r == nil {
		return nil, nil
	}

	a, err := toNumber(l)
	if err != nil {
		return nil, err
	}
	b, err := toNumber(r)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokPlus:
		return a.Add(b), nil
	case tokMinus:
		return a.Sub(b), nil
	case tokStar:
		return a.Mul(b), nil
	case tokSlash:
		if b.IsZero() {
			return nil, ErrDivisionByZero
		}
		return a.Div(b), nil
	case tokPercent:
		if b.IsZero() {
			return nil, ErrDivisionByZero
		}
		return a.Mod(b), nil
	}
	return nil, fmt.Errorf("unsupported operator at %d", n.pos)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func toNumber(v any) (decimal.Decimal, error) {
	if _, ok := v.(bool); ok {
		return decimal.Zero, fmt.Errorf("boolean %v used in arithmetic", v)
	}
	d, err := rules.ToDecimal(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("operand is not numeric: %w", err)
	}
	return d, nil
}
