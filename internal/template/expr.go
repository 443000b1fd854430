package template

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// The expression grammar admitted inside $(...) placeholders:
//
//	expr    = additive { ("=="|"!="|"<"|"<="|">"|">=") additive }
//	additive = term { ("+"|"-") term }
//	term    = unary { ("*"|"/") unary }
//	unary   = "-" unary | postfix
//	postfix = primary { "." ident }
//	primary = number | string | ident | "(" expr ")"
//
// Expressions evaluate against the render bindings only; there is no access
// to anything outside the supplied map.

type node interface {
	eval(b Bindings) (any, error)
	names() []string
}

type identNode struct{ name string }

func (n identNode) eval(b Bindings) (any, error) {
	v, ok := b[n.name]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (n identNode) names() []string { return []string{n.name} }

type numberNode struct{ value float64 }

func (n numberNode) eval(Bindings) (any, error) { return n.value, nil }
func (n numberNode) names() []string            { return nil }

type stringNode struct{ value string }

func (n stringNode) eval(Bindings) (any, error) { return n.value, nil }
func (n stringNode) names() []string            { return nil }

type memberNode struct {
	base  node
	field string
}

func (n memberNode) eval(b Bindings) (any, error) {
	base, err := n.base.eval(b)
	if err != nil {
		return nil, err
	}
	switch m := base.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m[n.field], nil
	case map[string]string:
		if v, ok := m[n.field]; ok {
			return v, nil
		}
		return nil, nil
	case Bindings:
		return m[n.field], nil
	default:
		return nil, fmt.Errorf("cannot access field %q on %T", n.field, base)
	}
}

func (n memberNode) names() []string { return n.base.names() }

type unaryNode struct{ operand node }

func (n unaryNode) eval(b Bindings) (any, error) {
	v, err := n.operand.eval(b)
	if err != nil {
		return nil, err
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	return -f, nil
}

func (n unaryNode) names() []string { return n.operand.names() }

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(b Bindings) (any, error) {
	l, err := n.left.eval(b)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(b)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	}

	// String comparison and concatenation keep their string semantics.
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			switch n.op {
			case "+":
				return ls + rs, nil
			case "<":
				return ls < rs, nil
			case "<=":
				return ls <= rs, nil
			case ">":
				return ls > rs, nil
			case ">=":
				return ls >= rs, nil
			}
		}
	}

	lf, err := toFloat(l)
	if err != nil {
		return nil, err
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		return lf / rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func (n binaryNode) names() []string {
	return append(n.left.names(), n.right.names()...)
}

func equal(l, r any) bool {
	lf, lerr := toFloat(l)
	rf, rerr := toFloat(r)
	if lerr == nil && rerr == nil {
		return lf == rf
	}
	return l == r
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case nil:
		return 0, fmt.Errorf("numeric operation on absent value")
	default:
		return 0, fmt.Errorf("numeric operation on %T", v)
	}
}

// parser is a recursive-descent parser over the expression source.
type parser struct {
	src string
	pos int
}

func parseExpr(src string) (node, error) {
	p := &parser{src: src}
	n, err := p.comparison()
	if err != nil {
		return nil, fmt.Errorf("template: parse $(%s): %w", src, err)
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, fmt.Errorf("template: parse $(%s): trailing input at byte %d", src, p.pos)
	}
	return n, nil
}

func (p *parser) comparison() (node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peekOp("==", "!=", "<=", ">=", "<", ">")
		if op == "" {
			return left, nil
		}
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) additive() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peekOp("+", "-")
		if op == "" {
			return left, nil
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peekOp("*", "/")
		if op == "" {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		p.pos++
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryNode{operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '.' {
			return n, nil
		}
		p.pos++
		field, err := p.ident()
		if err != nil {
			return nil, err
		}
		n = memberNode{base: n, field: field}
	}
}

func (p *parser) primary() (node, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	c := p.src[p.pos]
	switch {
	case c == '(':
		p.pos++
		n, err := p.comparison()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return n, nil
	case c == '"' || c == '\'':
		return p.stringLit(c)
	case c >= '0' && c <= '9':
		return p.numberLit()
	case isIdentStart(rune(c)):
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return identNode{name: name}, nil
	}
	return nil, fmt.Errorf("unexpected character %q at byte %d", c, p.pos)
}

func (p *parser) stringLit(quote byte) (node, error) {
	end := strings.IndexByte(p.src[p.pos+1:], quote)
	if end < 0 {
		return nil, fmt.Errorf("unterminated string literal")
	}
	value := p.src[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return stringNode{value: value}, nil
}

func (p *parser) numberLit() (node, error) {
	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
		p.pos++
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", p.src[start:p.pos])
	}
	return numberNode{value: f}, nil
}

func (p *parser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	if p.pos >= len(p.src) || !isIdentStart(rune(p.src[p.pos])) {
		return "", fmt.Errorf("expected identifier at byte %d", p.pos)
	}
	for p.pos < len(p.src) && isIdentRune(rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// peekOp consumes and returns the first matching operator, or "".
func (p *parser) peekOp(ops ...string) string {
	p.skipSpace()
	for _, op := range ops {
		if strings.HasPrefix(p.src[p.pos:], op) {
			p.pos += len(op)
			return op
		}
	}
	return ""
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
