package localstore

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Expressions follow the store's condition syntax restricted to what the
// push-down layer emits:
//
//	expr    := term { OR term }
//	term    := factor { AND factor }
//	factor  := "(" expr ")"
//	         | operand cmp operand
//	         | operand BETWEEN operand AND operand
//	operand := name | :placeholder
//	cmp     := = | <> | < | <= | > | >=
//
// Keywords are case-insensitive.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokPlaceholder
	tokCmp
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokBetween
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '=':
			toks = append(toks, token{tokCmp, "=", i})
			i++
		case c == '<' || c == '>':
			op := string(c)
			if i+1 < len(s) && (s[i+1] == '=' || (c == '<' && s[i+1] == '>')) {
				op += string(s[i+1])
			}
			toks = append(toks, token{tokCmp, op, i})
			i += len(op)
		case c == ':':
			j := i + 1
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty placeholder at offset %d", i)
			}
			toks = append(toks, token{tokPlaceholder, s[i:j], i})
			i = j
		case isNameByte(c):
			j := i
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			word := s[i:j]
			kind := tokName
			switch strings.ToUpper(word) {
			case "AND":
				kind = tokAnd
			case "OR":
				kind = tokOr
			case "BETWEEN":
				kind = tokBetween
			}
			toks = append(toks, token{kind, word, i})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

func isNameByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// expr is a parsed condition.
type expr interface {
	eval(item map[string]types.AttributeValue, values map[string]types.AttributeValue) bool
}

type orExpr []expr

type andExpr []expr

type cmpExpr struct {
	op          string
	left, right operand
}

type betweenExpr struct {
	subject, lo, hi operand
}

type operand struct {
	name        string
	placeholder bool
}

func (o operand) resolve(item, values map[string]types.AttributeValue) (types.AttributeValue, bool) {
	if o.placeholder {
		v, ok := values[o.name]
		return v, ok
	}
	v, ok := item[o.name]
	return v, ok
}

func (e orExpr) eval(item, values map[string]types.AttributeValue) bool {
	for _, sub := range e {
		if sub.eval(item, values) {
			return true
		}
	}
	return false
}

func (e andExpr) eval(item, values map[string]types.AttributeValue) bool {
	for _, sub := range e {
		if !sub.eval(item, values) {
			return false
		}
	}
	return true
}

// eval is false when either side is missing or the kinds differ.
func (e cmpExpr) eval(item, values map[string]types.AttributeValue) bool {
	l, ok := e.left.resolve(item, values)
	if !ok {
		return false
	}
	r, ok := e.right.resolve(item, values)
	if !ok {
		return false
	}
	c, ok := compare(l, r)
	if !ok {
		return false
	}
	switch e.op {
	case "=":
		return c == 0
	case "<>":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

func (e betweenExpr) eval(item, values map[string]types.AttributeValue) bool {
	return cmpExpr{">=", e.subject, e.lo}.eval(item, values) &&
		cmpExpr{"<=", e.subject, e.hi}.eval(item, values)
}

// compare orders two values of the same scalar kind: numbers numerically,
// strings and binaries bytewise.
func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberB:
		bv, ok := b.(*types.AttributeValueMemberB)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av.Value, bv.Value), true
	}
	return 0, false
}

// parsed is an expression plus the placeholders it references.
type parsed struct {
	root         expr
	placeholders map[string]bool
}

func parseExpr(s string) (*parsed, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, placeholders: make(map[string]bool)}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
	return &parsed{root: root, placeholders: p.placeholders}, nil
}

type parser struct {
	toks         []token
	i            int
	placeholders map[string]bool
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseOr() (expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []expr{first}
	for p.peek().kind == tokOr {
		p.next()
		t, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return orExpr(terms), nil
}

func (p *parser) parseAnd() (expr, error) {
	first, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	factors := []expr{first}
	for p.peek().kind == tokAnd {
		p.next()
		f, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}
	if len(factors) == 1 {
		return first, nil
	}
	return andExpr(factors), nil
}

func (p *parser) parseFactor() (expr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at offset %d", t.pos)
		}
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.next()
	switch t.kind {
	case tokCmp:
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpExpr{op: t.text, left: left, right: right}, nil
	case tokBetween:
		lo, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokAnd {
			return nil, fmt.Errorf("expected AND in BETWEEN at offset %d", t.pos)
		}
		hi, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return betweenExpr{subject: left, lo: lo, hi: hi}, nil
	}
	return nil, fmt.Errorf("expected comparison after %s at offset %d", left.name, t.pos)
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokName:
		return operand{name: t.text}, nil
	case tokPlaceholder:
		p.placeholders[t.text] = true
		return operand{name: t.text, placeholder: true}, nil
	}
	if t.kind == tokEOF {
		return operand{}, fmt.Errorf("unexpected end of expression")
	}
	return operand{}, fmt.Errorf("expected attribute or placeholder at offset %d, got %q", t.pos, t.text)
}

// parseProjection splits "a, b" into attribute names.
func parseProjection(s string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, fmt.Errorf("empty name in projection %q", s)
		}
		for i := 0; i < len(name); i++ {
			if !isNameByte(name[i]) {
				return nil, fmt.Errorf("invalid name %q in projection", name)
			}
		}
		names = append(names, name)
	}
	return names, nil
}
