// Package calc evaluates the small arithmetic language accepted by Ghost's
// calculator: numeric literals, + - * /, unary sign and parentheses.
//
// Input text is never handed to a general-purpose evaluator. Extract reduces
// free-form chat input to the permitted alphabet and Eval parses the result
// with a recursive-descent parser.
package calc

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrSyntax is returned for input that is not a well-formed expression.
	ErrSyntax = errors.New("calc: syntax error")
	// ErrDivideByZero is returned when a divisor evaluates to zero.
	ErrDivideByZero = errors.New("calc: division by zero")
	// ErrNonFinite is returned when the result overflows to ±Inf or NaN.
	ErrNonFinite = errors.New("calc: result is not finite")
	// ErrEmpty is returned when the input contains no digits at all.
	ErrEmpty = errors.New("calc: no expression")
)

// maxDepth bounds parenthesis nesting.
const maxDepth = 64

var (
	timesWord  = regexp.MustCompile(`(\d)\s*[xX]\s*(\d)`)
	allowed    = regexp.MustCompile(`[^0-9+\-*/().\s]`)
	expression = regexp.MustCompile(`^[\d\s+\-*/().]+$`)
	hasDigit   = regexp.MustCompile(`\d`)
)

// Extract reduces free-form input ("solve 12 × (3 + 4)") to a candidate
// expression ("12 * (3 + 4)"). The result has only passed the character
// filter; it is validated structurally by Eval.
func Extract(input string) (string, error) {
	s := strings.NewReplacer("×", "*", "÷", "/", "−", "-").Replace(input)
	s = timesWord.ReplaceAllString(s, "$1*$2")
	s = strings.TrimSpace(allowed.ReplaceAllString(s, ""))
	if !hasDigit.MatchString(s) {
		return "", ErrEmpty
	}
	if !expression.MatchString(s) {
		return "", ErrSyntax
	}
	return s, nil
}

// Eval parses and evaluates expr.
func Eval(expr string) (float64, error) {
	p := &parser{src: expr}
	p.next()
	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, p.tok.text, p.tok.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrNonFinite
	}
	return v, nil
}

// Format renders v without float noise: at most ten decimal places, no
// trailing zeros. Magnitudes of 1e15 and above carry no fractional digits
// and are printed as they are.
func Format(v float64) string {
	r := v
	if math.Abs(v) < 1e15 {
		r = math.Round(v*1e10) / 1e10
	}
	if r == 0 {
		r = 0 // normalise -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
	tokBad
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

type parser struct {
	src string
	pos int
	tok token
}

func (p *parser) next() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}
	c := p.src[p.pos]
	switch {
	case c == '+' || c == '-' || c == '*' || c == '/':
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case c == '.' || (c >= '0' && c <= '9'):
		dots := 0
		for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
			if p.src[p.pos] == '.' {
				dots++
			}
			p.pos++
		}
		text := p.src[start:p.pos]
		n, err := strconv.ParseFloat(text, 64)
		if dots > 1 || err != nil {
			p.tok = token{kind: tokBad, text: text, pos: start}
			return
		}
		p.tok = token{kind: tokNum, text: text, num: n, pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokBad, text: string(c), pos: start}
	}
}

// expr := term { ("+" | "-") term }
func (p *parser) expr(depth int) (float64, error) {
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.term(depth)
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

// term := unary { ("*" | "/") unary }
func (p *parser) term(depth int) (float64, error) {
	left, err := p.unary(depth)
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		p.next()
		right, err := p.unary(depth)
		if err != nil {
			return 0, err
		}
		if op == "*" {
			left *= right
			continue
		}
		if right == 0 {
			return 0, ErrDivideByZero
		}
		left /= right
	}
	return left, nil
}

// unary := ("+" | "-") unary | primary
func (p *parser) unary(depth int) (float64, error) {
	if p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		neg := p.tok.text == "-"
		if depth >= maxDepth {
			return 0, fmt.Errorf("%w: nesting too deep", ErrSyntax)
		}
		p.next()
		v, err := p.unary(depth + 1)
		if err != nil {
			return 0, err
		}
		if neg {
			return -v, nil
		}
		return v, nil
	}
	return p.primary(depth)
}

// primary := number | "(" expr ")"
func (p *parser) primary(depth int) (float64, error) {
	switch p.tok.kind {
	case tokNum:
		v := p.tok.num
		p.next()
		return v, nil
	case tokLParen:
		if depth >= maxDepth {
			return 0, fmt.Errorf("%w: nesting too deep", ErrSyntax)
		}
		p.next()
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, fmt.Errorf("%w: missing ')' at offset %d", ErrSyntax, p.tok.pos)
		}
		p.next()
		return v, nil
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, p.tok.text, p.tok.pos)
	}
}
