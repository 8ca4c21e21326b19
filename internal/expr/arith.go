package expr

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/table"
)

type arithExpr struct {
	op          byte
	left, right Expr
}

// Add sums numeric operands; int64 + int64 stays int64, anything else widens to float64.
func Add(l, r Expr) Expr { return arithExpr{op: '+', left: l, right: r} }

// Sub subtracts numeric operands.
func Sub(l, r Expr) Expr { return arithExpr{op: '-', left: l, right: r} }

// Mul multiplies numeric operands.
func Mul(l, r Expr) Expr { return arithExpr{op: '*', left: l, right: r} }

func (x arithExpr) scalar() bool { return allScalar(x.left, x.right) }

func (x arithExpr) String() string {
	return fmt.Sprintf("(%s %c %s)", x.left, x.op, x.right)
}

func (x arithExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x arithExpr) evalVector(t *table.Table) (*vector, error) {
	l, err := evalVector(x.left, t)
	if err != nil {
		return nil, err
	}
	r, err := evalVector(x.right, t)
	if err != nil {
		return nil, err
	}
	l, r, n, err := align(l, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", x, err)
	}
	if l.kind == kindNull || r.kind == kindNull {
		return nullVector(n), nil
	}
	if !l.kind.numeric() || !r.kind.numeric() {
		return nil, fmt.Errorf("%s: cannot apply %c to %s and %s", x, x.op, l.kind, r.kind)
	}

	if l.kind == kindInt && r.kind == kindInt {
		out := newVector(kindInt, n)
		for i := 0; i < n; i++ {
			if !l.valid[i] || !r.valid[i] {
				continue
			}
			a, b := l.ints[i], r.ints[i]
			switch x.op {
			case '+':
				out.ints[i] = a + b
			case '-':
				out.ints[i] = a - b
			case '*':
				out.ints[i] = a * b
			}
			out.valid[i] = true
		}
		return out, nil
	}

	out := newVector(kindFloat, n)
	for i := 0; i < n; i++ {
		if !l.valid[i] || !r.valid[i] {
			continue
		}
		a, b := l.float(i), r.float(i)
		switch x.op {
		case '+':
			out.floats[i] = a + b
		case '-':
			out.floats[i] = a - b
		case '*':
			out.floats[i] = a * b
		}
		out.valid[i] = true
	}
	return out, nil
}

type strLenExpr struct{ e Expr }

// StrLen counts the characters of string values.
func StrLen(e Expr) Expr { return strLenExpr{e: e} }

func (x strLenExpr) scalar() bool { return IsScalar(x.e) }

func (x strLenExpr) String() string { return x.e.String() + ".str.len_chars()" }

func (x strLenExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x strLenExpr) evalVector(t *table.Table) (*vector, error) {
	v, err := evalVector(x.e, t)
	if err != nil {
		return nil, err
	}
	if v.kind == kindNull {
		return nullVector(v.n), nil
	}
	if v.kind != kindString {
		return nil, &TypeError{Expr: x.e.String(), Got: v.kind.String(), Want: "string"}
	}
	out := newVector(kindInt, v.n)
	for i := 0; i < v.n; i++ {
		if v.valid[i] {
			out.ints[i], out.valid[i] = int64(utf8.RuneCountInString(v.strs[i])), true
		}
	}
	return out, nil
}

type matchesExpr struct {
	e       Expr
	pattern string
	re      *regexp.Regexp
	err     error
}

// Matches tests string values against a regular expression. An invalid
// pattern surfaces as an error at Eval.
func Matches(e Expr, pattern string) Expr {
	re, err := regexp.Compile(pattern)
	return matchesExpr{e: e, pattern: pattern, re: re, err: err}
}

func (x matchesExpr) scalar() bool { return IsScalar(x.e) }

func (x matchesExpr) String() string {
	return fmt.Sprintf("%s.str.contains(%q)", x.e, x.pattern)
}

func (x matchesExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x matchesExpr) evalVector(t *table.Table) (*vector, error) {
	if x.err != nil {
		return nil, fmt.Errorf("%s: %w", x, x.err)
	}
	v, err := evalVector(x.e, t)
	if err != nil {
		return nil, err
	}
	out := newVector(kindBool, v.n)
	if v.kind == kindNull {
		return out, nil
	}
	if v.kind != kindString {
		return nil, &TypeError{Expr: x.e.String(), Got: v.kind.String(), Want: "string"}
	}
	for i := 0; i < v.n; i++ {
		if v.valid[i] {
			out.bools[i], out.valid[i] = x.re.MatchString(v.strs[i]), true
		}
	}
	return out, nil
}
