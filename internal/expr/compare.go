// internal/expr/compare.go
package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/table"
)

/*
 * Comparison operators.
 *
 * Operands are compared element-wise after broadcasting. A null on either
 * side yields null, never false; the rule evaluator later reads a null
 * outcome as "rule does not apply".
 *
 * Numeric comparison: int64 and float64 operands mix freely (widened to
 * float64). Dates compare with dates only. Strings compare lexically and
 * booleans as false < true. Any other pairing is a type error at Eval.
 *
 * Prefix/suffix operators require string operands on both sides.
 */

// Operator selects a comparison.
type Operator int

const (
	OpEq Operator = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpPrefix
	OpSuffix
)

func (op Operator) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpPrefix:
		return "starts_with"
	case OpSuffix:
		return "ends_with"
	default:
		return "?"
	}
}

type compareExpr struct {
	op          Operator
	left, right Expr
}

// Compare builds a comparison of left against right.
func Compare(op Operator, left, right Expr) Expr {
	return compareExpr{op: op, left: left, right: right}
}

func Eq(l, r Expr) Expr { return Compare(OpEq, l, r) }
func Ne(l, r Expr) Expr { return Compare(OpNeq, l, r) }
func Lt(l, r Expr) Expr { return Compare(OpLt, l, r) }
func Le(l, r Expr) Expr { return Compare(OpLte, l, r) }
func Gt(l, r Expr) Expr { return Compare(OpGt, l, r) }
func Ge(l, r Expr) Expr { return Compare(OpGte, l, r) }

// StartsWith tests string values for a prefix.
func StartsWith(e Expr, prefix string) Expr { return Compare(OpPrefix, e, Lit(prefix)) }

// EndsWith tests string values for a suffix.
func EndsWith(e Expr, suffix string) Expr { return Compare(OpSuffix, e, Lit(suffix)) }

func (c compareExpr) scalar() bool { return allScalar(c.left, c.right) }

func (c compareExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", c.left, c.op, c.right)
}

func (c compareExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := c.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (c compareExpr) evalVector(t *table.Table) (*vector, error) {
	l, err := evalVector(c.left, t)
	if err != nil {
		return nil, err
	}
	r, err := evalVector(c.right, t)
	if err != nil {
		return nil, err
	}
	l, r, n, err := align(l, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}

	out := newVector(kindBool, n)
	if l.kind == kindNull || r.kind == kindNull {
		return out, nil
	}
	cmp, err := comparator(c.op, l, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}
	for i := 0; i < n; i++ {
		if !l.valid[i] || !r.valid[i] {
			continue
		}
		out.bools[i], out.valid[i] = cmp(i), true
	}
	return out, nil
}

// comparator returns the element-wise comparison for a pair of operand kinds.
func comparator(op Operator, l, r *vector) (func(i int) bool, error) {
	if op == OpPrefix || op == OpSuffix {
		if l.kind != kindString || r.kind != kindString {
			return nil, fmt.Errorf("%s requires strings, got %s and %s", op, l.kind, r.kind)
		}
		if op == OpPrefix {
			return func(i int) bool { return strings.HasPrefix(l.strs[i], r.strs[i]) }, nil
		}
		return func(i int) bool { return strings.HasSuffix(l.strs[i], r.strs[i]) }, nil
	}

	var three func(i int) int
	switch {
	case l.kind == kindInt && r.kind == kindInt, l.kind == kindDate && r.kind == kindDate:
		three = func(i int) int { return compareOrdered(l.ints[i], r.ints[i]) }
	case l.kind.numeric() && r.kind.numeric():
		three = func(i int) int { return compareOrdered(l.float(i), r.float(i)) }
	case l.kind == kindString && r.kind == kindString:
		three = func(i int) int { return strings.Compare(l.strs[i], r.strs[i]) }
	case l.kind == kindBool && r.kind == kindBool:
		three = func(i int) int { return compareOrdered(boolRank(l.bools[i]), boolRank(r.bools[i])) }
	default:
		return nil, fmt.Errorf("cannot compare %s with %s", l.kind, r.kind)
	}

	switch op {
	case OpEq:
		return func(i int) bool { return three(i) == 0 }, nil
	case OpNeq:
		return func(i int) bool { return three(i) != 0 }, nil
	case OpLt:
		return func(i int) bool { return three(i) < 0 }, nil
	case OpLte:
		return func(i int) bool { return three(i) <= 0 }, nil
	case OpGt:
		return func(i int) bool { return three(i) > 0 }, nil
	case OpGte:
		return func(i int) bool { return three(i) >= 0 }, nil
	default:
		return nil, fmt.Errorf("unknown operator %d", int(op))
	}
}

func compareOrdered[T int64 | float64 | int](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

type isInExpr struct {
	e      Expr
	values []any
}

// IsIn tests membership in a fixed set using equality semantics.
// Null values yield null.
func IsIn(e Expr, values ...any) Expr {
	return isInExpr{e: e, values: append([]any(nil), values...)}
}

func (x isInExpr) scalar() bool { return IsScalar(x.e) }

func (x isInExpr) String() string {
	return fmt.Sprintf("%s.is_in(%v)", x.e, x.values)
}

func (x isInExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x isInExpr) evalVector(t *table.Table) (*vector, error) {
	v, err := evalVector(x.e, t)
	if err != nil {
		return nil, err
	}
	out := newVector(kindBool, v.n)
	if v.kind == kindNull {
		return out, nil
	}
	set := make([]*vector, len(x.values))
	for k, raw := range x.values {
		s, err := scalar(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", x, err)
		}
		set[k] = s
	}
	for i := 0; i < v.n; i++ {
		if !v.valid[i] {
			continue
		}
		out.valid[i] = true
		elem := v.slice(i)
		for _, s := range set {
			if s.kind == kindNull {
				continue
			}
			eq, err := comparator(OpEq, elem, s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", x, err)
			}
			if eq(0) {
				out.bools[i] = true
				break
			}
		}
	}
	return out, nil
}

// slice returns element i as a single-value vector.
func (v *vector) slice(i int) *vector {
	out := newVector(v.kind, 1)
	out.valid[0] = v.valid[i]
	switch v.kind {
	case kindInt, kindDate:
		out.ints[0] = v.ints[i]
	case kindFloat:
		out.floats[0] = v.floats[i]
	case kindString:
		out.strs[0] = v.strs[i]
	case kindBool:
		out.bools[0] = v.bools[i]
	}
	return out
}
