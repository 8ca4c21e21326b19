package expr

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/table"
)

// Boolean connectives follow Kleene logic: false AND null is false,
// true OR null is true, everything else involving null is null.

type logicExpr struct {
	and      bool
	operands []Expr
}

// And combines boolean expressions; And() with no operands is true.
func And(es ...Expr) Expr { return logicExpr{and: true, operands: es} }

// Or combines boolean expressions; Or() with no operands is false.
func Or(es ...Expr) Expr { return logicExpr{and: false, operands: es} }

func (x logicExpr) scalar() bool { return allScalar(x.operands...) }

func (x logicExpr) String() string {
	if x.and {
		return "(" + joinExprs(x.operands, " & ") + ")"
	}
	return "(" + joinExprs(x.operands, " | ") + ")"
}

func (x logicExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x logicExpr) evalVector(t *table.Table) (*vector, error) {
	acc := newVector(kindBool, 1)
	acc.bools[0], acc.valid[0] = x.and, true
	for _, e := range x.operands {
		v, err := evalVector(e, t)
		if err != nil {
			return nil, err
		}
		if v.kind != kindBool && v.kind != kindNull {
			return nil, &TypeError{Expr: e.String(), Got: v.kind.String(), Want: "bool"}
		}
		a, b, n, err := align(acc, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", x, err)
		}
		out := newVector(kindBool, n)
		for i := 0; i < n; i++ {
			bv, bvalid := false, false
			if b.kind == kindBool {
				bv, bvalid = b.bools[i], b.valid[i]
			}
			out.bools[i], out.valid[i] = kleene(x.and, a.bools[i], a.valid[i], bv, bvalid)
		}
		acc = out
	}
	return acc, nil
}

func kleene(and bool, a, aValid, b, bValid bool) (bool, bool) {
	if and {
		switch {
		case aValid && !a, bValid && !b:
			return false, true
		case aValid && bValid:
			return true, true
		default:
			return false, false
		}
	}
	switch {
	case aValid && a, bValid && b:
		return true, true
	case aValid && bValid:
		return false, true
	default:
		return false, false
	}
}

type notExpr struct{ e Expr }

// Not negates a boolean expression; null stays null.
func Not(e Expr) Expr { return notExpr{e: e} }

func (x notExpr) scalar() bool { return IsScalar(x.e) }

func (x notExpr) String() string { return "~" + x.e.String() }

func (x notExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x notExpr) evalVector(t *table.Table) (*vector, error) {
	v, err := evalVector(x.e, t)
	if err != nil {
		return nil, err
	}
	if v.kind == kindNull {
		return v, nil
	}
	if v.kind != kindBool {
		return nil, &TypeError{Expr: x.e.String(), Got: v.kind.String(), Want: "bool"}
	}
	out := newVector(kindBool, v.n)
	for i := 0; i < v.n; i++ {
		out.bools[i], out.valid[i] = !v.bools[i], v.valid[i]
	}
	return out, nil
}

type nullTestExpr struct {
	e      Expr
	isNull bool
	nan    bool
}

// IsNull is true where e is null. The result is never null.
func IsNull(e Expr) Expr { return nullTestExpr{e: e, isNull: true} }

// IsNotNull is true where e is not null. The result is never null.
func IsNotNull(e Expr) Expr { return nullTestExpr{e: e} }

// IsNaN is true where a float value is NaN; null stays null.
func IsNaN(e Expr) Expr { return nullTestExpr{e: e, nan: true} }

func (x nullTestExpr) scalar() bool { return IsScalar(x.e) }

func (x nullTestExpr) String() string {
	switch {
	case x.nan:
		return x.e.String() + ".is_nan()"
	case x.isNull:
		return x.e.String() + ".is_null()"
	default:
		return x.e.String() + ".is_not_null()"
	}
}

func (x nullTestExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x nullTestExpr) evalVector(t *table.Table) (*vector, error) {
	v, err := evalVector(x.e, t)
	if err != nil {
		return nil, err
	}
	out := newVector(kindBool, v.n)
	for i := 0; i < v.n; i++ {
		if x.nan {
			if v.kind == kindFloat && v.valid[i] {
				out.bools[i], out.valid[i] = math.IsNaN(v.floats[i]), true
			} else if v.valid[i] {
				out.valid[i] = true
			}
			continue
		}
		out.valid[i] = true
		out.bools[i] = v.valid[i] != x.isNull
	}
	return out, nil
}
