// Package expr provides columnar expression plans over tables.
//
// Building an expression never fails and never touches data; every
// constructor in this package returns a plan. Eval materializes a plan
// against a *table.Table and is the only place errors surface (unknown
// columns, type mismatches, invalid patterns).
//
// Results are either one value per row or a single value. Single values
// broadcast against per-row operands, which is how literals and aggregations
// combine with columns.
package expr

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/table"
)

// Expr is a columnar expression plan.
type Expr interface {
	// Eval materializes the expression against t. The result has t.NumRows()
	// values or exactly one.
	Eval(t *table.Table) (arrow.Array, error)
	String() string
}

// Named pairs a rule name with its boolean expression.
type Named struct {
	Name string
	Expr Expr
}

// vectorExpr is implemented by all expressions in this package to skip the
// round trip through arrow arrays between nodes.
type vectorExpr interface {
	evalVector(t *table.Table) (*vector, error)
}

func evalVector(e Expr, t *table.Table) (*vector, error) {
	if ve, ok := e.(vectorExpr); ok {
		return ve.evalVector(t)
	}
	arr, err := e.Eval(t)
	if err != nil {
		return nil, err
	}
	return fromArrow(arr)
}

// EvalBool materializes a boolean expression broadcast to t.NumRows() values.
func EvalBool(e Expr, t *table.Table) (*array.Boolean, error) {
	v, err := evalVector(e, t)
	if err != nil {
		return nil, err
	}
	if v.kind != kindBool && v.kind != kindNull {
		return nil, &TypeError{Expr: e.String(), Got: v.kind.String(), Want: "bool"}
	}
	if v.n != 1 && v.n != t.NumRows() {
		return nil, fmt.Errorf("expression %s has %d values for %d rows", e, v.n, t.NumRows())
	}
	v = v.broadcast(t.NumRows())
	return v.toArrow().(*array.Boolean), nil
}

// scalarExpr is implemented by expressions that know without data whether
// they yield a single value.
type scalarExpr interface {
	scalar() bool
}

// IsScalar reports whether e yields one value for any table: literals,
// aggregations and expressions built only from those. Expressions from
// outside this package are assumed scalar and checked at Eval.
func IsScalar(e Expr) bool {
	if se, ok := e.(scalarExpr); ok {
		return se.scalar()
	}
	return true
}

func allScalar(es ...Expr) bool {
	for _, e := range es {
		if !IsScalar(e) {
			return false
		}
	}
	return true
}

// EvalScalarBool materializes e and requires exactly one boolean value.
// Group rules use it to reduce a group to one outcome. An expression that
// does not aggregate is rejected before evaluation, so a one-row group
// cannot hide it.
func EvalScalarBool(e Expr, t *table.Table) (value bool, valid bool, err error) {
	if !IsScalar(e) {
		return false, false, &ArityError{Expr: e.String(), Got: -1}
	}
	v, err := evalVector(e, t)
	if err != nil {
		return false, false, err
	}
	if v.kind != kindBool && v.kind != kindNull {
		return false, false, &TypeError{Expr: e.String(), Got: v.kind.String(), Want: "bool"}
	}
	if v.n != 1 {
		return false, false, &ArityError{Expr: e.String(), Got: v.n}
	}
	if v.kind == kindNull || !v.valid[0] {
		return false, false, nil
	}
	return v.bools[0], true, nil
}

// TypeError reports an expression that evaluated to an unexpected type.
type TypeError struct {
	Expr string
	Got  string
	Want string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expression %s evaluates to %s, want %s", e.Expr, e.Got, e.Want)
}

// ArityError reports a non-aggregated expression where a single value is
// required. Got is -1 when the plan itself does not aggregate.
type ArityError struct {
	Expr string
	Got  int
}

func (e *ArityError) Error() string {
	if e.Got < 0 {
		return fmt.Sprintf("expression %s is not aggregated, want a single value", e.Expr)
	}
	return fmt.Sprintf("expression %s yields %d values per group, want 1", e.Expr, e.Got)
}

type colExpr struct{ name string }

// Col references a column by name.
func Col(name string) Expr { return colExpr{name: name} }

func (colExpr) scalar() bool { return false }

func (c colExpr) String() string { return fmt.Sprintf("col(%q)", c.name) }

func (c colExpr) Eval(t *table.Table) (arrow.Array, error) {
	arr := t.Column(c.name)
	if arr == nil {
		return nil, fmt.Errorf("column %q not found", c.name)
	}
	return arr, nil
}

func (c colExpr) evalVector(t *table.Table) (*vector, error) {
	arr, err := c.Eval(t)
	if err != nil {
		return nil, err
	}
	return fromArrow(arr)
}

// ColumnName returns the referenced column of a Col expression.
func ColumnName(e Expr) (string, bool) {
	c, ok := e.(colExpr)
	return c.name, ok
}

type litExpr struct {
	v   *vector
	err error
	raw any
}

// Lit creates a literal from int, int32, int64, float64, string, bool,
// time.Time (a date) or nil.
func Lit(v any) Expr {
	vec, err := scalar(v)
	return litExpr{v: vec, err: err, raw: v}
}

func (litExpr) scalar() bool { return true }

func (l litExpr) String() string {
	if s, ok := l.raw.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if d, ok := l.raw.(time.Time); ok {
		return d.Format(time.DateOnly)
	}
	return fmt.Sprint(l.raw)
}

func (l litExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := l.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (l litExpr) evalVector(*table.Table) (*vector, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.v, nil
}

func joinExprs(es []Expr, sep string) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}
