package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/table"
)

// Aggregations reduce their input to a single value. Group rules must
// reduce to exactly one boolean per group, so their expressions are built
// from these.

type aggKind int

const (
	aggLen aggKind = iota
	aggCount
	aggSum
	aggMin
	aggMax
	aggNUnique
	aggAny
	aggAll
)

var aggNames = map[aggKind]string{
	aggLen:     "len",
	aggCount:   "count",
	aggSum:     "sum",
	aggMin:     "min",
	aggMax:     "max",
	aggNUnique: "n_unique",
	aggAny:     "any",
	aggAll:     "all",
}

type aggExpr struct {
	kind aggKind
	e    Expr
}

// Len counts rows, including nulls.
func Len() Expr { return aggExpr{kind: aggLen} }

// Count counts non-null values.
func Count(e Expr) Expr { return aggExpr{kind: aggCount, e: e} }

// Sum adds non-null numeric values; the sum of nothing is 0.
func Sum(e Expr) Expr { return aggExpr{kind: aggSum, e: e} }

// Min returns the smallest non-null value, or null.
func Min(e Expr) Expr { return aggExpr{kind: aggMin, e: e} }

// Max returns the largest non-null value, or null.
func Max(e Expr) Expr { return aggExpr{kind: aggMax, e: e} }

// NUnique counts distinct values; null counts as one value.
func NUnique(e Expr) Expr { return aggExpr{kind: aggNUnique, e: e} }

// Any is true if any non-null value is true.
func Any(e Expr) Expr { return aggExpr{kind: aggAny, e: e} }

// All is true if every non-null value is true.
func All(e Expr) Expr { return aggExpr{kind: aggAll, e: e} }

func (aggExpr) scalar() bool { return true }

func (x aggExpr) String() string {
	if x.e == nil {
		return aggNames[x.kind] + "()"
	}
	return fmt.Sprintf("%s.%s()", x.e, aggNames[x.kind])
}

func (x aggExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x aggExpr) evalVector(t *table.Table) (*vector, error) {
	if x.kind == aggLen {
		out := newVector(kindInt, 1)
		out.ints[0], out.valid[0] = int64(t.NumRows()), true
		return out, nil
	}

	v, err := evalVector(x.e, t)
	if err != nil {
		return nil, err
	}
	v = v.broadcast(t.NumRows())

	switch x.kind {
	case aggCount:
		out := newVector(kindInt, 1)
		out.valid[0] = true
		for i := 0; i < v.n; i++ {
			if v.valid[i] {
				out.ints[0]++
			}
		}
		return out, nil

	case aggNUnique:
		keys := table.RowKeys([]arrow.Array{v.toArrow()}, v.n)
		seen := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		out := newVector(kindInt, 1)
		out.ints[0], out.valid[0] = int64(len(seen)), true
		return out, nil

	case aggAny, aggAll:
		if v.kind != kindBool && v.kind != kindNull {
			return nil, &TypeError{Expr: x.e.String(), Got: v.kind.String(), Want: "bool"}
		}
		out := newVector(kindBool, 1)
		out.valid[0] = true
		out.bools[0] = x.kind == aggAll
		if v.kind == kindNull {
			return out, nil
		}
		for i := 0; i < v.n; i++ {
			if !v.valid[i] {
				continue
			}
			if x.kind == aggAny && v.bools[i] {
				out.bools[0] = true
				break
			}
			if x.kind == aggAll && !v.bools[i] {
				out.bools[0] = false
				break
			}
		}
		return out, nil

	case aggSum:
		if v.kind == kindNull {
			out := newVector(kindInt, 1)
			out.valid[0] = true
			return out, nil
		}
		if !v.kind.numeric() {
			return nil, &TypeError{Expr: x.e.String(), Got: v.kind.String(), Want: "numeric"}
		}
		out := newVector(v.kind, 1)
		out.valid[0] = true
		for i := 0; i < v.n; i++ {
			if !v.valid[i] {
				continue
			}
			if v.kind == kindInt {
				out.ints[0] += v.ints[i]
			} else {
				out.floats[0] += v.floats[i]
			}
		}
		return out, nil

	case aggMin, aggMax:
		if v.kind == kindNull {
			return nullVector(1), nil
		}
		best := -1
		for i := 0; i < v.n; i++ {
			if !v.valid[i] {
				continue
			}
			if best < 0 {
				best = i
				continue
			}
			c := orderAt(v, i, best)
			if (x.kind == aggMin && c < 0) || (x.kind == aggMax && c > 0) {
				best = i
			}
		}
		if best < 0 {
			return newVector(v.kind, 1), nil
		}
		return v.slice(best), nil

	default:
		return nil, fmt.Errorf("unknown aggregation %d", int(x.kind))
	}
}

// orderAt compares elements i and j of one vector.
func orderAt(v *vector, i, j int) int {
	switch v.kind {
	case kindInt, kindDate:
		return compareOrdered(v.ints[i], v.ints[j])
	case kindFloat:
		return compareOrdered(v.floats[i], v.floats[j])
	case kindString:
		return strings.Compare(v.strs[i], v.strs[j])
	case kindBool:
		return compareOrdered(boolRank(v.bools[i]), boolRank(v.bools[j]))
	default:
		return 0
	}
}
