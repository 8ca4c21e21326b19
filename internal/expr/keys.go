package expr

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/table"
)

type duplicatedExpr struct {
	keys   []Expr
	negate bool
}

// IsDuplicated flags rows whose combined key over keys occurs more than once.
// Nulls in a key compare equal to each other.
func IsDuplicated(keys ...Expr) Expr { return duplicatedExpr{keys: keys} }

// IsUnique is the negation of IsDuplicated.
func IsUnique(keys ...Expr) Expr { return duplicatedExpr{keys: keys, negate: true} }

// Cols references several columns by name.
func Cols(names ...string) []Expr {
	out := make([]Expr, len(names))
	for i, n := range names {
		out[i] = Col(n)
	}
	return out
}

func (duplicatedExpr) scalar() bool { return false }

func (x duplicatedExpr) String() string {
	name := "is_duplicated"
	if x.negate {
		name = "is_unique"
	}
	return fmt.Sprintf("struct(%s).%s()", joinExprs(x.keys, ", "), name)
}

func (x duplicatedExpr) Eval(t *table.Table) (arrow.Array, error) {
	v, err := x.evalVector(t)
	if err != nil {
		return nil, err
	}
	return v.toArrow(), nil
}

func (x duplicatedExpr) evalVector(t *table.Table) (*vector, error) {
	n := t.NumRows()
	cols := make([]arrow.Array, len(x.keys))
	for i, k := range x.keys {
		v, err := evalVector(k, t)
		if err != nil {
			return nil, err
		}
		cols[i] = v.broadcast(n).toArrow()
	}
	mask := table.DuplicatedMask(cols, n)
	out := newVector(kindBool, n)
	for i := 0; i < n; i++ {
		out.bools[i], out.valid[i] = mask.Value(i) != x.negate, true
	}
	return out, nil
}
