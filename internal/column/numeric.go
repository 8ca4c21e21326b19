package column

import (
	"cmp"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

// defaultFloatSpan is the width of the sampled range for unbounded floats.
const defaultFloatSpan = 2e6

// Int64 is a 64-bit integer column.
type Int64 struct {
	Base
	Min          *int64
	MinExclusive *int64
	Max          *int64
	MaxExclusive *int64
	IsIn         []int64
}

func (c Int64) DType() arrow.DataType { return arrow.PrimitiveTypes.Int64 }

func (c Int64) ValidationRules(ref expr.Expr) []expr.Named {
	rules := c.baseRules(ref)
	rules = append(rules, ordinalRules(ref, c.Min, c.MinExclusive, c.Max, c.MaxExclusive)...)
	if c.IsIn != nil {
		rules = append(rules, expr.Named{Name: "is_in", Expr: expr.IsIn(ref, toAny(c.IsIn)...)})
	}
	return append(rules, c.checkRule(ref)...)
}

func (c Int64) Validate() error {
	if err := validateOrdinal(c.Min, c.MinExclusive, c.Max, c.MaxExclusive); err != nil {
		return err
	}
	return validateIsIn(len(c.IsIn), c.IsIn != nil)
}

func (c Int64) Sample(g *random.Generator, n int) (arrow.Array, error) {
	if c.IsIn != nil {
		return c.withNulls(g, int64Array(sampleChoices(g, n, c.IsIn))), nil
	}
	lo, hi := intBounds(c.Min, c.MinExclusive, c.Max, c.MaxExclusive, math.MinInt64, math.MaxInt64)
	if lo > hi {
		return nil, fmt.Errorf("empty range [%d, %d]", lo, hi)
	}
	return c.withNulls(g, int64Array(g.Int64s(n, lo, hi))), nil
}

// Int32 is a 32-bit integer column.
type Int32 struct {
	Base
	Min *int32
	Max *int32
}

func (c Int32) DType() arrow.DataType { return arrow.PrimitiveTypes.Int32 }

func (c Int32) ValidationRules(ref expr.Expr) []expr.Named {
	rules := c.baseRules(ref)
	rules = append(rules, ordinalRules(ref, c.Min, nil, c.Max, nil)...)
	return append(rules, c.checkRule(ref)...)
}

func (c Int32) Validate() error {
	return validateOrdinal(c.Min, nil, c.Max, nil)
}

func (c Int32) Sample(g *random.Generator, n int) (arrow.Array, error) {
	var lo, hi int64 = math.MinInt32, math.MaxInt32
	if c.Min != nil {
		lo = int64(*c.Min)
	}
	if c.Max != nil {
		hi = int64(*c.Max)
	}
	b := array.NewInt32Builder(table.Allocator)
	defer b.Release()
	for _, v := range g.Int64s(n, lo, hi) {
		b.Append(int32(v))
	}
	return c.withNulls(g, b.NewArray()), nil
}

// Float64 is a double precision column. NaN is rejected unless AllowNaN.
type Float64 struct {
	Base
	Min      *float64
	Max      *float64
	AllowNaN bool
}

func (c Float64) DType() arrow.DataType { return arrow.PrimitiveTypes.Float64 }

func (c Float64) ValidationRules(ref expr.Expr) []expr.Named {
	rules := c.baseRules(ref)
	rules = append(rules, ordinalRules(ref, c.Min, nil, c.Max, nil)...)
	if !c.AllowNaN {
		rules = append(rules, expr.Named{Name: "nan", Expr: expr.Not(expr.IsNaN(ref))})
	}
	return append(rules, c.checkRule(ref)...)
}

func (c Float64) Validate() error {
	if (c.Min != nil && math.IsNaN(*c.Min)) || (c.Max != nil && math.IsNaN(*c.Max)) {
		return types.NewImplementationError("Float bounds must not be NaN.")
	}
	return validateOrdinal(c.Min, nil, c.Max, nil)
}

func (c Float64) Sample(g *random.Generator, n int) (arrow.Array, error) {
	var lo, hi float64
	switch {
	case c.Min != nil && c.Max != nil:
		lo, hi = *c.Min, *c.Max
	case c.Min != nil:
		lo, hi = *c.Min, *c.Min+defaultFloatSpan
	case c.Max != nil:
		lo, hi = *c.Max-defaultFloatSpan, *c.Max
	default:
		lo, hi = -defaultFloatSpan/2, defaultFloatSpan/2
	}
	values := g.Float64s(n, lo, hi)
	if c.AllowNaN {
		for i, valid := range g.ValidMask(n, types.DefaultNullProbability) {
			if !valid {
				values[i] = math.NaN()
			}
		}
	}
	b := array.NewFloat64Builder(table.Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return c.withNulls(g, b.NewArray()), nil
}

// ordinalRules returns min, min_exclusive, max and max_exclusive rules for
// the bounds that are set.
func ordinalRules[T any](ref expr.Expr, lo, loExcl, hi, hiExcl *T) []expr.Named {
	var rules []expr.Named
	if lo != nil {
		rules = append(rules, expr.Named{Name: "min", Expr: expr.Ge(ref, expr.Lit(*lo))})
	}
	if loExcl != nil {
		rules = append(rules, expr.Named{Name: "min_exclusive", Expr: expr.Gt(ref, expr.Lit(*loExcl))})
	}
	if hi != nil {
		rules = append(rules, expr.Named{Name: "max", Expr: expr.Le(ref, expr.Lit(*hi))})
	}
	if hiExcl != nil {
		rules = append(rules, expr.Named{Name: "max_exclusive", Expr: expr.Lt(ref, expr.Lit(*hiExcl))})
	}
	return rules
}

func validateOrdinal[T cmp.Ordered](lo, loExcl, hi, hiExcl *T) error {
	switch {
	case lo != nil && loExcl != nil:
		return types.NewImplementationError("At most one of `min` and `min_exclusive` must be set.")
	case hi != nil && hiExcl != nil:
		return types.NewImplementationError("At most one of `max` and `max_exclusive` must be set.")
	case lo != nil && hi != nil && *lo > *hi:
		return types.NewImplementationError("`min` must not be greater than `max`.")
	case loExcl != nil && hi != nil && *loExcl >= *hi:
		return types.NewImplementationError("`min_exclusive` must not be greater or equal to `max`.")
	case lo != nil && hiExcl != nil && *lo >= *hiExcl:
		return types.NewImplementationError("`min` must not be greater or equal to `max_exclusive`.")
	case loExcl != nil && hiExcl != nil && *loExcl >= *hiExcl:
		return types.NewImplementationError("`min_exclusive` must not be greater or equal to `max_exclusive`.")
	}
	return nil
}

func validateIsIn(n int, set bool) error {
	switch {
	case set && n == 0:
		return types.NewImplementationError("`is_in` must list at least one value.")
	case n > types.MaxIsInValues:
		return types.NewImplementationError("`is_in` lists %d values, at most %d are allowed.", n, types.MaxIsInValues)
	}
	return nil
}

// intBounds resolves inclusive sampling bounds from optional constraints.
func intBounds(lo, loExcl, hi, hiExcl *int64, defLo, defHi int64) (int64, int64) {
	a, b := defLo, defHi
	switch {
	case lo != nil:
		a = *lo
	case loExcl != nil:
		a = *loExcl + 1
	}
	switch {
	case hi != nil:
		b = *hi
	case hiExcl != nil:
		b = *hiExcl - 1
	}
	return a, b
}
