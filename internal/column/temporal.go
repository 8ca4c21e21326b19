package column

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

var (
	minDate = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Bool is a boolean column.
type Bool struct {
	Base
}

func (c Bool) DType() arrow.DataType { return arrow.FixedWidthTypes.Boolean }

func (c Bool) ValidationRules(ref expr.Expr) []expr.Named {
	return append(c.baseRules(ref), c.checkRule(ref)...)
}

func (c Bool) Validate() error { return nil }

func (c Bool) Sample(g *random.Generator, n int) (arrow.Array, error) {
	return c.withNulls(g, table.Bools(g.Bools(n), nil)), nil
}

// Date is a calendar date column stored as days since the epoch.
type Date struct {
	Base
	Min *time.Time
	Max *time.Time
}

func (c Date) DType() arrow.DataType { return arrow.FixedWidthTypes.Date32 }

func (c Date) ValidationRules(ref expr.Expr) []expr.Named {
	rules := c.baseRules(ref)
	rules = append(rules, ordinalRules(ref, c.Min, nil, c.Max, nil)...)
	return append(rules, c.checkRule(ref)...)
}

func (c Date) Validate() error {
	if c.Min != nil && c.Max != nil && c.Min.After(*c.Max) {
		return types.NewImplementationError("`min` must not be greater than `max`.")
	}
	return nil
}

func (c Date) Sample(g *random.Generator, n int) (arrow.Array, error) {
	lo, hi := minDate, maxDate
	if c.Min != nil {
		lo = *c.Min
	}
	if c.Max != nil {
		hi = *c.Max
	}
	b := array.NewDate32Builder(table.Allocator)
	defer b.Release()
	for _, d := range g.Dates(n, lo, hi) {
		b.Append(arrow.Date32FromTime(d))
	}
	return c.withNulls(g, b.NewArray()), nil
}
