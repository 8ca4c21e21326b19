package column

import (
	"regexp"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

// String is a UTF-8 column. Lengths count characters, not bytes.
type String struct {
	Base
	MinLength *int
	MaxLength *int
	// Regex must match somewhere in the value (unanchored).
	Regex string
	IsIn  []string
}

func (c String) DType() arrow.DataType { return arrow.BinaryTypes.String }

func (c String) ValidationRules(ref expr.Expr) []expr.Named {
	rules := c.baseRules(ref)
	if c.MinLength != nil {
		rules = append(rules, expr.Named{Name: "min_length", Expr: expr.Ge(expr.StrLen(ref), expr.Lit(*c.MinLength))})
	}
	if c.MaxLength != nil {
		rules = append(rules, expr.Named{Name: "max_length", Expr: expr.Le(expr.StrLen(ref), expr.Lit(*c.MaxLength))})
	}
	if c.Regex != "" {
		rules = append(rules, expr.Named{Name: "regex", Expr: expr.Matches(ref, c.Regex)})
	}
	if c.IsIn != nil {
		rules = append(rules, expr.Named{Name: "is_in", Expr: expr.IsIn(ref, toAny(c.IsIn)...)})
	}
	return append(rules, c.checkRule(ref)...)
}

func (c String) Validate() error {
	switch {
	case c.MinLength != nil && *c.MinLength < 0:
		return types.NewImplementationError("`min_length` must not be negative.")
	case c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength:
		return types.NewImplementationError("`min_length` must not be greater than `max_length`.")
	}
	if c.Regex != "" {
		if _, err := regexp.Compile(c.Regex); err != nil {
			return types.NewImplementationError("Invalid `regex` %q: %v", c.Regex, err)
		}
	}
	return validateIsIn(len(c.IsIn), c.IsIn != nil)
}

func (c String) Sample(g *random.Generator, n int) (arrow.Array, error) {
	var values []string
	switch {
	case c.IsIn != nil:
		values = sampleChoices(g, n, c.IsIn)
	case c.Regex != "":
		var err error
		if values, err = g.Matching(n, c.Regex); err != nil {
			return nil, err
		}
	default:
		lo, hi := 0, random.DefaultMaxStringLength
		if c.MinLength != nil {
			lo = *c.MinLength
			hi = max(hi, lo)
		}
		if c.MaxLength != nil {
			hi = *c.MaxLength
		}
		values = g.Strings(n, lo, hi)
	}
	b := array.NewStringBuilder(table.Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return c.withNulls(g, b.NewArray()), nil
}
