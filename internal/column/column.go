// internal/column/column.go
package column

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Column definitions.
 *
 * A column describes one schema column: its arrow dtype, whether it may
 * hold nulls, whether it is part of the primary key, and the per-row
 * validation rules derived from its constraints. Columns also know how to
 * sample random values that are likely (not guaranteed) to pass their own
 * rules; the sampler filters and retries.
 *
 * Rule names are fixed per constraint so failure counts read the same
 * across schemas:
 *   nullability, min, max, min_exclusive, max_exclusive, is_in,
 *   min_length, max_length, regex, nan, check
 *
 * Rules are returned in that order, nullability first.
 */

// Column is a typed column definition.
type Column interface {
	DType() arrow.DataType
	Nullable() bool
	PrimaryKey() bool
	// ValidationRules returns the column's rules evaluated against ref.
	ValidationRules(ref expr.Expr) []expr.Named
	// Sample draws n values. Nullable columns include nulls.
	Sample(g *random.Generator, n int) (arrow.Array, error)
	// Validate checks the definition itself for contradictions.
	Validate() error
}

// CheckFunc builds a custom per-row check against the column reference.
type CheckFunc func(ref expr.Expr) expr.Expr

// Base holds the options shared by all column types. Primary key columns
// are never nullable, regardless of AllowNull.
type Base struct {
	AllowNull bool
	Primary   bool
	Check     CheckFunc
}

func (b Base) Nullable() bool   { return b.AllowNull && !b.Primary }
func (b Base) PrimaryKey() bool { return b.Primary }

// baseRules returns the nullability rule.
func (b Base) baseRules(ref expr.Expr) []expr.Named {
	if b.Nullable() {
		return nil
	}
	return []expr.Named{{Name: "nullability", Expr: expr.IsNotNull(ref)}}
}

// checkRule returns the custom check rule, if any.
func (b Base) checkRule(ref expr.Expr) []expr.Named {
	if b.Check == nil {
		return nil
	}
	return []expr.Named{{Name: "check", Expr: b.Check(ref)}}
}

// withNulls replaces values with nulls at the default probability when
// the column is nullable.
func (b Base) withNulls(g *random.Generator, arr arrow.Array) arrow.Array {
	if !b.Nullable() || arr.Len() == 0 {
		return arr
	}
	mask := g.ValidMask(arr.Len(), types.DefaultNullProbability)
	indices := make([]int, arr.Len())
	for i, valid := range mask {
		if valid {
			indices[i] = i
		} else {
			indices[i] = -1
		}
	}
	return table.Gather(arr, indices)
}

// Equal reports whether two columns are interchangeable: same kind, dtype,
// nullability, key membership and rules.
func Equal(a, b Column) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if !arrow.TypeEqual(a.DType(), b.DType()) || a.Nullable() != b.Nullable() || a.PrimaryKey() != b.PrimaryKey() {
		return false
	}
	ref := expr.Col("_")
	ra, rb := a.ValidationRules(ref), b.ValidationRules(ref)
	if len(ra) != len(rb) {
		return false
	}
	for i := range ra {
		if ra[i].Name != rb[i].Name || ra[i].Expr.String() != rb[i].Expr.String() {
			return false
		}
	}
	return true
}

// Describe renders a column for schema listings.
func Describe(c Column) string {
	var parts []string
	if c.PrimaryKey() {
		parts = append(parts, "primary_key")
	}
	if c.Nullable() {
		parts = append(parts, "nullable")
	}
	for _, r := range c.ValidationRules(expr.Col("_")) {
		if r.Name == "nullability" {
			continue
		}
		parts = append(parts, r.Name)
	}
	if len(parts) == 0 {
		return c.DType().String()
	}
	return fmt.Sprintf("%s(%s)", c.DType(), strings.Join(parts, ", "))
}

// sampleChoices draws n values from a fixed value list.
func sampleChoices[T any](g *random.Generator, n int, values []T) []T {
	out := make([]T, n)
	for i, k := range g.Choice(n, len(values)) {
		out[i] = values[k]
	}
	return out
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func int64Array(values []int64) arrow.Array {
	b := array.NewInt64Builder(table.Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}
