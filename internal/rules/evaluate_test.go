// internal/rules/evaluate_test.go
package rules

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

type stubContext struct{ keys []string }

func (c stubContext) Name() string          { return "stub" }
func (c stubContext) ColumnNames() []string { return []string{"a", "b"} }
func (c stubContext) PrimaryKeys() []string { return c.keys }

func boolValues(t *testing.T, tbl *table.Table, name string) []bool {
	t.Helper()
	col, ok := tbl.Column(name).(*array.Boolean)
	if !ok {
		t.Fatalf("column %q is not boolean", name)
	}
	out := make([]bool, col.Len())
	for i := range out {
		if col.IsNull(i) {
			t.Fatalf("column %q row %d is null", name, i)
		}
		out[i] = col.Value(i)
	}
	return out
}

func nullableInts(values []int64, valid []bool) arrow.Array {
	b := array.NewInt64Builder(table.Allocator)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}

func nullableStrings(values []string, valid []bool) arrow.Array {
	b := array.NewStringBuilder(table.Allocator)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}

func TestEvaluate_NoRules(t *testing.T) {
	tbl := table.MustFromColumns([]string{"a"}, []arrow.Array{table.Int64s(1, 2)})
	ev, err := Evaluate(tbl, NewSet(), nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if ev != nil {
		t.Errorf("Evaluate() = %v, want nil", ev)
	}
}

func TestEvaluate_PrimaryKeyAndColumnRule(t *testing.T) {
	tbl := table.MustFromColumns([]string{"a", "b"}, []arrow.Array{
		table.Int64s(1, 2, 2),
		table.Strings("foo", "bar", "foobar"),
	})
	set := Compile(nil, []NamedColumn{{Name: "a", Spec: stubColumn{primary: true}}})
	set.Add("b|max_length", Row(expr.Le(expr.StrLen(expr.Col("b")), expr.Lit(3))))

	ev, err := Evaluate(tbl, set, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if want := []string{"primary_key", "b|max_length"}; !reflect.DeepEqual(ev.Rules, want) {
		t.Errorf("Rules = %v, want %v", ev.Rules, want)
	}
	if got, want := boolValues(t, ev.Table, "primary_key"), []bool{true, false, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("primary_key = %v, want %v", got, want)
	}
	if got, want := boolValues(t, ev.Table, "b|max_length"), []bool{true, true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("b|max_length = %v, want %v", got, want)
	}
	if got, want := boolValues(t, WithFinalValid(ev), types.FinalValidColumn), []bool{true, false, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %v, want %v", types.FinalValidColumn, got, want)
	}
}

func TestEvaluate_NullOutcomeCountsAsValid(t *testing.T) {
	tbl := table.MustFromColumns([]string{"a"}, []arrow.Array{
		nullableInts([]int64{5, 0, -1}, []bool{true, false, true}),
	})
	set := SetOf(Named{Name: "positive", Rule: Row(expr.Gt(expr.Col("a"), expr.Lit(0)))})

	ev, err := Evaluate(tbl, set, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got, want := boolValues(t, ev.Table, "positive"), []bool{true, true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("positive = %v, want %v", got, want)
	}
}

func TestEvaluate_GroupRules(t *testing.T) {
	tbl := table.MustFromColumns([]string{"g", "v"}, []arrow.Array{
		nullableStrings([]string{"x", "y", "x", "", ""}, []bool{true, true, true, false, false}),
		nullableInts([]int64{1, 5, 2, 0, 0}, []bool{true, true, true, false, false}),
	})
	set := SetOf(
		Named{Name: "min_size", Rule: Group(expr.Ge(expr.Len(), expr.Lit(2)), "g")},
		Named{Name: "small_sum", Rule: Group(expr.Lt(expr.Sum(expr.Col("v")), expr.Lit(3)), "g")},
		Named{Name: "max_positive", Rule: Group(expr.Gt(expr.Max(expr.Col("v")), expr.Lit(0)), "g")},
	)

	ev, err := Evaluate(tbl, set, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if ev.Table.NumRows() != 5 {
		t.Fatalf("NumRows() = %d, want 5", ev.Table.NumRows())
	}

	tests := []struct {
		rule string
		want []bool
	}{
		// null keys form one group of two rows
		{rule: "min_size", want: []bool{true, false, true, true, true}},
		{rule: "small_sum", want: []bool{false, false, false, true, true}},
		// max over an all-null group is null and therefore valid
		{rule: "max_positive", want: []bool{true, true, true, true, true}},
	}
	for _, tt := range tests {
		if got := boolValues(t, ev.Table, tt.rule); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.rule, got, tt.want)
		}
	}
}

func TestEvaluate_OverlappingGroupings(t *testing.T) {
	tbl := table.MustFromColumns([]string{"a", "b"}, []arrow.Array{
		table.Int64s(1, 2, 1, 1),
		table.Int64s(1, 2, 2, 1),
	})
	set := SetOf(
		Named{Name: "a2", Rule: Group(expr.Ge(expr.Len(), expr.Lit(2)), "a")},
		Named{Name: "ab2", Rule: Group(expr.Ge(expr.Len(), expr.Lit(2)), "a", "b")},
		// same columns as ab2 in another order
		Named{Name: "ba_max_b", Rule: Group(expr.Eq(expr.Max(expr.Col("b")), expr.Lit(2)), "b", "a")},
	)

	ev, err := Evaluate(tbl, set, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if want := []string{"a2", "ab2", "ba_max_b"}; !reflect.DeepEqual(ev.Rules, want) {
		t.Errorf("Rules = %v, want %v", ev.Rules, want)
	}

	tests := []struct {
		rule string
		want []bool
	}{
		{rule: "a2", want: []bool{true, false, true, true}},
		{rule: "ab2", want: []bool{true, false, false, true}},
		{rule: "ba_max_b", want: []bool{false, true, true, false}},
	}
	for _, tt := range tests {
		if got := boolValues(t, ev.Table, tt.rule); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.rule, got, tt.want)
		}
	}

	for _, c := range []struct {
		name string
		want []int64
	}{
		{name: "a", want: []int64{1, 2, 1, 1}},
		{name: "b", want: []int64{1, 2, 2, 1}},
	} {
		col := ev.Table.Column(c.name).(*array.Int64)
		if got := col.Int64Values(); !reflect.DeepEqual(got, c.want) {
			t.Errorf("column %s = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestGroupKey_IgnoresColumnOrder(t *testing.T) {
	if groupKey([]string{"a", "b"}) != groupKey([]string{"b", "a"}) {
		t.Errorf("groupKey(a, b) != groupKey(b, a)")
	}
	if groupKey([]string{"a"}) == groupKey([]string{"a", "b"}) {
		t.Errorf("groupKey(a) == groupKey(a, b)")
	}
}

func TestEvaluate_LazyRules(t *testing.T) {
	tbl := table.MustFromColumns([]string{"a", "b"}, []arrow.Array{
		table.Int64s(1, 1),
		table.Int64s(1, 2),
	})
	set := SetOf(
		Named{Name: "unique_keys", Rule: RowLazy(func(tc TypeContext) expr.Expr {
			return expr.IsUnique(expr.Cols(tc.PrimaryKeys()...)...)
		})},
		Named{Name: "eager", Rule: Row(expr.Lit(true))},
	)

	ev, err := Evaluate(tbl, set, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if want := []string{"eager"}; !reflect.DeepEqual(ev.Rules, want) {
		t.Errorf("Rules without context = %v, want %v", ev.Rules, want)
	}
	if ev.Table.HasColumn("unique_keys") {
		t.Errorf("skipped lazy rule has a column")
	}

	ev, err = Evaluate(tbl, set, stubContext{keys: []string{"a"}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got, want := boolValues(t, ev.Table, "unique_keys"), []bool{false, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("unique_keys = %v, want %v", got, want)
	}
}

func TestEvaluate_ImplementationErrors(t *testing.T) {
	tbl := table.MustFromColumns([]string{"g", "v"}, []arrow.Array{
		table.Strings("x", "x", "y"),
		table.Int64s(1, 2, 3),
	})

	tests := []struct {
		name string
		rule Rule
	}{
		{name: "row rule returning integers", rule: Row(expr.Col("v"))},
		{name: "group rule without aggregation", rule: Group(expr.Gt(expr.Col("v"), expr.Lit(0)), "g")},
		{name: "group rule returning integers", rule: Group(expr.Len(), "g")},
		{name: "lazy group rule without aggregation", rule: GroupLazy(func(TypeContext) expr.Expr {
			return expr.IsNotNull(expr.Col("v"))
		}, "g")},
	}
	singletons := table.MustFromColumns([]string{"g", "v"}, []arrow.Array{
		table.Strings("x", "y", "z"),
		table.Int64s(1, 2, 3),
	})
	empty := table.MustFromColumns([]string{"g", "v"}, []arrow.Array{
		table.Strings(),
		table.Int64s(),
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tbl, SetOf(Named{Name: "broken", Rule: tt.rule}), stubContext{})
			if !errors.Is(err, types.ErrImplementation) {
				t.Errorf("Evaluate() error = %v, want ErrImplementation", err)
			}
		})
	}

	// A missing aggregation is caught whatever the group sizes.
	missing := Group(expr.Gt(expr.Col("v"), expr.Lit(0)), "g")
	for name, data := range map[string]*table.Table{"one row per group": singletons, "no rows": empty} {
		t.Run(name, func(t *testing.T) {
			_, err := Evaluate(data, SetOf(Named{Name: "broken", Rule: missing}), nil)
			if !errors.Is(err, types.ErrImplementation) {
				t.Fatalf("Evaluate() error = %v, want ErrImplementation", err)
			}
			if !strings.Contains(err.Error(), "It does not aggregate") {
				t.Errorf("error = %q, want a missing aggregation message", err)
			}
		})
	}
}

func TestMaskCastFailures(t *testing.T) {
	raw := table.MustFromColumns([]string{"a"}, []arrow.Array{
		nullableStrings([]string{"1", "x", ""}, []bool{true, true, false}),
	})
	snap := SnapshotNulls(raw, []string{"a"})
	cast, err := Cast(snap.Column("a"), arrow.PrimitiveTypes.Int64)
	if err != nil {
		t.Fatalf("Cast() error = %v, want nil", err)
	}
	tbl := snap.WithColumn("a", cast)

	set := DtypeRules([]string{"a"})
	set.Add("a|nullability", Row(expr.IsNotNull(expr.Col("a"))))

	ev, err := Evaluate(tbl, set, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	masked := MaskCastFailures(ev)

	if got, want := boolValues(t, masked.Table, "a|dtype"), []bool{true, false, true}; !reflect.DeepEqual(got, want) {
		t.Errorf("a|dtype = %v, want %v", got, want)
	}
	nullability := masked.Table.Column("a|nullability").(*array.Boolean)
	if !nullability.Value(0) || nullability.IsNull(0) {
		t.Errorf("a|nullability row 0 = %v, want true", nullability.Value(0))
	}
	if nullability.IsValid(1) {
		t.Errorf("a|nullability row 1 is valid, want null after a cast failure")
	}
	if nullability.IsNull(2) || nullability.Value(2) {
		t.Errorf("a|nullability row 2 = %v, want false", nullability.Value(2))
	}
}

// Property-based test: a null operand never fails a comparison rule
func TestEvaluate_PropertyNullIsValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("null values pass value rules", prop.ForAll(
		func(values []int64, nullEvery int) bool {
			valid := make([]bool, len(values))
			for i := range valid {
				valid[i] = i%nullEvery != 0
			}
			tbl := table.MustFromColumns([]string{"a"}, []arrow.Array{nullableInts(values, valid)})
			set := SetOf(Named{Name: "a|min", Rule: Row(expr.Ge(expr.Col("a"), expr.Lit(0)))})

			ev, err := Evaluate(tbl, set, nil)
			if err != nil {
				return false
			}
			col := ev.Table.Column("a|min").(*array.Boolean)
			if col.Len() != len(values) || col.NullN() != 0 {
				return false
			}
			for i := range values {
				want := !valid[i] || values[i] >= 0
				if col.Value(i) != want {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-100, 100)),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

// Property-based test: group evaluation keeps row count and order
func TestEvaluate_PropertyGroupPreservesRows(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("group rules align with input rows", prop.ForAll(
		func(keys []int64, minSize int) bool {
			tbl := table.MustFromColumns([]string{"k"}, []arrow.Array{table.Int64s(keys...)})
			set := SetOf(Named{Name: "size", Rule: Group(expr.Ge(expr.Len(), expr.Lit(minSize)), "k")})

			ev, err := Evaluate(tbl, set, nil)
			if err != nil {
				return false
			}
			counts := make(map[int64]int)
			for _, k := range keys {
				counts[k]++
			}
			col := ev.Table.Column("size").(*array.Boolean)
			if col.Len() != len(keys) {
				return false
			}
			for i, k := range keys {
				if col.Value(i) != (counts[k] >= minSize) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 5)),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
