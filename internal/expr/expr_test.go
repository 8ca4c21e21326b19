package expr

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/table"
)

// ptr marks a nullable expectation: nil means null.
func ptr(b bool) *bool { return &b }

func fixture(t *testing.T) *table.Table {
	t.Helper()
	ib := array.NewInt64Builder(table.Allocator)
	defer ib.Release()
	ib.AppendValues([]int64{1, 5, 0, 7}, []bool{true, true, false, true})

	fb := array.NewFloat64Builder(table.Allocator)
	defer fb.Release()
	fb.AppendValues([]float64{1.5, 5, 2, 0}, []bool{true, true, true, false})

	sb := array.NewStringBuilder(table.Allocator)
	defer sb.Release()
	sb.AppendValues([]string{"foo", "bar", "", "foobar"}, []bool{true, true, false, true})

	return table.MustFromColumns([]string{"i", "f", "s"}, []arrow.Array{
		ib.NewArray(), fb.NewArray(), sb.NewArray(),
	})
}

func checkBools(t *testing.T, got *array.Boolean, want []*bool) {
	t.Helper()
	if got.Len() != len(want) {
		t.Fatalf("len = %d, want %d", got.Len(), len(want))
	}
	for i, w := range want {
		switch {
		case w == nil && got.IsValid(i):
			t.Errorf("row %d = %v, want null", i, got.Value(i))
		case w != nil && got.IsNull(i):
			t.Errorf("row %d = null, want %v", i, *w)
		case w != nil && got.Value(i) != *w:
			t.Errorf("row %d = %v, want %v", i, got.Value(i), *w)
		}
	}
}

func TestEvalBool(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want []*bool
	}{
		{
			name: "int comparison propagates null",
			expr: Gt(Col("i"), Lit(2)),
			want: []*bool{ptr(false), ptr(true), nil, ptr(true)},
		},
		{
			name: "int and float mix",
			expr: Eq(Col("i"), Col("f")),
			want: []*bool{ptr(false), ptr(true), nil, nil},
		},
		{
			name: "string length",
			expr: Le(StrLen(Col("s")), Lit(3)),
			want: []*bool{ptr(true), ptr(true), nil, ptr(false)},
		},
		{
			name: "kleene and with false dominates null",
			expr: And(Gt(Col("i"), Lit(2)), Lt(Col("f"), Lit(3.0))),
			want: []*bool{ptr(false), ptr(false), nil, nil},
		},
		{
			name: "kleene or with true dominates null",
			expr: Or(Gt(Col("i"), Lit(2)), Lt(Col("f"), Lit(3.0))),
			want: []*bool{ptr(true), ptr(true), ptr(true), ptr(true)},
		},
		{
			name: "is null never null",
			expr: IsNull(Col("s")),
			want: []*bool{ptr(false), ptr(false), ptr(true), ptr(false)},
		},
		{
			name: "regex",
			expr: Matches(Col("s"), "^foo"),
			want: []*bool{ptr(true), ptr(false), nil, ptr(true)},
		},
		{
			name: "is in",
			expr: IsIn(Col("s"), "bar", "baz"),
			want: []*bool{ptr(false), ptr(true), nil, ptr(false)},
		},
		{
			name: "duplicated key",
			expr: IsDuplicated(Col("f")),
			want: []*bool{ptr(false), ptr(false), ptr(false), ptr(false)},
		},
		{
			name: "aggregate broadcasts",
			expr: Ge(Len(), Lit(4)),
			want: []*bool{ptr(true), ptr(true), ptr(true), ptr(true)},
		},
		{
			name: "not",
			expr: Not(StartsWith(Col("s"), "foo")),
			want: []*bool{ptr(false), ptr(true), nil, ptr(false)},
		},
		{
			name: "arithmetic",
			expr: Eq(Add(Col("i"), Lit(1)), Lit(6)),
			want: []*bool{ptr(false), ptr(true), nil, ptr(false)},
		},
	}

	tbl := fixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalBool(tt.expr, tbl)
			if err != nil {
				t.Fatalf("EvalBool(%s) error = %v", tt.expr, err)
			}
			checkBools(t, got, tt.want)
		})
	}
}

func TestEvalBool_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
	}{
		{name: "unknown column", expr: Gt(Col("missing"), Lit(1))},
		{name: "string against int", expr: Eq(Col("s"), Lit(1))},
		{name: "not boolean", expr: Col("i")},
		{name: "invalid regex", expr: Matches(Col("s"), "(")},
	}

	tbl := fixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EvalBool(tt.expr, tbl); err == nil {
				t.Errorf("EvalBool(%s) error = nil, want error", tt.expr)
			}
		})
	}
}

func TestEvalScalarBool(t *testing.T) {
	tbl := fixture(t)

	tests := []struct {
		name      string
		expr      Expr
		wantValue bool
		wantValid bool
		wantErr   bool
	}{
		{name: "len", expr: Eq(Len(), Lit(4)), wantValue: true, wantValid: true},
		{name: "sum", expr: Eq(Sum(Col("i")), Lit(13)), wantValue: true, wantValid: true},
		{name: "max", expr: Eq(Max(Col("s")), Lit("foobar")), wantValue: true, wantValid: true},
		{name: "min", expr: Eq(Min(Col("f")), Lit(1.5)), wantValue: true, wantValid: true},
		{name: "n unique counts null once", expr: Eq(NUnique(Col("s")), Lit(4)), wantValue: true, wantValid: true},
		{name: "any", expr: Any(Gt(Col("i"), Lit(6))), wantValue: true, wantValid: true},
		{name: "all ignores null", expr: All(IsNotNull(Col("f"))), wantValue: false, wantValid: true},
		{name: "count", expr: Eq(Count(Col("i")), Lit(3)), wantValue: true, wantValid: true},
		{name: "per-row is not aggregated", expr: Gt(Col("i"), Lit(0)), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, valid, err := EvalScalarBool(tt.expr, tbl)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("EvalScalarBool(%s) error = nil, want error", tt.expr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EvalScalarBool(%s) error = %v", tt.expr, err)
			}
			if value != tt.wantValue || valid != tt.wantValid {
				t.Errorf("EvalScalarBool(%s) = (%v, %v), want (%v, %v)", tt.expr, value, valid, tt.wantValue, tt.wantValid)
			}
		})
	}
}

func TestIsScalar(t *testing.T) {
	tests := []struct {
		expr Expr
		want bool
	}{
		{expr: Lit(1), want: true},
		{expr: Col("i"), want: false},
		{expr: Ge(Len(), Lit(2)), want: true},
		{expr: Gt(Col("i"), Lit(0)), want: false},
		{expr: And(Any(IsNull(Col("f"))), Le(Max(Col("i")), Lit(9))), want: true},
		{expr: Or(Any(IsNull(Col("f"))), IsNull(Col("i"))), want: false},
		{expr: Not(All(Gt(Col("i"), Lit(0)))), want: true},
		{expr: Eq(Add(Sum(Col("i")), Lit(1)), Lit(14)), want: true},
		{expr: IsIn(Max(Col("s")), "a", "b"), want: true},
		{expr: IsUnique(Col("i")), want: false},
		{expr: Matches(Col("s"), "^f"), want: false},
	}
	for _, tt := range tests {
		if got := IsScalar(tt.expr); got != tt.want {
			t.Errorf("IsScalar(%s) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvalScalarBool_SingleRowStillNeedsAggregation(t *testing.T) {
	tbl := table.MustFromColumns([]string{"i"}, []arrow.Array{table.Int64s(5)})
	_, _, err := EvalScalarBool(Gt(Col("i"), Lit(0)), tbl)
	var arity *ArityError
	if !errors.As(err, &arity) {
		t.Fatalf("EvalScalarBool() error = %v, want *ArityError", err)
	}
	if arity.Got != -1 {
		t.Errorf("ArityError.Got = %d, want -1", arity.Got)
	}
}
