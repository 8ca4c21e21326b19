// internal/rules/compile_test.go
package rules

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/types"
)

// stubColumn is a ColumnSpec with fixed rules.
type stubColumn struct {
	primary bool
	rules   []string
}

func (c stubColumn) PrimaryKey() bool { return c.primary }

func (c stubColumn) ValidationRules(ref expr.Expr) []expr.Named {
	out := make([]expr.Named, 0, len(c.rules))
	for _, name := range c.rules {
		out = append(out, expr.Named{Name: name, Expr: expr.IsNotNull(ref)})
	}
	return out
}

func TestCompile_Order(t *testing.T) {
	custom := SetOf(Named{Name: "positive", Rule: Row(expr.Gt(expr.Col("a"), expr.Lit(0)))})
	columns := []NamedColumn{
		{Name: "a", Spec: stubColumn{primary: true}},
		{Name: "b", Spec: stubColumn{rules: []string{"nullability", "max_length"}}},
	}

	compiled := Compile(custom, columns)

	want := []string{"positive", "primary_key", "b|nullability", "b|max_length"}
	if got := compiled.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if custom.Len() != 1 {
		t.Errorf("custom.Len() = %d after Compile, want 1", custom.Len())
	}
}

func TestCompile_WithoutPrimaryKey(t *testing.T) {
	compiled := Compile(nil, []NamedColumn{{Name: "a", Spec: stubColumn{}}})
	if compiled.Has(types.PrimaryKeyRule) {
		t.Errorf("Has(%q) = true, want false", types.PrimaryKeyRule)
	}
	if compiled.Len() != 0 {
		t.Errorf("Len() = %d, want 0", compiled.Len())
	}
}

func TestDtypeRules(t *testing.T) {
	got := DtypeRules([]string{"a", "b"}).Names()
	want := []string{"a|dtype", "b|dtype"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestSet_ReplaceKeepsPosition(t *testing.T) {
	s := NewSet()
	s.Add("x", Row(expr.Lit(true)))
	s.Add("y", Row(expr.Lit(true)))
	s.Add("x", Row(expr.Lit(false)))

	if got, want := s.Names(), []string{"x", "y"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	r, _ := s.Get("x")
	if r.String() != "false" {
		t.Errorf("Get(x) = %s, want false", r)
	}
}

func TestCheckDefinition(t *testing.T) {
	tests := []struct {
		name    string
		custom  *Set
		columns []NamedColumn
		wantMsg string
	}{
		{
			name:    "valid",
			custom:  SetOf(Named{Name: "r", Rule: Group(expr.Ge(expr.Len(), expr.Lit(2)), "a")}),
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{primary: true}}},
		},
		{
			name:    "custom rule named primary_key",
			custom:  SetOf(Named{Name: "primary_key", Rule: Row(expr.Lit(true))}),
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{}}},
			wantMsg: "Custom validation rule must not be named `primary_key`.",
		},
		{
			name:    "rule named like a column",
			custom:  SetOf(Named{Name: "a", Rule: Row(expr.Lit(true))}),
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{}}},
			wantMsg: "Rules and columns must not be named equally but found 1 overlaps: 'a'.",
		},
		{
			name:    "column named like a dtype rule",
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{}}, {Name: "a|dtype", Spec: stubColumn{}}},
			wantMsg: "Rules and columns must not be named equally but found 1 overlaps: 'a|dtype'.",
		},
		{
			name:    "group rule on unknown columns",
			custom:  SetOf(Named{Name: "g", Rule: Group(expr.Lit(true), "a", "x", "y")}),
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{}}},
			wantMsg: "Group validation rule 'g' has been implemented incorrectly. " +
				"It references 2 columns which are not in the schema: 'x', 'y'.",
		},
		{
			name:    "duplicate column",
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{}}, {Name: "a", Spec: stubColumn{}}},
			wantMsg: "declares column 'a' twice",
		},
		{
			name:    "reserved column",
			columns: []NamedColumn{{Name: types.FinalValidColumn, Spec: stubColumn{}}},
			wantMsg: "is reserved",
		},
		{
			name:    "group rule without aggregation",
			custom:  SetOf(Named{Name: "g", Rule: Group(expr.Gt(expr.Col("a"), expr.Lit(0)), "a")}),
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{}}},
			wantMsg: "Validation rule 'g' has not been implemented correctly. It does not aggregate",
		},
		{
			name:    "custom rule named like a dtype rule",
			custom:  SetOf(Named{Name: "a|dtype", Rule: Row(expr.Lt(expr.Col("a"), expr.Lit(0)))}),
			columns: []NamedColumn{{Name: "a", Spec: stubColumn{}}},
			wantMsg: "Custom rules must not shadow column rules but found 1 overlaps: 'a|dtype'.",
		},
		{
			name:    "custom rule named like a column rule",
			custom:  SetOf(Named{Name: "b|max_length", Rule: Row(expr.Lit(true))}),
			columns: []NamedColumn{{Name: "b", Spec: stubColumn{rules: []string{"max_length"}}}},
			wantMsg: "Custom rules must not shadow column rules but found 1 overlaps: 'b|max_length'.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDefinition("test", tt.custom, tt.columns)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("CheckDefinition() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("CheckDefinition() error = nil, want %q", tt.wantMsg)
			}
			if !errors.Is(err, types.ErrImplementation) {
				t.Errorf("errors.Is(err, ErrImplementation) = false for %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestCheckRuleNames(t *testing.T) {
	rule := Row(expr.Lit(true))

	if err := CheckRuleNames("test", []Named{{Name: "x", Rule: rule}, {Name: "y", Rule: rule}}); err != nil {
		t.Fatalf("CheckRuleNames() error = %v, want nil", err)
	}

	err := CheckRuleNames("test", []Named{
		{Name: "y", Rule: rule}, {Name: "x", Rule: rule}, {Name: "y", Rule: rule}, {Name: "x", Rule: rule},
	})
	if !errors.Is(err, types.ErrImplementation) {
		t.Fatalf("CheckRuleNames() error = %v, want ErrImplementation", err)
	}
	if want := "Schema 'test' defines custom rules more than once: 'x', 'y'."; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to contain %q", err, want)
	}
}
