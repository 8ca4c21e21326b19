// internal/schema/sample_test.go
package schema

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/framekeeper/internal/column"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/rules"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groupedSchema mixes a primary key, a bounded string and a group rule
// that spoils a whole group when one member is too large.
func groupedSchema() *Schema {
	return MustDefine("grouped", []NamedColumn{
		{Name: "id", Column: column.Int64{Base: column.Base{Primary: true}, Min: ptr(int64(0)), Max: ptr(int64(100000))}},
		{Name: "name", Column: column.String{MaxLength: ptr(3)}},
		{Name: "group", Column: column.Int64{IsIn: []int64{1, 2, 3, 4}}},
		{Name: "score", Column: column.Int64{Base: column.Base{AllowNull: true}, Min: ptr(int64(0)), Max: ptr(int64(1000))}},
	},
		rules.Named{Name: "small_scores", Rule: rules.Group(expr.Le(expr.Max(expr.Col("score")), expr.Lit(900)), "group")},
	)
}

func TestSample_ZeroRows(t *testing.T) {
	s := groupedSchema()
	out, err := s.Sample(0, SampleOptions{Generator: random.New(1)})
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
	assert.Equal(t, s.ColumnNames(), out.ColumnNames())
}

func TestSample_DefaultsToOneRow(t *testing.T) {
	s := groupedSchema()
	out, err := s.Sample(-1, SampleOptions{Generator: random.New(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumRows())
}

func TestSample_NoRulesNeedsOneRound(t *testing.T) {
	s := MustDefine("free", []NamedColumn{
		{Name: "a", Column: column.Int64{Base: column.Base{AllowNull: true}}},
		{Name: "b", Column: column.Float64{Base: column.Base{AllowNull: true}, AllowNaN: true}},
	})
	out, err := s.Sample(50, SampleOptions{Generator: random.New(7), MaxIterations: 1})
	require.NoError(t, err)
	assert.Equal(t, 50, out.NumRows())
}

func TestSample_Reproducible(t *testing.T) {
	s := groupedSchema()
	first, err := s.Sample(20, SampleOptions{Generator: random.New(42)})
	require.NoError(t, err)
	second, err := s.Sample(20, SampleOptions{Generator: random.New(42)})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		assert.Equal(t, first.Row(i), second.Row(i))
	}
}

func TestSample_OverridesKeepOrder(t *testing.T) {
	s := groupedSchema()
	overrides := []map[string]any{
		{"group": 4, "name": "d", "score": 10},
		{"group": 1, "name": "a"},
		{"group": 3, "name": "c"},
		{"group": 1, "name": "b"},
	}

	out, err := s.Sample(-1, SampleOptions{OverrideRows: overrides, Generator: random.New(3)})
	require.NoError(t, err)
	require.Equal(t, 4, out.NumRows())

	assert.Equal(t, []int64{4, 1, 3, 1}, int64Values(t, out, "group"))
	assert.Equal(t, "d", out.Row(0)["name"])
	assert.Equal(t, "a", out.Row(1)["name"])
	assert.Equal(t, "c", out.Row(2)["name"])
	assert.Equal(t, "b", out.Row(3)["name"])
	assert.Equal(t, int64(10), out.Row(0)["score"])
	// keys missing from a row are null overrides
	assert.Nil(t, out.Row(1)["score"])
}

func TestSample_ColumnarOverrides(t *testing.T) {
	s := groupedSchema()
	overrides := table.MustFromColumns([]string{"group"}, []arrow.Array{table.Int64s(2, 2, 3)})

	out, err := s.Sample(3, SampleOptions{Overrides: overrides, Generator: random.New(5)})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2, 3}, int64Values(t, out, "group"))
}

func TestSample_InvalidOverrides(t *testing.T) {
	s := groupedSchema()

	tests := []struct {
		name string
		n    int
		opts SampleOptions
	}{
		{
			name: "unknown column",
			n:    1,
			opts: SampleOptions{OverrideRows: []map[string]any{{"nope": 1}}},
		},
		{
			name: "row count mismatch",
			n:    5,
			opts: SampleOptions{OverrideRows: []map[string]any{{"group": 1}}},
		},
		{
			name: "uncastable value",
			n:    1,
			opts: SampleOptions{OverrideRows: []map[string]any{{"group": "one"}}},
		},
		{
			name: "both forms",
			n:    1,
			opts: SampleOptions{
				Overrides:    table.MustFromColumns([]string{"group"}, []arrow.Array{table.Int64s(1)}),
				OverrideRows: []map[string]any{{"group": 1}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sample(tt.n, tt.opts)
			if !errors.Is(err, types.ErrInvalidOverrides) {
				t.Errorf("Sample() error = %v, want ErrInvalidOverrides", err)
			}
		})
	}
}

func TestSample_Exhausted(t *testing.T) {
	s := MustDefine("impossible", []NamedColumn{
		{Name: "a", Column: column.Int64{Min: ptr(int64(0))}},
	}, rules.Named{Name: "never", Rule: rules.Row(expr.Lt(expr.Col("a"), expr.Lit(0)))})

	_, err := s.Sample(3, SampleOptions{Generator: random.New(1), MaxIterations: 5})
	var exhausted *types.SamplingExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.MaxIterations)
	assert.Equal(t, 3, exhausted.Rows)
	assert.Equal(t, 0, exhausted.Accepted)
	assert.ErrorIs(t, err, types.ErrSamplingExhausted)
	assert.Contains(t, err.Error(), "5 iterations")
}

// Property-based test: sampling returns exactly n rows that pass the
// schema, with and without overrides interacting with group rules
func TestSample_PropertyConverges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	s := groupedSchema()

	properties.Property("sample passes filter", prop.ForAll(
		func(seed uint64, n int) bool {
			out, err := s.Sample(n, SampleOptions{Generator: random.New(seed)})
			if err != nil || out.NumRows() != n {
				return false
			}
			_, info, err := s.Filter(out, false)
			return err == nil && info.Len() == 0
		},
		gen.UInt64(),
		gen.IntRange(1, 40),
	))

	properties.Property("overrides survive retries in order", prop.ForAll(
		func(seed uint64, groups []int64) bool {
			rows := make([]map[string]any, len(groups))
			for i, g := range groups {
				rows[i] = map[string]any{"group": g}
			}
			out, err := s.Sample(-1, SampleOptions{OverrideRows: rows, Generator: random.New(seed)})
			if err != nil || out.NumRows() != len(groups) {
				return false
			}
			got := int64Values(t, out, "group")
			for i := range groups {
				if got[i] != groups[i] {
					return false
				}
			}
			_, info, err := s.Filter(out, false)
			return err == nil && info.Len() == 0
		},
		gen.UInt64(),
		gen.SliceOfN(12, gen.Int64Range(1, 4)),
	))

	properties.TestingRun(t)
}

// Property-based test: filtering a sampled table is the identity
func TestSample_PropertyIdempotentFilter(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	s := boundedSchema()

	properties.Property("filter keeps every sampled row", prop.ForAll(
		func(seed uint64) bool {
			out, err := s.Sample(3, SampleOptions{Generator: random.New(seed)})
			if err != nil {
				return false
			}
			valid, info, err := s.Filter(out, false)
			if err != nil || info.Len() != 0 || valid.NumRows() != out.NumRows() {
				return false
			}
			for i := 0; i < out.NumRows(); i++ {
				a, b := valid.Row(i), out.Row(i)
				if a["a"] != b["a"] || a["b"] != b["b"] {
					return false
				}
			}
			return true
		},
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestSample_LargeGroups(t *testing.T) {
	if testing.Short() {
		t.Skip("samples 10,000 rows")
	}
	values := make([]int64, 256)
	for i := range values {
		values[i] = int64(i)
	}
	s := MustDefine("large_groups", []NamedColumn{
		{Name: "a", Column: column.Int64{}},
		{Name: "b", Column: column.Int64{IsIn: values}},
	}, rules.Named{Name: "min_group_size", Rule: rules.Group(expr.Ge(expr.Len(), expr.Lit(50)), "b")})

	out, err := s.Sample(10000, SampleOptions{Generator: random.New(20241018)})
	if err != nil {
		require.ErrorIs(t, err, types.ErrSamplingExhausted)
		return
	}
	require.Equal(t, 10000, out.NumRows())
	_, info, err := s.Filter(out, false)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Len())
}
