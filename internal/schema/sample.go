// internal/schema/sample.go
package schema

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/rules"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Fuzzy sampling.
 *
 * Sample draws random rows per column and keeps the ones that pass the
 * schema's rules, retrying only the shortfall until n rows are valid.
 *
 * Round flow:
 *   1. Draw k = n - accepted values for every column not covered by an
 *      override; override columns take the remaining override rows as is
 *   2. Append the draw to the accepted rows and filter the whole batch
 *      (group rules see all rows, so accepted rows may drop out again)
 *   3. Split the overrides in lockstep with the batch: overrides of valid
 *      rows become used, all others stay remaining for the next round
 *
 * Override rows carry a row index so the caller's order is restored once
 * sampling is done. A failed override row is retried with fresh draws for
 * the other columns; it is never dropped.
 *
 * Round budget: MaxIterations rounds, after which a SamplingExhaustedError
 * is returned. Zero rows short-circuit without a round.
 */

// SampleOptions configure Sample. The zero value samples without
// overrides, from a random seed, with the default round budget.
type SampleOptions struct {
	// Overrides fixes the values of some columns, one row per sampled row.
	Overrides *table.Table
	// OverrideRows is the row-wise form of Overrides. Missing keys are null.
	// At most one of Overrides and OverrideRows may be set.
	OverrideRows []map[string]any
	// Generator drives all random draws. Nil uses a random seed.
	Generator *random.Generator
	// MaxIterations bounds the number of rounds. Zero means
	// DefaultMaxSamplingIterations.
	MaxIterations int
}

// Sample returns n rows that pass every rule. A negative n takes the row
// count from the overrides, or 1 without overrides.
func (s *Schema) Sample(n int, opts SampleOptions) (*table.Table, error) {
	overrides, err := s.overrideTable(opts)
	if err != nil {
		return nil, err
	}
	switch {
	case overrides != nil && n < 0:
		n = overrides.NumRows()
	case overrides != nil && n != overrides.NumRows():
		return nil, fmt.Errorf("%w: `num_rows` is different from the length of the provided overrides", types.ErrInvalidOverrides)
	case n < 0:
		n = 1
	}
	if n == 0 {
		return s.CreateEmpty(), nil
	}

	g := opts.Generator
	if g == nil {
		g = random.NewRandom()
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxSamplingIterations
	}

	if overrides == nil {
		overrides = table.MustFromColumns([]string{types.RowIndexColumn}, []arrow.Array{table.Int64s()})
	}
	st := &sampleState{
		result:    s.CreateEmpty(),
		used:      overrides.Slice(0, 0),
		remaining: overrides,
	}

	if err := s.sampleRound(n, g, st); err != nil {
		return nil, err
	}
	rounds := 1
	for st.result.NumRows() != n {
		if rounds >= maxIterations {
			return nil, &types.SamplingExhaustedError{
				Schema:        s.name,
				MaxIterations: maxIterations,
				Rows:          n,
				Accepted:      st.result.NumRows(),
			}
		}
		if err := s.sampleRound(n-st.result.NumRows(), g, st); err != nil {
			return nil, err
		}
		rounds++
	}
	slog.Debug("Sampled table", "schema", s.name, "rows", n, "rounds", rounds, "seed", g.Seed())

	if st.used.NumRows() == 0 {
		return st.result, nil
	}
	ordered, err := st.result.
		WithColumn(types.RowIndexColumn, st.used.Column(types.RowIndexColumn)).
		SortByInt64(types.RowIndexColumn)
	if err != nil {
		return nil, err
	}
	return ordered.Drop(types.RowIndexColumn), nil
}

// sampleState tracks accepted rows and the overrides they consumed. Row i
// of result was built from row i of used.
type sampleState struct {
	result    *table.Table
	used      *table.Table
	remaining *table.Table
}

func (s *Schema) sampleRound(k int, g *random.Generator, st *sampleState) error {
	names := s.ColumnNames()
	cols := make([]arrow.Array, len(s.columns))
	for i, c := range s.columns {
		if arr := st.remaining.Column(c.Name); arr != nil {
			cols[i] = arr
			continue
		}
		arr, err := c.Column.Sample(g, k)
		if err != nil {
			return fmt.Errorf("sample column '%s': %w", c.Name, err)
		}
		cols[i] = arr
	}
	candidates, err := table.FromColumns(names, cols)
	if err != nil {
		return err
	}
	batch, err := table.Concat(st.result, candidates)
	if err != nil {
		return err
	}

	out, err := s.evaluate(batch, false)
	if err != nil {
		return err
	}
	slog.Debug("Sampling round",
		"schema", s.name,
		"drawn", k,
		"accepted", out.valid.NumRows(),
		"target", st.result.NumRows()+k)

	consumed, err := table.Concat(st.used, st.remaining)
	if err != nil {
		return err
	}
	st.result = out.valid
	if out.final == nil || consumed.NumRows() == 0 {
		st.used, st.remaining = consumed, consumed.Slice(0, 0)
		return nil
	}
	st.used = consumed.Filter(out.final)
	st.remaining = consumed.Filter(negate(out.final))
	return nil
}

func negate(mask *array.Boolean) *array.Boolean {
	values := make([]bool, mask.Len())
	for i := range values {
		values[i] = mask.IsNull(i) || !mask.Value(i)
	}
	return table.Bools(values, nil)
}

// overrideTable normalizes the overrides to a table with a row index
// column and only schema columns, each of the schema's dtype.
func (s *Schema) overrideTable(opts SampleOptions) (*table.Table, error) {
	switch {
	case opts.Overrides != nil && opts.OverrideRows != nil:
		return nil, fmt.Errorf("%w: set either Overrides or OverrideRows", types.ErrInvalidOverrides)
	case opts.Overrides != nil:
		return s.overridesFromTable(opts.Overrides)
	case opts.OverrideRows != nil:
		return s.overridesFromRows(opts.OverrideRows)
	}
	return nil, nil
}

func (s *Schema) overridesFromTable(t *table.Table) (*table.Table, error) {
	if err := s.checkOverrideColumns(t.ColumnNames()); err != nil {
		return nil, err
	}
	out := t
	for _, c := range s.columns {
		arr := t.Column(c.Name)
		if arr == nil {
			continue
		}
		cast, err := rules.Cast(arr, c.Column.DType())
		if err != nil || cast.NullN() != arr.NullN() {
			return nil, fmt.Errorf("%w: column '%s' cannot be cast to %s", types.ErrInvalidOverrides, c.Name, c.Column.DType())
		}
		out = out.WithColumn(c.Name, cast)
	}
	return withRowIndex(out, t.NumRows()), nil
}

func (s *Schema) overridesFromRows(rows []map[string]any) (*table.Table, error) {
	present := make(map[string]bool)
	var keys []string
	for _, row := range rows {
		for k := range row {
			if !present[k] {
				present[k] = true
				keys = append(keys, k)
			}
		}
	}
	if err := s.checkOverrideColumns(keys); err != nil {
		return nil, err
	}

	var names []string
	var cols []arrow.Array
	for _, c := range s.columns {
		if !present[c.Name] {
			continue
		}
		values := make([]any, len(rows))
		for i, row := range rows {
			res, err := rules.Coerce(row[c.Name], c.Column.DType())
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column '%s': %v", types.ErrInvalidOverrides, i, c.Name, err)
			}
			if !res.IsNull {
				values[i] = res.Value
			}
		}
		arr, err := table.BuildArray(c.Column.DType(), values)
		if err != nil {
			return nil, fmt.Errorf("%w: column '%s': %v", types.ErrInvalidOverrides, c.Name, err)
		}
		names = append(names, c.Name)
		cols = append(cols, arr)
	}
	t, err := table.FromColumns(names, cols)
	if err != nil {
		return nil, err
	}
	return withRowIndex(t, len(rows)), nil
}

func (s *Schema) checkOverrideColumns(names []string) error {
	var unknown []string
	for _, n := range names {
		if _, ok := s.Column(n); !ok {
			unknown = append(unknown, "'"+n+"'")
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: values are provided for columns {%s} which are not in the schema",
		types.ErrInvalidOverrides, strings.Join(unknown, ", "))
}

func withRowIndex(t *table.Table, rows int) *table.Table {
	index := make([]int64, rows)
	for i := range index {
		index[i] = int64(i)
	}
	return t.WithColumn(types.RowIndexColumn, table.Int64s(index...))
}
