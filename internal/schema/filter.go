// internal/schema/filter.go
package schema

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/failure"
	"github.com/solatis/framekeeper/internal/rules"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Filter and validation.
 *
 * Filter flow:
 *   1. Select the schema's columns; extra columns are dropped, missing
 *      columns fail with a SchemaError listing all of them
 *   2. Without cast: every dtype must match exactly (DtypeError)
 *      With cast: snapshot nulls, cast leniently, add "<col>|dtype" rules
 *   3. Evaluate all rules
 *   4. With cast: mask non-dtype outcomes of rows whose cast failed and
 *      drop the null snapshots
 *   5. Split on __final_valid__. Valid rows keep input order.
 *
 * A schema without rules evaluates nothing: every row is valid and the
 * failure info is empty.
 */

// outcome is the result of evaluating a table against a schema.
type outcome struct {
	// valid holds the rows that passed every rule, in input order.
	valid *table.Table
	// evaluated is the table with rule columns and __final_valid__; nil
	// when no rule was evaluated.
	evaluated *table.Table
	rules     []string
	final     *array.Boolean
}

// Filter splits t into rows that pass every rule and failure information
// about the others.
func (s *Schema) Filter(t *table.Table, cast bool) (*table.Table, *failure.Info, error) {
	out, err := s.evaluate(t, cast)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Filtered table",
		"schema", s.name,
		"rows", t.NumRows(),
		"valid", out.valid.NumRows(),
		"rules", len(out.rules))

	if out.evaluated == nil {
		return out.valid, failure.Empty(s.name), nil
	}
	return out.valid, failure.New(out.evaluated, out.rules, s.name), nil
}

// Validate returns t restricted to the schema's columns, or a
// *types.RuleValidationError with per-rule counts if any row fails.
func (s *Schema) Validate(t *table.Table, cast bool) (*table.Table, error) {
	valid, info, err := s.Filter(t, cast)
	if err != nil {
		return nil, err
	}
	if info.Len() > 0 {
		return nil, &types.RuleValidationError{Counts: info.Counts()}
	}
	return valid, nil
}

// IsValid reports whether t passes Validate. Schema and rule failures yield
// false; any other error is returned.
func (s *Schema) IsValid(t *table.Table, cast bool) (bool, error) {
	_, err := s.Validate(t, cast)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, types.ErrSchema), errors.Is(err, types.ErrValidation):
		return false, nil
	default:
		return false, err
	}
}

// Cast selects the schema's columns and casts them leniently to their
// dtypes. Values that cannot be cast become null; no rule is checked.
func (s *Schema) Cast(t *table.Table) (*table.Table, error) {
	selected, err := s.selectColumns(t)
	if err != nil {
		return nil, err
	}
	return s.castColumns(selected)
}

func (s *Schema) selectColumns(t *table.Table) (*table.Table, error) {
	var missing []string
	for _, c := range s.columns {
		if !t.HasColumn(c.Name) {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &types.SchemaError{Missing: missing}
	}
	return t.Select(s.ColumnNames()...)
}

func (s *Schema) castColumns(t *table.Table) (*table.Table, error) {
	out := t
	for _, c := range s.columns {
		arr, err := rules.Cast(t.Column(c.Name), c.Column.DType())
		if err != nil {
			return nil, fmt.Errorf("cast column '%s': %w", c.Name, err)
		}
		out = out.WithColumn(c.Name, arr)
	}
	return out, nil
}

func (s *Schema) checkDtypes(t *table.Table) error {
	var mismatches []types.DtypeMismatch
	for _, c := range s.columns {
		f, _ := t.Field(c.Name)
		if !arrow.TypeEqual(f.Type, c.Column.DType()) {
			mismatches = append(mismatches, types.DtypeMismatch{
				Column:   c.Name,
				Actual:   f.Type.String(),
				Expected: c.Column.DType().String(),
			})
		}
	}
	if len(mismatches) > 0 {
		return &types.DtypeError{Mismatches: mismatches}
	}
	return nil
}

// evaluate runs steps 1 to 5 of the filter flow.
func (s *Schema) evaluate(t *table.Table, cast bool) (*outcome, error) {
	selected, err := s.selectColumns(t)
	if err != nil {
		return nil, err
	}

	names := s.ColumnNames()
	set := s.compiled
	if cast {
		selected, err = s.castColumns(rules.SnapshotNulls(selected, names))
		if err != nil {
			return nil, err
		}
		set = s.compiled.Clone()
		set.Merge(rules.DtypeRules(names))
	} else if err := s.checkDtypes(selected); err != nil {
		return nil, err
	}

	ev, err := rules.Evaluate(selected, set, s)
	if err != nil {
		return nil, err
	}

	snapshots := make([]string, len(names))
	for i, n := range names {
		snapshots[i] = types.OriginalNullColumn(n)
	}
	if ev == nil {
		return &outcome{valid: selected.Drop(snapshots...)}, nil
	}
	if cast {
		ev = rules.MaskCastFailures(ev)
		ev.Table = ev.Table.Drop(snapshots...)
	}

	evaluated := rules.WithFinalValid(ev)
	final := evaluated.Column(types.FinalValidColumn).(*array.Boolean)
	valid := evaluated.Filter(final).Drop(types.FinalValidColumn).Drop(ev.Rules...)
	return &outcome{valid: valid, evaluated: evaluated, rules: ev.Rules, final: final}, nil
}
