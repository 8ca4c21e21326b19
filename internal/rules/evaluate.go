// internal/rules/evaluate.go
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Rule evaluation.
 *
 * Adds one boolean column per rule to a table. True means the row passed,
 * false that it failed, null never survives: a null outcome (usually a null
 * operand) means the rule does not apply and is filled with true. Whether
 * a value may be null is checked by dedicated nullability rules.
 *
 * Evaluation flow:
 *   1. Partition rules into row rules and group rules
 *   2. Bucket group rules by their set of group columns, so rules sharing a
 *      grouping cost one group-by and one join
 *   3. Per bucket: group, reduce every rule to one boolean per group, fill
 *      nulls with true, then left-join the aggregate back onto the table
 *   4. Evaluate row rules directly and fill nulls with true
 *   5. Order rule columns by rule insertion order
 *
 * Why left join: an inner join would be the cleaner relational statement,
 * but the left join keeps the input's row count and order, which callers
 * rely on to split valid from invalid rows positionally.
 *
 * A group rule whose expression does not aggregate is rejected before any
 * data is touched.
 *
 * Lazy rules resolve against the TypeContext; without one they are skipped
 * and absent from the result. Errors from evaluating a rule propagate
 * unchanged except type and arity errors, which mean the rule itself is
 * implemented incorrectly.
 */

// Evaluation is a table extended with one boolean column per evaluated rule.
type Evaluation struct {
	Table *table.Table
	// Rules lists the rule columns in rule insertion order.
	Rules []string
}

type groupBucket struct {
	columns []string
	names   []string
	exprs   []expr.Expr
}

// Evaluate adds rule outcome columns to t. It returns a nil Evaluation when
// rules is empty: nothing was evaluated and no failure can exist.
func Evaluate(t *table.Table, rules *Set, tc TypeContext) (*Evaluation, error) {
	if rules.Len() == 0 {
		return nil, nil
	}

	var evaluated []string
	rowOutcomes := make(map[string]*array.Boolean)
	var buckets []*groupBucket
	bucketIndex := make(map[string]*groupBucket)

	for _, name := range rules.Names() {
		r, _ := rules.Get(name)
		e, ok := r.Resolve(tc)
		if !ok {
			continue
		}
		evaluated = append(evaluated, name)

		if !r.IsGroup() {
			out, err := expr.EvalBool(e, t)
			if err != nil {
				return nil, ruleError(name, r, err)
			}
			rowOutcomes[name] = table.FillNull(out, true)
			continue
		}

		// Checked on the plan so that data with one row per group, or no
		// rows at all, cannot hide a missing aggregation.
		if !expr.IsScalar(e) {
			return nil, ruleError(name, r, &expr.ArityError{Expr: e.String(), Got: -1})
		}

		key := groupKey(r.groupBy)
		b, ok := bucketIndex[key]
		if !ok {
			b = &groupBucket{columns: r.GroupBy()}
			bucketIndex[key] = b
			buckets = append(buckets, b)
		}
		b.names = append(b.names, name)
		b.exprs = append(b.exprs, e)
	}

	result := t
	groupOutcomes := make(map[string]arrow.Array)
	for _, b := range buckets {
		joined, err := evaluateBucket(t, b)
		if err != nil {
			return nil, err
		}
		for _, name := range b.names {
			groupOutcomes[name] = joined.Column(name)
		}
	}

	for _, name := range evaluated {
		if out, ok := rowOutcomes[name]; ok {
			result = result.WithColumn(name, out)
		} else {
			result = result.WithColumn(name, groupOutcomes[name])
		}
	}
	return &Evaluation{Table: result, Rules: evaluated}, nil
}

// evaluateBucket reduces every rule of b per group of base and left-joins
// the outcomes onto base's group columns, row for row.
func evaluateBucket(base *table.Table, b *groupBucket) (*table.Table, error) {
	groups, err := base.GroupBy(b.columns...)
	if err != nil {
		return nil, err
	}

	subtables := make([]*table.Table, groups.Len())
	for g, members := range groups.Members {
		subtables[g] = base.Take(members)
	}

	names := append([]string(nil), b.columns...)
	cols := make([]arrow.Array, 0, len(b.columns)+len(b.names))
	for _, c := range b.columns {
		cols = append(cols, table.Gather(base.Column(c), groups.First))
	}
	for i, name := range b.names {
		values := make([]bool, groups.Len())
		for g, sub := range subtables {
			v, valid, err := expr.EvalScalarBool(b.exprs[i], sub)
			if err != nil {
				return nil, ruleError(name, Group(b.exprs[i], b.columns...), err)
			}
			values[g] = v || !valid
		}
		names = append(names, name)
		cols = append(cols, table.Bools(values, nil))
	}

	aggregated, err := table.FromColumns(names, cols)
	if err != nil {
		return nil, err
	}
	keys, err := base.Select(b.columns...)
	if err != nil {
		return nil, err
	}
	return table.LeftJoinUnique(keys, aggregated, b.columns...)
}

func groupKey(columns []string) string {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

func ruleError(name string, r Rule, err error) error {
	var typeErr *expr.TypeError
	if errors.As(err, &typeErr) && typeErr.Want == "bool" {
		msg := fmt.Sprintf("Validation rule '%s' has not been implemented correctly. "+
			"It returns dtype '%s' but it must return a boolean value.", name, typeErr.Got)
		if r.IsGroup() {
			msg += groupHint
		}
		return &types.ImplementationError{Message: msg}
	}
	var arityErr *expr.ArityError
	if errors.As(err, &arityErr) {
		if arityErr.Got < 0 {
			return &types.ImplementationError{Message: fmt.Sprintf(
				"Validation rule '%s' has not been implemented correctly. "+
					"It does not aggregate but it must return a single boolean value per group.%s",
				name, groupHint)}
		}
		return &types.ImplementationError{Message: fmt.Sprintf(
			"Validation rule '%s' has not been implemented correctly. "+
				"It yields %d values per group but it must return a single boolean value.%s",
			name, arityErr.Got, groupHint)}
	}
	return err
}

const groupHint = " When implementing a group rule, make sure to use an aggregation " +
	"such as Any, All, Len and others to reduce an expression evaluated on multiple " +
	"rows in the same group to a single boolean value for the group."

// FinalValid computes the AND over rule columns with nulls treated as true.
func FinalValid(t *table.Table, ruleColumns []string) *array.Boolean {
	values := make([]bool, t.NumRows())
	for i := range values {
		values[i] = true
	}
	for _, name := range ruleColumns {
		col, ok := t.Column(name).(*array.Boolean)
		if !ok {
			continue
		}
		for i := range values {
			if col.IsValid(i) && !col.Value(i) {
				values[i] = false
			}
		}
	}
	return table.Bools(values, nil)
}

// WithFinalValid appends the FinalValidColumn to an evaluation's table.
func WithFinalValid(ev *Evaluation) *table.Table {
	return ev.Table.WithColumn(types.FinalValidColumn, FinalValid(ev.Table, ev.Rules))
}

// MaskCastFailures nulls every non-dtype rule outcome in rows where any
// dtype rule failed. A failed cast is then reported once, as a dtype
// failure, instead of cascading into rules that saw a null.
func MaskCastFailures(ev *Evaluation) *Evaluation {
	var dtypeCols, otherCols []string
	for _, name := range ev.Rules {
		if types.IsDtypeRule(name) {
			dtypeCols = append(dtypeCols, name)
		} else {
			otherCols = append(otherCols, name)
		}
	}
	if len(dtypeCols) == 0 || len(otherCols) == 0 {
		return ev
	}

	castOK := FinalValid(ev.Table, dtypeCols)
	if castOK.NullN() == 0 && allTrue(castOK) {
		return ev
	}

	out := ev.Table
	for _, name := range otherCols {
		col := out.Column(name).(*array.Boolean)
		values := make([]bool, col.Len())
		valid := make([]bool, col.Len())
		for i := range values {
			if castOK.Value(i) && col.IsValid(i) {
				values[i], valid[i] = col.Value(i), true
			}
		}
		out = out.WithColumn(name, table.Bools(values, valid))
	}
	return &Evaluation{Table: out, Rules: ev.Rules}
}

func allTrue(arr *array.Boolean) bool {
	for i := 0; i < arr.Len(); i++ {
		if !arr.Value(i) {
			return false
		}
	}
	return true
}
