// internal/rules/compile.go
package rules

import (
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Rule compilation.
 *
 * Compiles a schema's custom rules and its columns into the full set of
 * named rules evaluated per filter call.
 *
 * Compilation order (this is also the order of rule columns in results):
 *   1. Custom rules, copied so the caller's set is never mutated
 *   2. "primary_key": negated is_duplicated over all primary key columns,
 *      present only if at least one column is a primary key
 *   3. One row rule per column rule, named "<column>|<rule>"
 *
 * Compile never fails. Name collisions and bad group-rule references are
 * rejected once by CheckDefinition when a schema is defined, so evaluation
 * can assume a consistent rule set.
 */

// ColumnSpec is the part of a column definition the compiler consumes.
type ColumnSpec interface {
	PrimaryKey() bool
	ValidationRules(ref expr.Expr) []expr.Named
}

// NamedColumn binds a ColumnSpec to its column name.
type NamedColumn struct {
	Name string
	Spec ColumnSpec
}

// Compile merges custom rules with the primary key rule and column rules.
func Compile(custom *Set, columns []NamedColumn) *Set {
	compiled := custom.Clone()

	if keys := primaryKeys(columns); len(keys) > 0 {
		compiled.Add(types.PrimaryKeyRule, Row(expr.Not(expr.IsDuplicated(expr.Cols(keys...)...))))
	}

	for _, col := range columns {
		for _, named := range col.Spec.ValidationRules(expr.Col(col.Name)) {
			compiled.Add(types.ColumnRuleName(col.Name, named.Name), Row(named.Expr))
		}
	}

	return compiled
}

// DtypeRules returns one "<column>|dtype" rule per column. Each is true
// iff the column's null-ness did not change during a lenient cast, which is
// read from the snapshot column written by SnapshotNulls.
func DtypeRules(columns []string) *Set {
	s := NewSet()
	for _, c := range columns {
		s.Add(types.DtypeRuleName(c), Row(expr.Eq(
			expr.IsNull(expr.Col(c)),
			expr.Col(types.OriginalNullColumn(c)),
		)))
	}
	return s
}

func primaryKeys(columns []NamedColumn) []string {
	var keys []string
	for _, c := range columns {
		if c.Spec.PrimaryKey() {
			keys = append(keys, c.Name)
		}
	}
	return keys
}
