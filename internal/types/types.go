// Package types provides names, limits and errors shared across FrameKeeper components.
//
// Dependency-light: only ids.go imports uuid, so engine packages can depend on
// this package without pulling in storage or transport code.
package types

import "strings"

// Reserved column and rule names. Schema columns and custom rules must not use them.
const (
	// FinalValidColumn holds the AND over all rule columns with null treated as true.
	FinalValidColumn = "__final_valid__"

	// RowIndexColumn tags sampling overrides so the caller's order can be restored.
	RowIndexColumn = "__row_index__"

	// OriginalNullSuffix marks the pre-cast null snapshot of a column.
	OriginalNullSuffix = "__orig_null__"

	// PrimaryKeyRule is the synthesized uniqueness rule over the primary key columns.
	PrimaryKeyRule = "primary_key"

	// RuleSeparator joins a column name and one of its rule names.
	RuleSeparator = "|"

	// DtypeRule is the per-column rule name reporting lenient cast failures.
	DtypeRule = "dtype"
)

// Resource limits enforced by the engine and the service layer.
const (
	// DefaultMaxSamplingIterations bounds the fuzzy sampling loop.
	DefaultMaxSamplingIterations = 10000

	// DefaultNullProbability is the share of nulls sampled for nullable columns.
	DefaultNullProbability = 0.1

	// MaxIsInValues limits is_in lists to keep membership tests linear.
	MaxIsInValues = 1024
)

// ColumnRuleName returns the compiled name of a per-column rule.
func ColumnRuleName(column, rule string) string {
	return column + RuleSeparator + rule
}

// DtypeRuleName returns the compiled name of a column's cast rule.
func DtypeRuleName(column string) string {
	return ColumnRuleName(column, DtypeRule)
}

// IsDtypeRule reports whether a compiled rule name is a cast rule.
func IsDtypeRule(name string) bool {
	return strings.HasSuffix(name, RuleSeparator+DtypeRule)
}

// OriginalNullColumn returns the name of a column's pre-cast null snapshot.
func OriginalNullColumn(column string) string {
	return column + OriginalNullSuffix
}
