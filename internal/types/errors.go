package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for FrameKeeper operations.
var (
	// ErrSchema indicates the input table is structurally incompatible with a schema.
	ErrSchema = errors.New("table does not match schema")

	// ErrValidation indicates one or more rows violate schema rules.
	ErrValidation = errors.New("rule validation failed")

	// ErrImplementation indicates a schema or collection is defined inconsistently.
	ErrImplementation = errors.New("invalid schema definition")

	// ErrSamplingExhausted indicates the sampler hit its iteration budget.
	ErrSamplingExhausted = errors.New("sampling iterations exhausted")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrMissingMetadata indicates a persisted failure file lacks framekeeper metadata.
	ErrMissingMetadata = errors.New("file does not carry failure metadata")

	// ErrInvalidOverrides indicates sampling overrides disagree with the schema or row count.
	ErrInvalidOverrides = errors.New("invalid sampling overrides")

	// ErrUnknownSchema indicates a catalog lookup for an unregistered schema.
	ErrUnknownSchema = errors.New("unknown schema")
)

// SchemaError lists every schema column missing from an input table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	quoted := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		quoted[i] = "'" + m + "'"
	}
	return fmt.Sprintf("%d columns in the schema are missing in the data frame: %s",
		len(e.Missing), strings.Join(quoted, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// DtypeMismatch records the actual and expected type of one column.
type DtypeMismatch struct {
	Column   string
	Actual   string
	Expected string
}

// DtypeError lists every column whose type differs from the schema when casting is off.
type DtypeError struct {
	Mismatches []DtypeMismatch
}

func (e *DtypeError) Error() string {
	lines := []string{fmt.Sprintf("%d columns have an invalid dtype:", len(e.Mismatches))}
	for _, m := range e.Mismatches {
		lines = append(lines, fmt.Sprintf(" - '%s': got dtype '%s' but expected '%s'", m.Column, m.Actual, m.Expected))
	}
	return strings.Join(lines, "\n")
}

func (e *DtypeError) Is(target error) bool { return target == ErrSchema }

// RuleValidationError aggregates per-rule failure counts raised by Validate.
// Rule names of the form "<column>|<rule>" are reported per column.
type RuleValidationError struct {
	Counts map[string]int
}

// SchemaErrors returns failure counts of rules not bound to a single column.
func (e *RuleValidationError) SchemaErrors() map[string]int {
	out := make(map[string]int)
	for name, count := range e.Counts {
		if !strings.Contains(name, "|") {
			out[name] = count
		}
	}
	return out
}

// ColumnErrors returns failure counts keyed by column, then by rule.
func (e *RuleValidationError) ColumnErrors() map[string]map[string]int {
	out := make(map[string]map[string]int)
	for name, count := range e.Counts {
		column, rule, ok := strings.Cut(name, "|")
		if !ok {
			continue
		}
		if out[column] == nil {
			out[column] = make(map[string]int)
		}
		out[column][rule] = count
	}
	return out
}

func (e *RuleValidationError) Error() string {
	lines := []string{fmt.Sprintf("%d rules failed validation:", len(e.Counts))}

	schemaErrs := e.SchemaErrors()
	for _, name := range sortedKeys(schemaErrs) {
		lines = append(lines, fmt.Sprintf(" - '%s' failed validation for %s rows", name, formatCount(schemaErrs[name])))
	}

	columnErrs := e.ColumnErrors()
	columns := make([]string, 0, len(columnErrs))
	for c := range columnErrs {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	for _, column := range columns {
		errs := columnErrs[column]
		lines = append(lines, fmt.Sprintf(" * Column '%s' failed validation for %d rules:", column, len(errs)))
		for _, rule := range sortedKeys(errs) {
			lines = append(lines, fmt.Sprintf("   - '%s' failed for %s rows", rule, formatCount(errs[rule])))
		}
	}
	return strings.Join(lines, "\n")
}

func (e *RuleValidationError) Is(target error) bool { return target == ErrValidation }

// MemberValidationError aggregates validation errors of collection members.
type MemberValidationError struct {
	Errors map[string]error
}

func (e *MemberValidationError) Error() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{fmt.Sprintf("%d members failed validation:", len(e.Errors))}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf(" > Member '%s' failed validation:", name))
		for _, line := range strings.Split(e.Errors[name].Error(), "\n") {
			lines = append(lines, "   "+line)
		}
	}
	return strings.Join(lines, "\n")
}

func (e *MemberValidationError) Is(target error) bool { return target == ErrValidation }

// ImplementationError reports an inconsistent schema or collection definition.
type ImplementationError struct {
	Message string
}

func (e *ImplementationError) Error() string { return e.Message }

func (e *ImplementationError) Is(target error) bool { return target == ErrImplementation }

// NewImplementationError formats an ImplementationError.
func NewImplementationError(format string, args ...any) error {
	return &ImplementationError{Message: fmt.Sprintf(format, args...)}
}

// SamplingExhaustedError is returned when no valid sample was found within the budget.
type SamplingExhaustedError struct {
	Schema        string
	MaxIterations int
	Rows          int
	Accepted      int
}

func (e *SamplingExhaustedError) Error() string {
	return fmt.Sprintf(
		"sampling %q exceeded %d iterations with %d of %d rows accepted. "+
			"Consider increasing the maximum number of sampling iterations or implement "+
			"custom sampling logic. Alternatively, passing predefined values as overrides "+
			"or relaxing the schema rules can also help the sampling procedure find a valid table",
		e.Schema, e.MaxIterations, e.Accepted, e.Rows)
}

func (e *SamplingExhaustedError) Is(target error) bool { return target == ErrSamplingExhausted }

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
