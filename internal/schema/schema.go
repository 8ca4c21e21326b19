// internal/schema/schema.go
package schema

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/column"
	"github.com/solatis/framekeeper/internal/rules"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Schema definitions.
 *
 * A Schema is an ordered list of named columns plus custom rules. Define
 * checks the definition once and compiles the full rule set; every later
 * operation (Filter, Validate, Cast, Sample) assumes a consistent schema.
 *
 * Schemas are immutable after Define and safe for concurrent use.
 */

// DefaultMaxSamplingIterations bounds Sample when SampleOptions leaves
// MaxIterations unset.
const DefaultMaxSamplingIterations = types.DefaultMaxSamplingIterations

// NamedColumn binds a column definition to its name.
type NamedColumn struct {
	Name   string
	Column column.Column
}

// Schema is a validated table definition.
type Schema struct {
	name     string
	columns  []NamedColumn
	custom   *rules.Set
	compiled *rules.Set
	arrow    *arrow.Schema
}

// Define checks and compiles a schema. Custom rule names must be unique.
func Define(name string, columns []NamedColumn, custom ...rules.Named) (*Schema, error) {
	for _, c := range columns {
		if c.Column == nil {
			return nil, types.NewImplementationError("Column '%s' of schema '%s' has no definition.", c.Name, name)
		}
		if err := c.Column.Validate(); err != nil {
			return nil, fmt.Errorf("column '%s': %w", c.Name, err)
		}
	}

	if err := rules.CheckRuleNames(name, custom); err != nil {
		return nil, err
	}
	set := rules.SetOf(custom...)
	specs := ruleColumns(columns)
	if err := rules.CheckDefinition(name, set, specs); err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Column.DType(), Nullable: c.Column.Nullable()}
	}

	return &Schema{
		name:     name,
		columns:  append([]NamedColumn(nil), columns...),
		custom:   set,
		compiled: rules.Compile(set, specs),
		arrow:    arrow.NewSchema(fields, nil),
	}, nil
}

// MustDefine is Define for package-level schemas; it panics on error.
func MustDefine(name string, columns []NamedColumn, custom ...rules.Named) *Schema {
	s, err := Define(name, columns, custom...)
	if err != nil {
		panic(err)
	}
	return s
}

func ruleColumns(columns []NamedColumn) []rules.NamedColumn {
	out := make([]rules.NamedColumn, len(columns))
	for i, c := range columns {
		out[i] = rules.NamedColumn{Name: c.Name, Spec: c.Column}
	}
	return out
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// ColumnNames returns the column names in definition order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeys returns the primary key columns in definition order.
func (s *Schema) PrimaryKeys() []string {
	var keys []string
	for _, c := range s.columns {
		if c.Column.PrimaryKey() {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Columns returns the column definitions.
func (s *Schema) Columns() []NamedColumn { return append([]NamedColumn(nil), s.columns...) }

// Column returns the named column definition.
func (s *Schema) Column(name string) (column.Column, bool) {
	for _, c := range s.columns {
		if c.Name == name {
			return c.Column, true
		}
	}
	return nil, false
}

// ArrowSchema returns the arrow schema of valid tables.
func (s *Schema) ArrowSchema() *arrow.Schema { return s.arrow }

// Rules returns the custom rules.
func (s *Schema) Rules() *rules.Set { return s.custom.Clone() }

// ValidationRules returns all rules evaluated by Filter, in evaluation order.
func (s *Schema) ValidationRules() *rules.Set { return s.compiled.Clone() }

// CreateEmpty returns a table with the schema's columns and no rows.
func (s *Schema) CreateEmpty() *table.Table { return table.Empty(s.arrow) }

// Matches reports whether other defines the same columns and custom rules.
// Names of the schemas are not compared.
func (s *Schema) Matches(other *Schema) bool {
	if len(s.columns) != len(other.columns) {
		return false
	}
	for i, c := range s.columns {
		o := other.columns[i]
		if c.Name != o.Name || !column.Equal(c.Column, o.Column) {
			return false
		}
	}
	names, otherNames := s.custom.Names(), other.custom.Names()
	if len(names) != len(otherNames) {
		return false
	}
	for i, name := range names {
		if name != otherNames[i] {
			return false
		}
		a, _ := s.custom.Get(name)
		b, _ := other.custom.Get(name)
		if a.Kind() != b.Kind() || a.String() != b.String() {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Schema %q]\n  Columns:\n", s.name)
	for _, c := range s.columns {
		fmt.Fprintf(&b, "    - %q: %s\n", c.Name, column.Describe(c.Column))
	}
	if s.custom.Len() > 0 {
		b.WriteString("  Rules:\n")
		for _, name := range s.custom.Names() {
			r, _ := s.custom.Get(name)
			fmt.Fprintf(&b, "    - %q: %s\n", name, r)
		}
	}
	return b.String()
}
