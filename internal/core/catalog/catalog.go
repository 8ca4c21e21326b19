// internal/core/catalog/catalog.go
package catalog

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/column"
	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/rules"
	"github.com/solatis/framekeeper/internal/schema"
	"github.com/solatis/framekeeper/internal/types"
	"github.com/spf13/viper"
)

/*
 * Schema catalog.
 *
 * The catalog holds the schemas the CLI and the service know by name. It is
 * loaded once from a definition file and never changes afterwards, so it is
 * safe for concurrent use.
 *
 * Definition file (YAML or JSON, read through viper):
 *
 *   schemas:
 *     - name: orders
 *       columns:
 *         - {name: id, type: int64, primary_key: true, min: 1}
 *         - {name: status, type: string, is_in: [open, shipped]}
 *         - {name: note, type: string, nullable: true, max_length: 200}
 *       rules:
 *         - {name: positive_total, kind: compare, left: total, op: ">", value: 0}
 *         - {name: unique_ref, kind: unique, columns: [customer, ref]}
 *         - {name: small_batches, kind: max_group_size, group_by: [batch], size: 100}
 *
 * Column types: int64, int32, float64, string, bool, date. Bound and is_in
 * values are coerced to the column type the way a lenient cast would.
 */

// Catalog maps schema names to schemas.
type Catalog struct {
	schemas map[string]*schema.Schema
	names   []string
}

// New builds a catalog from already defined schemas.
func New(schemas ...*schema.Schema) (*Catalog, error) {
	c := &Catalog{schemas: make(map[string]*schema.Schema, len(schemas))}
	for _, s := range schemas {
		if _, ok := c.schemas[s.Name()]; ok {
			return nil, fmt.Errorf("schema '%s' defined twice", s.Name())
		}
		c.schemas[s.Name()] = s
		c.names = append(c.names, s.Name())
	}
	sort.Strings(c.names)
	return c, nil
}

// Load reads a definition file. The format follows the file extension.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := fromViper(v)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	slog.Info("Loaded schema catalog", "path", path, "schemas", len(c.names))
	return c, nil
}

// Parse reads a definition from r in the given format ("yaml" or "json").
func Parse(r io.Reader, format string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Catalog, error) {
	var defs []SchemaDef
	if err := v.UnmarshalKey("schemas", &defs); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	schemas := make([]*schema.Schema, 0, len(defs))
	for _, d := range defs {
		s, err := d.Build()
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return New(schemas...)
}

// Get returns the named schema.
func (c *Catalog) Get(name string) (*schema.Schema, error) {
	s, ok := c.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", types.ErrUnknownSchema, name)
	}
	return s, nil
}

// Names returns the schema names in sorted order.
func (c *Catalog) Names() []string { return append([]string(nil), c.names...) }

// Len returns the number of schemas.
func (c *Catalog) Len() int { return len(c.names) }

// SchemaDef is the file form of a schema.
type SchemaDef struct {
	Name    string      `mapstructure:"name"`
	Columns []ColumnDef `mapstructure:"columns"`
	Rules   []RuleDef   `mapstructure:"rules"`
}

// ColumnDef is the file form of a column.
type ColumnDef struct {
	Name         string `mapstructure:"name"`
	Type         string `mapstructure:"type"`
	Nullable     bool   `mapstructure:"nullable"`
	PrimaryKey   bool   `mapstructure:"primary_key"`
	Min          any    `mapstructure:"min"`
	MinExclusive any    `mapstructure:"min_exclusive"`
	Max          any    `mapstructure:"max"`
	MaxExclusive any    `mapstructure:"max_exclusive"`
	MinLength    *int   `mapstructure:"min_length"`
	MaxLength    *int   `mapstructure:"max_length"`
	Regex        string `mapstructure:"regex"`
	IsIn         []any  `mapstructure:"is_in"`
	AllowNaN     bool   `mapstructure:"allow_nan"`
}

// RuleDef is the file form of a custom rule. Fields apply per kind:
//
//	unique:          columns
//	compare:         left, op, and either right (a column) or value
//	min_group_size:  group_by, size
//	max_group_size:  group_by, size
type RuleDef struct {
	Name    string   `mapstructure:"name"`
	Kind    string   `mapstructure:"kind"`
	Columns []string `mapstructure:"columns"`
	Left    string   `mapstructure:"left"`
	Op      string   `mapstructure:"op"`
	Right   string   `mapstructure:"right"`
	Value   any      `mapstructure:"value"`
	GroupBy []string `mapstructure:"group_by"`
	Size    int      `mapstructure:"size"`
}

// Build defines the schema described by d.
func (d SchemaDef) Build() (*schema.Schema, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("schema without a name")
	}
	columns := make([]schema.NamedColumn, 0, len(d.Columns))
	dtypes := make(map[string]arrow.DataType, len(d.Columns))
	for _, cd := range d.Columns {
		col, err := cd.Build()
		if err != nil {
			return nil, fmt.Errorf("schema '%s': column '%s': %w", d.Name, cd.Name, err)
		}
		columns = append(columns, schema.NamedColumn{Name: cd.Name, Column: col})
		dtypes[cd.Name] = col.DType()
	}

	custom := make([]rules.Named, 0, len(d.Rules))
	for _, rd := range d.Rules {
		r, err := rd.Build(dtypes)
		if err != nil {
			return nil, fmt.Errorf("schema '%s': rule '%s': %w", d.Name, rd.Name, err)
		}
		custom = append(custom, rules.Named{Name: rd.Name, Rule: r})
	}
	return schema.Define(d.Name, columns, custom...)
}

// Build creates the column described by d.
func (d ColumnDef) Build() (column.Column, error) {
	base := column.Base{AllowNull: d.Nullable, Primary: d.PrimaryKey}
	switch strings.ToLower(d.Type) {
	case "int64", "int", "integer":
		if err := d.allow("min", "min_exclusive", "max", "max_exclusive", "is_in"); err != nil {
			return nil, err
		}
		c := column.Int64{Base: base}
		dt := c.DType()
		var err error
		if c.Min, err = bound[int64](d.Min, dt); err != nil {
			return nil, err
		}
		if c.MinExclusive, err = bound[int64](d.MinExclusive, dt); err != nil {
			return nil, err
		}
		if c.Max, err = bound[int64](d.Max, dt); err != nil {
			return nil, err
		}
		if c.MaxExclusive, err = bound[int64](d.MaxExclusive, dt); err != nil {
			return nil, err
		}
		if c.IsIn, err = members[int64](d.IsIn, dt); err != nil {
			return nil, err
		}
		return c, nil
	case "int32":
		if err := d.allow("min", "max"); err != nil {
			return nil, err
		}
		c := column.Int32{Base: base}
		var err error
		if c.Min, err = bound[int32](d.Min, c.DType()); err != nil {
			return nil, err
		}
		if c.Max, err = bound[int32](d.Max, c.DType()); err != nil {
			return nil, err
		}
		return c, nil
	case "float64", "float", "double":
		if err := d.allow("min", "max", "allow_nan"); err != nil {
			return nil, err
		}
		c := column.Float64{Base: base, AllowNaN: d.AllowNaN}
		var err error
		if c.Min, err = bound[float64](d.Min, c.DType()); err != nil {
			return nil, err
		}
		if c.Max, err = bound[float64](d.Max, c.DType()); err != nil {
			return nil, err
		}
		return c, nil
	case "string", "utf8":
		if err := d.allow("min_length", "max_length", "regex", "is_in"); err != nil {
			return nil, err
		}
		c := column.String{Base: base, MinLength: d.MinLength, MaxLength: d.MaxLength, Regex: d.Regex}
		var err error
		if c.IsIn, err = members[string](d.IsIn, c.DType()); err != nil {
			return nil, err
		}
		return c, nil
	case "bool", "boolean":
		if err := d.allow(); err != nil {
			return nil, err
		}
		return column.Bool{Base: base}, nil
	case "date":
		if err := d.allow("min", "max"); err != nil {
			return nil, err
		}
		c := column.Date{Base: base}
		var err error
		if c.Min, err = bound[time.Time](d.Min, c.DType()); err != nil {
			return nil, err
		}
		if c.Max, err = bound[time.Time](d.Max, c.DType()); err != nil {
			return nil, err
		}
		return c, nil
	case "":
		return nil, fmt.Errorf("missing type")
	default:
		return nil, fmt.Errorf("unsupported type '%s'", d.Type)
	}
}

// allow rejects constraints set on d that its type does not support.
func (d ColumnDef) allow(supported ...string) error {
	set := map[string]bool{
		"min":           d.Min != nil,
		"min_exclusive": d.MinExclusive != nil,
		"max":           d.Max != nil,
		"max_exclusive": d.MaxExclusive != nil,
		"min_length":    d.MinLength != nil,
		"max_length":    d.MaxLength != nil,
		"regex":         d.Regex != "",
		"is_in":         d.IsIn != nil,
		"allow_nan":     d.AllowNaN,
	}
	for _, s := range supported {
		delete(set, s)
	}
	var bad []string
	for name, present := range set {
		if present {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("type '%s' does not support %s", d.Type, strings.Join(bad, ", "))
	}
	return nil
}

func bound[T any](v any, dt arrow.DataType) (*T, error) {
	if v == nil {
		return nil, nil
	}
	res, err := rules.Coerce(v, dt)
	if err != nil {
		return nil, fmt.Errorf("bound %v is not a valid %s", v, dt)
	}
	out := res.Value.(T)
	return &out, nil
}

func members[T any](vs []any, dt arrow.DataType) ([]T, error) {
	if vs == nil {
		return nil, nil
	}
	out := make([]T, len(vs))
	for i, v := range vs {
		res, err := rules.Coerce(v, dt)
		if err != nil || res.IsNull {
			return nil, fmt.Errorf("is_in value %v is not a valid %s", v, dt)
		}
		out[i] = res.Value.(T)
	}
	return out, nil
}

// Build creates the rule described by d. dtypes maps the schema's columns
// to their types.
func (d RuleDef) Build(dtypes map[string]arrow.DataType) (rules.Rule, error) {
	switch d.Kind {
	case "unique":
		if len(d.Columns) == 0 {
			return rules.Rule{}, fmt.Errorf("unique rule needs columns")
		}
		return rules.Row(expr.IsUnique(expr.Cols(d.Columns...)...)), nil
	case "compare":
		op, err := parseOperator(d.Op)
		if err != nil {
			return rules.Rule{}, err
		}
		dt, ok := dtypes[d.Left]
		if !ok {
			return rules.Rule{}, fmt.Errorf("unknown column '%s'", d.Left)
		}
		switch {
		case d.Right != "" && d.Value != nil:
			return rules.Rule{}, fmt.Errorf("compare rule takes either right or value, not both")
		case d.Right != "":
			if _, ok := dtypes[d.Right]; !ok {
				return rules.Rule{}, fmt.Errorf("unknown column '%s'", d.Right)
			}
			return rules.Row(expr.Compare(op, expr.Col(d.Left), expr.Col(d.Right))), nil
		case d.Value != nil:
			res, err := rules.Coerce(d.Value, dt)
			if err != nil {
				return rules.Rule{}, fmt.Errorf("value %v is not a valid %s", d.Value, dt)
			}
			return rules.Row(expr.Compare(op, expr.Col(d.Left), expr.Lit(res.Value))), nil
		default:
			return rules.Rule{}, fmt.Errorf("compare rule needs right or value")
		}
	case "min_group_size", "max_group_size":
		if len(d.GroupBy) == 0 {
			return rules.Rule{}, fmt.Errorf("%s rule needs group_by", d.Kind)
		}
		if d.Size <= 0 {
			return rules.Rule{}, fmt.Errorf("%s rule needs a positive size", d.Kind)
		}
		if d.Kind == "min_group_size" {
			return rules.Group(expr.Ge(expr.Len(), expr.Lit(int64(d.Size))), d.GroupBy...), nil
		}
		return rules.Group(expr.Le(expr.Len(), expr.Lit(int64(d.Size))), d.GroupBy...), nil
	default:
		return rules.Rule{}, fmt.Errorf("unknown rule kind '%s'", d.Kind)
	}
}

func parseOperator(op string) (expr.Operator, error) {
	switch op {
	case "==", "=":
		return expr.OpEq, nil
	case "!=":
		return expr.OpNeq, nil
	case "<":
		return expr.OpLt, nil
	case "<=":
		return expr.OpLte, nil
	case ">":
		return expr.OpGt, nil
	case ">=":
		return expr.OpGte, nil
	case "starts_with":
		return expr.OpPrefix, nil
	case "ends_with":
		return expr.OpSuffix, nil
	default:
		return 0, fmt.Errorf("unknown operator '%s'", op)
	}
}
