// Package table provides an immutable, Arrow-backed columnar batch.
//
// A Table is an ordered set of equally long arrow.Array columns. All
// operations return new tables and never mutate their receiver, so tables can
// be shared freely between the rule evaluator, failure views and the sampler.
// Every operation in this package materializes: it works on in-memory arrays.
package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Allocator is shared by all builders in the engine.
var Allocator memory.Allocator = memory.NewGoAllocator()

// Table is an immutable columnar batch.
type Table struct {
	fields []arrow.Field
	cols   []arrow.Array
	index  map[string]int
	rows   int
}

// New creates a table from fields and columns of equal length.
func New(fields []arrow.Field, cols []arrow.Array) (*Table, error) {
	if len(fields) != len(cols) {
		return nil, fmt.Errorf("table: %d fields but %d columns", len(fields), len(cols))
	}
	t := &Table{
		fields: append([]arrow.Field(nil), fields...),
		cols:   append([]arrow.Array(nil), cols...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := t.index[f.Name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", f.Name)
		}
		if !arrow.TypeEqual(f.Type, cols[i].DataType()) {
			return nil, fmt.Errorf("table: column %q has type %s, field declares %s", f.Name, cols[i].DataType(), f.Type)
		}
		if i == 0 {
			t.rows = cols[i].Len()
		} else if cols[i].Len() != t.rows {
			return nil, fmt.Errorf("table: column %q has %d rows, want %d", f.Name, cols[i].Len(), t.rows)
		}
		t.index[f.Name] = i
	}
	return t, nil
}

// FromColumns creates a table of nullable fields named after names.
func FromColumns(names []string, cols []arrow.Array) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("table: %d names but %d columns", len(names), len(cols))
	}
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: cols[i].DataType(), Nullable: true}
	}
	return New(fields, cols)
}

// MustFromColumns is FromColumns that panics on error, for literals in tests and fixtures.
func MustFromColumns(names []string, cols []arrow.Array) *Table {
	t, err := FromColumns(names, cols)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRecord wraps an arrow record.
func FromRecord(rec arrow.Record) (*Table, error) {
	return New(rec.Schema().Fields(), rec.Columns())
}

// Empty returns a zero-row table with the given schema.
func Empty(schema *arrow.Schema) *Table {
	fields := schema.Fields()
	cols := make([]arrow.Array, len(fields))
	for i, f := range fields {
		cols[i] = array.MakeArrayOfNull(Allocator, f.Type, 0)
	}
	t, err := New(fields, cols)
	if err != nil {
		panic(err)
	}
	return t
}

// Schema returns the arrow schema of the table (without metadata).
func (t *Table) Schema() *arrow.Schema {
	return arrow.NewSchema(t.fields, nil)
}

// Fields returns a copy of the table's fields.
func (t *Table) Fields() []arrow.Field {
	return append([]arrow.Field(nil), t.fields...)
}

// Record returns the table as an arrow record.
func (t *Table) Record() arrow.Record {
	return array.NewRecord(t.Schema(), t.cols, int64(t.rows))
}

func (t *Table) NumRows() int { return t.rows }

func (t *Table) NumCols() int { return len(t.cols) }

// ColumnNames returns column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column or nil.
func (t *Table) Column(name string) arrow.Array {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.cols[i]
}

// Field returns the named field.
func (t *Table) Field(name string) (arrow.Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return arrow.Field{}, false
	}
	return t.fields[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) arrow.Array { return t.cols[i] }

// WithColumn replaces the named column or appends it. The column must have
// NumRows rows unless the table has no columns yet.
func (t *Table) WithColumn(name string, arr arrow.Array) *Table {
	if len(t.cols) > 0 && arr.Len() != t.rows {
		panic(fmt.Sprintf("table: column %q has %d rows, want %d", name, arr.Len(), t.rows))
	}
	fields := t.Fields()
	cols := append([]arrow.Array(nil), t.cols...)
	field := arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}
	if i, ok := t.index[name]; ok {
		field.Nullable = fields[i].Nullable || arr.NullN() > 0
		fields[i] = field
		cols[i] = arr
	} else {
		fields = append(fields, field)
		cols = append(cols, arr)
	}
	out, err := New(fields, cols)
	if err != nil {
		panic(err)
	}
	return out
}

// Select returns the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	fields := make([]arrow.Field, 0, len(names))
	cols := make([]arrow.Array, 0, len(names))
	for _, name := range names {
		i, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("table: no column %q", name)
		}
		fields = append(fields, t.fields[i])
		cols = append(cols, t.cols[i])
	}
	out, err := New(fields, cols)
	if err != nil {
		return nil, err
	}
	out.rows = t.rows
	return out, nil
}

// Drop removes the named columns; unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var fields []arrow.Field
	var cols []arrow.Array
	for i, f := range t.fields {
		if drop[f.Name] {
			continue
		}
		fields = append(fields, f)
		cols = append(cols, t.cols[i])
	}
	out, err := New(fields, cols)
	if err != nil {
		panic(err)
	}
	out.rows = t.rows
	return out
}

// Rename renames a column. Renaming a missing column is a no-op.
func (t *Table) Rename(from, to string) *Table {
	i, ok := t.index[from]
	if !ok {
		return t
	}
	fields := t.Fields()
	fields[i].Name = to
	out, err := New(fields, t.cols)
	if err != nil {
		panic(err)
	}
	out.rows = t.rows
	return out
}

// Filter keeps rows where mask is true. Null mask entries drop the row.
// Row order is preserved.
func (t *Table) Filter(mask *array.Boolean) *Table {
	if mask.Len() != t.rows {
		panic(fmt.Sprintf("table: mask has %d rows, want %d", mask.Len(), t.rows))
	}
	indices := make([]int, 0, t.rows)
	for i := 0; i < mask.Len(); i++ {
		if mask.IsValid(i) && mask.Value(i) {
			indices = append(indices, i)
		}
	}
	return t.Take(indices)
}

// Take gathers rows by index. A negative index yields a row of nulls.
func (t *Table) Take(indices []int) *Table {
	cols := make([]arrow.Array, len(t.cols))
	for i, c := range t.cols {
		cols[i] = Gather(c, indices)
	}
	fields := t.Fields()
	for i := range fields {
		if cols[i].NullN() > 0 {
			fields[i].Nullable = true
		}
	}
	out, err := New(fields, cols)
	if err != nil {
		panic(err)
	}
	out.rows = len(indices)
	return out
}

// Slice returns rows [i, j).
func (t *Table) Slice(i, j int) *Table {
	cols := make([]arrow.Array, len(t.cols))
	for k, c := range t.cols {
		cols[k] = array.NewSlice(c, int64(i), int64(j))
	}
	out, err := New(t.fields, cols)
	if err != nil {
		panic(err)
	}
	out.rows = j - i
	return out
}

// Head returns at most n leading rows.
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	return t.Slice(0, n)
}

// String renders a short description, not the data.
func (t *Table) String() string {
	return fmt.Sprintf("table[%d rows x %v]", t.rows, t.ColumnNames())
}
