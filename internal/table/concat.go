package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Concat appends tables vertically. All tables must have the same column
// names and types in the same order.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("table: nothing to concatenate")
	}
	first := tables[0]
	if len(tables) == 1 {
		return first, nil
	}
	for _, t := range tables[1:] {
		if t.NumCols() != first.NumCols() {
			return nil, fmt.Errorf("table: cannot concatenate %v with %v", first.ColumnNames(), t.ColumnNames())
		}
		for i, f := range first.fields {
			g := t.fields[i]
			if g.Name != f.Name || !arrow.TypeEqual(g.Type, f.Type) {
				return nil, fmt.Errorf("table: column %d is %s %s, want %s %s", i, g.Name, g.Type, f.Name, f.Type)
			}
		}
	}

	fields := first.Fields()
	cols := make([]arrow.Array, len(fields))
	rows := 0
	for _, t := range tables {
		rows += t.rows
	}
	for i := range fields {
		parts := make([]arrow.Array, len(tables))
		for k, t := range tables {
			parts[k] = t.cols[i]
			fields[i].Nullable = fields[i].Nullable || t.fields[i].Nullable
		}
		merged, err := Concatenate(parts...)
		if err != nil {
			return nil, fmt.Errorf("table: concatenate %q: %w", fields[i].Name, err)
		}
		cols[i] = merged
	}
	out, err := New(fields, cols)
	if err != nil {
		return nil, err
	}
	out.rows = rows
	return out, nil
}

// ConcatDiagonal appends tables vertically over the union of their columns.
// Columns are ordered by first appearance; a table lacking a column
// contributes nulls for it. Shared columns must agree on type.
func ConcatDiagonal(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("table: nothing to concatenate")
	}

	var union []arrow.Field
	seen := make(map[string]int)
	for _, t := range tables {
		for _, f := range t.fields {
			if i, ok := seen[f.Name]; ok {
				if !arrow.TypeEqual(union[i].Type, f.Type) {
					return nil, fmt.Errorf("table: column %q is both %s and %s", f.Name, union[i].Type, f.Type)
				}
				continue
			}
			seen[f.Name] = len(union)
			union = append(union, f)
		}
	}

	padded := make([]*Table, len(tables))
	for k, t := range tables {
		fields := make([]arrow.Field, len(union))
		cols := make([]arrow.Array, len(union))
		for i, f := range union {
			fields[i] = f
			fields[i].Nullable = true
			if c := t.Column(f.Name); c != nil {
				cols[i] = c
			} else {
				cols[i] = Nulls(f.Type, t.rows)
			}
		}
		p, err := New(fields, cols)
		if err != nil {
			return nil, err
		}
		p.rows = t.rows
		padded[k] = p
	}
	return Concat(padded...)
}
