package api

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/schema"
	"github.com/solatis/framekeeper/internal/table"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Row conversion.
 *
 * JSON documents only know numbers, strings, booleans and null. A column's
 * arrow type is inferred from its non-null values:
 *   - only integral numbers      int64
 *   - any fractional number      float64
 *   - only booleans              bool
 *   - anything else              utf8 (numbers and booleans in text form)
 *
 * Columns that are null in every row take the schema's type, or stay
 * untyped nulls for columns the schema does not know. Dates therefore
 * arrive as strings; callers filter with cast to read them as dates.
 */

// rowsToTable builds a table from JSON rows. Column order follows the
// schema, unknown columns follow in name order.
func rowsToTable(rows []any, s *schema.Schema) (*table.Table, error) {
	values := make(map[string][]any)
	for i, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d is not an object", i)
		}
		for name := range row {
			if _, ok := values[name]; !ok {
				values[name] = make([]any, len(rows))
			}
		}
		for name, v := range row {
			values[name][i] = v
		}
	}

	var names []string
	seen := make(map[string]bool)
	for _, name := range s.ColumnNames() {
		if _, ok := values[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range values {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	cols := make([]arrow.Array, len(names))
	for k, name := range names {
		var fallback arrow.DataType
		if c, ok := s.Column(name); ok {
			fallback = c.DType()
		}
		arr, err := inferColumn(values[name], fallback)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", name, err)
		}
		cols[k] = arr
	}
	return table.FromColumns(names, cols)
}

func inferColumn(values []any, fallback arrow.DataType) (arrow.Array, error) {
	var numbers, fractional, bools, others, nonNull int
	for _, v := range values {
		switch x := v.(type) {
		case nil:
			continue
		case float64:
			numbers++
			if x != math.Trunc(x) || math.Abs(x) >= 1<<63 {
				fractional++
			}
		case bool:
			bools++
		default:
			others++
		}
		nonNull++
	}

	switch {
	case nonNull == 0:
		if fallback == nil {
			return table.Nulls(arrow.Null, len(values)), nil
		}
		return table.Nulls(fallback, len(values)), nil
	case numbers == nonNull && fractional == 0:
		out := make([]any, len(values))
		for i, v := range values {
			if v != nil {
				out[i] = int64(v.(float64))
			}
		}
		return table.BuildArray(arrow.PrimitiveTypes.Int64, out)
	case numbers == nonNull:
		return table.BuildArray(arrow.PrimitiveTypes.Float64, values)
	case bools == nonNull:
		return table.BuildArray(arrow.FixedWidthTypes.Boolean, values)
	default:
		out := make([]any, len(values))
		for i, v := range values {
			if v != nil {
				out[i] = textOf(v)
			}
		}
		return table.BuildArray(arrow.BinaryTypes.String, out)
	}
}

func textOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// tableToRows converts t into a JSON list of row objects.
func tableToRows(t *table.Table) (*structpb.Value, error) {
	rows := make([]any, t.NumRows())
	for i := range rows {
		row := t.Row(i)
		for k, v := range row {
			row[k] = jsonValue(v)
		}
		rows[i] = row
	}
	list, err := structpb.NewList(rows)
	if err != nil {
		return nil, err
	}
	return structpb.NewListValue(list), nil
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.DateOnly)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Sprintf("%v", x)
		}
		return x
	default:
		return x
	}
}

// overrideRows converts JSON override rows. Numbers stay float64; the
// sampler coerces them to the column types.
func overrideRows(raw []any) ([]map[string]any, error) {
	rows := make([]map[string]any, len(raw))
	for i, r := range raw {
		row, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("override %d is not an object", i)
		}
		rows[i] = row
	}
	return rows, nil
}
