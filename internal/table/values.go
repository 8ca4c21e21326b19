package table

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Value returns the Go value at row i: int64, int32, float64, string, bool,
// time.Time (dates, UTC midnight) or nil for null.
func Value(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.Date32:
		return a.Value(i).ToTime().UTC()
	default:
		return arr.ValueStr(i)
	}
}

// Row returns row i as a column-name to value map.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.cols))
	for k, f := range t.fields {
		row[f.Name] = Value(t.cols[k], i)
	}
	return row
}

// BuildArray builds an array of type dt from Go values. Values must already
// have a compatible Go type; nil appends a null.
func BuildArray(dt arrow.DataType, values []any) (arrow.Array, error) {
	b := array.NewBuilder(Allocator, dt)
	defer b.Release()
	b.Reserve(len(values))
	for i, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		if err := appendValue(b, v); err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
	}
	return b.NewArray(), nil
}

func appendValue(b array.Builder, v any) error {
	switch bb := b.(type) {
	case *array.Int64Builder:
		n, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("cannot use %T as int64", v)
		}
		bb.Append(n)
	case *array.Int32Builder:
		n, ok := asInt64(v)
		if !ok || n < -1<<31 || n > 1<<31-1 {
			return fmt.Errorf("cannot use %v (%T) as int32", v, v)
		}
		bb.Append(int32(n))
	case *array.Float64Builder:
		switch x := v.(type) {
		case float64:
			bb.Append(x)
		case float32:
			bb.Append(float64(x))
		default:
			n, ok := asInt64(v)
			if !ok {
				return fmt.Errorf("cannot use %T as float64", v)
			}
			bb.Append(float64(n))
		}
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("cannot use %T as string", v)
		}
		bb.Append(s)
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot use %T as bool", v)
		}
		bb.Append(x)
	case *array.Date32Builder:
		switch x := v.(type) {
		case time.Time:
			bb.Append(arrow.Date32FromTime(x))
		case string:
			d, err := time.Parse(time.DateOnly, x)
			if err != nil {
				return fmt.Errorf("cannot use %q as date: %w", x, err)
			}
			bb.Append(arrow.Date32FromTime(d))
		default:
			return fmt.Errorf("cannot use %T as date", v)
		}
	default:
		return b.AppendValueFromString(fmt.Sprint(v))
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
