package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Gather builds a new array from arr's values at indices. Negative indices
// produce nulls, which is how left joins mark unmatched rows.
func Gather(arr arrow.Array, indices []int) arrow.Array {
	switch a := arr.(type) {
	case *array.Int64:
		b := array.NewInt64Builder(Allocator)
		defer b.Release()
		b.Reserve(len(indices))
		for _, i := range indices {
			if i < 0 || a.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(a.Value(i))
			}
		}
		return b.NewArray()
	case *array.Int32:
		b := array.NewInt32Builder(Allocator)
		defer b.Release()
		b.Reserve(len(indices))
		for _, i := range indices {
			if i < 0 || a.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(a.Value(i))
			}
		}
		return b.NewArray()
	case *array.Float64:
		b := array.NewFloat64Builder(Allocator)
		defer b.Release()
		b.Reserve(len(indices))
		for _, i := range indices {
			if i < 0 || a.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(a.Value(i))
			}
		}
		return b.NewArray()
	case *array.String:
		b := array.NewStringBuilder(Allocator)
		defer b.Release()
		b.Reserve(len(indices))
		for _, i := range indices {
			if i < 0 || a.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(a.Value(i))
			}
		}
		return b.NewArray()
	case *array.Boolean:
		b := array.NewBooleanBuilder(Allocator)
		defer b.Release()
		b.Reserve(len(indices))
		for _, i := range indices {
			if i < 0 || a.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(a.Value(i))
			}
		}
		return b.NewArray()
	case *array.Date32:
		b := array.NewDate32Builder(Allocator)
		defer b.Release()
		b.Reserve(len(indices))
		for _, i := range indices {
			if i < 0 || a.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(a.Value(i))
			}
		}
		return b.NewArray()
	case *array.Null:
		return array.NewNull(len(indices))
	default:
		b := array.NewBuilder(Allocator, arr.DataType())
		defer b.Release()
		for _, i := range indices {
			if i < 0 || arr.IsNull(i) {
				b.AppendNull()
				continue
			}
			if err := b.AppendValueFromString(arr.ValueStr(i)); err != nil {
				panic(fmt.Sprintf("table: cannot gather %s values: %v", arr.DataType(), err))
			}
		}
		return b.NewArray()
	}
}

// Concatenate joins arrays of one type end to end.
func Concatenate(arrs ...arrow.Array) (arrow.Array, error) {
	if len(arrs) == 1 {
		return arrs[0], nil
	}
	return array.Concatenate(arrs, Allocator)
}

// Nulls returns an all-null array of type dt.
func Nulls(dt arrow.DataType, n int) arrow.Array {
	return array.MakeArrayOfNull(Allocator, dt, n)
}

// Bools builds a boolean array; valid may be nil for no nulls.
func Bools(values []bool, valid []bool) *array.Boolean {
	b := array.NewBooleanBuilder(Allocator)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewBooleanArray()
}

// ConstBool returns a length-n boolean array with a single value.
func ConstBool(v bool, n int) *array.Boolean {
	values := make([]bool, n)
	if v {
		for i := range values {
			values[i] = true
		}
	}
	return Bools(values, nil)
}

// Int64s builds an int64 array without nulls.
func Int64s(values ...int64) *array.Int64 {
	b := array.NewInt64Builder(Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewInt64Array()
}

// Strings builds a string array without nulls.
func Strings(values ...string) *array.String {
	b := array.NewStringBuilder(Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewStringArray()
}

// FillNull replaces nulls in a boolean array with v.
func FillNull(arr *array.Boolean, v bool) *array.Boolean {
	if arr.NullN() == 0 {
		return arr
	}
	values := make([]bool, arr.Len())
	for i := range values {
		if arr.IsValid(i) {
			values[i] = arr.Value(i)
		} else {
			values[i] = v
		}
	}
	return Bools(values, nil)
}
