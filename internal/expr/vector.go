package expr

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/table"
)

type kind int

const (
	kindNull kind = iota
	kindInt
	kindFloat
	kindString
	kindBool
	kindDate
)

func (k kind) String() string {
	switch k {
	case kindNull:
		return "null"
	case kindInt:
		return "int64"
	case kindFloat:
		return "float64"
	case kindString:
		return "string"
	case kindBool:
		return "bool"
	case kindDate:
		return "date32"
	default:
		return "unknown"
	}
}

func (k kind) numeric() bool { return k == kindInt || k == kindFloat }

// vector is the evaluation-time value representation. Exactly one of the
// value slices is populated, chosen by kind. Dates are stored as days since
// the epoch in ints.
type vector struct {
	n      int
	kind   kind
	ints   []int64
	floats []float64
	strs   []string
	bools  []bool
	valid  []bool
}

func newVector(k kind, n int) *vector {
	v := &vector{n: n, kind: k, valid: make([]bool, n)}
	switch k {
	case kindInt, kindDate:
		v.ints = make([]int64, n)
	case kindFloat:
		v.floats = make([]float64, n)
	case kindString:
		v.strs = make([]string, n)
	case kindBool:
		v.bools = make([]bool, n)
	}
	return v
}

func nullVector(n int) *vector {
	return &vector{n: n, kind: kindNull, valid: make([]bool, n)}
}

func fromArrow(arr arrow.Array) (*vector, error) {
	n := arr.Len()
	switch a := arr.(type) {
	case *array.Int64:
		v := newVector(kindInt, n)
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				v.ints[i], v.valid[i] = a.Value(i), true
			}
		}
		return v, nil
	case *array.Int32:
		v := newVector(kindInt, n)
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				v.ints[i], v.valid[i] = int64(a.Value(i)), true
			}
		}
		return v, nil
	case *array.Float64:
		v := newVector(kindFloat, n)
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				v.floats[i], v.valid[i] = a.Value(i), true
			}
		}
		return v, nil
	case *array.String:
		v := newVector(kindString, n)
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				v.strs[i], v.valid[i] = a.Value(i), true
			}
		}
		return v, nil
	case *array.Boolean:
		v := newVector(kindBool, n)
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				v.bools[i], v.valid[i] = a.Value(i), true
			}
		}
		return v, nil
	case *array.Date32:
		v := newVector(kindDate, n)
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				v.ints[i], v.valid[i] = int64(a.Value(i)), true
			}
		}
		return v, nil
	case *array.Null:
		return nullVector(n), nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", arr.DataType())
	}
}

func scalar(x any) (*vector, error) {
	switch val := x.(type) {
	case nil:
		return nullVector(1), nil
	case int:
		v := newVector(kindInt, 1)
		v.ints[0], v.valid[0] = int64(val), true
		return v, nil
	case int32:
		v := newVector(kindInt, 1)
		v.ints[0], v.valid[0] = int64(val), true
		return v, nil
	case int64:
		v := newVector(kindInt, 1)
		v.ints[0], v.valid[0] = val, true
		return v, nil
	case float64:
		v := newVector(kindFloat, 1)
		v.floats[0], v.valid[0] = val, true
		return v, nil
	case string:
		v := newVector(kindString, 1)
		v.strs[0], v.valid[0] = val, true
		return v, nil
	case bool:
		v := newVector(kindBool, 1)
		v.bools[0], v.valid[0] = val, true
		return v, nil
	case time.Time:
		v := newVector(kindDate, 1)
		v.ints[0], v.valid[0] = int64(arrow.Date32FromTime(val)), true
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", x)
	}
}

// broadcast stretches a single value to n rows.
func (v *vector) broadcast(n int) *vector {
	if v.n == n || v.n != 1 {
		return v
	}
	out := newVector(v.kind, n)
	for i := 0; i < n; i++ {
		out.valid[i] = v.valid[0]
		switch v.kind {
		case kindInt, kindDate:
			out.ints[i] = v.ints[0]
		case kindFloat:
			out.floats[i] = v.floats[0]
		case kindString:
			out.strs[i] = v.strs[0]
		case kindBool:
			out.bools[i] = v.bools[0]
		}
	}
	return out
}

// float returns element i widened to float64.
func (v *vector) float(i int) float64 {
	if v.kind == kindFloat {
		return v.floats[i]
	}
	return float64(v.ints[i])
}

// align broadcasts a and b to a common length.
func align(a, b *vector) (*vector, *vector, int, error) {
	switch {
	case a.n == b.n:
		return a, b, a.n, nil
	case a.n == 1:
		return a.broadcast(b.n), b, b.n, nil
	case b.n == 1:
		return a, b.broadcast(a.n), a.n, nil
	default:
		return nil, nil, 0, fmt.Errorf("operands have %d and %d values", a.n, b.n)
	}
}

func (v *vector) toArrow() arrow.Array {
	switch v.kind {
	case kindInt:
		b := array.NewInt64Builder(table.Allocator)
		defer b.Release()
		b.AppendValues(v.ints, v.valid)
		return b.NewArray()
	case kindFloat:
		b := array.NewFloat64Builder(table.Allocator)
		defer b.Release()
		b.AppendValues(v.floats, v.valid)
		return b.NewArray()
	case kindString:
		b := array.NewStringBuilder(table.Allocator)
		defer b.Release()
		b.AppendValues(v.strs, v.valid)
		return b.NewArray()
	case kindBool:
		b := array.NewBooleanBuilder(table.Allocator)
		defer b.Release()
		b.AppendValues(v.bools, v.valid)
		return b.NewArray()
	case kindDate:
		b := array.NewDate32Builder(table.Allocator)
		defer b.Release()
		for i := 0; i < v.n; i++ {
			if v.valid[i] {
				b.Append(arrow.Date32(v.ints[i]))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	default:
		// Untyped nulls surface as boolean so rule columns stay boolean.
		b := array.NewBooleanBuilder(table.Allocator)
		defer b.Release()
		b.AppendValues(make([]bool, v.n), make([]bool, v.n))
		return b.NewArray()
	}
}
