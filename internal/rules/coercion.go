// internal/rules/coercion.go
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Lenient type coercion.
 *
 * Casting a column never fails as a whole. Every element is coerced on its
 * own; an element that cannot be represented in the target type becomes
 * null and is reported later by the column's dtype rule.
 *
 * Key distinction: a null input stays null and is fine, while a non-null
 * input that coerces to null is a failure. The evaluator tells the two
 * apart by comparing the cast column's nulls with a snapshot taken before
 * the cast (SnapshotNulls).
 *
 * Supported targets: int64, int32, float64, utf8, bool, date32.
 *   - Integers: exact integers, integral floats and trimmed integer strings
 *     (floats with a fraction are truncated, out-of-range values fail)
 *   - Float64: any number, bools as 0/1, trimmed numeric strings
 *   - Utf8: everything has a text form
 *   - Bool: bools, integers (non-zero is true), "true"/"false" strings
 *   - Date32: dates and ISO "YYYY-MM-DD" strings
 */

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil/null
}

// Coerce converts one value to the Go representation of dt.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrCoercionFailed for impossible coercions.
func Coerce(value any, dt arrow.DataType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch dt.ID() {
	case arrow.INT64:
		n, err := coerceInt(value, math.MinInt64, math.MaxInt64)
		return CoercionResult{Value: n}, err
	case arrow.INT32:
		n, err := coerceInt(value, math.MinInt32, math.MaxInt32)
		return CoercionResult{Value: int32(n)}, err
	case arrow.FLOAT64:
		return coerceFloat(value)
	case arrow.STRING:
		return coerceText(value)
	case arrow.BOOL:
		return coerceBoolean(value)
	case arrow.DATE32:
		return coerceDate(value)
	default:
		return CoercionResult{}, fmt.Errorf("%w: unsupported target %s", types.ErrCoercionFailed, dt)
	}
}

func coerceInt(value any, lo, hi int64) (int64, error) {
	var n int64
	switch v := value.(type) {
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int:
		n = int64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v < float64(lo) || v >= -float64(lo) {
			return 0, types.ErrCoercionFailed
		}
		n = int64(v)
	case bool:
		if v {
			n = 1
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, types.ErrCoercionFailed
		}
		n = parsed
	default:
		return 0, types.ErrCoercionFailed
	}
	if n < lo || n > hi {
		return 0, types.ErrCoercionFailed
	}
	return n, nil
}

func coerceFloat(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case float64:
		return CoercionResult{Value: v}, nil
	case int64:
		return CoercionResult{Value: float64(v)}, nil
	case int32:
		return CoercionResult{Value: float64(v)}, nil
	case int:
		return CoercionResult{Value: float64(v)}, nil
	case bool:
		if v {
			return CoercionResult{Value: 1.0}, nil
		}
		return CoercionResult{Value: 0.0}, nil
	case string:
		// Whitespace-only strings are not numbers.
		v = strings.TrimSpace(v)
		if v == "" {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: f}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case float64:
		return CoercionResult{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case int64:
		return CoercionResult{Value: strconv.FormatInt(v, 10)}, nil
	case int32:
		return CoercionResult{Value: strconv.FormatInt(int64(v), 10)}, nil
	case int:
		return CoercionResult{Value: strconv.Itoa(v)}, nil
	case bool:
		return CoercionResult{Value: strconv.FormatBool(v)}, nil
	case time.Time:
		return CoercionResult{Value: v.Format(time.DateOnly)}, nil
	default:
		return CoercionResult{Value: fmt.Sprintf("%v", v)}, nil
	}
}

func coerceBoolean(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case bool:
		return CoercionResult{Value: v}, nil
	case int64:
		return CoercionResult{Value: v != 0}, nil
	case int32:
		return CoercionResult{Value: v != 0}, nil
	case int:
		return CoercionResult{Value: v != 0}, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return CoercionResult{Value: true}, nil
		case "false":
			return CoercionResult{Value: false}, nil
		}
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

func coerceDate(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case time.Time:
		y, m, d := v.Date()
		return CoercionResult{Value: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
	case string:
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: d}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

// Cast converts arr to dt element by element. Elements that fail to coerce
// become null; only an unsupported target type is an error.
func Cast(arr arrow.Array, dt arrow.DataType) (arrow.Array, error) {
	if arrow.TypeEqual(arr.DataType(), dt) {
		return arr, nil
	}
	if isUnsupported(dt) {
		return nil, fmt.Errorf("%w: unsupported target %s", types.ErrCoercionFailed, dt)
	}
	if arr.DataType().ID() == arrow.NULL {
		return table.Nulls(dt, arr.Len()), nil
	}
	values := make([]any, arr.Len())
	for i := range values {
		res, err := Coerce(table.Value(arr, i), dt)
		if err == nil && !res.IsNull {
			values[i] = res.Value
		}
	}
	return table.BuildArray(dt, values)
}

func isUnsupported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT64, arrow.INT32, arrow.FLOAT64, arrow.STRING, arrow.BOOL, arrow.DATE32:
		return false
	}
	return true
}

// SnapshotNulls adds one "<column>__orig_null__" boolean column per listed
// column, recording which values were null before a cast.
func SnapshotNulls(t *table.Table, columns []string) *table.Table {
	out := t
	for _, c := range columns {
		arr := t.Column(c)
		if arr == nil {
			continue
		}
		values := make([]bool, arr.Len())
		for i := range values {
			values[i] = arr.IsNull(i)
		}
		out = out.WithColumn(types.OriginalNullColumn(c), table.Bools(values, nil))
	}
	return out
}
