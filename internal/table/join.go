package table

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

/*
 * Hash grouping and joins on key columns.
 *
 * Every row's key is encoded into a single string; nulls encode to a marker
 * distinct from any value, so null keys compare equal to each other. This is
 * the grouping semantics the rule evaluator relies on: a null group key forms
 * its own group and joins back onto every row carrying a null key.
 *
 * Joins build a hash table from the right side and probe it with left rows,
 * preserving left row order and cardinality.
 */

// RowKeys encodes the values of cols at each row into comparable keys.
func RowKeys(cols []arrow.Array, rows int) []string {
	var sb strings.Builder
	keys := make([]string, rows)
	var buf [8]byte
	for r := 0; r < rows; r++ {
		sb.Reset()
		for _, c := range cols {
			if c.IsNull(r) {
				sb.WriteByte(0)
				continue
			}
			sb.WriteByte(1)
			switch a := c.(type) {
			case *array.Int64:
				binary.LittleEndian.PutUint64(buf[:], uint64(a.Value(r)))
				sb.Write(buf[:])
			case *array.Int32:
				binary.LittleEndian.PutUint64(buf[:], uint64(int64(a.Value(r))))
				sb.Write(buf[:])
			case *array.Float64:
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(a.Value(r)))
				sb.Write(buf[:])
			case *array.Date32:
				binary.LittleEndian.PutUint64(buf[:], uint64(int64(a.Value(r))))
				sb.Write(buf[:])
			case *array.Boolean:
				if a.Value(r) {
					sb.WriteByte(1)
				} else {
					sb.WriteByte(0)
				}
			case *array.String:
				v := a.Value(r)
				sb.WriteString(strconv.Itoa(len(v)))
				sb.WriteByte(':')
				sb.WriteString(v)
			default:
				v := c.ValueStr(r)
				sb.WriteString(strconv.Itoa(len(v)))
				sb.WriteByte(':')
				sb.WriteString(v)
			}
		}
		keys[r] = sb.String()
	}
	return keys
}

// Groups is the result of grouping a table by key columns.
type Groups struct {
	// IDs maps each row to its group, numbered by first appearance.
	IDs []int
	// First holds the first row index of each group.
	First []int
	// Members holds the row indices of each group in row order.
	Members [][]int
}

// Len returns the number of groups.
func (g *Groups) Len() int { return len(g.First) }

// GroupBy groups rows by the named key columns.
func (t *Table) GroupBy(keys ...string) (*Groups, error) {
	cols, err := t.keyColumns(keys)
	if err != nil {
		return nil, err
	}
	rowKeys := RowKeys(cols, t.rows)
	lookup := make(map[string]int)
	g := &Groups{IDs: make([]int, t.rows)}
	for r, k := range rowKeys {
		id, ok := lookup[k]
		if !ok {
			id = len(g.First)
			lookup[k] = id
			g.First = append(g.First, r)
			g.Members = append(g.Members, nil)
		}
		g.IDs[r] = id
		g.Members[id] = append(g.Members[id], r)
	}
	return g, nil
}

// IsDuplicated flags rows whose key over the named columns occurs more than once.
func (t *Table) IsDuplicated(keys ...string) (*array.Boolean, error) {
	cols, err := t.keyColumns(keys)
	if err != nil {
		return nil, err
	}
	return DuplicatedMask(cols, t.rows), nil
}

// DuplicatedMask flags rows whose key over cols occurs more than once.
func DuplicatedMask(cols []arrow.Array, rows int) *array.Boolean {
	rowKeys := RowKeys(cols, rows)
	counts := make(map[string]int, rows)
	for _, k := range rowKeys {
		counts[k]++
	}
	out := make([]bool, rows)
	for r, k := range rowKeys {
		out[r] = counts[k] > 1
	}
	return Bools(out, nil)
}

// LeftJoinUnique joins right onto left on the named key columns. Keys must be
// unique on the right side. The result has left's rows in left's order, left's
// columns, then right's non-key columns (null where no match).
func LeftJoinUnique(left, right *Table, on ...string) (*Table, error) {
	lcols, err := left.keyColumns(on)
	if err != nil {
		return nil, fmt.Errorf("left join: %w", err)
	}
	rcols, err := right.keyColumns(on)
	if err != nil {
		return nil, fmt.Errorf("left join: %w", err)
	}

	build := make(map[string]int, right.rows)
	for r, k := range RowKeys(rcols, right.rows) {
		if _, dup := build[k]; dup {
			return nil, fmt.Errorf("left join: right side has duplicate key at row %d", r)
		}
		build[k] = r
	}

	probe := make([]int, left.rows)
	for r, k := range RowKeys(lcols, left.rows) {
		if m, ok := build[k]; ok {
			probe[r] = m
		} else {
			probe[r] = -1
		}
	}

	isKey := make(map[string]bool, len(on))
	for _, k := range on {
		isKey[k] = true
	}
	out := left
	for i, f := range right.fields {
		if isKey[f.Name] {
			continue
		}
		out = out.WithColumn(f.Name, Gather(right.cols[i], probe))
	}
	return out, nil
}

// SemiJoin keeps left rows whose key occurs in right.
func SemiJoin(left, right *Table, on ...string) (*Table, error) {
	mask, err := membership(left, right, on)
	if err != nil {
		return nil, err
	}
	return left.Filter(Bools(mask, nil)), nil
}

// AntiJoin keeps left rows whose key does not occur in right.
func AntiJoin(left, right *Table, on ...string) (*Table, error) {
	mask, err := membership(left, right, on)
	if err != nil {
		return nil, err
	}
	for i := range mask {
		mask[i] = !mask[i]
	}
	return left.Filter(Bools(mask, nil)), nil
}

// Contains reports per left row whether its key occurs in right.
func Contains(left, right *Table, on ...string) (*array.Boolean, error) {
	mask, err := membership(left, right, on)
	if err != nil {
		return nil, err
	}
	return Bools(mask, nil), nil
}

func membership(left, right *Table, on []string) ([]bool, error) {
	lcols, err := left.keyColumns(on)
	if err != nil {
		return nil, err
	}
	rcols, err := right.keyColumns(on)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, right.rows)
	for _, k := range RowKeys(rcols, right.rows) {
		set[k] = struct{}{}
	}
	mask := make([]bool, left.rows)
	for r, k := range RowKeys(lcols, left.rows) {
		_, mask[r] = set[k]
	}
	return mask, nil
}

// SortByInt64 stably sorts rows by an int64 column, nulls last.
func (t *Table) SortByInt64(name string) (*Table, error) {
	col, ok := t.Column(name).(*array.Int64)
	if !ok {
		return nil, fmt.Errorf("table: sort column %q is not int64", name)
	}
	indices := make([]int, t.rows)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		ia, ib := indices[a], indices[b]
		if col.IsNull(ia) || col.IsNull(ib) {
			return !col.IsNull(ia) && col.IsNull(ib)
		}
		return col.Value(ia) < col.Value(ib)
	})
	return t.Take(indices), nil
}

func (t *Table) keyColumns(keys []string) ([]arrow.Array, error) {
	cols := make([]arrow.Array, len(keys))
	for i, k := range keys {
		c := t.Column(k)
		if c == nil {
			return nil, fmt.Errorf("table: no key column %q", k)
		}
		cols[i] = c
	}
	return cols, nil
}
