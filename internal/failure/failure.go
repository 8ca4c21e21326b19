// internal/failure/failure.go
package failure

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Failure information.
 *
 * An Info is a deferred view over the rows a filter rejected. It holds the
 * evaluated table (data columns, one boolean column per rule and the
 * final-valid column) and only selects the failing rows the first time a
 * statistic or the data itself is requested.
 *
 * Rule columns keep their evaluated values: false is a failure, true a pass
 * and null "not applicable" (a rule masked after a failed cast). Statistics
 * treat null as a pass.
 *
 * Infos are immutable. Concat builds a new Info; nothing is updated in
 * place.
 */

// UnknownSchemaName names the schema of an Info read without schema metadata.
const UnknownSchemaName = "__unknown__"

// Info describes the rows rejected by a filter and why.
type Info struct {
	evaluated   *table.Table
	ruleColumns []string
	schemaName  string

	once    sync.Once
	failing *table.Table
}

// New creates an Info over an evaluated table. The table must contain every
// rule column and types.FinalValidColumn.
func New(evaluated *table.Table, ruleColumns []string, schemaName string) *Info {
	return &Info{
		evaluated:   evaluated,
		ruleColumns: append([]string(nil), ruleColumns...),
		schemaName:  schemaName,
	}
}

// Empty creates an Info without failures, used when there was nothing to
// evaluate.
func Empty(schemaName string) *Info {
	return fromFailing(table.MustFromColumns(nil, nil), nil, schemaName)
}

// fromFailing creates an already materialized Info.
func fromFailing(failing *table.Table, ruleColumns []string, schemaName string) *Info {
	info := &Info{
		ruleColumns: append([]string(nil), ruleColumns...),
		schemaName:  schemaName,
		failing:     failing,
	}
	info.once.Do(func() {})
	return info
}

func (i *Info) materialize() *table.Table {
	i.once.Do(func() {
		valid, ok := i.evaluated.Column(types.FinalValidColumn).(*array.Boolean)
		if !ok {
			panic(fmt.Sprintf("failure: evaluated table lacks boolean %s column", types.FinalValidColumn))
		}
		values := make([]bool, valid.Len())
		for r := range values {
			values[r] = valid.IsValid(r) && !valid.Value(r)
		}
		i.failing = i.evaluated.Filter(table.Bools(values, nil)).Drop(types.FinalValidColumn)
		i.evaluated = nil
	})
	return i.failing
}

// Len returns the number of failing rows.
func (i *Info) Len() int { return i.materialize().NumRows() }

// RuleColumns returns the names of the rule columns, in evaluation order.
func (i *Info) RuleColumns() []string { return append([]string(nil), i.ruleColumns...) }

// SchemaName returns the name of the schema that produced the failures.
func (i *Info) SchemaName() string { return i.schemaName }

// Details returns the failing rows with their data and rule columns.
func (i *Info) Details() *table.Table { return i.materialize() }

// Data returns the failing rows without rule columns.
func (i *Info) Data() *table.Table { return i.materialize().Drop(i.ruleColumns...) }

// Counts returns, per rule, how many rows failed it. Rules without
// failures are omitted.
func (i *Info) Counts() map[string]int {
	failing := i.materialize()
	counts := make(map[string]int)
	for _, name := range i.ruleColumns {
		col, ok := failing.Column(name).(*array.Boolean)
		if !ok {
			continue
		}
		n := 0
		for r := 0; r < col.Len(); r++ {
			if col.IsValid(r) && !col.Value(r) {
				n++
			}
		}
		if n > 0 {
			counts[name] = n
		}
	}
	return counts
}

// CooccurrenceCounts groups failing rows by the exact set of rules they
// failed and counts each set.
func (i *Info) CooccurrenceCounts() map[RuleSet]int {
	failing := i.materialize()
	cols := make([]*array.Boolean, 0, len(i.ruleColumns))
	names := make([]string, 0, len(i.ruleColumns))
	for _, name := range i.ruleColumns {
		if col, ok := failing.Column(name).(*array.Boolean); ok {
			cols = append(cols, col)
			names = append(names, name)
		}
	}

	counts := make(map[RuleSet]int)
	for r := 0; r < failing.NumRows(); r++ {
		var failed []string
		for k, col := range cols {
			if col.IsValid(r) && !col.Value(r) {
				failed = append(failed, names[k])
			}
		}
		counts[NewRuleSet(failed...)]++
	}
	return counts
}

// Concat merges infos into one. Columns missing from an input are null in
// its rows; rule columns are the ordered union of all inputs'. The schema
// name is taken from the first input.
func Concat(infos ...*Info) (*Info, error) {
	if len(infos) == 0 {
		return Empty(UnknownSchemaName), nil
	}
	tables := make([]*table.Table, 0, len(infos))
	var rules []string
	seen := make(map[string]bool)
	for _, info := range infos {
		failing := info.materialize()
		if failing.NumCols() > 0 {
			tables = append(tables, failing)
		}
		for _, name := range info.ruleColumns {
			if !seen[name] {
				seen[name] = true
				rules = append(rules, name)
			}
		}
	}
	if len(tables) == 0 {
		return fromFailing(table.MustFromColumns(nil, nil), rules, infos[0].schemaName), nil
	}
	merged, err := table.ConcatDiagonal(tables...)
	if err != nil {
		return nil, fmt.Errorf("concat failure info: %w", err)
	}
	return fromFailing(merged, rules, infos[0].schemaName), nil
}

// RuleSet is an unordered set of rule names usable as a map key.
type RuleSet struct {
	key string
}

const ruleSetSeparator = "\x00"

// NewRuleSet creates a set from rule names; duplicates collapse.
func NewRuleSet(names ...string) RuleSet {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	uniq := make([]string, 0, len(sorted))
	for k, n := range sorted {
		if k == 0 || n != sorted[k-1] {
			uniq = append(uniq, n)
		}
	}
	return RuleSet{key: strings.Join(uniq, ruleSetSeparator)}
}

// Rules returns the sorted rule names.
func (s RuleSet) Rules() []string {
	if s.key == "" {
		return nil
	}
	return strings.Split(s.key, ruleSetSeparator)
}

// Contains reports whether name is in the set.
func (s RuleSet) Contains(name string) bool {
	for _, r := range s.Rules() {
		if r == name {
			return true
		}
	}
	return false
}

// Len returns the number of rules in the set.
func (s RuleSet) Len() int { return len(s.Rules()) }

func (s RuleSet) String() string {
	return "{" + strings.Join(s.Rules(), ", ") + "}"
}
