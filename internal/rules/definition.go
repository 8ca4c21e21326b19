package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/framekeeper/internal/expr"
	"github.com/solatis/framekeeper/internal/types"
)

// reservedColumns may not be used as column or rule names.
var reservedColumns = map[string]bool{
	types.FinalValidColumn: true,
	types.RowIndexColumn:   true,
}

// CheckDefinition runs the one-time consistency checks of a schema
// definition. It is not part of evaluation; Compile and Evaluate assume a
// definition that passed.
//
// Checked:
//   - column names are unique, non-empty and not reserved
//   - no custom rule is named "primary_key" or a reserved name
//   - custom rules shadow neither column rules nor the "<col>|dtype" rules
//     added when casting
//   - no column shares a name with any compiled rule
//   - group rules only group by schema columns and eager group rules
//     aggregate
func CheckDefinition(schema string, custom *Set, columns []NamedColumn) error {
	columnNames := make(map[string]bool, len(columns))
	for _, c := range columns {
		switch {
		case c.Name == "":
			return types.NewImplementationError("Schema '%s' declares a column without a name.", schema)
		case reservedColumns[c.Name] || strings.HasSuffix(c.Name, types.OriginalNullSuffix):
			return types.NewImplementationError("Column name '%s' is reserved.", c.Name)
		case columnNames[c.Name]:
			return types.NewImplementationError("Schema '%s' declares column '%s' twice.", schema, c.Name)
		}
		columnNames[c.Name] = true
	}

	for _, name := range custom.Names() {
		if name == types.PrimaryKeyRule {
			return types.NewImplementationError("Custom validation rule must not be named `%s`.", types.PrimaryKeyRule)
		}
		if name == "" || reservedColumns[name] {
			return types.NewImplementationError("Custom validation rule name '%s' is reserved.", name)
		}
	}

	// Derived rule names must not shadow custom rules.
	derived := Compile(NewSet(), columns)
	derived.Merge(DtypeRules(columnNamesOf(columns)))
	var clashes []string
	for _, name := range derived.Names() {
		if custom.Has(name) {
			clashes = append(clashes, fmt.Sprintf("'%s'", name))
		}
	}
	if len(clashes) > 0 {
		sort.Strings(clashes)
		return types.NewImplementationError(
			"Custom rules must not shadow column rules but found %d overlaps: %s.",
			len(clashes), strings.Join(clashes, ", "))
	}

	allRules := Compile(custom, columns)
	names := allRules.Names()
	for _, c := range columns {
		names = append(names, types.DtypeRuleName(c.Name))
	}
	var common []string
	for _, name := range names {
		if columnNames[name] {
			common = append(common, fmt.Sprintf("'%s'", name))
		}
	}
	if len(common) > 0 {
		sort.Strings(common)
		return types.NewImplementationError(
			"Rules and columns must not be named equally but found %d overlaps: %s.",
			len(common), strings.Join(common, ", "))
	}

	for _, name := range custom.Names() {
		r, _ := custom.Get(name)
		if !r.IsGroup() {
			continue
		}
		if len(r.groupBy) == 0 {
			return types.NewImplementationError(
				"Group validation rule '%s' has been implemented incorrectly. It does not group by any column.", name)
		}
		var missing []string
		for _, g := range r.groupBy {
			if !columnNames[g] {
				missing = append(missing, fmt.Sprintf("'%s'", g))
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return types.NewImplementationError(
				"Group validation rule '%s' has been implemented incorrectly. "+
					"It references %d columns which are not in the schema: %s.",
				name, len(missing), strings.Join(missing, ", "))
		}
		if e, ok := r.Resolve(nil); ok && !expr.IsScalar(e) {
			return ruleError(name, r, &expr.ArityError{Expr: e.String(), Got: -1})
		}
	}

	return nil
}

// CheckRuleNames rejects custom rules sharing a name; a Set built from
// them would keep only the last one.
func CheckRuleNames(schema string, custom []Named) error {
	seen := make(map[string]bool, len(custom))
	var dupes []string
	for _, n := range custom {
		if seen[n.Name] {
			dupes = append(dupes, fmt.Sprintf("'%s'", n.Name))
		}
		seen[n.Name] = true
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		return types.NewImplementationError(
			"Schema '%s' defines custom rules more than once: %s.", schema, strings.Join(dupes, ", "))
	}
	return nil
}

func columnNamesOf(columns []NamedColumn) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}
