// internal/collection/collection.go
package collection

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/solatis/framekeeper/internal/failure"
	"github.com/solatis/framekeeper/internal/schema"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Collections.
 *
 * A collection groups member tables that describe one semantic object and
 * share a common primary key. Filtering runs in two stages:
 *   1. Every provided member is filtered by its own schema
 *   2. Every collection filter selects the primary keys to keep from the
 *      filtered members; members keep the rows whose key all filters kept
 *
 * Rows removed in stage 2 are appended to the member's failure info with
 * one boolean column per collection filter (false: this filter dropped the
 * key). Schema rule columns are null for those rows and filter columns are
 * null for rows removed in stage 1.
 *
 * Members marked IgnoredInFilters skip stage 2 and need not carry the
 * common primary key.
 */

// Member is one table of a collection.
type Member struct {
	Name   string
	Schema *schema.Schema
	// Optional members may be absent from the input.
	Optional bool
	// IgnoredInFilters excludes the member from collection filters.
	IgnoredInFilters bool
}

// Filter selects the common primary keys of rows to keep. Logic receives
// the member tables after schema filtering; absent optional members are
// not in the map.
type Filter struct {
	Name  string
	Logic func(members map[string]*table.Table) (*table.Table, error)
}

// Collection is a validated set of members and filters.
type Collection struct {
	name       string
	members    []Member
	filters    []Filter
	commonKeys []string
}

// Define checks a collection definition.
func Define(name string, members []Member, filters ...Filter) (*Collection, error) {
	if len(members) == 0 {
		return nil, types.NewImplementationError("Collection '%s' must have at least one member.", name)
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		switch {
		case m.Name == "":
			return nil, types.NewImplementationError("Collection '%s' has a member without a name.", name)
		case m.Schema == nil:
			return nil, types.NewImplementationError("Member '%s' of collection '%s' has no schema.", m.Name, name)
		case seen[m.Name]:
			return nil, types.NewImplementationError("Collection '%s' declares member '%s' twice.", name, m.Name)
		}
		seen[m.Name] = true
	}

	filterNames := make(map[string]bool, len(filters))
	for _, f := range filters {
		switch {
		case f.Name == "" || f.Logic == nil:
			return nil, types.NewImplementationError("Collection '%s' has a filter without a name or logic.", name)
		case filterNames[f.Name]:
			return nil, types.NewImplementationError("Collection '%s' declares filter '%s' twice.", name, f.Name)
		}
		filterNames[f.Name] = true
	}

	c := &Collection{
		name:    name,
		members: append([]Member(nil), members...),
		filters: append([]Filter(nil), filters...),
	}
	c.commonKeys = c.sharedPrimaryKeys()

	if len(filters) > 0 {
		if len(c.commonKeys) == 0 {
			return nil, types.NewImplementationError(
				"Members of collection '%s' must have an overlapping primary key but did not find any.", name)
		}
		for _, m := range c.members {
			if m.IgnoredInFilters {
				continue
			}
			for _, rule := range m.Schema.ValidationRules().Names() {
				if filterNames[rule] {
					return nil, types.NewImplementationError(
						"Filter '%s' of collection '%s' shadows a rule of member '%s'.", rule, name, m.Name)
				}
			}
		}
	}
	return c, nil
}

// MustDefine is Define for package-level collections; it panics on error.
func MustDefine(name string, members []Member, filters ...Filter) *Collection {
	c, err := Define(name, members, filters...)
	if err != nil {
		panic(err)
	}
	return c
}

// sharedPrimaryKeys intersects the primary keys of members taking part in
// filters, in the order of the first such member.
func (c *Collection) sharedPrimaryKeys() []string {
	var common []string
	first := true
	for _, m := range c.members {
		if m.IgnoredInFilters {
			continue
		}
		keys := m.Schema.PrimaryKeys()
		if first {
			common, first = keys, false
			continue
		}
		in := make(map[string]bool, len(keys))
		for _, k := range keys {
			in[k] = true
		}
		kept := common[:0:0]
		for _, k := range common {
			if in[k] {
				kept = append(kept, k)
			}
		}
		common = kept
	}
	return common
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Members returns the member definitions.
func (c *Collection) Members() []Member { return append([]Member(nil), c.members...) }

// CommonPrimaryKeys returns the primary key shared by all filtered members.
func (c *Collection) CommonPrimaryKeys() []string { return append([]string(nil), c.commonKeys...) }

// FilterNames returns the collection filter names in definition order.
func (c *Collection) FilterNames() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name
	}
	return names
}

func (c *Collection) checkInput(data map[string]*table.Table) error {
	var missing, unknown []string
	known := make(map[string]bool, len(c.members))
	for _, m := range c.members {
		known[m.Name] = true
		if _, ok := data[m.Name]; !ok && !m.Optional {
			missing = append(missing, m.Name)
		}
	}
	for name := range data {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	switch {
	case len(missing) > 0:
		return fmt.Errorf("%w: input misses %d required members: %s",
			types.ErrSchema, len(missing), strings.Join(missing, ", "))
	case len(unknown) > 0:
		return fmt.Errorf("%w: input has unknown members: %s", types.ErrSchema, strings.Join(unknown, ", "))
	}
	return nil
}

// Filter filters every member by its schema and then by the collection
// filters. Failure infos are returned for every provided member.
func (c *Collection) Filter(data map[string]*table.Table, cast bool) (map[string]*table.Table, map[string]*failure.Info, error) {
	if err := c.checkInput(data); err != nil {
		return nil, nil, err
	}

	results := make(map[string]*table.Table, len(data))
	failures := make(map[string]*failure.Info, len(data))
	for _, m := range c.members {
		in, ok := data[m.Name]
		if !ok {
			continue
		}
		valid, info, err := m.Schema.Filter(in, cast)
		if err != nil {
			return nil, nil, fmt.Errorf("member '%s': %w", m.Name, err)
		}
		results[m.Name], failures[m.Name] = valid, info
	}
	if len(c.filters) == 0 {
		return results, failures, nil
	}

	keep := make([]*table.Table, len(c.filters))
	for i, f := range c.filters {
		out, err := f.Logic(results)
		if err != nil {
			return nil, nil, fmt.Errorf("filter '%s': %w", f.Name, err)
		}
		if keep[i], err = out.Select(c.commonKeys...); err != nil {
			return nil, nil, fmt.Errorf("filter '%s' must return the primary key %v: %w", f.Name, c.commonKeys, err)
		}
	}
	allKeep := keep[0]
	for _, k := range keep[1:] {
		var err error
		if allKeep, err = table.SemiJoin(allKeep, k, c.commonKeys...); err != nil {
			return nil, nil, err
		}
	}

	for _, m := range c.members {
		filtered, ok := results[m.Name]
		if !ok || m.IgnoredInFilters {
			continue
		}
		kept, err := table.SemiJoin(filtered, allKeep, c.commonKeys...)
		if err != nil {
			return nil, nil, fmt.Errorf("member '%s': %w", m.Name, err)
		}
		removed, err := table.AntiJoin(filtered, allKeep, c.commonKeys...)
		if err != nil {
			return nil, nil, fmt.Errorf("member '%s': %w", m.Name, err)
		}
		results[m.Name] = kept

		info, err := c.extendFailures(failures[m.Name], removed, keep)
		if err != nil {
			return nil, nil, fmt.Errorf("member '%s': %w", m.Name, err)
		}
		failures[m.Name] = info
		slog.Debug("Applied collection filters",
			"collection", c.name,
			"member", m.Name,
			"kept", kept.NumRows(),
			"removed", removed.NumRows())
	}
	return results, failures, nil
}

// extendFailures appends rows removed by collection filters to info.
func (c *Collection) extendFailures(info *failure.Info, removed *table.Table, keep []*table.Table) (*failure.Info, error) {
	evaluated := removed
	for i, f := range c.filters {
		mask, err := table.Contains(removed, keep[i], c.commonKeys...)
		if err != nil {
			return nil, err
		}
		evaluated = evaluated.WithColumn(f.Name, mask)
	}
	evaluated = evaluated.WithColumn(types.FinalValidColumn, table.ConstBool(false, removed.NumRows()))
	return failure.Concat(info, failure.New(evaluated, c.FilterNames(), info.SchemaName()))
}

// Validate filters data and fails with a *types.MemberValidationError if
// any row of any member was removed.
func (c *Collection) Validate(data map[string]*table.Table, cast bool) (map[string]*table.Table, error) {
	results, failures, err := c.Filter(data, cast)
	if err != nil {
		return nil, err
	}
	errs := make(map[string]error)
	for name, info := range failures {
		if info.Len() > 0 {
			errs[name] = &types.RuleValidationError{Counts: info.Counts()}
		}
	}
	if len(errs) > 0 {
		return nil, &types.MemberValidationError{Errors: errs}
	}
	return results, nil
}

// IsValid reports whether data passes Validate. Missing required members
// are still an error.
func (c *Collection) IsValid(data map[string]*table.Table, cast bool) (bool, error) {
	if err := c.checkInput(data); err != nil {
		return false, err
	}
	_, err := c.Validate(data, cast)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, types.ErrSchema), errors.Is(err, types.ErrValidation):
		return false, nil
	default:
		return false, err
	}
}

// Cast casts every provided member to its schema without validation.
func (c *Collection) Cast(data map[string]*table.Table) (map[string]*table.Table, error) {
	if err := c.checkInput(data); err != nil {
		return nil, err
	}
	out := make(map[string]*table.Table, len(data))
	for _, m := range c.members {
		in, ok := data[m.Name]
		if !ok {
			continue
		}
		cast, err := m.Schema.Cast(in)
		if err != nil {
			return nil, fmt.Errorf("member '%s': %w", m.Name, err)
		}
		out[m.Name] = cast
	}
	return out, nil
}
