// internal/rules/rule.go
package rules

import (
	"strings"

	"github.com/solatis/framekeeper/internal/expr"
)

/*
 * Rule shapes.
 *
 * A Rule is a tagged variant over four shapes:
 *   - Row:       a boolean expression evaluated per row
 *   - RowLazy:   a function of the owning schema returning a row expression
 *   - Group:     an aggregated boolean expression evaluated once per group
 *   - GroupLazy: a function of the owning schema returning a group expression
 *
 * Lazy rules exist so a rule can reference schema properties (column names,
 * primary keys) that are only known once the schema is assembled. They are
 * resolved at evaluation time against a TypeContext and skipped when none
 * is available.
 *
 * Rules are values: constructors copy their inputs and nothing mutates a
 * Rule afterwards.
 */

// Kind discriminates rule shapes.
type Kind int

const (
	KindRow Kind = iota
	KindRowLazy
	KindGroup
	KindGroupLazy
)

func (k Kind) String() string {
	switch k {
	case KindRow:
		return "row"
	case KindRowLazy:
		return "row-lazy"
	case KindGroup:
		return "group"
	case KindGroupLazy:
		return "group-lazy"
	default:
		return "unknown"
	}
}

// TypeContext describes the schema that owns a rule.
type TypeContext interface {
	Name() string
	ColumnNames() []string
	PrimaryKeys() []string
}

// LazyFunc builds a rule expression once the owning schema is known.
type LazyFunc func(tc TypeContext) expr.Expr

// Rule is a named boolean check. The zero value is not a valid rule.
type Rule struct {
	kind    Kind
	expr    expr.Expr
	lazy    LazyFunc
	groupBy []string
}

// Row creates a rule evaluated independently per row.
func Row(e expr.Expr) Rule {
	return Rule{kind: KindRow, expr: e}
}

// RowLazy creates a per-row rule resolved against the owning schema.
func RowLazy(fn LazyFunc) Rule {
	return Rule{kind: KindRowLazy, lazy: fn}
}

// Group creates a rule evaluated once per group of groupBy columns. The
// expression must reduce each group to a single boolean.
func Group(e expr.Expr, groupBy ...string) Rule {
	return Rule{kind: KindGroup, expr: e, groupBy: append([]string(nil), groupBy...)}
}

// GroupLazy creates a group rule resolved against the owning schema.
func GroupLazy(fn LazyFunc, groupBy ...string) Rule {
	return Rule{kind: KindGroupLazy, lazy: fn, groupBy: append([]string(nil), groupBy...)}
}

func (r Rule) Kind() Kind { return r.kind }

// IsGroup reports whether the rule is evaluated per group.
func (r Rule) IsGroup() bool { return r.kind == KindGroup || r.kind == KindGroupLazy }

// IsLazy reports whether the rule needs a TypeContext to resolve.
func (r Rule) IsLazy() bool { return r.kind == KindRowLazy || r.kind == KindGroupLazy }

// GroupBy returns the grouping columns of a group rule.
func (r Rule) GroupBy() []string { return append([]string(nil), r.groupBy...) }

// Resolve returns the rule's expression. Lazy rules are built against tc;
// with a nil tc they do not resolve and ok is false.
func (r Rule) Resolve(tc TypeContext) (e expr.Expr, ok bool) {
	if !r.IsLazy() {
		return r.expr, true
	}
	if tc == nil {
		return nil, false
	}
	return r.lazy(tc), true
}

// String describes the rule without resolving lazy expressions.
func (r Rule) String() string {
	body := "<lazy>"
	if !r.IsLazy() && r.expr != nil {
		body = r.expr.String()
	}
	if r.IsGroup() {
		return body + " group_by [" + strings.Join(r.groupBy, ", ") + "]"
	}
	return body
}

// Set is an insertion-ordered collection of named rules.
type Set struct {
	names []string
	rules map[string]Rule
}

// NewSet creates an empty rule set.
func NewSet() *Set {
	return &Set{rules: make(map[string]Rule)}
}

// SetOf builds a rule set from named rules.
func SetOf(named ...Named) *Set {
	s := NewSet()
	for _, n := range named {
		s.Add(n.Name, n.Rule)
	}
	return s
}

// Named pairs a rule with its name.
type Named struct {
	Name string
	Rule Rule
}

// Add inserts or replaces a rule. Replacing keeps the original position.
func (s *Set) Add(name string, r Rule) {
	if _, ok := s.rules[name]; !ok {
		s.names = append(s.names, name)
	}
	s.rules[name] = r
}

// Get returns the named rule.
func (s *Set) Get(name string) (Rule, bool) {
	if s == nil {
		return Rule{}, false
	}
	r, ok := s.rules[name]
	return r, ok
}

// Has reports whether a rule is named name.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns rule names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Len returns the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	out := NewSet()
	if s == nil {
		return out
	}
	for _, name := range s.names {
		out.Add(name, s.rules[name])
	}
	return out
}

// Merge adds every rule of other, in order, replacing same-named rules.
func (s *Set) Merge(other *Set) {
	for _, name := range other.Names() {
		r, _ := other.Get(name)
		s.Add(name, r)
	}
}
