package random

import (
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestGenerator_IsReproducible(t *testing.T) {
	a, b := New(42), New(42)
	if got, want := a.Int64s(20, -5, 5), b.Int64s(20, -5, 5); !reflect.DeepEqual(got, want) {
		t.Errorf("Int64s() = %v, want %v", got, want)
	}
	if got, want := a.Strings(5, 1, 4), b.Strings(5, 1, 4); !reflect.DeepEqual(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
	if a.Seed() != 42 {
		t.Errorf("Seed() = %d, want 42", a.Seed())
	}
}

func TestGenerator_Dates(t *testing.T) {
	lo := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	for _, d := range New(1).Dates(100, lo, hi) {
		if d.Before(lo) || d.After(hi) {
			t.Errorf("date %s outside [%s, %s]", d, lo, hi)
		}
		if d.Hour() != 0 || d.Minute() != 0 {
			t.Errorf("date %s is not truncated to a day", d)
		}
	}
}

func TestGenerator_ValidMask(t *testing.T) {
	g := New(7)
	for _, v := range g.ValidMask(50, 0) {
		if !v {
			t.Fatalf("ValidMask(p=0) produced a null")
		}
	}
	for _, v := range g.ValidMask(50, 1) {
		if v {
			t.Fatalf("ValidMask(p=1) produced a value")
		}
	}
}

// Property-based test: bounded helpers stay inside their bounds
func TestGenerator_PropertyBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ints and string lengths respect bounds", prop.ForAll(
		func(seed uint64, lo int64, width int64, minLen, extra int) bool {
			g := New(seed)
			for _, v := range g.Int64s(20, lo, lo+width) {
				if v < lo || v > lo+width {
					return false
				}
			}
			for _, s := range g.Strings(20, minLen, minLen+extra) {
				if len(s) < minLen || len(s) > minLen+extra {
					return false
				}
			}
			return true
		},
		gen.UInt64(),
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(0, 100),
		gen.IntRange(0, 5),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

func TestGenerator_Matching(t *testing.T) {
	patterns := []string{
		`^[a-z]{3}-\d{2,4}$`,
		`(foo|bar)+baz?`,
		`[^0-9]x*`,
		`(?i)hello`,
		`\w+@\w+\.com`,
	}
	g := New(3)
	for _, p := range patterns {
		re := regexp.MustCompile(p)
		values, err := g.Matching(25, p)
		if err != nil {
			t.Fatalf("Matching(%q) error = %v, want nil", p, err)
		}
		for _, v := range values {
			if !re.MatchString(v) {
				t.Errorf("Matching(%q) produced %q which does not match", p, v)
			}
		}
	}
}

func TestGenerator_MatchingInvalidPattern(t *testing.T) {
	if _, err := New(1).Matching(1, `(`); err == nil {
		t.Errorf("Matching() error = nil, want parse error")
	}
}
