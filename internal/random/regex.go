package random

import (
	"fmt"
	"regexp/syntax"
	"strings"
	"unicode"
)

// maxUnboundedRepeat caps *, + and open-ended {n,} repetitions.
const maxUnboundedRepeat = 3

// Matching returns n strings that contain a match of pattern. Anchors and
// word boundaries are ignored, so patterns relying on them may yield
// strings that do not match; callers validate samples anyway.
func (g *Generator) Matching(n int, pattern string) ([]string, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("parse pattern %q: %w", pattern, err)
	}
	re = re.Simplify()

	out := make([]string, n)
	var sb strings.Builder
	for i := range out {
		sb.Reset()
		if err := g.emit(&sb, re); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		out[i] = sb.String()
	}
	return out, nil
}

func (g *Generator) emit(sb *strings.Builder, re *syntax.Regexp) error {
	switch re.Op {
	case syntax.OpNoMatch:
		return fmt.Errorf("pattern never matches")
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return nil
	case syntax.OpLiteral:
		for _, r := range re.Rune {
			if re.Flags&syntax.FoldCase != 0 && g.rng.IntN(2) == 1 {
				r = unicode.SimpleFold(r)
			}
			sb.WriteRune(r)
		}
		return nil
	case syntax.OpCharClass:
		sb.WriteRune(g.classRune(re.Rune))
		return nil
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		sb.WriteByte(Alphabet[g.rng.IntN(len(Alphabet))])
		return nil
	case syntax.OpCapture:
		return g.emit(sb, re.Sub[0])
	case syntax.OpStar:
		return g.repeat(sb, re.Sub[0], 0, maxUnboundedRepeat)
	case syntax.OpPlus:
		return g.repeat(sb, re.Sub[0], 1, 1+maxUnboundedRepeat)
	case syntax.OpQuest:
		return g.repeat(sb, re.Sub[0], 0, 1)
	case syntax.OpRepeat:
		hi := re.Max
		if hi < 0 {
			hi = re.Min + maxUnboundedRepeat
		}
		return g.repeat(sb, re.Sub[0], re.Min, hi)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if err := g.emit(sb, sub); err != nil {
				return err
			}
		}
		return nil
	case syntax.OpAlternate:
		return g.emit(sb, re.Sub[g.rng.IntN(len(re.Sub))])
	default:
		return fmt.Errorf("unsupported operator %v", re.Op)
	}
}

func (g *Generator) repeat(sb *strings.Builder, re *syntax.Regexp, lo, hi int) error {
	count := lo
	if hi > lo {
		count += g.rng.IntN(hi - lo + 1)
	}
	for i := 0; i < count; i++ {
		if err := g.emit(sb, re); err != nil {
			return err
		}
	}
	return nil
}

// classRune picks a rune from a class given as [lo, hi] pairs, preferring
// printable ASCII when the class contains any.
func (g *Generator) classRune(ranges []rune) rune {
	printable := clip(ranges, ' ', '~')
	if len(printable) > 0 {
		ranges = printable
	}
	total := 0
	for i := 0; i < len(ranges); i += 2 {
		total += int(ranges[i+1]-ranges[i]) + 1
	}
	k := g.rng.IntN(total)
	for i := 0; i < len(ranges); i += 2 {
		size := int(ranges[i+1]-ranges[i]) + 1
		if k < size {
			return ranges[i] + rune(k)
		}
		k -= size
	}
	return ranges[0]
}

func clip(ranges []rune, lo, hi rune) []rune {
	var out []rune
	for i := 0; i < len(ranges); i += 2 {
		a, b := max(ranges[i], lo), min(ranges[i+1], hi)
		if a <= b {
			out = append(out, a, b)
		}
	}
	return out
}
