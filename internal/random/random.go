// internal/random/random.go
package random

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

/*
 * Seeded random data generation for the sampler.
 *
 * A Generator is deterministic for a given seed: the same seed and the same
 * sequence of calls produce the same values. Generators are not safe for
 * concurrent use; callers sampling in parallel create one per goroutine.
 *
 * Value helpers return plain Go slices; columns turn them into arrow arrays
 * and apply their own null masks.
 */

// Alphabet is the character set used for generated strings.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultMaxStringLength bounds generated strings without a max length.
const DefaultMaxStringLength = 16

const secondsPerDay = 24 * 60 * 60

// Generator produces reproducible pseudo-random values.
type Generator struct {
	seed uint64
	rng  *rand.Rand
}

// New creates a generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{seed: seed, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom creates a generator with a random seed.
func NewRandom() *Generator {
	return New(rand.Uint64())
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() uint64 { return g.seed }

// IntN returns a uniform value in [0, n).
func (g *Generator) IntN(n int) int { return g.rng.IntN(n) }

// Int64s returns n uniform values in [lo, hi].
func (g *Generator) Int64s(n int, lo, hi int64) []int64 {
	out := make([]int64, n)
	span := uint64(hi - lo)
	for i := range out {
		if span == math.MaxUint64 {
			out[i] = int64(g.rng.Uint64())
			continue
		}
		out[i] = lo + int64(g.rng.Uint64N(span+1))
	}
	return out
}

// Float64s returns n uniform values in [lo, hi).
func (g *Generator) Float64s(n int, lo, hi float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + g.rng.Float64()*(hi-lo)
	}
	return out
}

// Bools returns n fair coin flips.
func (g *Generator) Bools(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = g.rng.IntN(2) == 1
	}
	return out
}

// Strings returns n strings over Alphabet with lengths in [minLen, maxLen].
func (g *Generator) Strings(n, minLen, maxLen int) []string {
	out := make([]string, n)
	var sb strings.Builder
	for i := range out {
		length := minLen
		if maxLen > minLen {
			length += g.rng.IntN(maxLen - minLen + 1)
		}
		sb.Reset()
		for j := 0; j < length; j++ {
			sb.WriteByte(Alphabet[g.rng.IntN(len(Alphabet))])
		}
		out[i] = sb.String()
	}
	return out
}

// Dates returns n dates in [lo, hi], both truncated to days.
func (g *Generator) Dates(n int, lo, hi time.Time) []time.Time {
	loDay := lo.UTC().Truncate(24 * time.Hour)
	hiDay := hi.UTC().Truncate(24 * time.Hour)
	// Sub would saturate for ranges beyond ~292 years.
	days := (hiDay.Unix() - loDay.Unix()) / secondsPerDay
	offsets := g.Int64s(n, 0, days)
	out := make([]time.Time, n)
	for i, d := range offsets {
		out[i] = loDay.AddDate(0, 0, int(d))
	}
	return out
}

// Choice returns n indices drawn uniformly, with replacement, from [0, k).
func (g *Generator) Choice(n, k int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = g.rng.IntN(k)
	}
	return out
}

// ValidMask returns n validity flags where each value is null with
// probability p.
func (g *Generator) ValidMask(n int, p float64) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = g.rng.Float64() >= p
	}
	return out
}
