package strategy

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// Recombinable is the part of the genotype contract crossover relies on.
type Recombinable[G any] interface {
	Clone() G
	Len() int
	SwapUnit(other G, i int)
}

// CrossoverKind enumerates the crossover variants.
type CrossoverKind int

const (
	// CrossoverNone returns copies of the parents.
	CrossoverNone CrossoverKind = iota
	// CrossoverSinglePoint swaps the tails after one random cut.
	CrossoverSinglePoint
	// CrossoverMultiPoint swaps every other segment between Points cuts.
	CrossoverMultiPoint
	// CrossoverUniform swaps every unit with probability one half.
	CrossoverUniform
)

// Crossover is the recombination strategy.
type Crossover struct {
	Kind   CrossoverKind
	Points int
}

// NoCrossover disables recombination.
func NoCrossover() Crossover { return Crossover{Kind: CrossoverNone} }

// SinglePoint recombines around one cut.
func SinglePoint() Crossover { return Crossover{Kind: CrossoverSinglePoint} }

// MultiPoint recombines around n cuts.
func MultiPoint(n int) Crossover { return Crossover{Kind: CrossoverMultiPoint, Points: n} }

// Uniform recombines unit by unit.
func Uniform() Crossover { return Crossover{Kind: CrossoverUniform} }

func (c Crossover) String() string {
	switch c.Kind {
	case CrossoverNone:
		return "none"
	case CrossoverSinglePoint:
		return "single_point"
	case CrossoverMultiPoint:
		return fmt.Sprintf("multi_point(%d)", c.Points)
	case CrossoverUniform:
		return "uniform"
	default:
		return fmt.Sprintf("crossover(%d)", int(c.Kind))
	}
}

// Validate checks the variant's configuration.
func (c Crossover) Validate() error {
	switch c.Kind {
	case CrossoverNone, CrossoverSinglePoint, CrossoverUniform:
	case CrossoverMultiPoint:
		if c.Points < 1 {
			return optimization.Violation("crossover", "validate", "multi-point crossover needs at least one point, got %d", c.Points)
		}
	default:
		return optimization.Violation("crossover", "validate", "unknown crossover kind %d", int(c.Kind))
	}
	return nil
}

// Recombine produces two children from two parents. The parents are never
// modified; the children are always fresh copies. With a non-nil rate, a
// uniform draw above the rate skips recombination for this call.
func Recombine[G Recombinable[G]](c Crossover, a, b G, rate *float64, rng *rand.Rand) (G, G) {
	childA, childB := a.Clone(), b.Clone()
	if rate != nil && rng.Float64() > *rate {
		return childA, childB
	}

	n := childA.Len()
	if childB.Len() < n {
		n = childB.Len()
	}

	switch c.Kind {
	case CrossoverSinglePoint:
		if n < 2 {
			break
		}
		cut := 1 + rng.IntN(n-1)
		for i := cut; i < n; i++ {
			childA.SwapUnit(childB, i)
		}
	case CrossoverMultiPoint:
		if n < 2 {
			break
		}
		cuts := multiPointCuts(c.Points, n, rng)
		swap := false
		next := 0
		for i := 0; i < n; i++ {
			for next < len(cuts) && cuts[next] == i {
				swap = !swap
				next++
			}
			if swap {
				childA.SwapUnit(childB, i)
			}
		}
	case CrossoverUniform:
		for i := 0; i < n; i++ {
			if rng.IntN(2) == 1 {
				childA.SwapUnit(childB, i)
			}
		}
	}
	return childA, childB
}

// multiPointCuts draws up to points distinct cut positions in [1, n).
func multiPointCuts(points, n int, rng *rand.Rand) []int {
	if points > n-1 {
		points = n - 1
	}
	perm := rng.Perm(n - 1)[:points]
	cuts := make([]int, points)
	for i, p := range perm {
		cuts[i] = p + 1
	}
	sort.Ints(cuts)
	return cuts
}
