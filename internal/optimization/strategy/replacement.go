package strategy

import (
	"fmt"
	"math"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// ReplacementKind enumerates the replacement variants.
type ReplacementKind int

const (
	// ReplaceFull lets offspring take every slot.
	ReplaceFull ReplacementKind = iota
	// ReplaceEliteAbsolute keeps a fixed number of best individuals.
	ReplaceEliteAbsolute
	// ReplaceElite keeps a fraction of the population, rounded.
	ReplaceElite
)

// Replacement merges offspring into the population.
type Replacement struct {
	Kind     ReplacementKind
	Elites   int
	Fraction float64
}

// Full replaces the whole population.
func Full() Replacement { return Replacement{Kind: ReplaceFull} }

// EliteAbsolute keeps the n best individuals verbatim.
func EliteAbsolute(n int) Replacement { return Replacement{Kind: ReplaceEliteAbsolute, Elites: n} }

// Elite keeps round(fraction * population size) individuals verbatim.
func Elite(fraction float64) Replacement { return Replacement{Kind: ReplaceElite, Fraction: fraction} }

func (r Replacement) String() string {
	switch r.Kind {
	case ReplaceFull:
		return "full"
	case ReplaceEliteAbsolute:
		return fmt.Sprintf("elite_absolute(%d)", r.Elites)
	case ReplaceElite:
		return fmt.Sprintf("elite(%g)", r.Fraction)
	default:
		return fmt.Sprintf("replacement(%d)", int(r.Kind))
	}
}

// Validate checks the variant's configuration.
func (r Replacement) Validate() error {
	switch r.Kind {
	case ReplaceFull:
	case ReplaceEliteAbsolute:
		if r.Elites < 0 {
			return optimization.Violation("replacement", "validate", "elite count must not be negative, got %d", r.Elites)
		}
	case ReplaceElite:
		if r.Fraction < 0 || r.Fraction > 1 {
			return optimization.Violation("replacement", "validate", "elite fraction must be within [0, 1], got %v", r.Fraction)
		}
	default:
		return optimization.Violation("replacement", "validate", "unknown replacement kind %d", int(r.Kind))
	}
	return nil
}

// EliteSize returns how many of the best individuals survive verbatim.
func (r Replacement) EliteSize(populationSize int) int {
	var n int
	switch r.Kind {
	case ReplaceEliteAbsolute:
		n = r.Elites
	case ReplaceElite:
		n = int(math.Round(r.Fraction * float64(populationSize)))
	}
	if n > populationSize {
		n = populationSize
	}
	if n < 0 {
		n = 0
	}
	return n
}

// SelectionSize returns how many parents are needed to fill the non-elite
// slots. The engine rounds it up to an even count.
func (r Replacement) SelectionSize(populationSize int) int {
	return r.OffspringSlots(populationSize)
}

// OffspringSlots returns the number of slots offspring may take.
func (r Replacement) OffspringSlots(populationSize int) int {
	return populationSize - r.EliteSize(populationSize)
}

// Replace writes offspring over the worst slots of a sorted population. The
// elite prefix is never touched; when fewer offspring than slots arrive, the
// best non-elite individuals fill the gap.
func Replace[G any](r Replacement, pop optimization.Population[G], offspring []optimization.Individual[G]) error {
	slots := r.OffspringSlots(len(pop))
	if len(offspring) > slots {
		return optimization.Violation("replacement", r.String(), "%d offspring for %d slots", len(offspring), slots)
	}
	copy(pop[len(pop)-len(offspring):], offspring)
	return nil
}
