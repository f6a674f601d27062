// Package strategy implements the six pluggable algorithm families of the
// evolution engine. Every family is a closed set of variants: a tagged struct
// whose Kind selects the behaviour in a single dispatch function.
package strategy

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// SelectionKind enumerates the selection variants.
type SelectionKind int

const (
	// SelectRouletteWheel draws proportionally to a cost-derived weight.
	SelectRouletteWheel SelectionKind = iota
	// SelectLinearRank draws proportionally to a linearly decreasing rank weight.
	SelectLinearRank
	// SelectTournament picks the best of k uniform draws.
	SelectTournament
)

// Weighting chooses how roulette-wheel weights are derived from costs.
type Weighting int

const (
	// WeightCost uses the raw cost as weight, favouring high costs.
	WeightCost Weighting = iota
	// WeightInverse mirrors costs around the population range
	// (max + min - cost), favouring low costs.
	WeightInverse
)

// Selection is the parent selection strategy.
type Selection struct {
	Kind           SelectionKind
	TournamentSize int
	Weighting      Weighting
}

// RouletteWheel selects proportionally to cost weights.
func RouletteWheel(w Weighting) Selection {
	return Selection{Kind: SelectRouletteWheel, Weighting: w}
}

// LinearRank selects by rank with probability 2(P-r)/(P(P+1)).
func LinearRank() Selection {
	return Selection{Kind: SelectLinearRank}
}

// Tournament selects the best of k individuals sampled with replacement.
func Tournament(k int) Selection {
	return Selection{Kind: SelectTournament, TournamentSize: k}
}

func (s Selection) String() string {
	switch s.Kind {
	case SelectRouletteWheel:
		if s.Weighting == WeightInverse {
			return "roulette_wheel(inverse)"
		}
		return "roulette_wheel(cost)"
	case SelectLinearRank:
		return "linear_rank"
	case SelectTournament:
		return fmt.Sprintf("tournament(%d)", s.TournamentSize)
	default:
		return fmt.Sprintf("selection(%d)", int(s.Kind))
	}
}

// Validate checks the variant's configuration.
func (s Selection) Validate() error {
	switch s.Kind {
	case SelectRouletteWheel:
		if s.Weighting != WeightCost && s.Weighting != WeightInverse {
			return optimization.Violation("selection", "validate", "unknown weighting %d", int(s.Weighting))
		}
	case SelectLinearRank:
	case SelectTournament:
		if s.TournamentSize < 1 {
			return optimization.Violation("selection", "validate", "tournament size must be at least 1, got %d", s.TournamentSize)
		}
	default:
		return optimization.Violation("selection", "validate", "unknown selection kind %d", int(s.Kind))
	}
	return nil
}

// Select draws count parents from a sorted population and reports how many
// of them are distinct genotypes.
func Select[G optimization.Fingerprinter](s Selection, count int, pop optimization.Population[G], rng *rand.Rand) ([]optimization.Individual[G], int, error) {
	if len(pop) == 0 {
		return nil, 0, optimization.Violation("selection", s.String(), "population is empty")
	}
	if count < 0 {
		return nil, 0, optimization.Violation("selection", s.String(), "negative selection count %d", count)
	}

	var (
		selected []optimization.Individual[G]
		err      error
	)
	switch s.Kind {
	case SelectRouletteWheel:
		var cumulative []float64
		cumulative, err = Cumulative(rouletteWeights(pop, s.Weighting))
		if err == nil {
			selected = drawCumulative(cumulative, count, pop, rng)
		}
	case SelectLinearRank:
		var cumulative []float64
		cumulative, err = Cumulative(RankProbabilities(len(pop)))
		if err == nil {
			selected = drawCumulative(cumulative, count, pop, rng)
		}
	case SelectTournament:
		selected, err = tournament(s.TournamentSize, count, pop, rng)
	default:
		err = optimization.Violation("selection", "select", "unknown selection kind %d", int(s.Kind))
	}
	if err != nil {
		return nil, 0, err
	}

	return selected, optimization.DistinctCount(selected), nil
}

// Cumulative turns non-negative weights into a cumulative probability
// vector. The last entry is forced to exactly 1.0.
func Cumulative(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, optimization.Violation("selection", "cumulative", "no weights")
	}
	for i, w := range weights {
		if w < 0 {
			return nil, optimization.Violation("selection", "cumulative", "negative weight %v at index %d", w, i)
		}
	}

	total := floats.Sum(weights)
	if total <= 0 {
		return nil, optimization.Violation("selection", "cumulative", "total weight is %v", total)
	}

	cumulative := floats.CumSum(make([]float64, len(weights)), weights)
	floats.Scale(1/total, cumulative)
	cumulative[len(cumulative)-1] = 1.0
	return cumulative, nil
}

// RankProbabilities returns the linear-rank selection probability of every
// rank of a population of size p, best first.
func RankProbabilities(p int) []float64 {
	probs := make([]float64, p)
	denom := float64(p) * float64(p+1)
	for r := range probs {
		probs[r] = 2 * float64(p-r) / denom
	}
	return probs
}

func rouletteWeights[G any](pop optimization.Population[G], w Weighting) []float64 {
	weights := make([]float64, len(pop))
	for i, ind := range pop {
		weights[i] = ind.Cost.Rank()
	}
	if w != WeightInverse {
		return weights
	}

	lo, hi := floats.Min(weights), floats.Max(weights)
	for i := range weights {
		weights[i] = hi + lo - weights[i]
	}
	return weights
}

func drawCumulative[G any](cumulative []float64, count int, pop optimization.Population[G], rng *rand.Rand) []optimization.Individual[G] {
	selected := make([]optimization.Individual[G], count)
	for n := range selected {
		u := rng.Float64()
		for i, c := range cumulative {
			if c > u {
				selected[n] = pop[i]
				break
			}
		}
	}
	return selected
}

func tournament[G any](k, count int, pop optimization.Population[G], rng *rand.Rand) ([]optimization.Individual[G], error) {
	if k < 1 {
		return nil, optimization.Violation("selection", "tournament", "tournament size must be at least 1, got %d", k)
	}

	selected := make([]optimization.Individual[G], count)
	for n := range selected {
		best := pop[rng.IntN(len(pop))]
		for i := 1; i < k; i++ {
			candidate := pop[rng.IntN(len(pop))]
			if candidate.Cost.Less(best.Cost) {
				best = candidate
			}
		}
		selected[n] = best
	}
	return selected, nil
}
