package strategy

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// MutationKind enumerates the mutation variants.
type MutationKind int

const (
	// MutationUniform replaces a unit with a uniformly drawn value.
	MutationUniform MutationKind = iota
	// MutationGaussian shifts a unit by a normal offset whose standard
	// deviation is read from the context tunables.
	MutationGaussian
)

// Mutation is the in-place perturbation strategy.
type Mutation struct {
	Kind MutationKind
}

// UniformReplace mutates by uniform replacement.
func UniformReplace() Mutation { return Mutation{Kind: MutationUniform} }

// Gaussian mutates by normal offsets.
func Gaussian() Mutation { return Mutation{Kind: MutationGaussian} }

func (m Mutation) String() string {
	switch m.Kind {
	case MutationUniform:
		return "uniform_replace"
	case MutationGaussian:
		return "gaussian"
	default:
		return fmt.Sprintf("mutation(%d)", int(m.Kind))
	}
}

// Validate checks the variant's configuration.
func (m Mutation) Validate() error {
	switch m.Kind {
	case MutationUniform, MutationGaussian:
		return nil
	default:
		return optimization.Violation("mutation", "validate", "unknown mutation kind %d", int(m.Kind))
	}
}

// Mutate flips a coin with probability rate for every unit of g and perturbs
// the units that come up. It returns the number of perturbed units.
func Mutate[G optimization.Genotype[G, C], C optimization.Context](m Mutation, g G, rate float64, rng *rand.Rand, ctx C) (int, error) {
	var normal distuv.Normal
	switch m.Kind {
	case MutationUniform:
	case MutationGaussian:
		sigma := ctx.Tunables().MutationStdDev
		if sigma <= 0 {
			return 0, optimization.Violation("mutation", m.String(), "standard deviation must be positive, got %v", sigma)
		}
		normal = distuv.Normal{Mu: 0, Sigma: sigma, Src: rng}
	default:
		return 0, optimization.Violation("mutation", "mutate", "unknown mutation kind %d", int(m.Kind))
	}

	mutated := 0
	for i := 0; i < g.Len(); i++ {
		if rng.Float64() >= rate {
			continue
		}
		if m.Kind == MutationGaussian {
			g.ShiftUnit(i, normal.Rand(), ctx)
		} else {
			g.RandomizeUnit(i, rng, ctx)
		}
		mutated++
	}
	return mutated, nil
}
