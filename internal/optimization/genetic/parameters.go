// Package genetic composes populations, strategies and adaptive controllers
// into the generational evolution loop.
package genetic

import (
	"fmt"
	"strings"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/strategy"
)

// Parameters is the mutable configuration of a run. Controllers may rewrite
// any field between generations.
type Parameters struct {
	PopulationSize int
	// CrossoverRate is the recombination probability; nil means always.
	CrossoverRate *float64
	MutationRate  float64

	Selection   strategy.Selection
	Crossover   strategy.Crossover
	Mutation    strategy.Mutation
	Rejection   strategy.Rejection
	Replacement strategy.Replacement
	Termination strategy.Termination
}

// Rate returns a pointer suitable for CrossoverRate.
func Rate(p float64) *float64 {
	return &p
}

// Validate checks every field of the parameters.
func (p *Parameters) Validate() error {
	if p.PopulationSize < 2 {
		return optimization.Violation("parameters", "validate", "population size must be at least 2, got %d", p.PopulationSize)
	}
	if p.CrossoverRate != nil && (*p.CrossoverRate < 0 || *p.CrossoverRate > 1) {
		return optimization.Violation("parameters", "validate", "crossover rate must be within [0, 1], got %v", *p.CrossoverRate)
	}
	if p.MutationRate < 0 || p.MutationRate > 1 {
		return optimization.Violation("parameters", "validate", "mutation rate must be within [0, 1], got %v", p.MutationRate)
	}

	validators := []func() error{
		p.Selection.Validate,
		p.Crossover.Validate,
		p.Mutation.Validate,
		p.Rejection.Validate,
		p.Replacement.Validate,
		p.Termination.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a copy that shares nothing mutable with p.
func (p *Parameters) Clone() *Parameters {
	c := *p
	if p.CrossoverRate != nil {
		c.CrossoverRate = Rate(*p.CrossoverRate)
	}
	return &c
}

func (p *Parameters) String() string {
	rate := "always"
	if p.CrossoverRate != nil {
		rate = fmt.Sprintf("%g", *p.CrossoverRate)
	}
	return fmt.Sprintf("population=%d crossover=%s@%s mutation=%s@%g selection=%s rejection=%s replacement=%s termination=%s",
		p.PopulationSize, p.Crossover, rate, p.Mutation, p.MutationRate,
		p.Selection, p.Rejection, p.Replacement, p.Termination)
}

// Builder assembles Parameters and checks at Build that every required
// field was provided.
type Builder struct {
	params Parameters
	set    map[string]bool
}

// NewBuilder creates an empty builder. Rejection defaults to none and the
// crossover rate to always.
func NewBuilder() *Builder {
	return &Builder{
		params: Parameters{Rejection: strategy.NoRejection()},
		set:    make(map[string]bool),
	}
}

func (b *Builder) mark(field string) *Builder {
	b.set[field] = true
	return b
}

// PopulationSize sets the number of individuals.
func (b *Builder) PopulationSize(n int) *Builder {
	b.params.PopulationSize = n
	return b.mark("population_size")
}

// CrossoverRate sets the recombination probability.
func (b *Builder) CrossoverRate(p float64) *Builder {
	b.params.CrossoverRate = Rate(p)
	return b
}

// MutationRate sets the per-unit mutation probability.
func (b *Builder) MutationRate(p float64) *Builder {
	b.params.MutationRate = p
	return b.mark("mutation_rate")
}

// Selection sets the selection strategy.
func (b *Builder) Selection(s strategy.Selection) *Builder {
	b.params.Selection = s
	return b.mark("selection")
}

// Crossover sets the crossover strategy.
func (b *Builder) Crossover(c strategy.Crossover) *Builder {
	b.params.Crossover = c
	return b.mark("crossover")
}

// Mutation sets the mutation strategy.
func (b *Builder) Mutation(m strategy.Mutation) *Builder {
	b.params.Mutation = m
	return b.mark("mutation")
}

// Rejection sets the rejection strategy.
func (b *Builder) Rejection(r strategy.Rejection) *Builder {
	b.params.Rejection = r
	return b
}

// Replacement sets the replacement strategy.
func (b *Builder) Replacement(r strategy.Replacement) *Builder {
	b.params.Replacement = r
	return b.mark("replacement")
}

// Termination sets the termination strategy.
func (b *Builder) Termination(t strategy.Termination) *Builder {
	b.params.Termination = t
	return b.mark("termination")
}

// Build returns the parameters or a contract violation naming every missing
// field.
func (b *Builder) Build() (*Parameters, error) {
	required := []string{"population_size", "mutation_rate", "selection", "crossover", "mutation", "replacement", "termination"}

	var missing []string
	for _, field := range required {
		if !b.set[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, optimization.Violation("parameters", "build", "missing %s", strings.Join(missing, ", "))
	}

	params := b.params.Clone()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}
