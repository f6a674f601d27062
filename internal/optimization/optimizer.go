// Package optimization holds the leaf types shared by the evolution engine:
// costs, individuals, populations and the capability contracts a concrete
// encoding has to satisfy.
package optimization

import (
	"math/rand/v2"
)

// Context is the problem-wide state shared by every individual of a run.
// The engine passes it through untouched; only its Tunables are written, and
// only between generations.
type Context interface {
	Tunables() *Tunables
}

// Fingerprinter is implemented by genotypes that can serialise their identity.
type Fingerprinter interface {
	// AppendFingerprint appends a byte encoding of the genotype to b.
	// Equal genotypes must produce equal encodings.
	AppendFingerprint(b []byte) []byte
}

// Genotype defines the capabilities the engine needs from an encoded
// candidate solution. Every operation must leave the genotype well-formed
// under the encoding's own rules.
type Genotype[G any, C Context] interface {
	Fingerprinter

	// Clone returns a deep copy.
	Clone() G

	// Len returns the number of independently perturbable units.
	Len() int

	// SwapUnit exchanges unit i between the receiver and other.
	SwapUnit(other G, i int)

	// RandomizeUnit replaces unit i with a uniformly drawn value.
	RandomizeUnit(i int, rng *rand.Rand, ctx C)

	// ShiftUnit moves unit i by offset, interpreted by the encoding.
	ShiftUnit(i int, offset float64, ctx C)
}

// Phenotype is the evaluable expression of a genotype against a context.
type Phenotype[G any, C Context] interface {
	// Derive builds the phenotype of g.
	Derive(g G, ctx C) Phenotype[G, C]

	// Evaluate returns the cost of the phenotype, lower is better.
	Evaluate(ctx C) Cost
}

// Generator creates the initial population.
type Generator[G any, C Context] interface {
	Generate(amount int, ctx C, rng *rand.Rand) []G
}

// Encoding bundles the generator and the phenotype template of a problem.
type Encoding[G any, C Context] struct {
	Generator Generator[G, C]
	Phenotype Phenotype[G, C]
}

// Evaluate derives the phenotype of g and returns its cost.
func (e Encoding[G, C]) Evaluate(g G, ctx C) Cost {
	return e.Phenotype.Derive(g, ctx).Evaluate(ctx)
}

// Tunables are the Context fields the adaptive controllers may rewrite.
type Tunables struct {
	// MutationStdDev is the standard deviation of Gaussian unit shifts.
	MutationStdDev float64
	// DefaultStdDev is the value MutationStdDev is reset to.
	DefaultStdDev float64
	// MaxStdDev is the problem-scaled ceiling for MutationStdDev.
	MaxStdDev float64
}

// NewTunables creates tunables starting at the default standard deviation.
func NewTunables(defaultStdDev, maxStdDev float64) *Tunables {
	return &Tunables{
		MutationStdDev: defaultStdDev,
		DefaultStdDev:  defaultStdDev,
		MaxStdDev:      maxStdDev,
	}
}

// ResetStdDev restores the default standard deviation.
func (t *Tunables) ResetStdDev() {
	t.MutationStdDev = t.DefaultStdDev
}

// NewRand returns a PCG-backed generator for seed. Equal seeds yield equal
// streams.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
