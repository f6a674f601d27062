// Package optimizationtest provides a minimal integer-vector encoding and
// assertion helpers for tests of the evolution engine.
package optimizationtest

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// Context is a test context. Target is the vector every genotype is
// pulled towards; Values bounds every unit to [0, Values).
type Context struct {
	Target   []int
	Values   int
	tunables *optimization.Tunables
}

// NewContext creates a context for vectors of len(target) units.
func NewContext(target []int, values int) *Context {
	return &Context{
		Target:   target,
		Values:   values,
		tunables: optimization.NewTunables(1.0, float64(values)),
	}
}

// Tunables implements optimization.Context.
func (c *Context) Tunables() *optimization.Tunables {
	return c.tunables
}

// Vector is an integer-vector genotype.
type Vector []int

// Clone implements optimization.Genotype.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// Len implements optimization.Genotype.
func (v Vector) Len() int {
	return len(v)
}

// SwapUnit implements optimization.Genotype.
func (v Vector) SwapUnit(other Vector, i int) {
	v[i], other[i] = other[i], v[i]
}

// RandomizeUnit implements optimization.Genotype.
func (v Vector) RandomizeUnit(i int, rng *rand.Rand, ctx *Context) {
	v[i] = rng.IntN(ctx.Values)
}

// ShiftUnit implements optimization.Genotype.
func (v Vector) ShiftUnit(i int, offset float64, ctx *Context) {
	n := v[i] + int(math.Round(offset))
	if n < 0 {
		n = 0
	}
	if n >= ctx.Values {
		n = ctx.Values - 1
	}
	v[i] = n
}

// AppendFingerprint implements optimization.Fingerprinter.
func (v Vector) AppendFingerprint(b []byte) []byte {
	for _, x := range v {
		b = binary.LittleEndian.AppendUint64(b, uint64(x))
	}
	return b
}

// Generator draws uniform vectors of the context's target length.
type Generator struct{}

// Generate implements optimization.Generator.
func (Generator) Generate(amount int, ctx *Context, rng *rand.Rand) []Vector {
	out := make([]Vector, amount)
	for i := range out {
		v := make(Vector, len(ctx.Target))
		for j := range v {
			v[j] = rng.IntN(ctx.Values)
		}
		out[i] = v
	}
	return out
}

// Distance is the phenotype of a vector: its L1 distance to the target.
type Distance struct {
	v Vector
}

// Derive implements optimization.Phenotype.
func (Distance) Derive(g Vector, _ *Context) optimization.Phenotype[Vector, *Context] {
	return Distance{v: g}
}

// Evaluate implements optimization.Phenotype.
func (d Distance) Evaluate(ctx *Context) optimization.Cost {
	sum := 0
	for i, x := range d.v {
		diff := x - ctx.Target[i]
		if diff < 0 {
			diff = -diff
		}
		sum += diff
	}
	return optimization.Cost(sum)
}

// Encoding returns the vector encoding.
func Encoding() optimization.Encoding[Vector, *Context] {
	return optimization.Encoding[Vector, *Context]{
		Generator: Generator{},
		Phenotype: Distance{},
	}
}

// Population builds a population with one single-unit genotype per cost,
// genotype i holding the value i.
func Population(costs ...float64) optimization.Population[Vector] {
	pop := make(optimization.Population[Vector], len(costs))
	for i, c := range costs {
		pop[i] = optimization.Individual[Vector]{Genotype: Vector{i}, Cost: optimization.Cost(c)}
	}
	return pop
}

// Rand returns a deterministic generator.
func Rand(seed uint64) *rand.Rand {
	return optimization.NewRand(seed)
}

// AssertFloat64SlicesEqual checks if two float64 slices are approximately equal.
func AssertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}
